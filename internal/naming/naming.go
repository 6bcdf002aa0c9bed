// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package naming derives filesystem-safe artifact names from untrusted titles.
package naming

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

const (
	replacement = '_'
	tokenLen    = 8
	// maxTitleRunes bounds Sanitize output.
	maxTitleRunes = 150
	// maxNameBytes is NAME_MAX on common filesystems.
	maxNameBytes = 255
	// suffixReserve leaves room for yt-dlp's intermediate suffixes such as
	// ".f137.webm.part" that replace an "%(ext)s" placeholder.
	suffixReserve = 32
)

// SafeName returns "{safe-title}_{disambiguator}.{ext}". Every rune of title
// that is not a letter, digit, space, underscore or hyphen becomes an
// underscore; invalid UTF-8 is replaced as well. An empty ext omits the dot.
// The title is shortened on a rune boundary so the whole name fits in
// maxNameBytes, with the disambiguator always kept intact.
func SafeName(title, disambiguator, ext string) string {
	dis := Sanitize(disambiguator)
	tail := 0
	if ext != "" {
		tail = 1 + len(ext)
	}
	safeTitle := truncateBytes(Sanitize(title), maxNameBytes-max(tail, suffixReserve)-1-len(dis))

	var b strings.Builder
	b.Grow(len(safeTitle) + len(dis) + tail + 1)

	b.WriteString(safeTitle)
	b.WriteByte('_')
	b.WriteString(dis)
	if ext != "" {
		b.WriteByte('.')
		b.WriteString(ext)
	}
	return b.String()
}

// Sanitize applies the title allow-list without adding a disambiguator.
func Sanitize(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, string(replacement))
	}
	s = norm.NFC.String(s)

	var b strings.Builder
	b.Grow(len(s))
	n := 0
	for _, r := range s {
		if n == maxTitleRunes {
			break
		}
		if allowed(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(replacement)
		}
		n++
	}
	return b.String()
}

// truncateBytes cuts valid UTF-8 to at most n bytes without splitting a rune.
func truncateBytes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func allowed(r rune) bool {
	switch r {
	case ' ', '_', '-':
		return true
	}
	return unicode.IsLetter(r) || unicode.IsNumber(r)
}

// NewToken returns a short random token for disambiguating names and slots.
func NewToken() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return id[:tokenLen]
}

// Disambiguator combines the requested resolution with a fresh token, for
// example "720p_1a2b3c4d". A non-positive height yields just the token.
func Disambiguator(height int, token string) string {
	if height <= 0 {
		return token
	}
	return strconv.Itoa(height) + "p_" + token
}
