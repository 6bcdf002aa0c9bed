// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package download

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ManuGH/vidgrab/internal/metrics"
	"github.com/ManuGH/vidgrab/internal/quality"
	"github.com/ManuGH/vidgrab/internal/ytdlp"
)

const defaultTitle = "Unknown Title"

// Details is the metadata returned for a URL.
type Details struct {
	Title     string           `json:"title"`
	Thumbnail string           `json:"thumbnail"`
	Qualities []quality.Option `json:"qualities"`
	URL       string           `json:"url,omitempty"`
}

// record is what gets cached per (url, cookies).
type record struct {
	Title     string           `json:"title"`
	Thumbnail string           `json:"thumbnail"`
	Qualities []quality.Option `json:"qualities"`
	// Heights maps format ids to their height, used to name downloads.
	Heights map[string]int `json:"heights,omitempty"`
}

func newRecord(info *ytdlp.Info) *record {
	r := &record{
		Title:     info.Title,
		Thumbnail: info.Thumbnail,
		Qualities: quality.Aggregate(info.RawFormats()),
		Heights:   make(map[string]int),
	}
	if r.Title == "" {
		r.Title = defaultTitle
	}
	for _, f := range info.Formats {
		if f.Height > 0 {
			r.Heights[f.FormatID] = f.Height
		}
	}
	return r
}

func cacheKey(url string, useCookies bool) string {
	return "details:" + strconv.FormatBool(useCookies) + ":" + url
}

// lookup returns metadata for url from the cache, or runs a single shared
// extraction for all concurrent callers asking for the same key.
func (o *Orchestrator) lookup(ctx context.Context, url string, useCookies bool) (*record, error) {
	key := cacheKey(url, useCookies)

	if o.cache != nil && o.cfg.DetailsTTL > 0 {
		if raw, ok := o.cache.Get(ctx, key); ok {
			var r record
			if err := json.Unmarshal(raw, &r); err == nil {
				metrics.IncDetailsCache("hit")
				return &r, nil
			}
			metrics.IncDetailsCache("error")
			o.cache.Delete(ctx, key)
		} else {
			metrics.IncDetailsCache("miss")
		}
	}

	v, err, _ := o.flight.Do(key, func() (any, error) {
		// Shared by every waiter, so one caller going away must not fail the rest.
		shared := context.WithoutCancel(ctx)
		info, err := o.extractor.Extract(shared, url, useCookies)
		if err != nil {
			return nil, err
		}
		r := newRecord(info)
		if o.cache != nil && o.cfg.DetailsTTL > 0 {
			if raw, mErr := json.Marshal(r); mErr == nil {
				o.cache.Set(shared, key, raw, o.cfg.DetailsTTL)
			}
		}
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	r, ok := v.(*record)
	if !ok {
		return nil, fmt.Errorf("unexpected details type %T", v)
	}
	return r, nil
}
