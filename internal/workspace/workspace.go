// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package workspace manages the scratch directory downloads are written to.
//
// Each download works inside its own slot directory ("dl-<token>") below the
// workspace root. Prepare sweeps every loose regular file in the root and
// every slot directory no longer held by a download, so artifacts from
// earlier requests can never be returned for a new one, while concurrent
// downloads keep their own output.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/vidgrab/internal/log"
	"github.com/ManuGH/vidgrab/internal/metrics"
	"github.com/ManuGH/vidgrab/internal/naming"
	platformfs "github.com/ManuGH/vidgrab/internal/platform/fs"
)

const (
	slotPrefix = "dl-"
	dirPerm    = 0o750
)

// ErrNotFound is returned by Resolve when no artifact exists for the reported path.
var ErrNotFound = errors.New("artifact not found in workspace")

// SweepReport summarizes one sweep of the workspace root.
type SweepReport struct {
	Files int
	Slots int
	// Err joins every removal failure; removal failures are not fatal.
	Err error
}

// Manager owns the workspace root and the set of held slots.
type Manager struct {
	root   string
	logger zerolog.Logger

	mu     sync.Mutex
	active map[string]struct{}
}

// NewManager returns a manager rooted at root. The directory is created lazily by Prepare.
func NewManager(root string) *Manager {
	return &Manager{
		root:   filepath.Clean(root),
		logger: xglog.WithComponent("workspace"),
		active: make(map[string]struct{}),
	}
}

// Root returns the workspace root directory.
func (m *Manager) Root() string { return m.root }

// Prepare ensures the root exists, sweeps stale entries and allocates a fresh slot.
func (m *Manager) Prepare(ctx context.Context) (*Slot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(m.root, dirPerm); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	report := m.sweepLocked()
	logger := xglog.WithContext(ctx, m.logger)
	if report.Files > 0 || report.Slots > 0 || report.Err != nil {
		ev := logger.Info()
		if report.Err != nil {
			ev = logger.Warn().Err(report.Err)
		}
		ev.Str(xglog.FieldEvent, "workspace.sweep").
			Int("files", report.Files).
			Int("slots", report.Slots).
			Msg("workspace swept")
	}

	name := slotPrefix + naming.NewToken()
	dir := filepath.Join(m.root, name)
	if err := os.Mkdir(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("create slot %s: %w", name, err)
	}
	m.active[name] = struct{}{}
	metrics.SetWorkspaceActiveSlots(len(m.active))

	logger.Debug().Str(xglog.FieldEvent, "workspace.slot.open").Str(xglog.FieldSlot, name).Msg("slot allocated")
	return &Slot{m: m, Name: name, Dir: dir}, nil
}

// Sweep removes stale entries without allocating a slot.
func (m *Manager) Sweep() SweepReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweepLocked()
}

// ActiveSlots returns the number of slots currently held.
func (m *Manager) ActiveSlots() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

func (m *Manager) sweepLocked() SweepReport {
	var report SweepReport
	entries, err := os.ReadDir(m.root)
	if err != nil {
		report.Err = fmt.Errorf("read workspace root: %w", err)
		metrics.AddWorkspaceSweepErrors(1)
		return report
	}

	var errs []error
	for _, e := range entries {
		name := e.Name()
		path := filepath.Join(m.root, name)
		switch {
		case e.Type().IsRegular():
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, err)
				continue
			}
			report.Files++
		case e.IsDir() && strings.HasPrefix(name, slotPrefix):
			if _, held := m.active[name]; held {
				continue
			}
			if err := os.RemoveAll(path); err != nil {
				errs = append(errs, err)
				continue
			}
			report.Slots++
		}
	}

	report.Err = errors.Join(errs...)
	metrics.AddWorkspaceSwept("file", report.Files)
	metrics.AddWorkspaceSwept("slot", report.Slots)
	metrics.AddWorkspaceSweepErrors(len(errs))
	return report
}

func (m *Manager) release(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.active, name)
	metrics.SetWorkspaceActiveSlots(len(m.active))
}

// Slot is a per-download directory below the workspace root.
type Slot struct {
	m    *Manager
	once sync.Once

	Name string
	Dir  string
}

// Template returns the output template for a file named name inside the slot.
func (s *Slot) Template(name string) string {
	return filepath.Join(s.Dir, name)
}

// Resolve locates the artifact produced for reportedPath. When the reported
// extension differs from targetExt the substituted path is tried first,
// since merging or remuxing renames the output and may leave the source
// behind; the reported path is the fallback. An empty reportedPath
// falls back to the single targetExt file in the slot. The returned path is
// absolute and confined to the slot.
func (s *Slot) Resolve(reportedPath, targetExt string) (string, error) {
	targetExt = strings.TrimPrefix(targetExt, ".")

	if strings.TrimSpace(reportedPath) == "" {
		return s.scan(targetExt)
	}

	var candidates []string
	if ext := strings.TrimPrefix(filepath.Ext(reportedPath), "."); targetExt != "" && !strings.EqualFold(ext, targetExt) {
		candidates = append(candidates, strings.TrimSuffix(reportedPath, filepath.Ext(reportedPath))+"."+targetExt)
	}
	candidates = append(candidates, reportedPath)

	for _, c := range candidates {
		path, err := s.confine(c)
		if err != nil {
			if errors.Is(err, platformfs.ErrEscapesRoot) {
				return "", err
			}
			continue
		}
		if platformfs.IsRegularFile(path) == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, filepath.Base(reportedPath))
}

func (s *Slot) confine(p string) (string, error) {
	if filepath.IsAbs(p) {
		return platformfs.ConfineAbsPath(s.Dir, p)
	}
	return platformfs.ConfineRelPath(s.Dir, p)
}

func (s *Slot) scan(targetExt string) (string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	var found string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if targetExt != "" && !strings.EqualFold(strings.TrimPrefix(filepath.Ext(e.Name()), "."), targetExt) {
			continue
		}
		if found != "" {
			return "", fmt.Errorf("%w: ambiguous output in %s", ErrNotFound, s.Name)
		}
		found = e.Name()
	}
	if found == "" {
		return "", ErrNotFound
	}
	return s.confine(found)
}

// Close releases the slot and removes its directory. It is safe to call more than once.
func (s *Slot) Close() error {
	var err error
	s.once.Do(func() {
		s.m.release(s.Name)
		if rmErr := os.RemoveAll(s.Dir); rmErr != nil {
			err = fmt.Errorf("remove slot %s: %w", s.Name, rmErr)
		}
		s.m.logger.Debug().Str(xglog.FieldEvent, "workspace.slot.close").Str(xglog.FieldSlot, s.Name).Msg("slot released")
	})
	return err
}
