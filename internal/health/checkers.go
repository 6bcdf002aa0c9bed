// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"fmt"
	"os"
	"time"
)

// ProbeFunc reports nil when a dependency is usable.
type ProbeFunc func(ctx context.Context) error

// ProbeChecker adapts a ProbeFunc. A failed probe yields failStatus, which
// lets optional dependencies report degraded instead of unhealthy.
type ProbeChecker struct {
	name       string
	probe      ProbeFunc
	failStatus Status
	timeout    time.Duration
}

// NewProbeChecker returns a checker that is unhealthy when probe fails.
func NewProbeChecker(name string, probe ProbeFunc) *ProbeChecker {
	return &ProbeChecker{name: name, probe: probe, failStatus: StatusUnhealthy, timeout: 2 * time.Second}
}

// Optional makes probe failures report degraded.
func (c *ProbeChecker) Optional() *ProbeChecker {
	c.failStatus = StatusDegraded
	return c
}

func (c *ProbeChecker) Name() string { return c.name }

func (c *ProbeChecker) Check(ctx context.Context) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.probe(ctx); err != nil {
		return CheckResult{Status: c.failStatus, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}

// DirChecker verifies that a directory exists (or can be created) and is writable.
type DirChecker struct {
	name string
	path string
}

// NewDirChecker creates a writable-directory checker.
func NewDirChecker(name, path string) *DirChecker {
	return &DirChecker{name: name, path: path}
}

func (c *DirChecker) Name() string { return c.name }

func (c *DirChecker) Check(_ context.Context) CheckResult {
	if err := CheckWritableDir(c.path); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error(), Message: c.path}
	}
	return CheckResult{Status: StatusHealthy, Message: c.path}
}

// CheckWritableDir creates path if needed and verifies a file can be written into it.
func CheckWritableDir(path string) error {
	if path == "" {
		return fmt.Errorf("directory not configured")
	}
	if err := os.MkdirAll(path, 0o750); err != nil {
		return fmt.Errorf("create directory %s: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}
	f, err := os.CreateTemp(path, ".write_test-*")
	if err != nil {
		return fmt.Errorf("directory is not writable: %s: %w", path, err)
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return nil
}
