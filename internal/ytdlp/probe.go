// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ytdlp

import (
	"context"
	"fmt"
	"os/exec"
)

// BinaryProbe checks that an executable can be found on the search path.
type BinaryProbe struct {
	Bin string
}

// Probe returns nil when the binary resolves.
func (p BinaryProbe) Probe(_ context.Context) error {
	if p.Bin == "" {
		return fmt.Errorf("binary name is empty")
	}
	if _, err := exec.LookPath(p.Bin); err != nil {
		return fmt.Errorf("%s not found: %w", p.Bin, err)
	}
	return nil
}
