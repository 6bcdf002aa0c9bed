// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build !unix

package procgroup

import (
	"os"
	"os/exec"
)

func set(cmd *exec.Cmd) {}

// Without process groups only the root process can be reached.
func terminate(cmd *exec.Cmd) error {
	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		return cmd.Process.Kill()
	}
	return nil
}

func kill(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}
