// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package procgroup spawns external tools in their own process group so that
// yt-dlp and the ffmpeg children it forks can be stopped together.
package procgroup

import (
	"os/exec"
)

// Set configures the command to start in a new process group.
// Mandatory for Terminate and Kill to reach grandchildren.
func Set(cmd *exec.Cmd) {
	set(cmd)
}

// Terminate asks the whole process group of cmd to stop (SIGTERM on unix).
// Nil commands and already exited processes are not an error.
func Terminate(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	return terminate(cmd)
}

// Kill forcefully stops the whole process group of cmd (SIGKILL on unix).
func Kill(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	return kill(cmd)
}
