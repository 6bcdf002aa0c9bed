// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build unix

package procgroup

import (
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTerminateStopsWholeGroup(t *testing.T) {
	cmd := exec.Command("sh", "-c", "sleep 100 & sleep 100")
	Set(cmd)
	require.NoError(t, cmd.Start())

	pid := cmd.Process.Pid
	pgid, err := syscall.Getpgid(pid)
	require.NoError(t, err)
	require.Equal(t, pid, pgid, "child must lead its own process group")

	require.NoError(t, Terminate(cmd))

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		_ = Kill(cmd)
		t.Fatal("process group did not exit after SIGTERM")
	}
}

func TestSignalsOnUnstartedCommandAreNoops(t *testing.T) {
	cmd := exec.Command("true")
	require.NoError(t, Terminate(cmd))
	require.NoError(t, Kill(cmd))
	require.NoError(t, Terminate(nil))
}
