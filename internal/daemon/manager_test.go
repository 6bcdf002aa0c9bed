// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/vidgrab/internal/log"
)

func reserveListenAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve listen addr: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

func waitForListen(addr string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 50*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	return errors.New("listen timeout")
}

func testServerConfig(addr string) ServerConfig {
	return ServerConfig{
		ListenAddr:      addr,
		ReadTimeout:     1 * time.Second,
		WriteTimeout:    1 * time.Second,
		IdleTimeout:     10 * time.Second,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: 2 * time.Second,
	}
}

func startManager(t *testing.T, mgr Manager) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	go func() {
		errChan <- mgr.Start(ctx)
	}()
	return cancel, errChan
}

func waitStopped(t *testing.T, errChan <-chan error) error {
	t.Helper()
	select {
	case err := <-errChan:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after context cancellation")
		return nil
	}
}

func TestNewManager_ValidDeps(t *testing.T) {
	mgr, err := NewManager(testServerConfig("127.0.0.1:0"), Deps{
		Logger:     log.WithComponent("test"),
		APIHandler: http.NotFoundHandler(),
	})
	require.NoError(t, err)
	assert.NotNil(t, mgr)
}

func TestNewManager_MissingLogger(t *testing.T) {
	_, err := NewManager(testServerConfig("127.0.0.1:0"), Deps{
		Logger:     zerolog.Nop(),
		APIHandler: http.NotFoundHandler(),
	})
	require.ErrorIs(t, err, ErrMissingLogger)
	assert.Contains(t, err.Error(), "logger is required")
}

func TestNewManager_MissingAPIHandler(t *testing.T) {
	_, err := NewManager(testServerConfig("127.0.0.1:0"), Deps{
		Logger: log.WithComponent("test"),
	})
	require.ErrorIs(t, err, ErrMissingAPIHandler)
}

func TestManager_StartStop_OK(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	addr := reserveListenAddr(t)
	mgr, err := NewManager(testServerConfig(addr), Deps{
		Logger: log.WithComponent("test"),
		APIHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("OK"))
		}),
	})
	require.NoError(t, err)

	cancel, errChan := startManager(t, mgr)
	defer cancel()
	require.NoError(t, waitForListen(addr, 2*time.Second))

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + addr)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "OK", string(body))

	cancel()
	assert.NoError(t, waitStopped(t, errChan))
}

func TestManager_OnShutdownEndsLongLivedRequests(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	stream := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		http.NewResponseController(w).Flush()
		once.Do(func() { close(started) })
		<-stream
	})

	addr := reserveListenAddr(t)
	cfg := testServerConfig(addr)
	cfg.WriteTimeout = 0
	mgr, err := NewManager(cfg, Deps{
		Logger:     log.WithComponent("test"),
		APIHandler: handler,
		OnShutdown: []func(){func() { close(stream) }},
	})
	require.NoError(t, err)

	cancel, errChan := startManager(t, mgr)
	defer cancel()
	require.NoError(t, waitForListen(addr, 2*time.Second))

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + addr)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	<-started

	cancel()
	assert.NoError(t, waitStopped(t, errChan), "shutdown must not wait for the stream to time out")
	_, _ = io.Copy(io.Discard, resp.Body)
}

func TestManager_ShutdownHooksRunInReverseOrder(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	addr := reserveListenAddr(t)
	mgr, err := NewManager(testServerConfig(addr), Deps{
		Logger:     log.WithComponent("test"),
		APIHandler: http.NotFoundHandler(),
	})
	require.NoError(t, err)

	var order []string
	mgr.RegisterShutdownHook("first", func(context.Context) error {
		order = append(order, "first")
		return nil
	})
	mgr.RegisterShutdownHook("second", func(context.Context) error {
		order = append(order, "second")
		return errors.New("boom")
	})

	cancel, errChan := startManager(t, mgr)
	require.NoError(t, waitForListen(addr, 2*time.Second))
	cancel()

	err = waitStopped(t, errChan)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hook second: boom")
	assert.Equal(t, []string{"second", "first"}, order)
}

func TestManager_Shutdown_TimesOut(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	requestStarted := make(chan struct{})
	releaseHandler := make(chan struct{})
	var once sync.Once
	handler := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		once.Do(func() { close(requestStarted) })
		select {
		case <-r.Context().Done():
		case <-releaseHandler:
		}
	})

	cfg := testServerConfig(reserveListenAddr(t))
	cfg.ShutdownTimeout = 100 * time.Millisecond
	mgr, err := NewManager(cfg, Deps{
		Logger:     log.WithComponent("test"),
		APIHandler: handler,
	})
	require.NoError(t, err)

	cancel, errChan := startManager(t, mgr)
	defer cancel()
	require.NoError(t, waitForListen(cfg.ListenAddr, 2*time.Second))

	requestDone := make(chan struct{})
	go func() {
		defer close(requestDone)
		client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
		req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "http://"+cfg.ListenAddr, nil)
		resp, err := client.Do(req)
		if err == nil && resp != nil {
			_ = resp.Body.Close()
		}
	}()

	select {
	case <-requestStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("expected in-flight request before shutdown")
	}

	cancel()
	err = waitStopped(t, errChan)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "shutdown errors") || strings.Contains(err.Error(), "context deadline exceeded"), err.Error())

	close(releaseHandler)
	select {
	case <-requestDone:
	case <-time.After(2 * time.Second):
		t.Fatal("blocked request did not terminate after shutdown")
	}
}

func TestManager_Shutdown_NotStarted(t *testing.T) {
	mgr, err := NewManager(testServerConfig("127.0.0.1:0"), Deps{
		Logger:     log.WithComponent("test"),
		APIHandler: http.NotFoundHandler(),
	})
	require.NoError(t, err)
	assert.ErrorIs(t, mgr.Shutdown(context.Background()), ErrManagerNotStarted)
}

func TestManager_WithMetrics(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	metricsAddr := reserveListenAddr(t)
	apiAddr := reserveListenAddr(t)
	mgr, err := NewManager(testServerConfig(apiAddr), Deps{
		Logger:     log.WithComponent("test"),
		APIHandler: http.NotFoundHandler(),
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("# HELP test_metric\n"))
		}),
		MetricsAddr: metricsAddr,
	})
	require.NoError(t, err)

	cancel, errChan := startManager(t, mgr)
	defer cancel()
	require.NoError(t, waitForListen(metricsAddr, 2*time.Second))

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + metricsAddr + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Contains(t, string(body), "test_metric")

	cancel()
	assert.NoError(t, waitStopped(t, errChan))
}

func TestManager_PropagatesListenErrors(t *testing.T) {
	testServer := httptest.NewServer(http.NotFoundHandler())
	defer testServer.Close()

	cfg := testServerConfig(testServer.Listener.Addr().String())
	cfg.ShutdownTimeout = time.Second
	mgr, err := NewManager(cfg, Deps{
		Logger:     log.WithComponent("test"),
		APIHandler: http.NotFoundHandler(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.Error(t, mgr.Start(ctx))
}
