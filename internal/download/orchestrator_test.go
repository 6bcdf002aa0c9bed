// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package download

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/vidgrab/internal/cache"
	"github.com/ManuGH/vidgrab/internal/lock"
	"github.com/ManuGH/vidgrab/internal/quality"
	"github.com/ManuGH/vidgrab/internal/workspace"
	"github.com/ManuGH/vidgrab/internal/ytdlp"
)

type fakeExtractor struct {
	info       *ytdlp.Info
	extractErr error
	download   func(ctx context.Context, req ytdlp.DownloadRequest, progress ytdlp.ProgressFunc) (string, error)

	extractCalls  atomic.Int32
	downloadCalls atomic.Int32

	mu       sync.Mutex
	requests []ytdlp.DownloadRequest
}

func (f *fakeExtractor) Extract(_ context.Context, _ string, _ bool) (*ytdlp.Info, error) {
	f.extractCalls.Add(1)
	if f.extractErr != nil {
		return nil, f.extractErr
	}
	return f.info, nil
}

func (f *fakeExtractor) Download(ctx context.Context, req ytdlp.DownloadRequest, progress ytdlp.ProgressFunc) (string, error) {
	f.downloadCalls.Add(1)
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.download == nil {
		return writeOutput(req, "mp4")
	}
	return f.download(ctx, req, progress)
}

// writeOutput materialises the file the tool would produce for ext.
func writeOutput(req ytdlp.DownloadRequest, ext string) (string, error) {
	path := strings.ReplaceAll(req.OutputTemplate, "%(ext)s", ext)
	return path, os.WriteFile(path, []byte("media"), 0o600)
}

type fakeProber struct{ err error }

func (p fakeProber) Probe(context.Context) error { return p.err }

type spyLocks struct {
	lock.Table
	calls atomic.Int32
}

func (s *spyLocks) TryAcquire(ctx context.Context, key string) (func(), bool, error) {
	s.calls.Add(1)
	return s.Table.TryAcquire(ctx, key)
}

type recordingSink struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingSink) Progress(_ context.Context, _ string, progress string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, progress)
}

func (r *recordingSink) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func sampleInfo() *ytdlp.Info {
	return &ytdlp.Info{
		Title:     "My Clip",
		Thumbnail: "https://img.example/thumb.jpg",
		Formats: []ytdlp.Format{
			{FormatID: "136", Ext: "mp4", VCodec: "avc1", Height: 720, Filesize: 2 * 1024 * 1024},
			{FormatID: "137", Ext: "mp4", VCodec: "avc1", Height: 1080},
			{FormatID: "251", Ext: "webm", VCodec: "none", ACodec: "opus"},
		},
	}
}

type harness struct {
	orch  *Orchestrator
	ext   *fakeExtractor
	locks *spyLocks
	ws    *workspace.Manager
	sink  *recordingSink
}

func newHarness(t *testing.T, ext *fakeExtractor, merger Prober) *harness {
	t.Helper()
	if ext.info == nil && ext.extractErr == nil {
		ext.info = sampleInfo()
	}
	h := &harness{
		ext:   ext,
		locks: &spyLocks{Table: lock.NewMemory()},
		ws:    workspace.NewManager(filepath.Join(t.TempDir(), "downloads")),
		sink:  &recordingSink{},
	}
	h.orch = New(Config{}, Deps{
		Extractor: ext,
		Merger:    merger,
		Locks:     h.locks,
		Workspace: h.ws,
		Progress:  h.sink,
	})
	return h
}

func requireKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	require.Error(t, err)
	var de *Error
	require.True(t, errors.As(err, &de), "expected *Error, got %T: %v", err, err)
	assert.Equal(t, kind, de.Kind, "error: %v", err)
}

func TestDownload_EmptyURLIsValidationError(t *testing.T) {
	h := newHarness(t, &fakeExtractor{}, fakeProber{})

	res, err := h.orch.Download(context.Background(), Request{URL: "", VideoFormat: "136"})
	assert.Nil(t, res)
	requireKind(t, err, KindValidation)
	assert.Zero(t, h.ext.extractCalls.Load())
	assert.Zero(t, h.ext.downloadCalls.Load())
	assert.Zero(t, h.locks.calls.Load())
}

func TestDownload_ValidationErrors(t *testing.T) {
	h := newHarness(t, &fakeExtractor{}, fakeProber{})
	for _, req := range []Request{
		{URL: "https://example.com/v", VideoFormat: ""},
		{URL: "https://example.com/v", VideoFormat: "   "},
		{URL: "ftp://example.com/v", VideoFormat: "136"},
		{URL: "not a url", VideoFormat: "136"},
		{URL: "https://", VideoFormat: "136"},
	} {
		_, err := h.orch.Download(context.Background(), req)
		requireKind(t, err, KindValidation)
	}
	assert.Zero(t, h.ext.downloadCalls.Load())
}

func TestDownload_MissingMergerAcquiresNoLock(t *testing.T) {
	h := newHarness(t, &fakeExtractor{}, fakeProber{err: errors.New("ffmpeg: not found")})

	_, err := h.orch.Download(context.Background(), Request{URL: "https://example.com/v", VideoFormat: "136"})
	requireKind(t, err, KindDependencyMissing)
	assert.Zero(t, h.locks.calls.Load())
	assert.Zero(t, h.ext.downloadCalls.Load())
}

func TestDownload_RateLimited(t *testing.T) {
	h := newHarness(t, &fakeExtractor{
		download: func(context.Context, ytdlp.DownloadRequest, ytdlp.ProgressFunc) (string, error) {
			return "", errors.New("ERROR: [youtube] abc: HTTP Error 429: Too Many Requests")
		},
	}, fakeProber{})

	_, err := h.orch.Download(context.Background(), Request{URL: "https://example.com/v", VideoFormat: "136"})
	requireKind(t, err, KindRateLimited)
	assert.False(t, h.locks.Table.(*lock.Memory).Held("https://example.com/v"))
	assert.Zero(t, h.ws.ActiveSlots())
}

func TestDownload_AuthRequired(t *testing.T) {
	h := newHarness(t, &fakeExtractor{
		download: func(context.Context, ytdlp.DownloadRequest, ytdlp.ProgressFunc) (string, error) {
			return "", errors.New("ERROR: Sign in to confirm you're not a bot. Use --cookies-from-browser")
		},
	}, fakeProber{})

	_, err := h.orch.Download(context.Background(), Request{URL: "https://example.com/v", VideoFormat: "136"})
	requireKind(t, err, KindAuthRequired)
}

func TestDownload_SubstitutesTargetExtension(t *testing.T) {
	h := newHarness(t, &fakeExtractor{
		download: func(_ context.Context, req ytdlp.DownloadRequest, _ ytdlp.ProgressFunc) (string, error) {
			// The merge renamed the output, but the tool still reports the source container.
			if _, err := writeOutput(req, "mp4"); err != nil {
				return "", err
			}
			return strings.ReplaceAll(req.OutputTemplate, "%(ext)s", "webm"), nil
		},
	}, fakeProber{})

	res, err := h.orch.Download(context.Background(), Request{URL: "https://example.com/v", VideoFormat: "136"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Close() })

	assert.Equal(t, SuccessMessage, res.Message)
	assert.True(t, strings.HasSuffix(res.Filename, ".mp4"), res.Filename)
	assert.True(t, strings.HasPrefix(res.Name, "My Clip_720p_"), res.Name)
	assert.Equal(t, filepath.Base(res.Path), res.Name)
	assert.FileExists(t, res.Path)
	assert.FileExists(t, filepath.Join(h.ws.Root(), filepath.FromSlash(res.Filename)))

	require.Len(t, h.ext.requests, 1)
	assert.Equal(t, "136+bestaudio", h.ext.requests[0].FormatSpec)
}

func TestDownload_MissingArtifact(t *testing.T) {
	h := newHarness(t, &fakeExtractor{
		download: func(_ context.Context, req ytdlp.DownloadRequest, _ ytdlp.ProgressFunc) (string, error) {
			return strings.ReplaceAll(req.OutputTemplate, "%(ext)s", "webm"), nil
		},
	}, fakeProber{})

	_, err := h.orch.Download(context.Background(), Request{URL: "https://example.com/v", VideoFormat: "136"})
	requireKind(t, err, KindArtifactNotFound)
	assert.Zero(t, h.ws.ActiveSlots())
}

func TestDownload_ReportedPathOutsideWorkspace(t *testing.T) {
	outside := filepath.Join(t.TempDir(), "elsewhere.mp4")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o600))

	h := newHarness(t, &fakeExtractor{
		download: func(context.Context, ytdlp.DownloadRequest, ytdlp.ProgressFunc) (string, error) {
			return outside, nil
		},
	}, fakeProber{})

	_, err := h.orch.Download(context.Background(), Request{URL: "https://example.com/v", VideoFormat: "136"})
	requireKind(t, err, KindArtifactNotFound)
}

func TestDownload_ResultCloseRemovesSlot(t *testing.T) {
	h := newHarness(t, &fakeExtractor{}, fakeProber{})

	res, err := h.orch.Download(context.Background(), Request{URL: "https://example.com/v", VideoFormat: "bestaudio"})
	require.NoError(t, err)
	assert.Equal(t, 1, h.ws.ActiveSlots())
	assert.Equal(t, "bestaudio", h.ext.requests[0].FormatSpec)

	require.NoError(t, res.Close())
	assert.NoFileExists(t, res.Path)
	assert.Zero(t, h.ws.ActiveSlots())
	require.NoError(t, res.Close())
}

func TestDownload_ConcurrentSameURL(t *testing.T) {
	started := make(chan struct{})
	unblock := make(chan struct{})
	h := newHarness(t, &fakeExtractor{
		download: func(_ context.Context, req ytdlp.DownloadRequest, _ ytdlp.ProgressFunc) (string, error) {
			close(started)
			<-unblock
			return writeOutput(req, "mp4")
		},
	}, fakeProber{})

	req := Request{URL: "https://example.com/same", VideoFormat: "137"}
	type outcome struct {
		res *Result
		err error
	}
	first := make(chan outcome, 1)
	go func() {
		res, err := h.orch.Download(context.Background(), req)
		first <- outcome{res, err}
	}()

	<-started
	_, err := h.orch.Download(context.Background(), req)
	requireKind(t, err, KindConflict)

	close(unblock)
	got := <-first
	require.NoError(t, got.err)
	t.Cleanup(func() { _ = got.res.Close() })

	assert.Equal(t, int32(1), h.ext.downloadCalls.Load())
	assert.Equal(t, int32(1), h.ext.extractCalls.Load())

	// The lease is released once the first download finishes.
	res, err := h.orch.Download(context.Background(), req)
	require.NoError(t, err)
	require.NoError(t, res.Close())
}

func TestDownload_DifferentURLsRunConcurrently(t *testing.T) {
	var inFlight, peak atomic.Int32
	gate := make(chan struct{})
	h := newHarness(t, &fakeExtractor{
		download: func(_ context.Context, req ytdlp.DownloadRequest, _ ytdlp.ProgressFunc) (string, error) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			<-gate
			inFlight.Add(-1)
			return writeOutput(req, "mp4")
		},
	}, fakeProber{})

	var wg sync.WaitGroup
	results := make([]*Result, 3)
	errs := make([]error, 3)
	for i := range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = h.orch.Download(context.Background(), Request{
				URL:         "https://example.com/v" + string(rune('a'+i)),
				VideoFormat: "136",
			})
		}()
	}
	require.Eventually(t, func() bool { return inFlight.Load() == 3 }, 2*time.Second, 5*time.Millisecond)
	close(gate)
	wg.Wait()

	names := make(map[string]bool)
	for i := range 3 {
		require.NoError(t, errs[i])
		assert.FileExists(t, results[i].Path)
		names[results[i].Filename] = true
		require.NoError(t, results[i].Close())
	}
	assert.Len(t, names, 3)
	assert.Equal(t, int32(3), peak.Load())
}

func TestDownload_ProgressAlwaysEndsAtHundred(t *testing.T) {
	h := newHarness(t, &fakeExtractor{
		download: func(_ context.Context, req ytdlp.DownloadRequest, progress ytdlp.ProgressFunc) (string, error) {
			for _, p := range []float64{1, 2, 3, 50, 99, 100, 100} {
				progress(p)
			}
			return writeOutput(req, "mp4")
		},
	}, fakeProber{})
	h.orch.cfg.ProgressInterval = time.Hour

	res, err := h.orch.Download(context.Background(), Request{URL: "https://example.com/v", VideoFormat: "136"})
	require.NoError(t, err)
	require.NoError(t, res.Close())

	assert.Equal(t, []string{"1.0%", "100.0%"}, h.sink.snapshot())
}

func TestDownload_WorkspaceFailureIsToolFailure(t *testing.T) {
	file := filepath.Join(t.TempDir(), "blocked")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	ext := &fakeExtractor{info: sampleInfo()}
	locks := lock.NewMemory()
	orch := New(Config{}, Deps{
		Extractor: ext,
		Locks:     locks,
		Workspace: workspace.NewManager(filepath.Join(file, "sub")),
	})

	_, err := orch.Download(context.Background(), Request{URL: "https://example.com/v", VideoFormat: "136"})
	requireKind(t, err, KindToolFailure)
	assert.False(t, locks.Held("https://example.com/v"))
	assert.Zero(t, ext.downloadCalls.Load())
}

func TestFetchDetails(t *testing.T) {
	h := newHarness(t, &fakeExtractor{}, fakeProber{})

	d, err := h.orch.FetchDetails(context.Background(), "https://example.com/v", false)
	require.NoError(t, err)
	assert.Equal(t, "My Clip", d.Title)
	assert.Equal(t, "https://example.com/v", d.URL)
	require.Len(t, d.Qualities, 2)
	assert.Equal(t, "720p", d.Qualities[0].Quality)
	assert.Equal(t, "1080p", d.Qualities[1].Quality)

	_, err = h.orch.FetchDetails(context.Background(), "", false)
	requireKind(t, err, KindValidation)
}

func TestFetchDetails_DefaultsAndSentinel(t *testing.T) {
	h := newHarness(t, &fakeExtractor{info: &ytdlp.Info{}}, fakeProber{})

	d, err := h.orch.FetchDetails(context.Background(), "https://example.com/v", false)
	require.NoError(t, err)
	assert.Equal(t, "Unknown Title", d.Title)
	assert.Equal(t, quality.NoQualities(), d.Qualities)
}

func TestFetchDetails_ClassifiesToolErrors(t *testing.T) {
	h := newHarness(t, &fakeExtractor{extractErr: errors.New("ERROR: This video requires login")}, fakeProber{})

	_, err := h.orch.FetchDetails(context.Background(), "https://example.com/v", true)
	requireKind(t, err, KindAuthRequired)
}

func TestFetchDetails_CachedPerCookieMode(t *testing.T) {
	mc := cache.NewMemoryCache(time.Minute)
	t.Cleanup(func() { _ = mc.Close() })

	ext := &fakeExtractor{info: sampleInfo()}
	orch := New(Config{DetailsTTL: time.Minute}, Deps{
		Extractor: ext,
		Workspace: workspace.NewManager(t.TempDir()),
		Cache:     mc,
	})

	for range 3 {
		_, err := orch.FetchDetails(context.Background(), "https://example.com/v", false)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), ext.extractCalls.Load())

	_, err := orch.FetchDetails(context.Background(), "https://example.com/v", true)
	require.NoError(t, err)
	assert.Equal(t, int32(2), ext.extractCalls.Load())

	// Download resolves the title from the cached record.
	res, err := orch.Download(context.Background(), Request{URL: "https://example.com/v", VideoFormat: "137"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Close() })
	assert.Equal(t, int32(2), ext.extractCalls.Load())
	assert.True(t, strings.HasPrefix(res.Name, "My Clip_1080p_"), res.Name)
}

func TestFormatSpec(t *testing.T) {
	assert.Equal(t, "137+bestaudio", FormatSpec("137", ""))
	assert.Equal(t, "137+140", FormatSpec("137", "140"))
	assert.Equal(t, "bestaudio", FormatSpec("bestaudio", "140"))
}

func TestSetProgressInterval(t *testing.T) {
	o := New(Config{ProgressInterval: time.Second}, Deps{})
	assert.Equal(t, time.Second, o.progressInterval())

	o.SetProgressInterval(50 * time.Millisecond)
	assert.Equal(t, 50*time.Millisecond, o.progressInterval())

	o.SetProgressInterval(0)
	assert.Equal(t, time.Second, o.progressInterval())
}

func TestDownload_SurroundingWhitespaceSharesLockAndCache(t *testing.T) {
	mc := cache.NewMemoryCache(time.Minute)
	t.Cleanup(func() { _ = mc.Close() })

	started := make(chan struct{})
	unblock := make(chan struct{})
	ext := &fakeExtractor{
		info: sampleInfo(),
		download: func(_ context.Context, req ytdlp.DownloadRequest, _ ytdlp.ProgressFunc) (string, error) {
			close(started)
			<-unblock
			return writeOutput(req, "mp4")
		},
	}
	orch := New(Config{DetailsTTL: time.Minute}, Deps{
		Extractor: ext,
		Locks:     lock.NewMemory(),
		Workspace: workspace.NewManager(t.TempDir()),
		Cache:     mc,
	})

	d, err := orch.FetchDetails(context.Background(), "  https://example.com/pad\n", false)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/pad", d.URL)

	done := make(chan error, 1)
	go func() {
		res, err := orch.Download(context.Background(), Request{URL: "https://example.com/pad", VideoFormat: "137"})
		if err == nil {
			err = res.Close()
		}
		done <- err
	}()
	<-started

	_, err = orch.Download(context.Background(), Request{URL: " https://example.com/pad ", VideoFormat: "137"})
	requireKind(t, err, KindConflict)

	close(unblock)
	require.NoError(t, <-done)

	assert.Equal(t, int32(1), ext.extractCalls.Load())
	ext.mu.Lock()
	defer ext.mu.Unlock()
	require.Len(t, ext.requests, 1)
	assert.Equal(t, "https://example.com/pad", ext.requests[0].URL)
}
