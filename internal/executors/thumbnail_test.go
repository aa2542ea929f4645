package executors

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tendant/simple-thumbnail-pipeline/internal/metrics"
	"github.com/tendant/simple-thumbnail-pipeline/internal/storage"
	"github.com/tendant/simple-thumbnail-pipeline/internal/workflows"
	"github.com/tendant/simple-thumbnail-pipeline/pkg/pipeline"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recorder captures reporter calls in order
type recorder struct {
	mu      sync.Mutex
	events  []string
	success []string
	failure []string
}

func (r *recorder) Start(total int, destDir string) { r.add("start") }
func (r *recorder) Success(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "success")
	r.success = append(r.success, name)
}
func (r *recorder) Failure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "failure")
	r.failure = append(r.failure, name)
}
func (r *recorder) Done(*pipeline.BatchResult) { r.add("done") }

func (r *recorder) add(ev string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

type fixture struct {
	src, dst string
	opts     pipeline.Options
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		src: t.TempDir(),
		dst: filepath.Join(t.TempDir(), "out", "thumbnails"),
	}
	f.opts = pipeline.Options{SourceDir: f.src, DestDir: f.dst, Concurrency: 4}
	f.opts.WithDefaults()
	require.NoError(t, f.opts.Validate())
	return f
}

func (f *fixture) image(t *testing.T, name string, w, h int) {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 10, G: 120, B: 200, A: 255})
	out, err := os.Create(filepath.Join(f.src, name))
	require.NoError(t, err)
	defer out.Close()

	if strings.EqualFold(filepath.Ext(name), ".webp") {
		require.NoError(t, workflows.Encode(out, img, pipeline.FormatWebP, 90))
		return
	}
	format, err := imaging.FormatFromFilename(name)
	require.NoError(t, err)
	require.NoError(t, imaging.Encode(out, img, format))
}

func (f *fixture) raw(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.src, name), []byte(content), 0644))
}

func (f *fixture) executor(t *testing.T, options ...Option) *BatchExecutor {
	t.Helper()
	reader, err := storage.NewFilesystemStorage(f.src)
	require.NoError(t, err)
	writer, err := storage.NewThumbnailWriter(f.dst)
	require.NoError(t, err)
	return NewBatchExecutor(reader, workflows.NewThumbnailWorkflow(reader, writer), f.opts, options...)
}

func (f *fixture) outputs(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(f.dst)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func decodeConfig(t *testing.T, path string) image.Config {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()
	cfg, _, err := image.DecodeConfig(file)
	require.NoError(t, err)
	return cfg
}

func TestExecute_FiltersBySuffix(t *testing.T) {
	f := newFixture(t)
	f.image(t, "a.jpg", 1200, 800)
	f.image(t, "b.png", 900, 900)
	f.raw(t, "notes.txt", "shot list")

	result, err := f.executor(t).Execute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"a.jpg", "b.png"}, f.outputs(t))
	assert.Equal(t, []string{"notes.txt"}, result.Ignored)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 0, result.Failed)
	assert.NotEmpty(t, result.RunID)
}

func TestExecute_CaseInsensitiveExtensions(t *testing.T) {
	f := newFixture(t)
	f.image(t, "UPPER.JPG", 100, 50)
	f.image(t, "mixed.Png", 100, 50)
	f.raw(t, "photo.jpg.bak", "old")

	_, err := f.executor(t).Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"UPPER.JPG", "mixed.Png"}, f.outputs(t))
}

func TestExecute_ResizesAndNeverUpscales(t *testing.T) {
	f := newFixture(t)
	f.image(t, "wide.jpg", 2000, 1333)
	f.image(t, "narrow.png", 640, 480)

	result, err := f.executor(t).Execute(context.Background())
	require.NoError(t, err)

	wide := decodeConfig(t, filepath.Join(f.dst, "wide.jpg"))
	assert.Equal(t, 800, wide.Width)
	assert.InDelta(t, 1333*800/2000, wide.Height, 1)

	narrow := decodeConfig(t, filepath.Join(f.dst, "narrow.png"))
	assert.Equal(t, 640, narrow.Width)
	assert.Equal(t, 480, narrow.Height)

	assert.Equal(t, "narrow.png", result.Files[0].Name)
	assert.Equal(t, "wide.jpg", result.Files[1].Name)
}

func TestExecute_IdempotentRerun(t *testing.T) {
	f := newFixture(t)
	f.image(t, "a.jpg", 1000, 500)
	f.image(t, "b.webp", 1000, 500)

	exec := f.executor(t)
	_, err := exec.Execute(context.Background())
	require.NoError(t, err)

	result, err := exec.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, []string{"a.jpg", "b.webp"}, f.outputs(t))
}

func TestExecute_IsolatesFailures(t *testing.T) {
	f := newFixture(t)
	f.image(t, "a.jpg", 1000, 500)
	f.image(t, "c.png", 1000, 500)
	f.raw(t, "b.jpg", "definitely not a jpeg")

	rec := &recorder{}
	m := metrics.New()
	result, err := f.executor(t, WithReporter(rec), WithMetrics(m)).Execute(context.Background())
	require.ErrorIs(t, err, pipeline.ErrPartialFailure)
	require.NotNil(t, result)

	assert.Equal(t, []string{"a.jpg", "c.png"}, f.outputs(t))
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	assert.ErrorIs(t, result.Files[1].Err, workflows.ErrDecode)
	assert.Equal(t, []string{"b.jpg"}, rec.failure)

	// Final status only after all three resolved
	require.Len(t, rec.events, 5)
	assert.Equal(t, "start", rec.events[0])
	assert.Equal(t, "done", rec.events[4])

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FilesTotal.WithLabelValues("succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FilesTotal.WithLabelValues("failed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.UnitsInFlight))
}

func TestExecute_MissingSourceIsFatal(t *testing.T) {
	f := newFixture(t)
	exec := f.executor(t)
	require.NoError(t, os.RemoveAll(f.src))

	result, err := exec.Execute(context.Background())
	assert.Nil(t, result)
	assert.ErrorIs(t, err, storage.ErrDirectoryNotFound)
}

// slowWorkflow tracks how many units run at once
type slowWorkflow struct {
	delay    time.Duration
	inFlight atomic.Int32
	peak     atomic.Int32
	calls    atomic.Int32
	onCall   func(n int32)
}

func (w *slowWorkflow) Name() string { return "slow" }

func (w *slowWorkflow) Execute(wctx *workflows.WorkflowContext) (*workflows.WorkflowResult, error) {
	n := w.calls.Add(1)
	if w.onCall != nil {
		w.onCall(n)
	}
	cur := w.inFlight.Add(1)
	defer w.inFlight.Add(-1)
	for {
		p := w.peak.Load()
		if cur <= p || w.peak.CompareAndSwap(p, cur) {
			break
		}
	}
	time.Sleep(w.delay)
	return &workflows.WorkflowResult{
		Success: true,
		File:    pipeline.FileResult{Name: wctx.Request.Name, Status: pipeline.StatusSucceeded},
	}, nil
}

func TestExecute_BoundsConcurrency(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 12; i++ {
		f.raw(t, string(rune('a'+i))+".jpg", "x")
	}
	f.opts.Concurrency = 3

	reader, err := storage.NewFilesystemStorage(f.src)
	require.NoError(t, err)
	wf := &slowWorkflow{delay: 20 * time.Millisecond}
	rec := &recorder{}

	result, err := NewBatchExecutor(reader, wf, f.opts, WithReporter(rec)).Execute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(12), wf.calls.Load())
	assert.LessOrEqual(t, wf.peak.Load(), int32(3))
	assert.Equal(t, 12, result.Succeeded)
	assert.Equal(t, "done", rec.events[len(rec.events)-1])
	assert.Len(t, rec.success, 12)
}

func TestExecute_CancelStopsIssuing(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 10; i++ {
		f.raw(t, string(rune('a'+i))+".jpg", "x")
	}
	f.opts.Concurrency = 1

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader, err := storage.NewFilesystemStorage(f.src)
	require.NoError(t, err)
	wf := &slowWorkflow{onCall: func(n int32) {
		if n == 2 {
			cancel()
		}
	}}

	result, err := NewBatchExecutor(reader, wf, f.opts).Execute(ctx)
	require.ErrorIs(t, err, pipeline.ErrPartialFailure)
	require.Len(t, result.Files, 10)

	assert.Equal(t, int32(2), wf.calls.Load(), "no units issued after cancellation")
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 8, result.Canceled)
	for _, file := range result.Files[2:] {
		assert.Equal(t, pipeline.StatusCanceled, file.Status)
		assert.True(t, errors.Is(file.Err, context.Canceled))
	}
}

func TestExecute_FollowsSymlinkedPhotos(t *testing.T) {
	f := newFixture(t)
	export := t.TempDir()
	img := imaging.New(1200, 600, color.NRGBA{R: 90, G: 90, B: 90, A: 255})
	require.NoError(t, imaging.Save(img, filepath.Join(export, "orig.jpg")))
	require.NoError(t, os.Symlink(filepath.Join(export, "orig.jpg"), filepath.Join(f.src, "linked.jpg")))

	result, err := f.executor(t).Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, []string{"linked.jpg"}, f.outputs(t))
	assert.Equal(t, 800, decodeConfig(t, filepath.Join(f.dst, "linked.jpg")).Width)
}

func TestExecute_ZeroConcurrencyStillRuns(t *testing.T) {
	f := newFixture(t)
	f.image(t, "a.jpg", 100, 100)
	f.image(t, "b.jpg", 100, 100)
	f.opts.Concurrency = 0
	exec := f.executor(t)

	done := make(chan struct{})
	var result *pipeline.BatchResult
	var err error
	go func() {
		defer close(done)
		result, err = exec.Execute(context.Background())
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Execute blocked with zero concurrency")
	}
	require.NoError(t, err)
	assert.Equal(t, 2, result.Succeeded)
}
