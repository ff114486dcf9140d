package segment

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"fastscribe/internal/models"
)

// stubRunner simulates ffmpeg by writing the output file named by the last
// argument. Behaviour per segment index is selected by the fail, empty and
// hang sets.
type stubRunner struct {
	mu    sync.Mutex
	calls [][]string
	fail  map[int]bool
	empty map[int]bool
	hang  map[int]bool
	out   []byte
}

func (r *stubRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	r.mu.Lock()
	r.calls = append(r.calls, append([]string{name}, args...))
	r.mu.Unlock()

	if name == "ffprobe" {
		return r.out, nil
	}

	outPath := args[len(args)-1]
	var idx int
	fmt.Sscanf(strings.TrimSuffix(filepath.Base(outPath), filepath.Ext(outPath)), "segment_%d", &idx)

	switch {
	case r.hang[idx]:
		<-ctx.Done()
		return nil, ctx.Err()
	case r.fail[idx]:
		return nil, errors.New("exit status 1")
	case r.empty[idx]:
		return nil, os.WriteFile(outPath, nil, 0644)
	}
	return nil, os.WriteFile(outPath, []byte("media"), 0644)
}

func (r *stubRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func planned(t *testing.T, n int) []models.Segment {
	t.Helper()
	segments, err := Plan(240, n)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	return segments
}

func assertDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no files left, found %d (first: %s)", len(entries), entries[0].Name())
	}
}

func TestExtractAllSegments(t *testing.T) {
	dir := t.TempDir()
	runner := &stubRunner{}
	s := NewSegmenter(runner, Options{})

	got, err := s.Extract(context.Background(), "/in/lecture.mp4", planned(t, 4), dir)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(got) != 4 || runner.callCount() != 4 {
		t.Fatalf("segments = %d, calls = %d", len(got), runner.callCount())
	}
	for _, seg := range got {
		if seg.Path != filepath.Join(dir, fmt.Sprintf("segment_%d.mp4", seg.Index)) {
			t.Errorf("unexpected path %s", seg.Path)
		}
		if _, err := os.Stat(seg.Path); err != nil {
			t.Errorf("segment %d missing: %v", seg.Index, err)
		}
	}
}

func TestExtractFailureRemovesSegments(t *testing.T) {
	dir := t.TempDir()
	runner := &stubRunner{fail: map[int]bool{2: true, 4: true}}
	s := NewSegmenter(runner, Options{})

	_, err := s.Extract(context.Background(), "/in/lecture.mp4", planned(t, 4), dir)
	var segErr *SegmentationError
	if !errors.As(err, &segErr) {
		t.Fatalf("expected SegmentationError, got %v", err)
	}
	if segErr.Index != 2 {
		t.Fatalf("failing index = %d, want lowest failing index 2", segErr.Index)
	}
	assertDirEmpty(t, dir)
}

func TestExtractEmptyOutputIsFailure(t *testing.T) {
	dir := t.TempDir()
	runner := &stubRunner{empty: map[int]bool{1: true}}
	s := NewSegmenter(runner, Options{})

	_, err := s.Extract(context.Background(), "/in/a.mkv", planned(t, 2), dir)
	var segErr *SegmentationError
	if !errors.As(err, &segErr) || segErr.Index != 1 {
		t.Fatalf("expected SegmentationError on 1, got %v", err)
	}
	if !strings.Contains(err.Error(), "empty") {
		t.Fatalf("expected empty output message, got %v", err)
	}
	assertDirEmpty(t, dir)
}

func TestExtractTimeout(t *testing.T) {
	dir := t.TempDir()
	runner := &stubRunner{hang: map[int]bool{3: true}}
	s := NewSegmenter(runner, Options{Timeout: 50 * time.Millisecond})

	_, err := s.Extract(context.Background(), "/in/a.mp4", planned(t, 4), dir)
	var segErr *SegmentationError
	if !errors.As(err, &segErr) || segErr.Index != 3 {
		t.Fatalf("expected SegmentationError on 3, got %v", err)
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("expected timeout message, got %v", err)
	}
	assertDirEmpty(t, dir)
}

func TestExtractCancelled(t *testing.T) {
	dir := t.TempDir()
	runner := &stubRunner{hang: map[int]bool{1: true}}
	s := NewSegmenter(runner, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := s.Extract(ctx, "/in/a.mp4", planned(t, 2), dir)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	var segErr *SegmentationError
	if errors.As(err, &segErr) {
		t.Fatalf("cancellation must not be reported as segmentation failure")
	}
	assertDirEmpty(t, dir)
}

func TestExtractRespectsConcurrencyLimit(t *testing.T) {
	dir := t.TempDir()
	var mu sync.Mutex
	active, peak := 0, 0
	runner := runnerFunc(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		mu.Lock()
		active++
		if active > peak {
			peak = active
		}
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
		return nil, os.WriteFile(args[len(args)-1], []byte("x"), 0644)
	})
	s := NewSegmenter(runner, Options{MaxConcurrent: 2})

	if _, err := s.Extract(context.Background(), "/in/a.mp4", planned(t, 6), dir); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if peak > 2 {
		t.Fatalf("peak concurrency = %d, want <= 2", peak)
	}
}

type runnerFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func (f runnerFunc) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return f(ctx, name, args...)
}

func TestBuildExtractArgs(t *testing.T) {
	bounded := models.Segment{Index: 1, Start: 0, Duration: 90, Path: "/tmp/segment_1.mp4"}
	args := strings.Join(buildExtractArgs("/in/a.mp4", bounded), " ")
	if !strings.Contains(args, "-i /in/a.mp4 -ss 0.000 -t 90.000 -c copy -y /tmp/segment_1.mp4") {
		t.Fatalf("unexpected bounded args: %s", args)
	}

	open := models.Segment{Index: 2, Start: 90, Path: "/tmp/segment_2.mp4"}
	args = strings.Join(buildExtractArgs("/in/a.mp4", open), " ")
	if strings.Contains(args, "-t ") {
		t.Fatalf("open-ended segment must not set a duration: %s", args)
	}
	if !strings.Contains(args, "-ss 90.000 -c copy") {
		t.Fatalf("unexpected open args: %s", args)
	}
}

func TestProberDuration(t *testing.T) {
	runner := &stubRunner{out: []byte("180.000000\n")}
	p := NewProber(runner, "")

	d, err := p.Duration(context.Background(), "/in/a.mp4")
	if err != nil {
		t.Fatalf("Duration() error = %v", err)
	}
	if d != 180 {
		t.Fatalf("duration = %v, want 180", d)
	}

	runner.out = []byte("N/A\n")
	if _, err := p.Duration(context.Background(), "/in/a.mp4"); err == nil {
		t.Fatal("expected error for N/A duration")
	}
}
