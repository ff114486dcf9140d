package segment

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"fastscribe/internal/models"
)

// SegmentationError reports the failure that aborted a job before
// transcription. Index is zero when no single segment is to blame.
type SegmentationError struct {
	Index int
	Err   error
}

func (e *SegmentationError) Error() string {
	if e.Index == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("segment %d: %v", e.Index, e.Err)
}

func (e *SegmentationError) Unwrap() error {
	return e.Err
}

// Options configures a Segmenter
type Options struct {
	FFmpegPath    string
	Timeout       time.Duration // per extraction
	MaxConcurrent int           // 0 means one goroutine per segment
}

// Segmenter materializes planned segments as media files using stream copy
type Segmenter struct {
	runner CommandRunner
	opts   Options
	stat   func(name string) (os.FileInfo, error)
	remove func(name string) error
}

// NewSegmenter creates a segmenter with OS dependencies
func NewSegmenter(runner CommandRunner, opts Options) *Segmenter {
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = "ffmpeg"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 300 * time.Second
	}
	return &Segmenter{
		runner: runner,
		opts:   opts,
		stat:   os.Stat,
		remove: os.Remove,
	}
}

// Path returns the extracted file path for a segment index
func Path(dir string, index int, ext string) string {
	return filepath.Join(dir, fmt.Sprintf("segment_%d%s", index, ext))
}

type extractResult struct {
	index int
	err   error
}

// Extract writes every segment of source into dir concurrently and returns
// the segments with Path set. Any failure removes all extracted files and
// returns a *SegmentationError for the lowest failing index, or the context
// error when the caller cancelled.
func (s *Segmenter) Extract(ctx context.Context, source string, segments []models.Segment, dir string) ([]models.Segment, error) {
	ext := filepath.Ext(source)
	out := make([]models.Segment, len(segments))
	for i, seg := range segments {
		seg.Path = Path(dir, seg.Index, ext)
		out[i] = seg
	}

	limit := s.opts.MaxConcurrent
	if limit <= 0 || limit > len(out) {
		limit = len(out)
	}
	sem := make(chan struct{}, limit)
	results := make(chan extractResult, len(out))

	var wg sync.WaitGroup
	for _, seg := range out {
		wg.Add(1)
		go func(seg models.Segment) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results <- extractResult{index: seg.Index, err: s.extractOne(ctx, source, seg)}
		}(seg)
	}
	wg.Wait()
	close(results)

	var failed []extractResult
	for r := range results {
		if r.err != nil {
			failed = append(failed, r)
		}
	}

	if err := ctx.Err(); err != nil {
		s.removeAll(out)
		return nil, err
	}
	if len(failed) > 0 {
		s.removeAll(out)
		sort.Slice(failed, func(i, j int) bool { return failed[i].index < failed[j].index })
		return nil, &SegmentationError{Index: failed[0].index, Err: failed[0].err}
	}
	return out, nil
}

func (s *Segmenter) extractOne(ctx context.Context, source string, seg models.Segment) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	runCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	_, err := s.runner.Run(runCtx, s.opts.FFmpegPath, buildExtractArgs(source, seg)...)
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("extraction timed out after %s", s.opts.Timeout)
		}
		return fmt.Errorf("ffmpeg extraction failed: %w", err)
	}

	// ffmpeg can exit zero without producing usable output
	info, err := s.stat(seg.Path)
	if err != nil {
		return fmt.Errorf("ffmpeg completed but output file is missing: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("ffmpeg completed but output file is empty")
	}
	return nil
}

func (s *Segmenter) removeAll(segments []models.Segment) {
	for _, seg := range segments {
		_ = s.remove(seg.Path)
	}
}

// buildExtractArgs builds the stream-copy extraction command for one segment
func buildExtractArgs(source string, seg models.Segment) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-nostdin",
		"-i", source,
		"-ss", fmt.Sprintf("%.3f", seg.Start),
	}
	if seg.Bounded() {
		args = append(args, "-t", fmt.Sprintf("%.3f", seg.Duration))
	}
	return append(args, "-c", "copy", "-y", seg.Path)
}
