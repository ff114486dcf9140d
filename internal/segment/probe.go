package segment

import (
	"context"
	"fmt"
	"time"

	"fastscribe/internal/asr"
)

// Prober reads media duration with ffprobe
type Prober struct {
	runner      CommandRunner
	ffprobePath string
	timeout     time.Duration
}

// NewProber creates a prober; an empty path defaults to "ffprobe"
func NewProber(runner CommandRunner, ffprobePath string) *Prober {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Prober{
		runner:      runner,
		ffprobePath: ffprobePath,
		timeout:     30 * time.Second,
	}
}

// Duration returns the total duration of a media file in seconds
func (p *Prober) Duration(ctx context.Context, path string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	out, err := p.runner.Run(ctx, p.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("probe %s: %w", path, err)
	}

	duration, err := asr.ParseDuration(string(out))
	if err != nil {
		return 0, fmt.Errorf("probe %s: %w", path, err)
	}
	return duration, nil
}
