package worker

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"time"
)

// ResultPath returns the partial result file path for a segment index
func ResultPath(dir string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("result_segment_%d.json", index))
}

// Task is everything a worker process needs to transcribe one segment.
// It travels to the child as JSON on stdin.
type Task struct {
	Index           int    `json:"index"`
	MediaPath       string `json:"media_path"`
	ChannelPath     string `json:"channel_path"`
	PrevChannelPath string `json:"prev_channel_path,omitempty"` // empty for the first segment
	ResultPath      string `json:"result_path"`

	ModelDir    string `json:"model_dir"`
	Model       string `json:"model"`
	Language    string `json:"language,omitempty"` // empty for auto-detect
	Threads     int    `json:"threads"`
	FFmpegPath  string `json:"ffmpeg_path,omitempty"`
	FFprobePath string `json:"ffprobe_path,omitempty"`

	StaggerPercent int           `json:"stagger_percent"`
	PollInterval   time.Duration `json:"poll_interval"`
}

// Validate checks the fields a worker cannot run without
func (t *Task) Validate() error {
	if t.Index < 1 {
		return fmt.Errorf("invalid segment index: %d", t.Index)
	}
	if t.MediaPath == "" {
		return fmt.Errorf("media path is required")
	}
	if t.ChannelPath == "" {
		return fmt.Errorf("channel path is required")
	}
	if t.ResultPath == "" {
		return fmt.Errorf("result path is required")
	}
	return nil
}

// ReadTask decodes and validates a task
func ReadTask(r io.Reader) (*Task, error) {
	var t Task
	if err := json.NewDecoder(r).Decode(&t); err != nil {
		return nil, fmt.Errorf("failed to decode task: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}
