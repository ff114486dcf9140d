package progress

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Status is a worker lifecycle stage
type Status string

// Worker stages in order; failed may follow any of them
const (
	StatusStarting     Status = "starting"
	StatusLoadingModel Status = "loading_model"
	StatusModelLoaded  Status = "model_loaded"
	StatusTranscribing Status = "transcribing"
	StatusTranscribed  Status = "transcribed"
	StatusComplete     Status = "complete"
	StatusFailed       Status = "failed"
)

// Terminal reports whether no further updates follow this status
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// Record is the state a worker publishes through its channel
type Record struct {
	Segment   int       `json:"segment"`
	Processed int       `json:"processed"`
	Total     int       `json:"total"`
	Percent   int       `json:"percent"`
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Percent returns processed/total as an integer percentage in [0, 100]
func Percent(processed, total int) int {
	if total <= 0 || processed <= 0 {
		return 0
	}
	if processed >= total {
		return 100
	}
	return processed * 100 / total
}

// ChannelPath returns the channel file path for a segment index
func ChannelPath(dir string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("progress_segment_%d.json", index))
}

// Channel is a file-backed progress record with one writer and one reader.
// Writes replace the whole file atomically, so a reader never observes a
// partial record.
type Channel struct {
	path string
}

// NewChannel returns a channel backed by path
func NewChannel(path string) *Channel {
	return &Channel{path: path}
}

// Path returns the backing file path
func (c *Channel) Path() string {
	return c.path
}

// Write replaces the channel contents with rec
func (c *Channel) Write(rec Record) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}
	return WriteFileAtomic(c.path, data)
}

// Read returns the latest record. ok is false when nothing has been written
// yet or the file is unreadable as a record.
func (c *Channel) Read() (rec Record, ok bool, err error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Record{}, false, nil
		}
		return Record{}, false, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, false, nil
	}
	return rec, true, nil
}

// Remove deletes the channel file
func (c *Channel) Remove() error {
	if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// WriteFileAtomic writes data to a temp file next to path and renames it over
// path. The file ends up with mode 0644.
func WriteFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	// CreateTemp uses 0600
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
