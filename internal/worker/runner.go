package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"time"

	"fastscribe/internal/asr"
	"fastscribe/internal/models"
	"fastscribe/internal/progress"
)

// Runner transcribes one segment inside a worker process
type Runner struct {
	loader asr.Loader
}

// NewRunner creates a runner that obtains engines from loader
func NewRunner(loader asr.Loader) *Runner {
	return &Runner{loader: loader}
}

// Run executes a task, publishing every stage to the task's channel.
// The result file is written only when transcription succeeds.
func (r *Runner) Run(ctx context.Context, task *Task) (err error) {
	restore := silenceLog()
	defer restore()

	ch := progress.NewChannel(task.ChannelPath)
	adapter := newProgressAdapter(ch, task.Index)

	defer func() {
		if err != nil {
			rec := adapter.snapshot(progress.StatusFailed)
			rec.Error = err.Error()
			_ = ch.Write(rec)
		}
	}()

	if err := ch.Write(adapter.snapshot(progress.StatusStarting)); err != nil {
		return fmt.Errorf("failed to publish progress: %w", err)
	}

	if task.PrevChannelPath != "" && task.StaggerPercent > 0 {
		if err := waitForPredecessor(ctx, task.PrevChannelPath, task.StaggerPercent, task.PollInterval); err != nil {
			return err
		}
	}

	_ = ch.Write(adapter.snapshot(progress.StatusLoadingModel))

	cfg := asr.DefaultWhisperConfig(task.ModelDir)
	cfg.Model = task.Model
	cfg.Language = task.Language
	if task.Threads > 0 {
		cfg.NumThreads = task.Threads
	}
	if task.FFmpegPath != "" {
		cfg.FFmpegPath = task.FFmpegPath
	}
	if task.FFprobePath != "" {
		cfg.FFprobePath = task.FFprobePath
	}

	engine, err := r.loader.Load(cfg)
	if err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}
	defer engine.Close()

	_ = ch.Write(adapter.snapshot(progress.StatusModelLoaded))

	text, err := engine.Transcribe(ctx, task.MediaPath, adapter)
	if err != nil {
		return fmt.Errorf("transcription failed: %w", err)
	}

	adapter.finish()
	_ = ch.Write(adapter.snapshot(progress.StatusTranscribed))

	data, err := json.Marshal(models.PartialResult{Index: task.Index, Text: text})
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	if err := progress.WriteFileAtomic(task.ResultPath, data); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}

	if err := ch.Write(adapter.snapshot(progress.StatusComplete)); err != nil {
		return fmt.Errorf("failed to publish progress: %w", err)
	}
	return nil
}

// waitForPredecessor blocks until the previous segment reaches threshold
// percent or a terminal status
func waitForPredecessor(ctx context.Context, path string, threshold int, interval time.Duration) error {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	prev := progress.NewChannel(path)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if rec, ok, _ := prev.Read(); ok {
			if rec.Percent >= threshold || rec.Status.Terminal() {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// silenceLog discards the standard logger until the returned func is called
func silenceLog() func() {
	prev := log.Writer()
	log.SetOutput(io.Discard)
	return func() { log.SetOutput(prev) }
}
