package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fastscribe/internal/models"
	"fastscribe/internal/progress"
)

func newTask(dir string, index int, media string) *Task {
	return &Task{
		Index:       index,
		MediaPath:   media,
		ChannelPath: progress.ChannelPath(dir, index),
		ResultPath:  ResultPath(dir, index),
		ModelDir:    "/models/sherpa-onnx-whisper-tiny",
		Model:       "tiny",
		Language:    "en",
		Threads:     3,
	}
}

func TestRunnerSuccess(t *testing.T) {
	dir := t.TempDir()
	task := newTask(dir, 1, writeScript(t, dir, 1, "text:Hello world. "))
	loader := &fakeLoader{}

	if err := NewRunner(loader).Run(context.Background(), task); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	rec, ok, _ := progress.NewChannel(task.ChannelPath).Read()
	if !ok || rec.Status != progress.StatusComplete || rec.Percent != 100 {
		t.Fatalf("final record = %+v", rec)
	}

	data, err := os.ReadFile(task.ResultPath)
	if err != nil {
		t.Fatalf("read result: %v", err)
	}
	var res models.PartialResult
	if err := json.Unmarshal(data, &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.Index != 1 || res.Text != "Hello world. " {
		t.Fatalf("result = %+v", res)
	}

	cfg := loader.loaded[0]
	if cfg.Model != "tiny" || cfg.Language != "en" || cfg.NumThreads != 3 {
		t.Fatalf("engine config = %+v", cfg)
	}
	if !loader.engines[0].closed {
		t.Fatal("engine was not closed")
	}
}

func TestRunnerEngineFailure(t *testing.T) {
	dir := t.TempDir()
	task := newTask(dir, 2, writeScript(t, dir, 2, "fail:decoder exploded"))
	loader := &fakeLoader{}

	err := NewRunner(loader).Run(context.Background(), task)
	if err == nil || !strings.Contains(err.Error(), "decoder exploded") {
		t.Fatalf("Run() error = %v", err)
	}

	rec, ok, _ := progress.NewChannel(task.ChannelPath).Read()
	if !ok || rec.Status != progress.StatusFailed || !strings.Contains(rec.Error, "decoder exploded") {
		t.Fatalf("final record = %+v", rec)
	}
	if rec.Percent != 10 {
		t.Fatalf("failed record should keep progress, got %d%%", rec.Percent)
	}
	if _, err := os.Stat(task.ResultPath); !os.IsNotExist(err) {
		t.Fatal("result file must not exist after failure")
	}
	if !loader.engines[0].closed {
		t.Fatal("engine was not closed")
	}
}

func TestRunnerLoadFailure(t *testing.T) {
	dir := t.TempDir()
	task := newTask(dir, 1, writeScript(t, dir, 1, "text:unused"))
	loader := &fakeLoader{err: errors.New("encoder model not found")}

	err := NewRunner(loader).Run(context.Background(), task)
	if err == nil || !strings.Contains(err.Error(), "failed to load model") {
		t.Fatalf("Run() error = %v", err)
	}
	rec, _, _ := progress.NewChannel(task.ChannelPath).Read()
	if rec.Status != progress.StatusFailed {
		t.Fatalf("status = %s, want failed", rec.Status)
	}
}

func TestRunnerRestoresLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Writer()
	log.SetOutput(&buf)
	defer log.SetOutput(prev)

	dir := t.TempDir()
	task := newTask(dir, 1, writeScript(t, dir, 1, "fail:boom"))
	_ = NewRunner(&fakeLoader{}).Run(context.Background(), task)

	if log.Writer() != &buf {
		t.Fatal("logger output was not restored after failure")
	}
}

func TestRunnerWaitsForPredecessor(t *testing.T) {
	dir := t.TempDir()
	prev := progress.NewChannel(progress.ChannelPath(dir, 1))
	prev.Write(progress.Record{Segment: 1, Percent: 1, Status: progress.StatusTranscribing})

	task := newTask(dir, 2, writeScript(t, dir, 2, "text:Goodbye now."))
	task.PrevChannelPath = prev.Path()
	task.StaggerPercent = 2
	task.PollInterval = 10 * time.Millisecond

	loader := &fakeLoader{}
	released := make(chan time.Time, 1)
	go func() {
		time.Sleep(80 * time.Millisecond)
		released <- time.Now()
		prev.Write(progress.Record{Segment: 1, Percent: 2, Status: progress.StatusTranscribing})
	}()

	if err := NewRunner(loader).Run(context.Background(), task); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if loader.loadAt.Before(<-released) {
		t.Fatal("model loaded before predecessor reached the stagger threshold")
	}
}

func TestRunnerPredecessorFailureReleasesWait(t *testing.T) {
	dir := t.TempDir()
	prev := progress.NewChannel(progress.ChannelPath(dir, 1))
	prev.Write(progress.Record{Segment: 1, Status: progress.StatusFailed, Error: "boom"})

	task := newTask(dir, 2, writeScript(t, dir, 2, "text:ok"))
	task.PrevChannelPath = prev.Path()
	task.StaggerPercent = 2
	task.PollInterval = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := NewRunner(&fakeLoader{}).Run(ctx, task); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestRunnerCancelledWhileWaiting(t *testing.T) {
	dir := t.TempDir()
	task := newTask(dir, 2, writeScript(t, dir, 2, "text:never"))
	task.PrevChannelPath = progress.ChannelPath(dir, 1)
	task.StaggerPercent = 2
	task.PollInterval = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	loader := &fakeLoader{}
	err := NewRunner(loader).Run(ctx, task)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run() error = %v, want deadline exceeded", err)
	}
	if len(loader.loaded) != 0 {
		t.Fatal("model must not load while waiting for predecessor")
	}
}

func TestReadTask(t *testing.T) {
	dir := t.TempDir()
	task := newTask(dir, 3, filepath.Join(dir, "segment_3.mp4"))
	task.PollInterval = 500 * time.Millisecond

	data, _ := json.Marshal(task)
	got, err := ReadTask(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadTask() error = %v", err)
	}
	if got.Index != 3 || got.PollInterval != 500*time.Millisecond || got.ChannelPath != task.ChannelPath {
		t.Fatalf("ReadTask() = %+v", got)
	}

	if _, err := ReadTask(strings.NewReader(`{"index":0}`)); err == nil {
		t.Fatal("expected validation error for index 0")
	}
	if _, err := ReadTask(strings.NewReader(`not json`)); err == nil {
		t.Fatal("expected decode error")
	}
}
