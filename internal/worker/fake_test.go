package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"fastscribe/internal/asr"
)

// fakeEngine behaves according to the content of the media file:
//
//	text:<transcript>  report progress and return transcript
//	fail:<message>     return an error
//	hang               report some progress, then block until cancelled
//	crash              exit the process without publishing anything
type fakeEngine struct {
	closed bool
}

func (e *fakeEngine) Transcribe(ctx context.Context, path string, sink asr.ProgressSink) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	script := string(data)

	switch {
	case strings.HasPrefix(script, "text:"):
		sink.Report(50, 100)
		// total revised upward mid-run
		sink.Report(50, 150)
		sink.Report(50, 150)
		return strings.TrimPrefix(script, "text:"), nil
	case strings.HasPrefix(script, "fail:"):
		sink.Report(10, 100)
		return "", errors.New(strings.TrimPrefix(script, "fail:"))
	case script == "hang":
		sink.Report(10, 100)
		<-ctx.Done()
		return "", ctx.Err()
	case script == "crash":
		fmt.Fprintln(os.Stderr, "fatal: engine crashed")
		os.Exit(3)
	}
	return "", fmt.Errorf("unknown script %q", script)
}

func (e *fakeEngine) Close() {
	e.closed = true
}

type fakeLoader struct {
	mu      sync.Mutex
	err     error
	loaded  []*asr.WhisperConfig
	loadAt  time.Time
	engines []*fakeEngine
}

func (l *fakeLoader) Load(cfg *asr.WhisperConfig) (asr.Engine, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loaded = append(l.loaded, cfg)
	l.loadAt = time.Now()
	if l.err != nil {
		return nil, l.err
	}
	e := &fakeEngine{}
	l.engines = append(l.engines, e)
	return e, nil
}

// writeScript creates a media file holding a fakeEngine script
func writeScript(t *testing.T, dir string, index int, script string) string {
	t.Helper()
	path := fmt.Sprintf("%s/segment_%d.mp4", dir, index)
	if err := os.WriteFile(path, []byte(script), 0644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}
