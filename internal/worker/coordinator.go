package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"fastscribe/internal/progress"
)

// ErrCancelled is returned by Run after Cancel or parent context cancellation
var ErrCancelled = errors.New("transcription cancelled")

// InferenceError reports the worker failure that aborted a job
type InferenceError struct {
	Index int
	Err   error
}

func (e *InferenceError) Error() string {
	if e.Index == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("segment %d: %v", e.Index, e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}

// Process is a running worker
type Process interface {
	Wait() error
	Kill() error
	Stderr() string
}

// Launcher starts worker processes
type Launcher interface {
	Start(task *Task) (Process, error)
}

// Options configures a Coordinator
type Options struct {
	// Timeout bounds the whole transcription step; zero disables it
	Timeout time.Duration
}

// Coordinator runs exactly one worker process per task and waits for all
type Coordinator struct {
	launcher Launcher
	opts     Options

	cancel     chan struct{}
	cancelOnce sync.Once

	mu    sync.Mutex
	procs map[int]Process
}

// NewCoordinator creates a coordinator
func NewCoordinator(launcher Launcher, opts Options) *Coordinator {
	return &Coordinator{
		launcher: launcher,
		opts:     opts,
		cancel:   make(chan struct{}),
		procs:    make(map[int]Process),
	}
}

// Cancel kills every running worker. Run reaps them and returns ErrCancelled.
// Cancel never blocks and may be called any number of times.
func (c *Coordinator) Cancel() {
	c.cancelOnce.Do(func() {
		close(c.cancel)
		c.killAll()
	})
}

func (c *Coordinator) cancelled() bool {
	select {
	case <-c.cancel:
		return true
	default:
		return false
	}
}

type exitStatus struct {
	index int
	err   error
}

// Run starts all workers and waits for every one of them to exit. On success
// it returns result paths keyed by segment index.
func (c *Coordinator) Run(ctx context.Context, tasks []*Task) (map[int]string, error) {
	if c.cancelled() || ctx.Err() != nil {
		return nil, ErrCancelled
	}

	byIndex := make(map[int]*Task, len(tasks))
	exits := make(chan exitStatus, len(tasks))
	running := 0

	var failure error
	for _, task := range tasks {
		byIndex[task.Index] = task
		if c.cancelled() {
			break
		}

		proc, err := c.launcher.Start(task)
		if err != nil {
			failure = &InferenceError{Index: task.Index, Err: fmt.Errorf("failed to start worker: %w", err)}
			break
		}
		c.track(task.Index, proc)
		running++
		log.Printf("Started worker for segment %d", task.Index)

		go func(index int, proc Process) {
			exits <- exitStatus{index: index, err: proc.Wait()}
		}(task.Index, proc)
	}
	if failure != nil {
		c.killAll()
	}

	// a Cancel that raced with startup must still reach late starters
	if c.cancelled() {
		c.killAll()
	}

	var timeout <-chan time.Time
	if c.opts.Timeout > 0 {
		timer := time.NewTimer(c.opts.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	results := make(map[int]string, len(tasks))
	done := ctx.Done()
	cancel := c.cancel
	aborted := false

	for running > 0 {
		select {
		case e := <-exits:
			running--
			proc := c.untrack(e.index)
			if failure != nil || aborted {
				continue
			}
			task := byIndex[e.index]
			if err := checkExit(task, proc, e.err); err != nil {
				failure = &InferenceError{Index: e.index, Err: err}
				c.killAll()
				continue
			}
			results[e.index] = task.ResultPath
			log.Printf("Segment %d transcribed", e.index)

		case <-cancel:
			cancel = nil
			aborted = true
			c.killAll()

		case <-done:
			done = nil
			aborted = true
			c.killAll()

		case <-timeout:
			timeout = nil
			if failure == nil && !aborted {
				failure = &InferenceError{
					Index: lowestIncomplete(tasks, results),
					Err:   fmt.Errorf("transcription timed out after %s", c.opts.Timeout),
				}
				c.killAll()
			}
		}
	}

	if aborted || c.cancelled() {
		return nil, ErrCancelled
	}
	if failure != nil {
		return nil, failure
	}
	return results, nil
}

// checkExit decides whether an exited worker completed its segment
func checkExit(task *Task, proc Process, waitErr error) error {
	rec, ok, _ := progress.NewChannel(task.ChannelPath).Read()

	if waitErr == nil && ok && rec.Status == progress.StatusComplete {
		return nil
	}
	if ok && rec.Status == progress.StatusFailed && rec.Error != "" {
		return errors.New(rec.Error)
	}

	var stderr string
	if proc != nil {
		stderr = proc.Stderr()
	}
	if waitErr == nil {
		waitErr = errors.New("worker exited without completing")
	}
	if stderr != "" {
		return fmt.Errorf("%w: %s", waitErr, stderr)
	}
	return waitErr
}

func lowestIncomplete(tasks []*Task, results map[int]string) int {
	var pending []int
	for _, t := range tasks {
		if _, ok := results[t.Index]; !ok {
			pending = append(pending, t.Index)
		}
	}
	if len(pending) == 0 {
		return 0
	}
	sort.Ints(pending)
	return pending[0]
}

func (c *Coordinator) track(index int, proc Process) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.procs[index] = proc
}

func (c *Coordinator) untrack(index int) Process {
	c.mu.Lock()
	defer c.mu.Unlock()
	proc := c.procs[index]
	delete(c.procs, index)
	return proc
}

func (c *Coordinator) killAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, proc := range c.procs {
		_ = proc.Kill()
	}
}
