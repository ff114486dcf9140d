package worker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// WorkerCommand is the hidden subcommand that runs a Task in a child process
const WorkerCommand = "worker"

const stderrTailSize = 4096

// ExecLauncher starts workers by re-executing a binary with the task on stdin
type ExecLauncher struct {
	Executable string   // defaults to the current executable
	Args       []string // defaults to []string{WorkerCommand}
	Env        []string // appended to the parent environment
}

// Start launches one worker process for task
func (l *ExecLauncher) Start(task *Task) (Process, error) {
	exe := l.Executable
	if exe == "" {
		var err error
		exe, err = os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to locate executable: %w", err)
		}
	}
	args := l.Args
	if args == nil {
		args = []string{WorkerCommand}
	}

	payload, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task: %w", err)
	}

	cmd := exec.Command(exe, args...)
	cmd.Stdin = bytes.NewReader(payload)
	// stdout is left nil so it goes to the null device
	tail := &tailBuffer{max: stderrTailSize}
	cmd.Stderr = tail
	if len(l.Env) > 0 {
		cmd.Env = append(os.Environ(), l.Env...)
	}
	setProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", exe, err)
	}
	return &execProcess{cmd: cmd, stderr: tail}, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	stderr *tailBuffer

	mu     sync.Mutex
	exited bool
}

func (p *execProcess) Wait() error {
	err := p.cmd.Wait()
	p.mu.Lock()
	p.exited = true
	p.mu.Unlock()
	return err
}

// Kill sends SIGKILL to the worker and its process group
func (p *execProcess) Kill() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.exited {
		return nil
	}
	return killProcess(p.cmd.Process)
}

func (p *execProcess) Stderr() string {
	return p.stderr.String()
}

// tailBuffer keeps the last max bytes written to it
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(string(b.buf))
}
