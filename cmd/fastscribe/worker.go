package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"fastscribe/internal/asr"
	"fastscribe/internal/worker"
)

// runWorker transcribes one segment described by the task on stdin.
// The coordinator keeps the tail of stderr, so the final error goes there.
func runWorker() int {
	task, err := worker.ReadTask(os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFailure
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	if err := worker.NewRunner(asr.WhisperLoader{}).Run(ctx, task); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFailure
	}
	return 0
}
