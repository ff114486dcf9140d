package main

import (
	"fmt"
	"log"
	"os"

	"fastscribe/internal/version"
	"fastscribe/internal/worker"
)

const (
	exitFailure   = 1
	exitCancelled = 130
)

func main() {
	log.SetFlags(log.Ltime)

	args := os.Args[1:]
	cmd := "transcribe"
	if len(args) > 0 {
		switch args[0] {
		case "transcribe", "history", "version", worker.WorkerCommand:
			cmd, args = args[0], args[1:]
		}
	}

	switch cmd {
	case worker.WorkerCommand:
		os.Exit(runWorker())
	case "history":
		os.Exit(runHistory(args))
	case "version":
		fmt.Printf("fastscribe v%s\n", version.Version)
	default:
		os.Exit(runTranscribe(args))
	}
}
