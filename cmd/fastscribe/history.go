package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"fastscribe/internal/config"
	"fastscribe/internal/storage"
)

// runHistory lists recent runs from the history database
func runHistory(args []string) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFailure
	}

	fs := flag.NewFlagSet("history", flag.ExitOnError)
	dbPath := fs.String("db", cfg.DBPath, "Run history database")
	limit := fs.Int("limit", 20, "Number of runs to show")
	fs.Parse(args)

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "Error: run history is disabled (no database path)")
		return exitFailure
	}

	db, err := storage.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFailure
	}
	defer db.Close()

	runs, err := storage.NewRunRepository(db).ListRecent(context.Background(), *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFailure
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded yet")
		return 0
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tSTATUS\tSEGMENTS\tMODEL\tLANG\tELAPSED\tSIZE\tSOURCE")
	for _, r := range runs {
		status := r.Status
		if r.FailedSegment > 0 {
			status = fmt.Sprintf("%s (segment %d)", status, r.FailedSegment)
		}
		size := "-"
		if r.OutputBytes > 0 {
			size = humanize.Bytes(uint64(r.OutputBytes))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
			shortID(r.ID), humanize.Time(r.CreatedAt), status, r.Segments, r.Model,
			config.LanguageName(r.Language), r.Elapsed.Round(time.Second), size, r.SourcePath)
	}
	w.Flush()
	return 0
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
