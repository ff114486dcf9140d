package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"fastscribe/internal/asr"
	"fastscribe/internal/config"
	"fastscribe/internal/handlers"
	"fastscribe/internal/models"
	"fastscribe/internal/pipeline"
	"fastscribe/internal/progress"
	"fastscribe/internal/segment"
	"fastscribe/internal/storage"
	"fastscribe/internal/version"
	"fastscribe/internal/worker"
	"fastscribe/internal/youtube"
)

// runTranscribe transcribes each source in turn and returns the exit code
func runTranscribe(args []string) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFailure
	}

	fs := flag.NewFlagSet("transcribe", flag.ExitOnError)
	cfg.RegisterFlags(fs)
	inputDir := fs.String("input-dir", "", "Transcribe every supported media file in this directory")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <media file or YouTube URL>...\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -segments 4 lecture.mp4\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -input-dir input -model small -lang auto\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s history -limit 10\n", os.Args[0])
	}
	fs.Parse(args)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		fs.Usage()
		return exitFailure
	}

	sources := fs.Args()
	if *inputDir != "" {
		found, err := collectSources(*inputDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return exitFailure
		}
		sources = append(sources, found...)
	}
	if len(sources) == 0 {
		fmt.Fprintf(os.Stderr, "Error: no input files\n\n")
		fs.Usage()
		return exitFailure
	}

	modelDir := asr.ModelDir(cfg.ModelsDir, cfg.Model)
	if _, err := os.Stat(modelDir); err != nil {
		fmt.Fprintf(os.Stderr, "Error: model not found: %s\n", modelDir)
		fmt.Fprintf(os.Stderr, "\nHint: Download the model first:\n")
		fmt.Fprintf(os.Stderr, "  curl -SL -O https://github.com/k2-fsa/sherpa-onnx/releases/download/asr-models/%s.tar.bz2\n", filepath.Base(modelDir))
		fmt.Fprintf(os.Stderr, "  tar xvf %s.tar.bz2 -C %s/\n", filepath.Base(modelDir), cfg.ModelsDir)
		return exitFailure
	}

	var history pipeline.History
	var runs handlers.RunStore
	if cfg.DBPath != "" {
		db, err := storage.Open(cfg.DBPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return exitFailure
		}
		defer db.Close()
		repo := storage.NewRunRepository(db)
		history, runs = repo, repo
	}

	runner := segment.ExecRunner{}
	orch := pipeline.New(pipeline.Deps{
		Prober:    segment.NewProber(runner, cfg.FFprobePath),
		Extractor: segment.NewSegmenter(runner, segment.Options{FFmpegPath: cfg.FFmpegPath, Timeout: cfg.ExtractTimeout}),
		NewTranscriber: func() pipeline.Transcriber {
			return worker.NewCoordinator(&worker.ExecLauncher{}, worker.Options{Timeout: cfg.TranscribeTimeout})
		},
		Resolver: youtube.NewResolver(),
		History:  history,
	}, pipeline.Options{
		ModelsDir:      cfg.ModelsDir,
		Threads:        cfg.Threads,
		StaggerPercent: cfg.StaggerPercent,
		PollInterval:   cfg.PollInterval,
		RenderInterval: cfg.PollInterval,
		FFmpegPath:     cfg.FFmpegPath,
		FFprobePath:    cfg.FFprobePath,
		Renderer:       progress.NewTermRenderer(os.Stdout),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		orch.Cancel()
	}()

	if cfg.StatusAddr != "" {
		e := startStatusServer(cfg.StatusAddr, orch, runs)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			e.Shutdown(shutdownCtx)
		}()
	}

	fmt.Printf("Language: %s | Model: %s | Segments: %d\n\n", config.LanguageName(cfg.Language), cfg.Model, cfg.Segments)

	failed := 0
	for i, source := range sources {
		if len(sources) > 1 {
			fmt.Printf("[%d/%d] %s\n", i+1, len(sources), source)
		}

		job := models.Job{
			ID:         uuid.New().String(),
			SourcePath: source,
			Segments:   cfg.Segments,
			Model:      cfg.Model,
			Language:   cfg.Language,
			OutputPath: filepath.Join(cfg.OutputDir, outputName(source)),
			CreatedAt:  time.Now(),
		}

		outcome := orch.Run(ctx, job)
		switch outcome.Kind {
		case models.OutcomeSuccess:
			size := ""
			if info, err := os.Stat(outcome.OutputPath); err == nil {
				size = " (" + humanize.Bytes(uint64(info.Size())) + ")"
			}
			fmt.Printf("\nTranscript saved to %s%s in %s\n\n", outcome.OutputPath, size, outcome.Elapsed.Round(time.Second))
		case models.OutcomeCancelled:
			fmt.Fprintf(os.Stderr, "\nTranscription cancelled. Temporary files removed.\n")
			return exitCancelled
		default:
			failed++
			fmt.Fprintf(os.Stderr, "\nError: %s\nTemporary files removed.\n\n", outcome.Message())
		}
	}

	if failed > 0 {
		return exitFailure
	}
	return 0
}

// collectSources returns the supported media files in dir in sorted order
func collectSources(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input directory: %w", err)
	}
	var sources []string
	for _, entry := range entries {
		if entry.IsDir() || !asr.IsSupportedFormat(entry.Name()) {
			continue
		}
		sources = append(sources, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(sources)
	if len(sources) == 0 {
		return nil, fmt.Errorf("no supported media files in %s", dir)
	}
	return sources, nil
}

// outputName derives the transcript file name for a source
func outputName(source string) string {
	if youtube.IsURL(source) {
		if u, err := url.Parse(source); err == nil {
			id := u.Query().Get("v")
			if id == "" {
				id = strings.Trim(u.Path, "/")
			}
			if id != "" {
				return "youtube_" + strings.ReplaceAll(id, "/", "_") + ".txt"
			}
		}
		return "youtube.txt"
	}
	base := filepath.Base(source)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".txt"
}

// startStatusServer serves the status API in the background
func startStatusServer(addr string, orch *pipeline.Orchestrator, runs handlers.RunStore) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	handlers.NewStatusHandler(orch, runs).Register(e)

	go func() {
		log.Printf("Status API v%s listening on %s", version.Version, addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Status API stopped: %v", err)
		}
	}()
	return e
}
