package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"fastscribe/internal/asr"
	"fastscribe/internal/models"
	"fastscribe/internal/progress"
	"fastscribe/internal/segment"
	"fastscribe/internal/worker"
)

// Prober measures media duration in seconds
type Prober interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// Extractor materializes planned segments as files in dir
type Extractor interface {
	Extract(ctx context.Context, source string, segments []models.Segment, dir string) ([]models.Segment, error)
}

// Transcriber runs one worker per task until all finish or one fails
type Transcriber interface {
	Run(ctx context.Context, tasks []*worker.Task) (map[int]string, error)
	Cancel()
}

// Resolver turns a non-local source into a file inside dir.
// Handles reports whether the resolver applies to source. language is the
// job's language hint, empty for auto-detection.
type Resolver interface {
	Handles(source string) bool
	Resolve(ctx context.Context, source, language, dir string) (string, error)
}

// History records runs and their outcomes
type History interface {
	RecordStart(ctx context.Context, job models.Job) error
	RecordOutcome(ctx context.Context, outcome models.RunOutcome, views []progress.View) error
}

// Deps are the collaborators an Orchestrator drives
type Deps struct {
	Prober         Prober
	Extractor      Extractor
	NewTranscriber func() Transcriber
	Resolver       Resolver // optional
	History        History  // optional
}

// Options configures how workers are set up for each job
type Options struct {
	ModelsDir      string
	Threads        int
	StaggerPercent int
	PollInterval   time.Duration
	RenderInterval time.Duration
	FFmpegPath     string
	FFprobePath    string
	Renderer       progress.Renderer
}

// Orchestrator runs jobs end to end, one at a time
type Orchestrator struct {
	deps   Deps
	opts   Options
	merger Merger

	mu     sync.Mutex
	active *activeRun
}

type activeRun struct {
	job         models.Job
	cancel      context.CancelFunc
	transcriber Transcriber
	aggregator  *progress.Aggregator
}

// New creates an orchestrator
func New(deps Deps, opts Options) *Orchestrator {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	if opts.RenderInterval <= 0 {
		opts.RenderInterval = 500 * time.Millisecond
	}
	return &Orchestrator{deps: deps, opts: opts}
}

// RunDir returns the temp directory that holds a job's artifacts
func RunDir(job models.Job) string {
	return filepath.Join(filepath.Dir(job.OutputPath), TempDirName, job.ID)
}

// Run executes job and returns its single outcome. Every artifact under the
// job's run directory is removed before Run returns, whatever the outcome.
func (o *Orchestrator) Run(ctx context.Context, job models.Job) models.RunOutcome {
	start := time.Now()
	if job.ID == "" {
		job.ID = uuid.New().String()
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	o.setActive(&activeRun{job: job, cancel: cancel})
	defer o.setActive(nil)

	o.recordStart(ctx, job)

	runDir := RunDir(job)
	err := o.run(runCtx, job, runDir)
	if cerr := o.merger.Cleanup(runDir); cerr != nil {
		log.Printf("Warning: %v", cerr)
	}

	outcome := Outcome(err)
	if err == nil {
		outcome.OutputPath = job.OutputPath
	} else if ctx.Err() != nil || runCtx.Err() != nil {
		outcome = models.RunOutcome{Kind: models.OutcomeCancelled, Err: err}
	}
	outcome.JobID = job.ID
	outcome.Elapsed = time.Since(start)

	log.Printf("Job %s finished: %s (%s)", job.ID, outcome.Kind, outcome.Elapsed.Round(time.Millisecond))
	o.recordOutcome(ctx, outcome)
	return outcome
}

// Cancel aborts the running job, if any. It does not wait for the job to
// unwind; Run returns a cancelled outcome once every worker is reaped.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	run := o.active
	o.mu.Unlock()
	if run == nil {
		return
	}
	run.cancel()
	if run.transcriber != nil {
		run.transcriber.Cancel()
	}
}

// Progress returns the running job and its latest per-segment views
func (o *Orchestrator) Progress() (*models.Job, []progress.View) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active == nil {
		return nil, nil
	}
	job := o.active.job
	if o.active.aggregator == nil {
		return &job, nil
	}
	return &job, o.active.aggregator.Snapshot()
}

func (o *Orchestrator) run(ctx context.Context, job models.Job, runDir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return &segment.SegmentationError{Err: fmt.Errorf("failed to create temp directory: %w", err)}
	}

	log.Printf("Job %s: %s (%d segments, model %s, language %s)",
		job.ID, job.SourcePath, job.Segments, job.Model, job.Language)

	source, err := o.resolve(ctx, job, runDir)
	if err != nil {
		return err
	}

	duration, err := o.deps.Prober.Duration(ctx, source)
	if err != nil {
		return &segment.SegmentationError{Err: err}
	}
	planned, err := segment.Plan(duration, job.Segments)
	if err != nil {
		return &segment.SegmentationError{Err: err}
	}
	log.Printf("Duration %.2fs, %d segments of %.2fs", duration, len(planned), duration/float64(len(planned)))

	segments, err := o.deps.Extractor.Extract(ctx, source, planned, runDir)
	if err != nil {
		return err
	}
	o.verify(ctx, segments)

	tasks := o.buildTasks(job, segments, runDir)
	channels := make([]*progress.Channel, len(tasks))
	for i, t := range tasks {
		channels[i] = progress.NewChannel(t.ChannelPath)
	}

	agg := progress.NewAggregator(channels, progress.AggregatorOptions{
		Interval: o.opts.RenderInterval,
		Renderer: o.opts.Renderer,
	})
	transcriber := o.deps.NewTranscriber()
	o.attach(transcriber, agg)

	aggCtx, stopAgg := context.WithCancel(ctx)
	defer stopAgg()
	aggDone := make(chan error, 1)
	go func() { aggDone <- agg.Run(aggCtx) }()

	results, err := transcriber.Run(ctx, tasks)
	if err != nil {
		stopAgg()
		<-aggDone
		return err
	}

	// every channel reports complete, so the aggregator drains promptly
	agg.Stop()
	if err := <-aggDone; err != nil {
		return err
	}

	if err := o.merger.Merge(results, len(tasks), job.OutputPath); err != nil {
		return err
	}
	log.Printf("Transcript written to %s", job.OutputPath)
	return nil
}

func (o *Orchestrator) resolve(ctx context.Context, job models.Job, dir string) (string, error) {
	source := job.SourcePath
	if o.deps.Resolver == nil || !o.deps.Resolver.Handles(source) {
		return source, nil
	}
	log.Printf("Downloading %s", source)
	path, err := o.deps.Resolver.Resolve(ctx, source, job.LanguageHint(), dir)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &segment.SegmentationError{Err: fmt.Errorf("failed to download source: %w", err)}
	}
	return path, nil
}

// verify logs the probed duration of each extracted segment
func (o *Orchestrator) verify(ctx context.Context, segments []models.Segment) {
	for _, seg := range segments {
		d, err := o.deps.Prober.Duration(ctx, seg.Path)
		if err != nil {
			log.Printf("Warning: could not verify %s: %v", seg, err)
			continue
		}
		log.Printf("Extracted %s: %.2fs", seg, d)
	}
}

func (o *Orchestrator) buildTasks(job models.Job, segments []models.Segment, runDir string) []*worker.Task {
	modelDir := asr.ModelDir(o.opts.ModelsDir, job.Model)
	tasks := make([]*worker.Task, len(segments))
	for i, seg := range segments {
		t := &worker.Task{
			Index:          seg.Index,
			MediaPath:      seg.Path,
			ChannelPath:    progress.ChannelPath(runDir, seg.Index),
			ResultPath:     worker.ResultPath(runDir, seg.Index),
			ModelDir:       modelDir,
			Model:          job.Model,
			Language:       job.LanguageHint(),
			Threads:        o.opts.Threads,
			FFmpegPath:     o.opts.FFmpegPath,
			FFprobePath:    o.opts.FFprobePath,
			StaggerPercent: o.opts.StaggerPercent,
			PollInterval:   o.opts.PollInterval,
		}
		if i > 0 {
			t.PrevChannelPath = tasks[i-1].ChannelPath
		}
		tasks[i] = t
	}
	return tasks
}

func (o *Orchestrator) setActive(run *activeRun) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.active = run
}

// attach exposes the transcription stage to Cancel and Progress. A Cancel
// that lands before attach has already cancelled the run context, which the
// transcriber observes.
func (o *Orchestrator) attach(t Transcriber, agg *progress.Aggregator) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active != nil {
		o.active.transcriber = t
		o.active.aggregator = agg
	}
}

func (o *Orchestrator) recordStart(ctx context.Context, job models.Job) {
	if o.deps.History == nil {
		return
	}
	if err := o.deps.History.RecordStart(context.WithoutCancel(ctx), job); err != nil {
		log.Printf("Warning: failed to record run: %v", err)
	}
}

func (o *Orchestrator) recordOutcome(ctx context.Context, outcome models.RunOutcome) {
	if o.deps.History == nil {
		return
	}
	_, views := o.Progress()
	if err := o.deps.History.RecordOutcome(context.WithoutCancel(ctx), outcome, views); err != nil {
		log.Printf("Warning: failed to record outcome: %v", err)
	}
}
