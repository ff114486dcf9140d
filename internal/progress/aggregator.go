package progress

import (
	"context"
	"sync"
	"time"
)

// View is one segment's record as displayed, with timing estimates
type View struct {
	Record
	Elapsed   time.Duration `json:"elapsed"`
	Remaining time.Duration `json:"remaining"` // negative when unknown
}

// Renderer draws the combined progress view
type Renderer interface {
	Render(views []View)
	Finish()
}

// AggregatorOptions configures an Aggregator
type AggregatorOptions struct {
	Interval time.Duration
	Renderer Renderer
	Now      func() time.Time
}

// Aggregator polls every worker channel and renders a unified view.
// It only reads channel files and never blocks workers.
type Aggregator struct {
	channels []*Channel
	interval time.Duration
	renderer Renderer
	now      func() time.Time

	stop     chan struct{}
	stopOnce sync.Once

	mu      sync.RWMutex
	views   []View
	started []time.Time
}

// NewAggregator creates an aggregator over channels ordered by segment index
func NewAggregator(channels []*Channel, opts AggregatorOptions) *Aggregator {
	if opts.Interval <= 0 {
		opts.Interval = 500 * time.Millisecond
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	views := make([]View, len(channels))
	for i := range views {
		views[i] = View{Record: Record{Segment: i + 1}, Remaining: -1}
	}

	return &Aggregator{
		channels: channels,
		interval: opts.Interval,
		renderer: opts.Renderer,
		now:      opts.Now,
		stop:     make(chan struct{}),
		views:    views,
		started:  make([]time.Time, len(channels)),
	}
}

// Stop raises the stop signal. Run still waits for every channel to report
// complete so the final render reaches 100%.
func (a *Aggregator) Stop() {
	a.stopOnce.Do(func() { close(a.stop) })
}

// Run polls until stopped and complete, or until ctx is cancelled
func (a *Aggregator) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	stop := a.stop
	stopped := false
	for {
		done := a.poll()
		a.render()
		if stopped && done {
			a.finish()
			return nil
		}

		select {
		case <-ctx.Done():
			a.finish()
			return ctx.Err()
		case <-stop:
			stopped = true
			stop = nil
		case <-ticker.C:
		}
	}
}

// Snapshot returns a copy of the latest views
func (a *Aggregator) Snapshot() []View {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]View, len(a.views))
	copy(out, a.views)
	return out
}

// poll reads every channel once and reports whether all are complete
func (a *Aggregator) poll() bool {
	now := a.now()

	a.mu.Lock()
	defer a.mu.Unlock()

	allComplete := true
	for i, ch := range a.channels {
		rec, ok, err := ch.Read()
		if err != nil || !ok {
			// absent or mid-write: keep the previous view
			if a.views[i].Status != StatusComplete {
				allComplete = false
			}
			continue
		}

		if a.started[i].IsZero() {
			a.started[i] = now
		}
		prev := a.views[i]
		if rec.Percent < prev.Percent {
			rec.Percent = prev.Percent
		}
		if rec.Percent > 100 {
			rec.Percent = 100
		}

		v := View{Record: rec, Elapsed: now.Sub(a.started[i]), Remaining: -1}
		if rec.Status == StatusComplete {
			v.Remaining = 0
		} else if rec.Percent > 0 {
			v.Remaining = time.Duration(float64(v.Elapsed) * float64(100-rec.Percent) / float64(rec.Percent))
		}
		a.views[i] = v

		if rec.Status != StatusComplete {
			allComplete = false
		}
	}
	return allComplete
}

func (a *Aggregator) render() {
	if a.renderer == nil {
		return
	}
	a.renderer.Render(a.Snapshot())
}

func (a *Aggregator) finish() {
	if a.renderer != nil {
		a.renderer.Finish()
	}
}
