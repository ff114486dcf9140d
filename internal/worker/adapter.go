package worker

import (
	"sync"

	"fastscribe/internal/progress"
)

// progressAdapter turns engine progress callbacks into channel writes.
// The engine may revise its total upward mid-run; the published percent never
// goes backwards and never exceeds 100.
type progressAdapter struct {
	ch    *progress.Channel
	index int

	mu        sync.Mutex
	processed int
	total     int
	percent   int
}

func newProgressAdapter(ch *progress.Channel, index int) *progressAdapter {
	return &progressAdapter{ch: ch, index: index}
}

// Report implements asr.ProgressSink
func (a *progressAdapter) Report(delta, total int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if delta > 0 {
		a.processed += delta
	}
	if total > a.total {
		a.total = total
	}
	if a.processed > a.total {
		a.total = a.processed
	}
	if p := progress.Percent(a.processed, a.total); p > a.percent {
		a.percent = p
	}

	// a lost update is superseded by the next one
	_ = a.ch.Write(a.record(progress.StatusTranscribing))
}

// finish marks all known work as processed
func (a *progressAdapter) finish() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.total < a.processed {
		a.total = a.processed
	}
	a.processed = a.total
	a.percent = 100
}

// record returns the current counters with status; callers hold mu or own a
func (a *progressAdapter) record(status progress.Status) progress.Record {
	return progress.Record{
		Segment:   a.index,
		Processed: a.processed,
		Total:     a.total,
		Percent:   a.percent,
		Status:    status,
	}
}

func (a *progressAdapter) snapshot(status progress.Status) progress.Record {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.record(status)
}
