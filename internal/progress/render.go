package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

const barWidth = 20

// TermRenderer prints one line per segment. On a terminal it redraws the
// block in place; otherwise it prints a line only when a segment's percent
// or status changes.
type TermRenderer struct {
	w     io.Writer
	tty   bool
	drawn int
	last  map[int]string
}

// NewTermRenderer renders to f, detecting whether f is a terminal
func NewTermRenderer(f *os.File) *TermRenderer {
	tty := isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	return &TermRenderer{
		w:    colorable.NewColorable(f),
		tty:  tty,
		last: make(map[int]string),
	}
}

// NewPlainRenderer renders changed lines to w without cursor movement
func NewPlainRenderer(w io.Writer) *TermRenderer {
	return &TermRenderer{w: w, last: make(map[int]string)}
}

// Render draws the current views
func (r *TermRenderer) Render(views []View) {
	if r.tty {
		var b strings.Builder
		if r.drawn > 0 {
			fmt.Fprintf(&b, "\x1b[%dA", r.drawn)
		}
		for _, v := range views {
			b.WriteString("\r\x1b[2K")
			b.WriteString(colorize(v.Status, FormatLine(v)))
			b.WriteString("\n")
		}
		io.WriteString(r.w, b.String())
		r.drawn = len(views)
		return
	}

	for _, v := range views {
		key := fmt.Sprintf("%d|%s", v.Percent, v.Status)
		if r.last[v.Segment] == key {
			continue
		}
		r.last[v.Segment] = key
		fmt.Fprintln(r.w, FormatLine(v))
	}
}

// Finish leaves the last frame on screen
func (r *TermRenderer) Finish() {
	r.drawn = 0
}

// FormatLine formats one segment as "Segment i:  pct%|bar| [elapsed<remaining] status"
func FormatLine(v View) string {
	filled := v.Percent * barWidth / 100
	if filled > barWidth {
		filled = barWidth
	}
	bar := strings.Repeat("█", filled) + strings.Repeat(" ", barWidth-filled)

	remaining := "?"
	if v.Remaining >= 0 {
		remaining = formatClock(v.Remaining)
	}

	status := string(v.Status)
	if status == "" {
		status = "waiting"
	}
	if v.Error != "" {
		status += ": " + v.Error
	}

	return fmt.Sprintf("Segment %d: %3d%%|%s| [%s<%s] %s",
		v.Segment, v.Percent, bar, formatClock(v.Elapsed), remaining, status)
}

// formatClock formats a duration as MM:SS, or H:MM:SS past an hour
func formatClock(d time.Duration) string {
	secs := int(d.Round(time.Second).Seconds())
	if secs < 0 {
		secs = 0
	}
	h, m, s := secs/3600, (secs/60)%60, secs%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

func colorize(status Status, line string) string {
	switch status {
	case StatusComplete:
		return "\x1b[32m" + line + "\x1b[0m"
	case StatusFailed:
		return "\x1b[31m" + line + "\x1b[0m"
	default:
		return line
	}
}
