package components

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/dustin/go-humanize"

	"fastscribe/internal/models"
	"fastscribe/internal/progress"
)

const styles = `body{font-family:sans-serif;margin:2rem;color:#222}
table{border-collapse:collapse;margin-bottom:2rem}
th,td{padding:.3rem .8rem;text-align:left;border-bottom:1px solid #ddd}
progress{width:12rem}
.complete,.success{color:#2a7d2a}
.failed,.segmentation_failure,.inference_failure{color:#b32020}
.cancelled{color:#8a6d00}`

// Dashboard は実行中ジョブの区間進捗と最近の実行履歴のページ
func Dashboard(job *models.Job, views []progress.View, runs []models.Run, historyEnabled bool) templ.Component {
	return layout("fastscribe", templ.Join(
		activeJob(job, views),
		recentRuns(runs, historyEnabled),
	))
}

// layout はページ共通の枠（2秒ごとに再読み込み）
func layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`+
			`<meta http-equiv="refresh" content="2"><title>%s</title><style>%s</style></head><body>`,
			templ.EscapeString(title), styles)
		if err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err = io.WriteString(w, "</body></html>")
		return err
	})
}

// activeJob は実行中ジョブの区間ごとの進捗表
func activeJob(job *models.Job, views []progress.View) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString("<section><h2>Current job</h2>")
		if job == nil {
			b.WriteString("<p>No transcription running</p></section>")
			_, err := io.WriteString(w, b.String())
			return err
		}

		fmt.Fprintf(&b, "<p><strong>%s</strong> model %s, language %s, %d segments</p>",
			templ.EscapeString(job.SourcePath), templ.EscapeString(job.Model),
			templ.EscapeString(job.Language), job.Segments)

		if len(views) == 0 {
			b.WriteString("<p>Preparing segments</p></section>")
			_, err := io.WriteString(w, b.String())
			return err
		}

		b.WriteString("<table><tr><th>Segment</th><th>Progress</th><th></th><th>Elapsed</th><th>Remaining</th><th>Status</th></tr>")
		for _, v := range views {
			status := string(v.Status)
			if status == "" {
				status = "waiting"
			}
			if v.Error != "" {
				status += ": " + v.Error
			}
			fmt.Fprintf(&b, `<tr><td>Segment %d</td><td><progress value="%d" max="100"></progress></td><td>%d%%</td><td>%s</td><td>%s</td><td class="%s">%s</td></tr>`,
				v.Segment, v.Percent, v.Percent, clock(v.Elapsed), remaining(v.Remaining),
				templ.EscapeString(string(v.Status)), templ.EscapeString(status))
		}
		b.WriteString("</table></section>")
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// recentRuns は実行履歴の一覧表
func recentRuns(runs []models.Run, enabled bool) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString("<section><h2>Recent runs</h2>")
		switch {
		case !enabled:
			b.WriteString("<p>Run history is disabled</p>")
		case len(runs) == 0:
			b.WriteString("<p>No runs yet</p>")
		default:
			b.WriteString("<table><tr><th>ID</th><th>Source</th><th>Model</th><th>Status</th><th>Elapsed</th><th>Output</th><th>Started</th></tr>")
			for _, r := range runs {
				status := r.Status
				if r.FailedSegment > 0 {
					status = fmt.Sprintf("%s (segment %d)", status, r.FailedSegment)
				}
				output := "-"
				if r.OutputBytes > 0 {
					output = humanize.Bytes(uint64(r.OutputBytes))
				}
				fmt.Fprintf(&b, `<tr><td>%s</td><td>%s</td><td>%s</td><td class="%s" title="%s">%s</td><td>%s</td><td>%s</td><td>%s</td></tr>`,
					templ.EscapeString(shortID(r.ID)), templ.EscapeString(r.SourcePath), templ.EscapeString(r.Model),
					templ.EscapeString(r.Status), templ.EscapeString(r.Error), templ.EscapeString(status),
					clock(r.Elapsed), output, humanize.Time(r.CreatedAt))
			}
			b.WriteString("</table>")
		}
		b.WriteString("</section>")
		_, err := io.WriteString(w, b.String())
		return err
	})
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func clock(d time.Duration) string {
	return d.Round(time.Second).String()
}

func remaining(d time.Duration) string {
	if d < 0 {
		return "?"
	}
	return clock(d)
}
