package handlers

import (
	"log"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"fastscribe/internal/models"
	"fastscribe/web/components"
)

// dashboardRuns はダッシュボードに表示する履歴の件数
const dashboardRuns = 10

// Dashboard は実行中ジョブの進捗と最近の実行履歴をHTMLで表示
func (h *StatusHandler) Dashboard(c echo.Context) error {
	job, views := h.progress.Progress()

	var runs []models.Run
	if h.runs != nil {
		recent, err := h.runs.ListRecent(c.Request().Context(), dashboardRuns)
		if err != nil {
			// 履歴が読めなくても進捗は表示する
			log.Printf("Failed to list runs: %v", err)
		}
		runs = recent
	}

	return render(c, components.Dashboard(job, views, runs, h.runs != nil))
}

func render(c echo.Context, component templ.Component) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	return component.Render(c.Request().Context(), c.Response())
}
