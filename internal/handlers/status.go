package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"fastscribe/internal/models"
	"fastscribe/internal/progress"
	"fastscribe/internal/version"
)

// ProgressSource は実行中ジョブの進捗を返す
type ProgressSource interface {
	Progress() (*models.Job, []progress.View)
}

// RunStore は実行履歴の参照先
type RunStore interface {
	ListRecent(ctx context.Context, limit int) ([]models.Run, error)
	GetByID(ctx context.Context, id string) (*models.Run, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// StatusHandler は状態APIのハンドラー
type StatusHandler struct {
	progress ProgressSource
	runs     RunStore // nilなら履歴APIは503を返す
}

// NewStatusHandler は新しいStatusHandlerを作成
func NewStatusHandler(progress ProgressSource, runs RunStore) *StatusHandler {
	return &StatusHandler{progress: progress, runs: runs}
}

// Register はルートを登録する
func (h *StatusHandler) Register(e *echo.Echo) {
	e.GET("/", h.Dashboard)
	e.GET("/health", h.Health)
	api := e.Group("/api")
	api.GET("/progress", h.Progress)
	api.GET("/runs", h.ListRuns)
	api.GET("/runs/stats", h.RunStats)
	api.GET("/runs/:id", h.GetRun)
}

// Health は稼働確認
func (h *StatusHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

// progressResponse は /api/progress の応答
type progressResponse struct {
	Active   bool            `json:"active"`
	Job      *models.Job     `json:"job,omitempty"`
	Segments []progress.View `json:"segments"`
}

// Progress は実行中ジョブの区間ごとの進捗を返す
func (h *StatusHandler) Progress(c echo.Context) error {
	job, views := h.progress.Progress()
	if views == nil {
		views = []progress.View{}
	}
	return c.JSON(http.StatusOK, progressResponse{
		Active:   job != nil,
		Job:      job,
		Segments: views,
	})
}

// ListRuns は実行履歴一覧を取得
func (h *StatusHandler) ListRuns(c echo.Context) error {
	if h.runs == nil {
		return historyDisabled(c)
	}

	limit := 20
	if l := c.QueryParam("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil {
			limit = parsed
		}
	}

	runs, err := h.runs.ListRecent(c.Request().Context(), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if runs == nil {
		runs = []models.Run{}
	}
	return c.JSON(http.StatusOK, runs)
}

// GetRun は実行履歴を取得
func (h *StatusHandler) GetRun(c echo.Context) error {
	if h.runs == nil {
		return historyDisabled(c)
	}

	run, err := h.runs.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if run == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "run not found"})
	}
	return c.JSON(http.StatusOK, run)
}

// RunStats はステータスごとの実行件数を取得
func (h *StatusHandler) RunStats(c echo.Context) error {
	if h.runs == nil {
		return historyDisabled(c)
	}

	counts, err := h.runs.CountByStatus(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, counts)
}

func historyDisabled(c echo.Context) error {
	return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "run history is disabled"})
}
