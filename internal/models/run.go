package models

import "time"

// Run は文字起こし実行の履歴
type Run struct {
	ID            string        `json:"id"`
	SourcePath    string        `json:"source_path"`
	OutputPath    string        `json:"output_path"`
	Model         string        `json:"model"`
	Language      string        `json:"language"`
	Segments      int           `json:"segments"`
	Status        string        `json:"status"`
	FailedSegment int           `json:"failed_segment,omitempty"`
	Error         string        `json:"error,omitempty"`
	OutputBytes   int64         `json:"output_bytes,omitempty"`
	Elapsed       time.Duration `json:"elapsed"`
	CreatedAt     time.Time     `json:"created_at"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
	SegmentStates []RunSegment  `json:"segment_states,omitempty"`
}

// RunSegment は実行終了時点の区間ごとの状態
type RunSegment struct {
	Segment int    `json:"segment"`
	Status  string `json:"status"`
	Percent int    `json:"percent"`
	Error   string `json:"error,omitempty"`
}

// RunStatusRunning は実行中の履歴ステータス（終了後は OutcomeKind の値）
const RunStatusRunning = "running"
