package models

import (
	"fmt"
	"time"
)

// Job は1回の文字起こし要求
type Job struct {
	ID         string    `json:"id"`
	SourcePath string    `json:"source_path"`
	Segments   int       `json:"segments"`
	Model      string    `json:"model"`    // tiny, base, small, medium, large
	Language   string    `json:"language"` // 言語コードまたは "auto"
	OutputPath string    `json:"output_path"`
	CreatedAt  time.Time `json:"created_at"`
}

// LanguageAuto は言語判定を推論エンジンに任せる
const LanguageAuto = "auto"

// LanguageHint はエンジンに渡す言語を返す（自動判定なら空）
func (j Job) LanguageHint() string {
	if j.Language == LanguageAuto {
		return ""
	}
	return j.Language
}

// Segment はソースメディアの区間
type Segment struct {
	Index    int     `json:"index"`    // 1始まり、出力順を決める
	Start    float64 `json:"start"`    // 秒
	Duration float64 `json:"duration"` // 秒、0は末尾まで
	Path     string  `json:"path,omitempty"`
}

// Bounded は長さが明示されているかを返す
func (s Segment) Bounded() bool {
	return s.Duration > 0
}

// String はログ用に区間を整形する
func (s Segment) String() string {
	if !s.Bounded() {
		return fmt.Sprintf("segment %d [%.2fs-end]", s.Index, s.Start)
	}
	return fmt.Sprintf("segment %d [%.2fs-%.2fs]", s.Index, s.Start, s.Start+s.Duration)
}

// PartialResult は1区間の文字起こし結果
type PartialResult struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// OutcomeKind はジョブの終わり方
type OutcomeKind string

// 終了種別
const (
	OutcomeSuccess             OutcomeKind = "success"
	OutcomeSegmentationFailure OutcomeKind = "segmentation_failure"
	OutcomeInferenceFailure    OutcomeKind = "inference_failure"
	OutcomeCancelled           OutcomeKind = "cancelled"
)

// RunOutcome はジョブの最終結果（1ジョブにつき1回だけ生成）
type RunOutcome struct {
	JobID      string        `json:"job_id"`
	Kind       OutcomeKind   `json:"kind"`
	OutputPath string        `json:"output_path,omitempty"`
	Segment    int           `json:"segment,omitempty"` // 失敗した区間番号
	Err        error         `json:"-"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Succeeded は結合済みの文字起こしが書き出されたかを返す
func (o RunOutcome) Succeeded() bool {
	return o.Kind == OutcomeSuccess
}

// Message は利用者向けの結果メッセージを返す
func (o RunOutcome) Message() string {
	switch o.Kind {
	case OutcomeSuccess:
		return fmt.Sprintf("transcript written to %s", o.OutputPath)
	case OutcomeSegmentationFailure:
		if o.Segment == 0 {
			return fmt.Sprintf("segmentation failed: %v", o.Err)
		}
		return fmt.Sprintf("segmentation failed on segment %d: %v", o.Segment, o.Err)
	case OutcomeInferenceFailure:
		if o.Segment == 0 {
			return fmt.Sprintf("transcription failed: %v", o.Err)
		}
		return fmt.Sprintf("transcription failed on segment %d: %v", o.Segment, o.Err)
	case OutcomeCancelled:
		return "transcription cancelled by user"
	default:
		return string(o.Kind)
	}
}
