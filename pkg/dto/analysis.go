// Package dto holds the public API's JSON wire shapes, kept distinct
// from internal/models so internal fields never leak and the wire
// format can evolve independently of the pipeline's internal structs.
package dto

import (
	"time"

	"github.com/your-org/tracepipe/internal/models"
)

// StartAnalysisRequest is the body of POST /analyze_video.
type StartAnalysisRequest struct {
	VideoPath    string  `json:"video_path" binding:"required"`
	FPSInterval  float64 `json:"fps_interval"`
	StopOnDetect bool    `json:"stop_on_detect"`
	Location     string  `json:"location"`
	Date         string  `json:"date"`
}

type StartAnalysisResponse struct {
	AnalysisID string `json:"analysis_id"`
	Status     string `json:"status"`
}

// AnalysisStatusResponse is the body of GET /analysis_status/{id}.
type AnalysisStatusResponse struct {
	AnalysisID      string               `json:"analysis_id"`
	Status          models.AnalysisStatus `json:"status"`
	ProgressPercent int                  `json:"progress_percent"`
	Phase           models.AnalysisPhase `json:"phase"`
	Stats           models.PipelineStats `json:"stats"`
	ErrorMessage    string               `json:"error_message,omitempty"`
}

// AnalysisResultResponse is the body of GET /analysis_result/{id}. It is
// only returned once Status == COMPLETED; callers must poll status
// first.
type AnalysisResultResponse struct {
	AnalysisID string                `json:"analysis_id"`
	Result     models.AnalysisResult `json:"result"`
}

// AnalysisSummary is one row of GET /v1/analyses.
type AnalysisSummary struct {
	AnalysisID      string                `json:"analysis_id"`
	Status          models.AnalysisStatus `json:"status"`
	ProgressPercent int                   `json:"progress_percent"`
	StartedAt       time.Time             `json:"started_at"`
	FinishedAt      *time.Time            `json:"finished_at,omitempty"`
}

type AnalysisListResponse struct {
	Analyses []AnalysisSummary `json:"analyses"`
}

// OptimizationStatsResponse aggregates frame-skip efficiency across every
// analysis the registry still holds, for GET /optimization_stats.
type OptimizationStatsResponse struct {
	TotalAnalyses       int     `json:"total_analyses"`
	TotalFramesSampled  int     `json:"total_frames_sampled"`
	TotalFramesSkipped  int     `json:"total_frames_skipped"`
	OverallSkipRate     float64 `json:"overall_skip_rate"`
	AvgQualityAllRuns   float64 `json:"avg_quality_all_runs"`
}

// ProgressMessage is what the WebSocket stream carries, one message per
// AnalysisState phase transition. The event bus publishes the bare
// models.ProgressEvent instead.
type ProgressMessage struct {
	Type  string               `json:"type"`
	Event models.ProgressEvent `json:"event"`
}
