// Package models holds the domain structs passed between pipeline stages,
// the Analysis Registry, the event bus, and the public API.
package models

import "time"

// BBox is an axis-aligned bounding box in source-frame pixel coordinates.
type BBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

func (b BBox) Width() float64  { return b.X2 - b.X1 }
func (b BBox) Height() float64 { return b.Y2 - b.Y1 }
func (b BBox) Area() float64   { return b.Width() * b.Height() }

func (b BBox) Center() (float64, float64) {
	return (b.X1 + b.X2) / 2, (b.Y1 + b.Y2) / 2
}

// SkipReason names why the Quality Gate rejected a sampled frame, or NONE
// if the frame was processed.
type SkipReason string

const (
	SkipNone             SkipReason = "NONE"
	SkipLowQuality       SkipReason = "LOW_QUALITY"
	SkipBelowAverage     SkipReason = "BELOW_AVG"
	SkipMaxSkipOverride  SkipReason = "MAX_SKIP_OVERRIDE"
	SkipAggressive       SkipReason = "AGGRESSIVE_SKIP"
)

// QualityDecision is the transient output of the Quality Gate for one
// sampled frame. It is not retained past the decision point.
type QualityDecision struct {
	Process    bool
	Quality    float64
	SkipReason SkipReason
}

// Frame is one sampled frame from the decoder, RGB, owned by whichever
// stage is currently processing it.
type Frame struct {
	Index            int
	TimestampSeconds float64
	Width            int
	Height           int
	Pixels           []byte // row-major RGB, 3 bytes/pixel
}

// Detection is one person box returned by the detection service for a
// single frame.
type Detection struct {
	BBox             BBox
	DetectorConfidence float64
	Class            string
}

// Crop is the pixel region of a Frame cut out by a Detection, plus a
// heuristic quality score used to pick each Track's best snapshot.
type Crop struct {
	Pixels      []byte
	Width       int
	Height      int
	BBox        BBox
	CropQuality float64
}

// Track is a candidate person identity aggregated across frames by the
// Person Track Registry's spatial heuristic.
type Track struct {
	TrackID              string
	FirstFrameIndex      int
	FirstTimestamp       float64
	BestCrop             Crop
	AppearanceFrames     []int
	AppearanceTimestamps []float64
	DetectorConfidence   float64
}

// Match pairs a Track with a registered target, produced by the Matching
// Batcher.
type Match struct {
	TrackID       string
	TargetID      string
	Similarity    float64
	FirstTimestamp float64
	Crop          Crop
}

// AnalysisPhase names the current stage of a running analysis, reported
// in status projections and progress events.
type AnalysisPhase string

const (
	PhaseExtracting AnalysisPhase = "extracting_frames"
	PhaseDetecting  AnalysisPhase = "detecting_persons"
	PhaseMatching   AnalysisPhase = "matching_targets"
	PhaseCompiling  AnalysisPhase = "compiling_results"
	PhaseDone       AnalysisPhase = "done"
)

// AnalysisStatus is the top-level state of an analysis.
type AnalysisStatus string

const (
	StatusProcessing AnalysisStatus = "PROCESSING"
	StatusCompleted  AnalysisStatus = "COMPLETED"
	StatusFailed     AnalysisStatus = "FAILED"
)

// PipelineStats summarizes one analysis run's frame-level bookkeeping.
type PipelineStats struct {
	FramesSampled       int     `json:"frames_sampled"`
	FramesProcessed     int     `json:"frames_processed"`
	FramesSkipped       int     `json:"frames_skipped"`
	SkipRate            float64 `json:"skip_rate"`
	AvgQuality          float64 `json:"avg_quality"`
	TracksFound         int     `json:"tracks_found"`
	MatchesFound        int     `json:"matches_found"`
	HighConfidenceSeen  bool    `json:"high_confidence_seen"`
}

// AnalysisParams is the request body of StartAnalysis.
type AnalysisParams struct {
	VideoPath           string
	FPSInterval         float64
	StopOnDetect        bool
	Location            string
	Date                string
}

// TimelineEntry is one appearance of a matched track, emitted once per
// appearance frame (not once per match), ordered by track id and then
// chronologically within each track.
type TimelineEntry struct {
	TrackID    string  `json:"track_id"`
	TargetID   string  `json:"target_id"`
	FrameIndex int     `json:"frame_index"`
	Timestamp  float64 `json:"timestamp"`
	Similarity float64 `json:"similarity"`
}

// MovementSummary is the per-target entry/exit/duration rollup computed
// by the Result Compiler.
type MovementSummary struct {
	TargetID         string  `json:"target_id"`
	EntryTimestamp   float64 `json:"entry_timestamp"`
	ExitTimestamp    float64 `json:"exit_timestamp"`
	DurationSeconds  float64 `json:"duration_seconds"`
	AppearanceCount  int     `json:"appearance_count"`
	AvgSimilarity    float64 `json:"avg_similarity"`
	MaxSimilarity    float64 `json:"max_similarity"`
}

// AnalysisResult is the compiled output of a completed analysis.
type AnalysisResult struct {
	Timeline        []TimelineEntry   `json:"timeline"`
	CropKeys        map[string]string `json:"crop_keys"` // target_id -> object storage key of its best crop
	MovementSummary []MovementSummary `json:"movement_summary"`
	Stats           PipelineStats     `json:"stats"`
}

// AnalysisState is the Analysis Registry's record for one analysis, from
// StartAnalysis until it is deleted.
type AnalysisState struct {
	AnalysisID      string
	Status          AnalysisStatus
	ProgressPercent int
	Phase           AnalysisPhase
	Tracks          map[string]*Track
	Matches         []Match
	StartedAt       time.Time
	FinishedAt      *time.Time
	ErrorMessage    string
	Stats           PipelineStats
	Result          *AnalysisResult
}

// ProgressEvent is published on every AnalysisState phase transition, to
// the event bus and the WebSocket hub. It carries a subset of the status
// projection: status, progress, phase, and the track and match counts;
// the other stats and the error message are only available from status.
type ProgressEvent struct {
	AnalysisID      string        `json:"analysis_id"`
	Status          AnalysisStatus `json:"status"`
	ProgressPercent int           `json:"progress_percent"`
	Phase           AnalysisPhase `json:"phase"`
	TracksFound     int           `json:"tracks_found"`
	MatchesFound    int           `json:"matches_found"`
	Timestamp       time.Time     `json:"timestamp"`
}
