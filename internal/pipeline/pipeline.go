// Package pipeline wires the Frame Decoder, Quality Gate, Detection
// Batcher, Track Registry, Matching Batcher, Termination Coordinator,
// and Result Compiler into one analysis run.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/your-org/tracepipe/internal/config"
	"github.com/your-org/tracepipe/internal/models"
	"github.com/your-org/tracepipe/internal/observability"
)

// ProgressFunc is called at every phase transition with the stats
// accumulated so far. Implementations must not block.
type ProgressFunc func(phase models.AnalysisPhase, stats models.PipelineStats)

// Pipeline holds the collaborators one analysis run needs: the two
// remote HTTP services and the tunables that govern batching, track
// assignment, and the stop rule.
type Pipeline struct {
	Detector Detector
	Matcher  Matcher
	Cfg      config.PipelineConfig

	// UploadCrop, if set, is called once per discovered track with its
	// best crop and should return the object-storage key it was written
	// under. A nil UploadCrop leaves every track's CropKeys entry empty.
	UploadCrop func(analysisID, trackID string, crop models.Crop) (string, error)
}

func New(detector Detector, matcher Matcher, cfg config.PipelineConfig) *Pipeline {
	return &Pipeline{Detector: detector, Matcher: matcher, Cfg: cfg}
}

// Run executes one analysis end to end and returns the compiled result,
// or the Frame Decoder's error if the video could not be opened or
// decoded. analysisID is used for log correlation and metric labels,
// and is passed to UploadCrop. Cancelling ctx
// stops frame decoding; in realtime mode (params.StopOnDetect) a first
// high-confidence match also cancels decoding from within the pipeline,
// the same way an external cancellation would.
func (p *Pipeline) Run(ctx context.Context, analysisID string, params models.AnalysisParams, progress ProgressFunc) (*models.AnalysisResult, error) {
	if progress == nil {
		progress = func(models.AnalysisPhase, models.PipelineStats) {}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	termination := &TerminationCoordinator{}
	gate := NewQualityGate(termination.Seen)
	decoder := NewDecoder()

	frames, decodeErrC := decoder.Frames(ctx, params.VideoPath, params.FPSInterval)

	var stats models.PipelineStats
	var qualitySum float64

	// Quality Gate stage: synchronous per-frame decision, feeding only
	// accepted frames downstream.
	accepted := make(chan *models.Frame)
	go func() {
		defer close(accepted)
		for f := range frames {
			stats.FramesSampled++
			observability.FramesSampled.WithLabelValues(analysisID).Inc()
			decision := gate.Decide(f)
			qualitySum += decision.Quality
			if !decision.Process {
				stats.FramesSkipped++
				observability.FramesSkipped.WithLabelValues(analysisID, string(decision.SkipReason)).Inc()
				continue
			}
			stats.FramesProcessed++
			observability.FramesProcessed.WithLabelValues(analysisID).Inc()
			select {
			case accepted <- f:
			case <-ctx.Done():
				return
			}
		}
	}()
	progress(models.PhaseExtracting, stats)

	detectionBatcher := NewDetectionBatcher(
		p.Detector,
		p.Cfg.DetectionBatchSize,
		p.Cfg.DetectionBatchTimeout,
		p.Cfg.DetectionTimeout,
		p.Cfg.DetectionConfidence,
		analysisID,
	)
	detections := make(chan FrameDetections)
	go detectionBatcher.Run(ctx, accepted, detections)
	progress(models.PhaseDetecting, stats)

	registry := NewTrackRegistry(TrackConfig{
		DistancePx:    p.Cfg.TrackDistancePx,
		SizeRatio:     p.Cfg.TrackSizeRatio,
		MinCropWidth:  p.Cfg.MinCropWidth,
		MinCropHeight: p.Cfg.MinCropHeight,
	})

	// Track Registry stage: owned by this single goroutine, no lock
	// needed. Newly-created tracks are forwarded to matching as soon as
	// they appear rather than after decode finishes, so realtime-mode
	// cancellation can take effect mid-video.
	newTracks := make(chan *models.Track)
	go func() {
		defer close(newTracks)
		for fd := range detections {
			for _, t := range registry.Ingest(fd) {
				select {
				case newTracks <- t:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	matchingBatcher := NewMatchingBatcher(p.Matcher, MatchingBatcherConfig{
		BatchSize:                 p.Cfg.MatchingBatchSize,
		BatchTimeout:              p.Cfg.MatchingBatchTimeout,
		RequestTimeout:            p.Cfg.MatchingTimeout,
		Threshold:                 p.Cfg.MatchingThreshold,
		HighConfidenceThreshold:   p.Cfg.HighConfidenceThreshold,
		StopOnFirstHighConfidence: params.StopOnDetect,
		NormalModeMinMatches:      p.Cfg.NormalModeMinMatches,
	}, termination, analysisID)

	matches := matchingBatcher.Run(ctx, newTracks, cancel)
	progress(models.PhaseMatching, stats)

	var decodeErr error
	select {
	case err := <-decodeErrC:
		decodeErr = err
	default:
	}
	if decodeErr != nil {
		return nil, decodeErr
	}

	tracks := registry.Tracks()
	stats.TracksFound = len(tracks)
	stats.MatchesFound = len(matches)
	observability.TracksFound.WithLabelValues(analysisID).Add(float64(len(tracks)))
	observability.MatchesFound.WithLabelValues(analysisID).Add(float64(len(matches)))
	stats.HighConfidenceSeen = termination.Seen()
	if stats.FramesSampled > 0 {
		stats.SkipRate = float64(stats.FramesSkipped) / float64(stats.FramesSampled)
		stats.AvgQuality = qualitySum / float64(stats.FramesSampled)
	}

	tracksByID := make(map[string]*models.Track, len(tracks))
	cropKeys := make(map[string]string, len(tracks))
	for _, t := range tracks {
		tracksByID[t.TrackID] = t
		if p.UploadCrop == nil {
			continue
		}
		key, err := p.UploadCrop(analysisID, t.TrackID, t.BestCrop)
		if err != nil {
			slog.Warn("upload crop failed", "analysis_id", analysisID, "track_id", t.TrackID, "error", err)
			continue
		}
		cropKeys[t.TrackID] = key
	}

	result := Compile(tracksByID, matches, func(trackID string) string { return cropKeys[trackID] })
	result.Stats = stats
	progress(models.PhaseDone, stats)

	return &result, nil
}
