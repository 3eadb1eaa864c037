// Package analysis owns the set of in-flight and completed analyses.
// It is the only component that runs pipeline.Pipeline, and the only
// place AnalysisState is mutated. Status returns a shallow copy of the
// state (its Tracks map and Result pointer are shared); Result returns
// the stored compiled result itself.
package analysis

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/tracepipe/internal/models"
	"github.com/your-org/tracepipe/internal/observability"
	"github.com/your-org/tracepipe/internal/pipeline"
)

var ErrNotFound = errors.New("analysis not found")
var ErrNotReady = errors.New("analysis result not ready")

// EventPublisher is the event-bus side of a phase transition.
type EventPublisher interface {
	Publish(ctx context.Context, event models.ProgressEvent) error
}

// Broadcaster is the WebSocket side of a phase transition.
type Broadcaster interface {
	Broadcast(event models.ProgressEvent)
}

type Registry struct {
	mu        sync.RWMutex
	analyses  map[string]*models.AnalysisState
	cancels   map[string]context.CancelFunc
	pipeline  *pipeline.Pipeline
	publisher EventPublisher
	hub       Broadcaster
}

func NewRegistry(p *pipeline.Pipeline, publisher EventPublisher, hub Broadcaster) *Registry {
	return &Registry{
		analyses: make(map[string]*models.AnalysisState),
		cancels:  make(map[string]context.CancelFunc),
		pipeline: p,
		publisher: publisher,
		hub:       hub,
	}
}

// Start registers a new analysis and kicks off the pipeline run in its
// own goroutine, returning the analysis_id immediately; the request
// returns right away and progress is tracked separately.
func (r *Registry) Start(params models.AnalysisParams) string {
	id := uuid.New().String()
	now := time.Now()

	state := &models.AnalysisState{
		AnalysisID: id,
		Status:     models.StatusProcessing,
		Phase:      models.PhaseExtracting,
		Tracks:     make(map[string]*models.Track),
		StartedAt:  now,
	}

	runCtx, cancel := context.WithCancel(context.Background())

	r.mu.Lock()
	r.analyses[id] = state
	r.cancels[id] = cancel
	r.mu.Unlock()
	observability.ActiveAnalyses.Inc()

	go r.run(runCtx, id, params)

	return id
}

func (r *Registry) run(ctx context.Context, id string, params models.AnalysisParams) {
	defer observability.ActiveAnalyses.Dec()

	result, err := r.pipeline.Run(ctx, id, params, func(phase models.AnalysisPhase, stats models.PipelineStats) {
		r.transition(id, phase, stats, "")
	})

	r.mu.Lock()
	state, ok := r.analyses[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	finishedAt := time.Now()
	state.FinishedAt = &finishedAt
	delete(r.cancels, id)
	if err != nil {
		state.Status = models.StatusFailed
		state.ErrorMessage = err.Error()
		slog.Error("analysis failed", "analysis_id", id, "error", err)
	} else {
		state.Status = models.StatusCompleted
		state.Phase = models.PhaseDone
		state.ProgressPercent = 100
		state.Result = result
		state.Stats = result.Stats
	}
	r.mu.Unlock()

	r.publish(id)
}

// transition updates progress fields and publishes, called from the
// pipeline's goroutine via the ProgressFunc callback.
func (r *Registry) transition(id string, phase models.AnalysisPhase, stats models.PipelineStats, errMsg string) {
	r.mu.Lock()
	state, ok := r.analyses[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	state.Phase = phase
	state.Stats = stats
	state.ProgressPercent = phasePercent(phase)
	if errMsg != "" {
		state.ErrorMessage = errMsg
	}
	r.mu.Unlock()

	r.publish(id)
}

func phasePercent(phase models.AnalysisPhase) int {
	switch phase {
	case models.PhaseExtracting:
		return 10
	case models.PhaseDetecting:
		return 40
	case models.PhaseMatching:
		return 70
	case models.PhaseCompiling:
		return 90
	case models.PhaseDone:
		return 100
	default:
		return 0
	}
}

func (r *Registry) publish(id string) {
	status, ok := r.Status(id)
	if !ok {
		return
	}
	event := models.ProgressEvent{
		AnalysisID:      status.AnalysisID,
		Status:          status.Status,
		ProgressPercent: status.ProgressPercent,
		Phase:           status.Phase,
		TracksFound:     status.Stats.TracksFound,
		MatchesFound:    status.Stats.MatchesFound,
		Timestamp:       time.Now(),
	}
	if r.hub != nil {
		r.hub.Broadcast(event)
	}
	if r.publisher != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.publisher.Publish(ctx, event); err != nil {
			slog.Warn("publish progress event", "analysis_id", id, "error", err)
		}
	}
}

// Status returns a copy of the analysis's current state.
func (r *Registry) Status(id string) (models.AnalysisState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, ok := r.analyses[id]
	if !ok {
		return models.AnalysisState{}, false
	}
	return *state, true
}

// Result returns the compiled result, or ErrNotReady if the analysis
// hasn't completed yet, or ErrNotFound if it doesn't exist.
func (r *Registry) Result(id string) (*models.AnalysisResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, ok := r.analyses[id]
	if !ok {
		return nil, ErrNotFound
	}
	if state.Status != models.StatusCompleted {
		return nil, ErrNotReady
	}
	return state.Result, nil
}

// Delete removes an analysis, cancelling it first if still running.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	_, ok := r.analyses[id]
	if !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	if cancel, running := r.cancels[id]; running {
		cancel()
		delete(r.cancels, id)
	}
	delete(r.analyses, id)
	r.mu.Unlock()
	return nil
}

// List returns every known analysis, most recently started first.
func (r *Registry) List() []models.AnalysisState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.AnalysisState, 0, len(r.analyses))
	for _, state := range r.analyses {
		out = append(out, *state)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}

// OptimizationStats aggregates frame-skip efficiency across every
// analysis the registry still holds, for the /optimization_stats
// rollup endpoint.
func (r *Registry) OptimizationStats() (analyses int, framesSampled int, framesSkipped int, avgQuality float64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var qualitySum float64
	for _, state := range r.analyses {
		analyses++
		framesSampled += state.Stats.FramesSampled
		framesSkipped += state.Stats.FramesSkipped
		qualitySum += state.Stats.AvgQuality
	}
	if analyses > 0 {
		avgQuality = qualitySum / float64(analyses)
	}
	return
}
