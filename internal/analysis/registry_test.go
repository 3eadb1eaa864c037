package analysis

import (
	"sync"
	"testing"
	"time"

	"github.com/your-org/tracepipe/internal/config"
	"github.com/your-org/tracepipe/internal/models"
	"github.com/your-org/tracepipe/internal/pipeline"
)

type fakeHub struct {
	mu     sync.Mutex
	events []models.ProgressEvent
}

func (h *fakeHub) Broadcast(event models.ProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
}

func (h *fakeHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

func testPipeline() *pipeline.Pipeline {
	return pipeline.New(nil, nil, config.PipelineConfig{
		DetectionBatchSize:      6,
		DetectionBatchTimeout:   800 * time.Millisecond,
		DetectionTimeout:        5 * time.Second,
		DetectionConfidence:     0.5,
		MatchingBatchSize:       3,
		MatchingBatchTimeout:    800 * time.Millisecond,
		MatchingTimeout:         5 * time.Second,
		MatchingThreshold:       0.5,
		HighConfidenceThreshold: 0.95,
		NormalModeMinMatches:    1,
		TrackDistancePx:         150,
		TrackSizeRatio:          0.6,
		MinCropWidth:            20,
		MinCropHeight:           20,
	})
}

func TestRegistryStartTransitionsToFailedOnUnopenableVideo(t *testing.T) {
	hub := &fakeHub{}
	r := NewRegistry(testPipeline(), nil, hub)

	id := r.Start(models.AnalysisParams{VideoPath: "/nonexistent/does-not-exist.mp4", FPSInterval: 2})
	if id == "" {
		t.Fatal("expected a non-empty analysis id")
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		status, ok := r.Status(id)
		if !ok {
			t.Fatal("expected the analysis to be registered immediately")
		}
		if status.Status == models.StatusFailed {
			if status.ErrorMessage == "" {
				t.Fatal("expected an error message on failure")
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected the analysis to reach FAILED for an unopenable video within the deadline")
}

func TestRegistryResultBeforeCompletionIsNotReady(t *testing.T) {
	r := NewRegistry(testPipeline(), nil, &fakeHub{})
	id := r.Start(models.AnalysisParams{VideoPath: "/nonexistent/does-not-exist.mp4", FPSInterval: 2})

	_, err := r.Result(id)
	// Either still processing (ErrNotReady) or already failed fast
	// (ErrNotReady, since Result only ever succeeds on StatusCompleted).
	if err == nil {
		t.Fatal("expected Result to report not-ready before any successful completion")
	}
}

func TestRegistryStatusAndResultUnknownID(t *testing.T) {
	r := NewRegistry(testPipeline(), nil, &fakeHub{})
	if _, ok := r.Status("missing"); ok {
		t.Fatal("expected Status to report not found for an unknown id")
	}
	if _, err := r.Result("missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRegistryDeleteUnknownIDReturnsNotFound(t *testing.T) {
	r := NewRegistry(testPipeline(), nil, &fakeHub{})
	if err := r.Delete("missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRegistryDeleteCancelsRunningAnalysis(t *testing.T) {
	r := NewRegistry(testPipeline(), nil, &fakeHub{})
	id := r.Start(models.AnalysisParams{VideoPath: "/nonexistent/does-not-exist.mp4", FPSInterval: 2})

	if err := r.Delete(id); err != nil {
		t.Fatalf("unexpected error deleting a running analysis: %v", err)
	}
	if _, ok := r.Status(id); ok {
		t.Fatal("expected the analysis to be gone after Delete")
	}
}

func TestRegistryListIncludesStartedAnalyses(t *testing.T) {
	r := NewRegistry(testPipeline(), nil, &fakeHub{})
	id := r.Start(models.AnalysisParams{VideoPath: "/nonexistent/does-not-exist.mp4", FPSInterval: 2})

	found := false
	for _, s := range r.List() {
		if s.AnalysisID == id {
			found = true
		}
	}
	if !found {
		t.Fatal("expected List to include the just-started analysis")
	}
}
