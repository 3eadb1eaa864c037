package pipeline

import (
	"context"
	"image"
	"testing"
	"time"

	"github.com/your-org/tracepipe/internal/matchclient"
	"github.com/your-org/tracepipe/internal/models"
)

type fakeMatcher struct {
	fn func(ctx context.Context, img image.Image, threshold float64) ([]matchclient.IdentifyMatch, error)
}

func (f *fakeMatcher) Identify(ctx context.Context, img image.Image, threshold float64) ([]matchclient.IdentifyMatch, error) {
	return f.fn(ctx, img, threshold)
}

func trackNamed(id string) *models.Track {
	return &models.Track{
		TrackID:        id,
		FirstTimestamp: 1.0,
		BestCrop:       models.Crop{Width: 4, Height: 4, Pixels: make([]byte, 4*4*3)},
	}
}

func TestMatchingBatcherFlushesOnSizeAndReturnsMatches(t *testing.T) {
	m := &fakeMatcher{fn: func(ctx context.Context, img image.Image, threshold float64) ([]matchclient.IdentifyMatch, error) {
		return []matchclient.IdentifyMatch{{SuspectID: "target_a", Similarity: 0.75}}, nil
	}}
	cfg := MatchingBatcherConfig{BatchSize: 2, BatchTimeout: time.Hour, RequestTimeout: time.Second, Threshold: 0.5, HighConfidenceThreshold: 0.95}
	var term TerminationCoordinator
	b := NewMatchingBatcher(m, cfg, &term, "a1")

	in := make(chan *models.Track, 4)
	in <- trackNamed("person_00")
	in <- trackNamed("person_01")
	close(in)

	matches := b.Run(context.Background(), in, func() { t.Fatal("stopUpstream should not be called in normal mode") })
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
}

func TestMatchingBatcherStopsUpstreamOnHighConfidenceInRealtimeMode(t *testing.T) {
	m := &fakeMatcher{fn: func(ctx context.Context, img image.Image, threshold float64) ([]matchclient.IdentifyMatch, error) {
		return []matchclient.IdentifyMatch{{SuspectID: "target_a", Similarity: 0.99}}, nil
	}}
	cfg := MatchingBatcherConfig{
		BatchSize: 1, BatchTimeout: time.Hour, RequestTimeout: time.Second,
		Threshold: 0.5, HighConfidenceThreshold: 0.95, StopOnFirstHighConfidence: true,
	}
	var term TerminationCoordinator
	b := NewMatchingBatcher(m, cfg, &term, "a1")

	in := make(chan *models.Track, 4)
	in <- trackNamed("person_00")
	in <- trackNamed("person_01") // should be drained, not processed, once stopped

	stopped := false
	matches := b.Run(context.Background(), in, func() { stopped = true })

	if !stopped {
		t.Fatal("expected stopUpstream to be invoked once a high-confidence match is seen")
	}
	if len(matches) != 1 {
		t.Fatalf("expected exactly 1 match before stopping, got %d", len(matches))
	}
	if !term.Seen() {
		t.Fatal("expected the termination coordinator flag to be set")
	}
	close(in)
}

func TestMatchingBatcherDropsBelowThresholdCandidates(t *testing.T) {
	m := &fakeMatcher{fn: func(ctx context.Context, img image.Image, threshold float64) ([]matchclient.IdentifyMatch, error) {
		return []matchclient.IdentifyMatch{{SuspectID: "target_a", Similarity: 0.2}}, nil
	}}
	cfg := MatchingBatcherConfig{BatchSize: 1, BatchTimeout: time.Hour, RequestTimeout: time.Second, Threshold: 0.5, HighConfidenceThreshold: 0.95}
	var term TerminationCoordinator
	b := NewMatchingBatcher(m, cfg, &term, "a1")

	in := make(chan *models.Track, 1)
	in <- trackNamed("person_00")
	close(in)

	matches := b.Run(context.Background(), in, func() {})
	if len(matches) != 0 {
		t.Fatalf("expected a below-threshold candidate to be dropped, got %d matches", len(matches))
	}
}

func TestBestCandidatePicksHighestAboveThreshold(t *testing.T) {
	candidates := []matchclient.IdentifyMatch{
		{SuspectID: "a", Similarity: 0.6},
		{SuspectID: "b", Similarity: 0.81},
		{SuspectID: "c", Similarity: 0.3},
	}
	best, ok := bestCandidate(candidates, 0.5)
	if !ok {
		t.Fatal("expected a candidate above threshold")
	}
	if best.SuspectID != "b" {
		t.Fatalf("expected the highest-similarity candidate b, got %s", best.SuspectID)
	}
}

func TestBestCandidateNoneAboveThreshold(t *testing.T) {
	_, ok := bestCandidate([]matchclient.IdentifyMatch{{SuspectID: "a", Similarity: 0.1}}, 0.5)
	if ok {
		t.Fatal("expected no candidate to qualify")
	}
}
