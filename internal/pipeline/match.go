package pipeline

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/your-org/tracepipe/internal/matchclient"
	"github.com/your-org/tracepipe/internal/models"
	"github.com/your-org/tracepipe/internal/observability"
)

// Matcher is the subset of matchclient.Client the batcher needs.
type Matcher interface {
	Identify(ctx context.Context, img image.Image, threshold float64) ([]matchclient.IdentifyMatch, error)
}

// MatchingBatcherConfig carries the tunables governing batch size,
// timeouts, and the high-confidence stop rule.
type MatchingBatcherConfig struct {
	BatchSize                 int
	BatchTimeout              time.Duration
	RequestTimeout            time.Duration
	Threshold                 float64
	HighConfidenceThreshold   float64
	StopOnFirstHighConfidence bool
	NormalModeMinMatches      int
}

// MatchingBatcher consumes tracks as the Track Registry discovers them —
// streaming rather than waiting for decode to finish — and dispatches
// them to the clothing-similarity service in batches of BatchSize or
// whenever BatchTimeout elapses since the first track of the pending
// batch, same "fill to N or wait until deadline" shape as the Detection
// Batcher. It observes the Termination Coordinator's flag to decide
// whether to keep accepting further tracks.
type MatchingBatcher struct {
	client      Matcher
	cfg         MatchingBatcherConfig
	termination *TerminationCoordinator
	analysisID  string
}

func NewMatchingBatcher(client Matcher, cfg MatchingBatcherConfig, termination *TerminationCoordinator, analysisID string) *MatchingBatcher {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	return &MatchingBatcher{client: client, cfg: cfg, termination: termination, analysisID: analysisID}
}

// Run reads newly-discovered tracks from in, batches and dispatches
// them, and returns the retained matches once in is closed (decode
// finished) or the stop rule fires. stopUpstream is called exactly once
// if realtime mode decides to abort early, so the caller can cancel the
// decoder.
func (b *MatchingBatcher) Run(ctx context.Context, in <-chan *models.Track, stopUpstream func()) []models.Match {
	var matches []models.Match
	batch := make([]*models.Track, 0, b.cfg.BatchSize)
	var timer *time.Timer
	var timerC <-chan time.Time
	stopped := false

	flush := func() {
		if len(batch) == 0 || stopped {
			return
		}
		batchMatches := b.dispatch(batch)
		matches = append(matches, batchMatches...)
		batch = batch[:0]
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}

		if b.cfg.StopOnFirstHighConfidence && b.termination.Seen() {
			stopped = true
			stopUpstream()
			return
		}
		if !b.cfg.StopOnFirstHighConfidence && b.termination.Seen() && len(matches) >= b.cfg.NormalModeMinMatches {
			stopped = true
			return
		}
	}

	for !stopped {
		select {
		case t, ok := <-in:
			if !ok {
				flush()
				return matches
			}
			batch = append(batch, t)
			if len(batch) == 1 {
				timer = time.NewTimer(b.cfg.BatchTimeout)
				timerC = timer.C
			}
			if len(batch) >= b.cfg.BatchSize {
				flush()
			}
		case <-timerC:
			flush()
		case <-ctx.Done():
			flush()
			return matches
		}
	}

	// Drain and discard anything still arriving after the stop decision,
	// so the upstream registry goroutine never blocks trying to send.
	go func() {
		for range in {
		}
	}()

	return matches
}

func (b *MatchingBatcher) dispatch(batch []*models.Track) []models.Match {
	var wg sync.WaitGroup
	results := make([]*models.Match, len(batch))

	for i, t := range batch {
		wg.Add(1)
		go func(i int, t *models.Track) {
			defer wg.Done()
			reqCtx, cancel := context.WithTimeout(context.Background(), b.cfg.RequestTimeout)
			defer cancel()

			start := time.Now()
			candidates, err := b.client.Identify(reqCtx, CropImage(&t.BestCrop), b.cfg.Threshold)
			observability.InferenceDuration.WithLabelValues("matching").Observe(time.Since(start).Seconds())
			if err != nil {
				slog.Warn("matching request failed", "analysis_id", b.analysisID, "track_id", t.TrackID, "error", err)
				return
			}

			best, ok := bestCandidate(candidates, b.cfg.Threshold)
			if !ok {
				return
			}

			if best.Similarity >= b.cfg.HighConfidenceThreshold {
				b.termination.Set()
			}

			results[i] = &models.Match{
				TrackID:        t.TrackID,
				TargetID:       best.SuspectID,
				Similarity:     best.Similarity,
				FirstTimestamp: t.FirstTimestamp,
				Crop:           t.BestCrop,
			}
		}(i, t)
	}
	wg.Wait()

	matches := make([]models.Match, 0, len(results))
	for _, m := range results {
		if m != nil {
			matches = append(matches, *m)
		}
	}
	return matches
}

// bestCandidate retains only the single best candidate at or above
// threshold.
func bestCandidate(candidates []matchclient.IdentifyMatch, threshold float64) (matchclient.IdentifyMatch, bool) {
	var best matchclient.IdentifyMatch
	found := false
	for _, c := range candidates {
		if c.Similarity < threshold {
			continue
		}
		if !found || c.Similarity > best.Similarity {
			best = c
			found = true
		}
	}
	return best, found
}
