package pipeline

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/your-org/tracepipe/internal/models"
	"github.com/your-org/tracepipe/internal/observability"
)

// FrameDetections pairs a Frame with whatever Detections survived the
// detection service's confidence filter (possibly none: a failed
// request forwards the frame with no detections, it never aborts the
// batch).
type FrameDetections struct {
	Frame      *models.Frame
	Detections []models.Detection
}

// Detector is the subset of detectclient.Client the batcher needs,
// narrowed for testability.
type Detector interface {
	Detect(ctx context.Context, img image.Image, confidence float64) ([]models.Detection, error)
}

// DetectionBatcher accumulates accepted frames into fixed-size batches
// and dispatches them concurrently to the detection service: "fill to N
// or wait until deadline, then fan out" expressed as a bounded channel
// plus a timer, not an ad-hoc task collection.
type DetectionBatcher struct {
	client         Detector
	batchSize      int
	batchTimeout   time.Duration
	requestTimeout time.Duration
	confidence     float64
	analysisID     string
}

func NewDetectionBatcher(client Detector, batchSize int, batchTimeout, requestTimeout time.Duration, confidence float64, analysisID string) *DetectionBatcher {
	if batchSize < 1 {
		batchSize = 1
	}
	return &DetectionBatcher{
		client:         client,
		batchSize:      batchSize,
		batchTimeout:   batchTimeout,
		requestTimeout: requestTimeout,
		confidence:     confidence,
		analysisID:     analysisID,
	}
}

// Run reads accepted frames from in and writes per-frame detection
// results to out, batching by size or deadline. It returns when in is
// closed and the final (possibly partial) batch has been flushed, or
// when ctx is cancelled.
func (b *DetectionBatcher) Run(ctx context.Context, in <-chan *models.Frame, out chan<- FrameDetections) {
	defer close(out)

	batch := make([]*models.Frame, 0, b.batchSize)
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if len(batch) == 0 {
			return
		}
		b.dispatch(ctx, batch, out)
		batch = batch[:0]
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}

	for {
		select {
		case f, ok := <-in:
			if !ok {
				flush()
				return
			}
			batch = append(batch, f)
			if len(batch) == 1 {
				timer = time.NewTimer(b.batchTimeout)
				timerC = timer.C
			}
			if len(batch) >= b.batchSize {
				flush()
			}
		case <-timerC:
			flush()
		case <-ctx.Done():
			flush()
			return
		}
	}
}

// dispatch fans batch out as concurrent HTTP calls, one request per
// frame (never a multi-image endpoint), and waits for all of them
// before returning. In-flight detection requests are not cancelled when
// the pipeline's cancellation signal fires; each request carries its own
// timeout independent of ctx, and it is the caller's job to discard
// results that arrive after cancellation.
func (b *DetectionBatcher) dispatch(ctx context.Context, batch []*models.Frame, out chan<- FrameDetections) {
	var wg sync.WaitGroup
	results := make([]FrameDetections, len(batch))

	for i, f := range batch {
		wg.Add(1)
		go func(i int, f *models.Frame) {
			defer wg.Done()
			reqCtx, cancel := context.WithTimeout(context.Background(), b.requestTimeout)
			defer cancel()
			start := time.Now()
			detections, err := b.client.Detect(reqCtx, FrameImage(f), b.confidence)
			observability.InferenceDuration.WithLabelValues("detection").Observe(time.Since(start).Seconds())
			if err != nil {
				// A failed detection request is logged and the frame
				// contributes nothing; it never aborts the batch.
				slog.Warn("detection request failed", "analysis_id", b.analysisID, "frame_index", f.Index, "error", err)
				results[i] = FrameDetections{Frame: f}
				return
			}
			results[i] = FrameDetections{Frame: f, Detections: detections}
		}(i, f)
	}
	wg.Wait()

	for _, r := range results {
		select {
		case out <- r:
		case <-ctx.Done():
			return
		}
	}
}
