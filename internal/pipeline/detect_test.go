package pipeline

import (
	"context"
	"image"
	"sync/atomic"
	"testing"
	"time"

	"github.com/your-org/tracepipe/internal/models"
)

type fakeDetector struct {
	calls int32
	fn    func(ctx context.Context, img image.Image, confidence float64) ([]models.Detection, error)
}

func (f *fakeDetector) Detect(ctx context.Context, img image.Image, confidence float64) ([]models.Detection, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.fn(ctx, img, confidence)
}

func TestDetectionBatcherFlushesOnSize(t *testing.T) {
	det := &fakeDetector{fn: func(ctx context.Context, img image.Image, confidence float64) ([]models.Detection, error) {
		return []models.Detection{{Class: "person", DetectorConfidence: 0.9}}, nil
	}}
	b := NewDetectionBatcher(det, 2, time.Hour, time.Second, 0.5, "a1")

	in := make(chan *models.Frame, 4)
	out := make(chan FrameDetections, 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() { b.Run(ctx, in, out); close(done) }()

	in <- frameWithSize(0, 0, 8, 8)
	in <- frameWithSize(1, 0.1, 8, 8)

	select {
	case <-out:
	case <-time.After(time.Second):
		t.Fatal("expected a flush once the batch reached its size threshold")
	}
	select {
	case <-out:
	case <-time.After(time.Second):
		t.Fatal("expected a second frame result from the same batch")
	}

	close(in)
	<-done
}

func TestDetectionBatcherFlushesOnTimeout(t *testing.T) {
	det := &fakeDetector{fn: func(ctx context.Context, img image.Image, confidence float64) ([]models.Detection, error) {
		return nil, nil
	}}
	b := NewDetectionBatcher(det, 10, 20*time.Millisecond, time.Second, 0.5, "a1")

	in := make(chan *models.Frame, 4)
	out := make(chan FrameDetections, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() { b.Run(ctx, in, out); close(done) }()

	in <- frameWithSize(0, 0, 8, 8)

	select {
	case <-out:
	case <-time.After(time.Second):
		t.Fatal("expected the lone frame to flush once the batch timeout elapsed")
	}

	close(in)
	<-done
}

func TestDetectionBatcherFailedRequestYieldsEmptyDetections(t *testing.T) {
	det := &fakeDetector{fn: func(ctx context.Context, img image.Image, confidence float64) ([]models.Detection, error) {
		return nil, context.DeadlineExceeded
	}}
	b := NewDetectionBatcher(det, 1, time.Hour, time.Second, 0.5, "a1")

	in := make(chan *models.Frame, 1)
	out := make(chan FrameDetections, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() { b.Run(ctx, in, out); close(done) }()

	in <- frameWithSize(0, 0, 8, 8)
	close(in)

	select {
	case fd := <-out:
		if len(fd.Detections) != 0 {
			t.Fatalf("expected a failed detection request to contribute no detections, got %d", len(fd.Detections))
		}
	case <-time.After(time.Second):
		t.Fatal("expected the frame to still be forwarded on a failed request")
	}

	<-done
}
