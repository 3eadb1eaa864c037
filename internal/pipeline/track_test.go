package pipeline

import (
	"testing"

	"github.com/your-org/tracepipe/internal/models"
)

func testTrackConfig() TrackConfig {
	return TrackConfig{
		DistancePx:    150,
		SizeRatio:     0.6,
		MinCropWidth:  20,
		MinCropHeight: 20,
	}
}

func detectionAt(x1, y1, x2, y2 float64) models.Detection {
	return models.Detection{
		BBox:               models.BBox{X1: x1, Y1: y1, X2: x2, Y2: y2},
		DetectorConfidence: 0.9,
		Class:              "person",
	}
}

func frameWithSize(index int, ts float64, w, h int) *models.Frame {
	return &models.Frame{Index: index, TimestampSeconds: ts, Width: w, Height: h, Pixels: make([]byte, w*h*3)}
}

func TestTrackRegistryCreatesOneTrackForFirstDetection(t *testing.T) {
	r := NewTrackRegistry(testTrackConfig())
	fd := FrameDetections{
		Frame:      frameWithSize(0, 0, 640, 480),
		Detections: []models.Detection{detectionAt(100, 100, 160, 260)},
	}
	created := r.Ingest(fd)
	if len(created) != 1 {
		t.Fatalf("expected 1 newly created track, got %d", len(created))
	}
	if len(r.Tracks()) != 1 {
		t.Fatalf("expected 1 track total, got %d", len(r.Tracks()))
	}
}

func TestTrackRegistryMergesNearbySimilarSizedDetection(t *testing.T) {
	r := NewTrackRegistry(testTrackConfig())
	r.Ingest(FrameDetections{
		Frame:      frameWithSize(0, 0, 640, 480),
		Detections: []models.Detection{detectionAt(100, 100, 160, 260)},
	})
	created := r.Ingest(FrameDetections{
		Frame:      frameWithSize(1, 0.1, 640, 480),
		Detections: []models.Detection{detectionAt(105, 102, 165, 262)},
	})
	if len(created) != 0 {
		t.Fatalf("expected the second detection to merge into the existing track, got %d new", len(created))
	}
	tracks := r.Tracks()
	if len(tracks) != 1 {
		t.Fatalf("expected still 1 track, got %d", len(tracks))
	}
	if len(tracks[0].AppearanceFrames) != 2 {
		t.Fatalf("expected 2 appearances, got %d", len(tracks[0].AppearanceFrames))
	}
}

func TestTrackRegistryStartsNewTrackWhenFarAway(t *testing.T) {
	r := NewTrackRegistry(testTrackConfig())
	r.Ingest(FrameDetections{
		Frame:      frameWithSize(0, 0, 640, 480),
		Detections: []models.Detection{detectionAt(10, 10, 70, 170)},
	})
	created := r.Ingest(FrameDetections{
		Frame:      frameWithSize(1, 0.1, 640, 480),
		Detections: []models.Detection{detectionAt(500, 300, 560, 460)},
	})
	if len(created) != 1 {
		t.Fatalf("expected a second, distinct track, got %d new", len(created))
	}
	if len(r.Tracks()) != 2 {
		t.Fatalf("expected 2 tracks total, got %d", len(r.Tracks()))
	}
}

func TestTrackRegistryStartsNewTrackWhenSizeDiffers(t *testing.T) {
	r := NewTrackRegistry(testTrackConfig())
	r.Ingest(FrameDetections{
		Frame:      frameWithSize(0, 0, 640, 480),
		Detections: []models.Detection{detectionAt(100, 100, 160, 260)}, // 60x160
	})
	created := r.Ingest(FrameDetections{
		Frame:      frameWithSize(1, 0.1, 640, 480),
		Detections: []models.Detection{detectionAt(100, 100, 130, 140)}, // 30x40, centers ~62px apart, area ratio 0.125
	})
	if len(created) != 1 {
		t.Fatalf("expected a size mismatch to start a new track, got %d new", len(created))
	}
}

func TestTrackRegistryDropsUndersizedCrop(t *testing.T) {
	r := NewTrackRegistry(testTrackConfig())
	created := r.Ingest(FrameDetections{
		Frame:      frameWithSize(0, 0, 640, 480),
		Detections: []models.Detection{detectionAt(100, 100, 105, 105)}, // 5x5, below MinCropWidth/Height
	})
	if len(created) != 0 {
		t.Fatalf("expected undersized detection to be dropped, got %d new tracks", len(created))
	}
	if len(r.Tracks()) != 0 {
		t.Fatalf("expected no tracks at all, got %d", len(r.Tracks()))
	}
}

func TestTrackRegistryKeepsHigherQualityCrop(t *testing.T) {
	r := NewTrackRegistry(testTrackConfig())
	// First crop near a frame edge (lower position score).
	r.Ingest(FrameDetections{
		Frame:      frameWithSize(0, 0, 640, 480),
		Detections: []models.Detection{detectionAt(5, 5, 65, 165)},
	})
	// Nearly-colocated, centered crop should be similar enough to merge
	// and, being more central, should replace the best crop.
	r.Ingest(FrameDetections{
		Frame:      frameWithSize(1, 0.1, 640, 480),
		Detections: []models.Detection{detectionAt(15, 15, 75, 175)},
	})
	tracks := r.Tracks()
	if len(tracks) != 1 {
		t.Fatalf("expected the two crops to merge into 1 track, got %d", len(tracks))
	}
	if tracks[0].BestCrop.BBox.X1 != 15 {
		t.Fatalf("expected the more central crop to become the best crop, got %+v", tracks[0].BestCrop.BBox)
	}
}
