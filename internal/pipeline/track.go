package pipeline

import (
	"fmt"
	"math"

	"github.com/your-org/tracepipe/internal/models"
)

// TrackRegistry is the heart of the pipeline: it owns the set of unique
// persons seen so far and decides, for each incoming detection, whether
// it belongs to an existing Track or starts a new one. It is owned by
// exactly one goroutine (the registry task) and needs no lock.
type TrackRegistry struct {
	cfg      TrackConfig
	order    []string // insertion order, for the "first match wins" tie-break
	tracks   map[string]*models.Track
	nextID   int
}

type TrackConfig struct {
	DistancePx     float64
	SizeRatio      float64
	MinCropWidth   int
	MinCropHeight  int
}

func NewTrackRegistry(cfg TrackConfig) *TrackRegistry {
	return &TrackRegistry{
		cfg:    cfg,
		tracks: make(map[string]*models.Track),
	}
}

// Ingest processes one (Frame, []Detection) pair, mutating the registry
// in place. It extracts a Crop per detection, rejects undersized crops,
// and assigns each surviving crop to a new or existing track. It
// returns any tracks created for the first time by this call, in
// creation order, so callers can stream them to the Matching Batcher as
// soon as they appear rather than waiting for the whole video to decode.
func (r *TrackRegistry) Ingest(fd FrameDetections) []*models.Track {
	var created []*models.Track
	for _, det := range fd.Detections {
		crop, ok := r.extractCrop(fd.Frame, det)
		if !ok {
			continue // INVALID_BBOX / CROP_TOO_SMALL, recovered locally
		}
		if t, isNew := r.assign(fd.Frame, det, crop); isNew {
			created = append(created, t)
		}
	}
	return created
}

func (r *TrackRegistry) extractCrop(f *models.Frame, det models.Detection) (models.Crop, bool) {
	x1 := clampInt(int(det.BBox.X1), 0, f.Width)
	y1 := clampInt(int(det.BBox.Y1), 0, f.Height)
	x2 := clampInt(int(det.BBox.X2), 0, f.Width)
	y2 := clampInt(int(det.BBox.Y2), 0, f.Height)

	w := x2 - x1
	h := y2 - y1
	if w < r.cfg.MinCropWidth || h < r.cfg.MinCropHeight {
		return models.Crop{}, false
	}

	pixels := make([]byte, w*h*3)
	for row := 0; row < h; row++ {
		srcOff := ((y1+row)*f.Width + x1) * 3
		dstOff := row * w * 3
		copy(pixels[dstOff:dstOff+w*3], f.Pixels[srcOff:srcOff+w*3])
	}

	bbox := models.BBox{X1: float64(x1), Y1: float64(y1), X2: float64(x2), Y2: float64(y2)}
	return models.Crop{
		Pixels:      pixels,
		Width:       w,
		Height:      h,
		BBox:        bbox,
		CropQuality: cropQuality(bbox, f.Width, f.Height),
	}, true
}

// cropQuality is the mean of aspect, size, and position heuristics
// chosen to favor tall, moderately-sized, centrally-located crops.
func cropQuality(bbox models.BBox, frameWidth, frameHeight int) float64 {
	w, h := bbox.Width(), bbox.Height()

	aspectScore := 0.7
	if w > 0 {
		ratio := h / w
		if ratio >= 1.5 && ratio <= 3.0 {
			aspectScore = 1.0
		}
	}

	area := w * h
	sizeScore := 0.8
	if area >= 10000 && area <= 100000 {
		sizeScore = 1.0
	}

	cx, cy := bbox.Center()
	dist := math.Abs(cx-float64(frameWidth)/2) + math.Abs(cy-float64(frameHeight)/2)
	positionScore := 1 - dist/1500
	if positionScore < 0.5 {
		positionScore = 0.5
	}

	return (aspectScore + sizeScore + positionScore) / 3
}

// assign implements the track-assignment heuristic: compare the new
// crop's bbox center/area against every existing track's best crop,
// same track iff center distance < DistancePx AND size ratio >
// SizeRatio. Iterated in insertion order; the first match wins.
func (r *TrackRegistry) assign(f *models.Frame, det models.Detection, crop models.Crop) (*models.Track, bool) {
	for _, id := range r.order {
		t := r.tracks[id]
		if r.sameTrack(t.BestCrop.BBox, crop.BBox) {
			t.AppearanceFrames = append(t.AppearanceFrames, f.Index)
			t.AppearanceTimestamps = append(t.AppearanceTimestamps, f.TimestampSeconds)
			if crop.CropQuality > t.BestCrop.CropQuality {
				t.BestCrop = crop
				t.DetectorConfidence = det.DetectorConfidence
			}
			return t, false
		}
	}

	id := fmt.Sprintf("person_%02d", r.nextID)
	r.nextID++
	t := &models.Track{
		TrackID:              id,
		FirstFrameIndex:       f.Index,
		FirstTimestamp:        f.TimestampSeconds,
		BestCrop:              crop,
		AppearanceFrames:      []int{f.Index},
		AppearanceTimestamps:  []float64{f.TimestampSeconds},
		DetectorConfidence:    det.DetectorConfidence,
	}
	r.tracks[id] = t
	r.order = append(r.order, id)
	return t, true
}

func (r *TrackRegistry) sameTrack(existing, candidate models.BBox) bool {
	ex, ey := existing.Center()
	cx, cy := candidate.Center()
	delta := math.Hypot(cx-ex, cy-ey)

	existingArea := existing.Area()
	candidateArea := candidate.Area()
	var sizeRatio float64
	if existingArea > 0 && candidateArea > 0 {
		sizeRatio = math.Min(existingArea, candidateArea) / math.Max(existingArea, candidateArea)
	}

	return delta < r.cfg.DistancePx && sizeRatio > r.cfg.SizeRatio
}

// Tracks returns all tracks in insertion order.
func (r *TrackRegistry) Tracks() []*models.Track {
	out := make([]*models.Track, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.tracks[id])
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
