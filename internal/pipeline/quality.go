package pipeline

import (
	"math"

	"github.com/your-org/tracepipe/internal/models"
)

// qualityRingSize bounds the rolling window used for the BELOW_AVG rule.
const qualityRingSize = 10

// QualityGate is a small stateful decision machine, one per analysis: a
// ring buffer of recent quality scores, a consecutive-skip counter, and
// a one-way flag set by the Termination Coordinator once a high
// confidence match is seen. It has no goroutines of its own — Decide is
// called synchronously by the stage feeding it frames.
type QualityGate struct {
	ring             [qualityRingSize]float64
	ringLen          int
	ringPos          int
	skipCount        int
	highConfidenceFn func() bool
}

// NewQualityGate builds a gate whose AGGRESSIVE_SKIP rule reads the
// shared high-confidence flag through highConfidenceFn (typically
// (*TerminationCoordinator).Seen).
func NewQualityGate(highConfidenceFn func() bool) *QualityGate {
	return &QualityGate{highConfidenceFn: highConfidenceFn}
}

// Decide scores a frame and applies the skip-rule table in priority order.
// It is a pure function of (quality, ring, skip_count, flag) except for
// the ring/skip_count mutation it performs as a side effect, matching
// the "plain struct + single decision function" design note.
func (g *QualityGate) Decide(f *models.Frame) models.QualityDecision {
	quality := scoreFrame(f)

	ringMean, haveEnough := g.ringMean()

	decision := models.QualityDecision{Quality: quality}
	switch {
	case g.highConfidenceFn != nil && g.highConfidenceFn() && quality < 0.7:
		decision.Process = false
		decision.SkipReason = models.SkipAggressive
	case g.skipCount >= 3:
		decision.Process = true
		decision.SkipReason = models.SkipMaxSkipOverride
	case quality < 0.4:
		decision.Process = false
		decision.SkipReason = models.SkipLowQuality
	case haveEnough && quality < 0.7*ringMean:
		decision.Process = false
		decision.SkipReason = models.SkipBelowAverage
	default:
		decision.Process = true
		decision.SkipReason = models.SkipNone
	}

	g.pushRing(quality)
	if decision.Process {
		g.skipCount = 0
	} else {
		g.skipCount++
	}

	return decision
}

func (g *QualityGate) pushRing(q float64) {
	g.ring[g.ringPos] = q
	g.ringPos = (g.ringPos + 1) % qualityRingSize
	if g.ringLen < qualityRingSize {
		g.ringLen++
	}
}

func (g *QualityGate) ringMean() (float64, bool) {
	if g.ringLen < 5 {
		return 0, false
	}
	var sum float64
	for i := 0; i < g.ringLen; i++ {
		sum += g.ring[i]
	}
	return sum / float64(g.ringLen), true
}

// SkipCount exposes the current consecutive-skip streak, for tests.
func (g *QualityGate) SkipCount() int { return g.skipCount }

// scoreFrame computes the composite [0.1,1.0] quality score from the
// three weighted components over the frame's grayscale projection.
func scoreFrame(f *models.Frame) float64 {
	gray := toGrayscale(f)
	brightness := brightnessScore(gray)
	sharpness := sharpnessScore(gray, f.Width, f.Height)
	contrast := contrastScore(gray)

	q := 0.3*brightness + 0.5*sharpness + 0.2*contrast
	if q < 0.1 {
		q = 0.1
	}
	if q > 1.0 {
		q = 1.0
	}
	return q
}

func toGrayscale(f *models.Frame) []float64 {
	n := f.Width * f.Height
	gray := make([]float64, n)
	for i := 0; i < n; i++ {
		r := float64(f.Pixels[i*3])
		g := float64(f.Pixels[i*3+1])
		b := float64(f.Pixels[i*3+2])
		// ITU-R BT.601 luma weights, matching typical grayscale conversion.
		gray[i] = 0.299*r + 0.587*g + 0.114*b
	}
	return gray
}

func brightnessScore(gray []float64) float64 {
	mean := meanOf(gray)
	diff := mean - 128
	if diff < 0 {
		diff = -diff
	}
	score := 1 - diff/128
	return clamp01(score)
}

func contrastScore(gray []float64) float64 {
	mean := meanOf(gray)
	var sumSq float64
	for _, v := range gray {
		d := v - mean
		sumSq += d * d
	}
	stddev := math.Sqrt(sumSq / float64(len(gray)))
	score := stddev / 40
	return clamp01(score)
}

func sharpnessScore(gray []float64, w, h int) float64 {
	variance := laplacianVariance(gray, w, h)
	score := variance / 600
	return clamp01(score)
}

// laplacianVariance applies the discrete 4-neighbor Laplacian kernel
// (0 1 0 / 1 -4 1 / 0 1 0) to interior pixels and returns the variance
// of the response — the standard blur-detection proxy.
func laplacianVariance(gray []float64, w, h int) float64 {
	if w < 3 || h < 3 {
		return 0
	}
	responses := make([]float64, 0, (w-2)*(h-2))
	at := func(x, y int) float64 { return gray[y*w+x] }
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			lap := at(x-1, y) + at(x+1, y) + at(x, y-1) + at(x, y+1) - 4*at(x, y)
			responses = append(responses, lap)
		}
	}
	if len(responses) == 0 {
		return 0
	}
	mean := meanOf(responses)
	var sumSq float64
	for _, v := range responses {
		d := v - mean
		sumSq += d * d
	}
	return sumSq / float64(len(responses))
}

func meanOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range xs {
		sum += v
	}
	return sum / float64(len(xs))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
