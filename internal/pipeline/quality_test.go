package pipeline

import (
	"testing"

	"github.com/your-org/tracepipe/internal/models"
)

func solidFrame(w, h int, v byte) *models.Frame {
	pix := make([]byte, w*h*3)
	for i := range pix {
		pix[i] = v
	}
	return &models.Frame{Index: 0, TimestampSeconds: 0, Width: w, Height: h, Pixels: pix}
}

func noisyFrame(w, h int) *models.Frame {
	pix := make([]byte, w*h*3)
	for i := range pix {
		if i%7 == 0 {
			pix[i] = 250
		} else if i%3 == 0 {
			pix[i] = 5
		} else {
			pix[i] = 128
		}
	}
	return &models.Frame{Index: 0, TimestampSeconds: 0, Width: w, Height: h, Pixels: pix}
}

func TestQualityGateRejectsFlatLowContrastFrame(t *testing.T) {
	g := NewQualityGate(nil)
	d := g.Decide(solidFrame(32, 32, 128))
	if d.Process {
		t.Fatalf("expected a flat mid-gray frame to score below the low-quality floor, got %+v", d)
	}
	if d.SkipReason != models.SkipLowQuality {
		t.Fatalf("expected LOW_QUALITY, got %s", d.SkipReason)
	}
}

func TestQualityGateAcceptsTexturedFrame(t *testing.T) {
	g := NewQualityGate(nil)
	d := g.Decide(noisyFrame(32, 32))
	if !d.Process {
		t.Fatalf("expected a textured, well-exposed frame to pass, got %+v", d)
	}
	if d.SkipReason != models.SkipNone {
		t.Fatalf("expected NONE, got %s", d.SkipReason)
	}
}

func TestQualityGateMaxSkipOverrideFiresAfterThreeConsecutiveSkips(t *testing.T) {
	g := NewQualityGate(nil)
	for i := 0; i < 3; i++ {
		d := g.Decide(solidFrame(32, 32, 128))
		if d.Process {
			t.Fatalf("expected skip %d to be rejected", i)
		}
	}
	if g.SkipCount() != 3 {
		t.Fatalf("expected skip streak of 3, got %d", g.SkipCount())
	}
	d := g.Decide(solidFrame(32, 32, 128))
	if !d.Process {
		t.Fatalf("expected the 4th consecutive low-quality frame to be force-processed")
	}
	if d.SkipReason != models.SkipMaxSkipOverride {
		t.Fatalf("expected MAX_SKIP_OVERRIDE, got %s", d.SkipReason)
	}
	if g.SkipCount() != 0 {
		t.Fatalf("expected skip streak to reset after a processed frame, got %d", g.SkipCount())
	}
}

func TestQualityGateAggressiveSkipOnlyAfterHighConfidence(t *testing.T) {
	seen := false
	g := NewQualityGate(func() bool { return seen })

	d := g.Decide(noisyFrame(32, 32))
	if d.SkipReason == models.SkipAggressive {
		t.Fatalf("aggressive skip should never fire before a high-confidence match")
	}

	seen = true
	d = g.Decide(solidFrame(32, 32, 128))
	if d.Process {
		t.Fatalf("a low-quality frame after high confidence should still be rejected")
	}
}

func TestQualityGateBelowAverageNeedsFiveSamples(t *testing.T) {
	g := NewQualityGate(nil)
	// Fewer than 5 samples: BELOW_AVG can't fire yet, only the absolute floor can.
	for i := 0; i < 4; i++ {
		g.Decide(noisyFrame(32, 32))
	}
	if _, have := g.ringMean(); have {
		t.Fatalf("expected ring mean to be unavailable before 5 samples")
	}
}
