package pipeline

import (
	"testing"

	"github.com/your-org/tracepipe/internal/models"
)

func TestCompileBuildsChronologicalTimelinePerTrack(t *testing.T) {
	tracks := map[string]*models.Track{
		"person_00": {
			TrackID:              "person_00",
			AppearanceFrames:     []int{5, 2, 8},
			AppearanceTimestamps: []float64{5.0, 2.0, 8.0},
		},
	}
	matches := []models.Match{
		{TrackID: "person_00", TargetID: "target_a", Similarity: 0.82, FirstTimestamp: 2.0},
	}

	result := Compile(tracks, matches, func(trackID string) string { return "crops/" + trackID + ".jpg" })

	if len(result.Timeline) != 3 {
		t.Fatalf("expected 3 timeline entries (one per appearance), got %d", len(result.Timeline))
	}
	for i := 1; i < len(result.Timeline); i++ {
		if result.Timeline[i].Timestamp < result.Timeline[i-1].Timestamp {
			t.Fatalf("expected timeline sorted by timestamp within a track, got %+v", result.Timeline)
		}
	}
	if key := result.CropKeys["target_a"]; key != "crops/person_00.jpg" {
		t.Fatalf("expected crop key to be populated via cropKeyFn, got %q", key)
	}
}

func TestCompileSkipsMatchesForUnknownTrack(t *testing.T) {
	tracks := map[string]*models.Track{}
	matches := []models.Match{{TrackID: "person_99", TargetID: "target_a"}}

	result := Compile(tracks, matches, nil)

	if len(result.Timeline) != 0 {
		t.Fatalf("expected no timeline entries for a match referencing an unknown track")
	}
}

func TestCompileMovementSummaryAggregatesPerTarget(t *testing.T) {
	tracks := map[string]*models.Track{
		"person_00": {TrackID: "person_00", AppearanceFrames: []int{0}, AppearanceTimestamps: []float64{1.0}},
		"person_01": {TrackID: "person_01", AppearanceFrames: []int{0}, AppearanceTimestamps: []float64{1.0}},
	}
	matches := []models.Match{
		{TrackID: "person_00", TargetID: "target_a", Similarity: 0.7, FirstTimestamp: 1.0},
		{TrackID: "person_01", TargetID: "target_a", Similarity: 0.9, FirstTimestamp: 9.0},
	}

	result := Compile(tracks, matches, nil)

	if len(result.MovementSummary) != 1 {
		t.Fatalf("expected 1 movement summary entry for 1 distinct target, got %d", len(result.MovementSummary))
	}
	s := result.MovementSummary[0]
	if s.TargetID != "target_a" {
		t.Fatalf("expected target_a, got %s", s.TargetID)
	}
	if s.EntryTimestamp != 1.0 || s.ExitTimestamp != 9.0 {
		t.Fatalf("expected entry=1.0 exit=9.0, got entry=%v exit=%v", s.EntryTimestamp, s.ExitTimestamp)
	}
	if s.AppearanceCount != 2 {
		t.Fatalf("expected 2 appearances, got %d", s.AppearanceCount)
	}
	if s.MaxSimilarity != 0.9 {
		t.Fatalf("expected max similarity 0.9, got %v", s.MaxSimilarity)
	}
	wantAvg := (0.7 + 0.9) / 2
	if s.AvgSimilarity != wantAvg {
		t.Fatalf("expected avg similarity %v, got %v", wantAvg, s.AvgSimilarity)
	}
}
