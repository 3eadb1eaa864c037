package pipeline

import (
	"sort"

	"github.com/your-org/tracepipe/internal/models"
)

// Compile turns the frozen tracks and their matches into the final
// timeline, crop set, and movement summary. The crop object storage
// keys are supplied by the caller (crops are written to object storage
// outside this package); Compile only decides which crops to keep a key
// for.
func Compile(tracks map[string]*models.Track, matches []models.Match, cropKeyFn func(trackID string) string) models.AnalysisResult {
	tracksByID := tracks

	var timeline []models.TimelineEntry
	cropKeys := make(map[string]string, len(matches))

	for _, m := range matches {
		t, ok := tracksByID[m.TrackID]
		if !ok {
			continue
		}
		// One timeline entry per appearance frame of the track, not per
		// match, preserving per-track chronological order.
		for i, frameIdx := range t.AppearanceFrames {
			timeline = append(timeline, models.TimelineEntry{
				TrackID:    t.TrackID,
				TargetID:   m.TargetID,
				FrameIndex: frameIdx,
				Timestamp:  t.AppearanceTimestamps[i],
				Similarity: m.Similarity,
			})
		}
		if cropKeyFn != nil {
			cropKeys[m.TargetID] = cropKeyFn(m.TrackID)
		}
	}

	sort.SliceStable(timeline, func(i, j int) bool {
		if timeline[i].TrackID != timeline[j].TrackID {
			return timeline[i].TrackID < timeline[j].TrackID
		}
		return timeline[i].Timestamp < timeline[j].Timestamp
	})

	summary := movementSummaries(matches)

	return models.AnalysisResult{
		Timeline:        timeline,
		CropKeys:        cropKeys,
		MovementSummary: summary,
	}
}

// movementSummaries computes, per target, entry/exit time, duration,
// appearance count, and average/maximum similarity across all matches
// that reference it.
func movementSummaries(matches []models.Match) []models.MovementSummary {
	byTarget := make(map[string][]models.Match)
	for _, m := range matches {
		byTarget[m.TargetID] = append(byTarget[m.TargetID], m)
	}

	targetIDs := make([]string, 0, len(byTarget))
	for id := range byTarget {
		targetIDs = append(targetIDs, id)
	}
	sort.Strings(targetIDs)

	out := make([]models.MovementSummary, 0, len(targetIDs))
	for _, id := range targetIDs {
		ms := byTarget[id]

		entry := ms[0].FirstTimestamp
		exit := ms[0].FirstTimestamp
		var sumSim, maxSim float64
		for _, m := range ms {
			if m.FirstTimestamp < entry {
				entry = m.FirstTimestamp
			}
			if m.FirstTimestamp > exit {
				exit = m.FirstTimestamp
			}
			sumSim += m.Similarity
			if m.Similarity > maxSim {
				maxSim = m.Similarity
			}
		}

		out = append(out, models.MovementSummary{
			TargetID:        id,
			EntryTimestamp:  entry,
			ExitTimestamp:   exit,
			DurationSeconds: exit - entry,
			AppearanceCount: len(ms),
			AvgSimilarity:   sumSim / float64(len(ms)),
			MaxSimilarity:   maxSim,
		})
	}
	return out
}
