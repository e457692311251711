package service

import (
	"sort"
	"time"

	"keystone-tracker/internal/domain"
)

// Merge collapses near-duplicate runs produced by independent log
// uploads of the same physical attempt. Pure function: the input slice
// is never mutated, and any ordering of the same input produces the
// same output.
//
// Two runs are the same attempt when they share dungeon and keystone
// level and their dates sit within the window. The retained copy is the
// one NOT attributed to the preferred owner, so the other uploader's
// log wins whenever both exist.
func Merge(runs []domain.Run, preferredOwner string, window time.Duration) []domain.Run {
	if len(runs) == 0 {
		return []domain.Run{}
	}

	sorted := make([]domain.Run, len(runs))
	copy(sorted, runs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date > sorted[j].Date
	})

	windowMillis := window.Milliseconds()
	merged := []domain.Run{sorted[0]}

	for _, curr := range sorted[1:] {
		prev := &merged[len(merged)-1]

		delta := prev.Date - curr.Date
		if delta < 0 {
			delta = -delta
		}

		if curr.Key == prev.Key && curr.Level == prev.Level && delta < windowMillis {
			if curr.Owner == preferredOwner {
				continue
			}
			*prev = curr
			continue
		}

		merged = append(merged, curr)
	}

	return merged
}
