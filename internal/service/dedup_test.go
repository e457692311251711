package service

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keystone-tracker/internal/domain"
)

func run(key string, level int, date int64, owner string) domain.Run {
	return domain.Run{Key: key, Level: level, Date: date, Owner: owner}
}

func TestMergeCollapsesDuplicatesWithinWindow(t *testing.T) {
	runs := []domain.Run{
		run("Halls of Infusion", 18, 1_000_000, "Alice"),
		run("Halls of Infusion", 18, 1_030_000, "Bob"), // 30s apart, same attempt
	}

	merged := Merge(runs, "", time.Minute)
	require.Len(t, merged, 1)
}

func TestMergeKeepsRunsOutsideWindow(t *testing.T) {
	runs := []domain.Run{
		run("Halls of Infusion", 18, 1_000_000, "Alice"),
		run("Halls of Infusion", 18, 1_061_000, "Bob"), // 61s apart, distinct
	}

	merged := Merge(runs, "", time.Minute)
	require.Len(t, merged, 2)
}

func TestMergeKeepsDifferentKeyOrLevel(t *testing.T) {
	tests := []struct {
		name string
		a, b domain.Run
	}{
		{
			name: "different dungeon",
			a:    run("Halls of Infusion", 18, 1_000_000, "Alice"),
			b:    run("The Vortex Pinnacle", 18, 1_010_000, "Bob"),
		},
		{
			name: "different level",
			a:    run("Halls of Infusion", 18, 1_000_000, "Alice"),
			b:    run("Halls of Infusion", 19, 1_010_000, "Bob"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merged := Merge([]domain.Run{tt.a, tt.b}, "", time.Minute)
			assert.Len(t, merged, 2)
		})
	}
}

func TestMergeSuppressesPreferredOwner(t *testing.T) {
	pair := []domain.Run{
		run("Halls of Infusion", 18, 1_000_000, "Justice"),
		run("Halls of Infusion", 18, 1_010_000, "Bob"),
	}

	merged := Merge(pair, "Justice", time.Minute)
	require.Len(t, merged, 1)
	assert.Equal(t, "Bob", merged[0].Owner)

	// same pair, opposite arrival order
	merged = Merge([]domain.Run{pair[1], pair[0]}, "Justice", time.Minute)
	require.Len(t, merged, 1)
	assert.Equal(t, "Bob", merged[0].Owner)
}

func TestMergeSortsDescendingByDate(t *testing.T) {
	runs := []domain.Run{
		run("Uldaman", 12, 2_000_000, "Alice"),
		run("Neltharus", 14, 5_000_000, "Alice"),
		run("Freehold", 16, 3_000_000, "Alice"),
	}

	merged := Merge(runs, "", time.Minute)
	require.Len(t, merged, 3)
	assert.Equal(t, int64(5_000_000), merged[0].Date)
	assert.Equal(t, int64(3_000_000), merged[1].Date)
	assert.Equal(t, int64(2_000_000), merged[2].Date)
}

func TestMergeDeterministicUnderShuffling(t *testing.T) {
	runs := []domain.Run{
		run("Uldaman", 12, 2_000_000, "Alice"),
		run("Uldaman", 12, 2_020_000, "Bob"),
		run("Neltharus", 14, 5_000_000, "Alice"),
		run("Freehold", 16, 3_000_000, "Carol"),
		run("Freehold", 16, 3_045_000, "Alice"),
	}

	expected := Merge(runs, "Alice", time.Minute)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := make([]domain.Run, len(runs))
		copy(shuffled, runs)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		assert.Equal(t, expected, Merge(shuffled, "Alice", time.Minute))
	}
}

func TestMergeIdempotent(t *testing.T) {
	runs := []domain.Run{
		run("Uldaman", 12, 2_000_000, "Alice"),
		run("Uldaman", 12, 2_020_000, "Bob"),
		run("Neltharus", 14, 5_000_000, "Alice"),
	}

	once := Merge(runs, "Alice", time.Minute)
	twice := Merge(once, "Alice", time.Minute)
	assert.Equal(t, once, twice)
}

func TestMergeDoesNotMutateInput(t *testing.T) {
	runs := []domain.Run{
		run("Uldaman", 12, 2_000_000, "Alice"),
		run("Neltharus", 14, 5_000_000, "Bob"),
	}

	Merge(runs, "", time.Minute)
	assert.Equal(t, "Uldaman", runs[0].Key)
	assert.Equal(t, "Neltharus", runs[1].Key)
}

func TestMergeEmptyInput(t *testing.T) {
	assert.Empty(t, Merge(nil, "", time.Minute))
}
