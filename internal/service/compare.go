package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"keystone-tracker/internal/api"
	"keystone-tracker/internal/domain"
)

// RankingSource serves the leaderboard read path for the comparison
// feature; it is independent of the report cache.
type RankingSource interface {
	Classes(ctx context.Context) ([]api.Class, error)
	Rankings(ctx context.Context, encounterID, classID, specID int) ([]api.Ranking, error)
	Composition(ctx context.Context, reportID string) ([]api.CompositionEntry, error)
}

type classSpecIDs struct {
	classID int
	specID  int
}

// CompareService finds the top comparable run for a dungeon/class/spec
// and builds the side-by-side permalink against it.
type CompareService struct {
	rankings RankingSource
	logger   zerolog.Logger

	mu      sync.Mutex
	classes map[string]classSpecIDs // "Class-Spec" -> ids, loaded once
}

func NewCompareService(rankings RankingSource, logger zerolog.Logger) *CompareService {
	return &CompareService{rankings: rankings, logger: logger}
}

// BestRun returns the highest-scored ranking entry, optionally filtered
// to entries carrying the given affix. An empty result is the expected
// "no comparison available" signal, not a retryable failure.
func (s *CompareService) BestRun(ctx context.Context, encounterID, classID, specID, mainAffix int) (*api.Ranking, error) {
	rankings, err := s.rankings.Rankings(ctx, encounterID, classID, specID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rankings: %w", err)
	}

	var candidates []api.Ranking
	for _, r := range rankings {
		if mainAffix != 0 && !containsAffix(r.Affixes, mainAffix) {
			continue
		}
		candidates = append(candidates, r)
	}

	if len(candidates) == 0 {
		return nil, &domain.NoRankingFoundError{EncounterID: encounterID, ClassID: classID, SpecID: specID}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return &candidates[0], nil
}

// CompareInput identifies one side of the comparison: a player in a
// fight of a guild report.
type CompareInput struct {
	ReportID    string
	FightID     int
	EncounterID int
	ClassSpec   string
	SourceID    int
	MainAffix   int
}

// CompareURL resolves the best comparable run and builds the combat-log
// compare permalink between it and the given fight.
func (s *CompareService) CompareURL(ctx context.Context, in CompareInput) (string, error) {
	ids, err := s.classSpec(ctx, in.ClassSpec)
	if err != nil {
		return "", err
	}

	best, err := s.BestRun(ctx, in.EncounterID, ids.classID, ids.specID, in.MainAffix)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("https://www.warcraftlogs.com/reports/compare/%s/%s#fight=%d,%d&type=casts",
		in.ReportID, best.ReportID, in.FightID, best.FightID)

	bestSourceID, ok := s.sourceID(ctx, best.ReportID, best.Name)
	if ok {
		url += fmt.Sprintf("&source=%d,%d", in.SourceID, bestSourceID)
	}
	return url, nil
}

// sourceID resolves the best player's actor id inside their own report.
// Missing composition only costs the source anchor on the permalink.
func (s *CompareService) sourceID(ctx context.Context, reportID, name string) (int, bool) {
	composition, err := s.rankings.Composition(ctx, reportID)
	if err != nil {
		s.logger.Warn().Err(err).Str("report_id", reportID).Msg("failed to fetch composition")
		return 0, false
	}
	for _, entry := range composition {
		if entry.Name == name {
			return entry.ID, true
		}
	}
	return 0, false
}

// classSpec maps a "Class-Spec" label to numeric ids via the class
// listing, fetched once per process.
func (s *CompareService) classSpec(ctx context.Context, label string) (classSpecIDs, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.classes == nil {
		classes, err := s.rankings.Classes(ctx)
		if err != nil {
			return classSpecIDs{}, fmt.Errorf("failed to fetch classes: %w", err)
		}

		s.classes = make(map[string]classSpecIDs)
		for _, class := range classes {
			className := strings.ReplaceAll(class.Name, " ", "")
			for _, spec := range class.Specs {
				key := className + "-" + strings.ReplaceAll(spec.Name, " ", "")
				s.classes[key] = classSpecIDs{classID: class.ID, specID: spec.ID}
			}
		}
	}

	ids, ok := s.classes[label]
	if !ok {
		return classSpecIDs{}, fmt.Errorf("unknown class spec %q", label)
	}
	return ids, nil
}

func containsAffix(affixes []int, affix int) bool {
	for _, a := range affixes {
		if a == affix {
			return true
		}
	}
	return false
}
