package service

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"keystone-tracker/internal/api"
	"keystone-tracker/internal/cache"
	"keystone-tracker/internal/config"
	"keystone-tracker/internal/constants"
	"keystone-tracker/internal/domain"
)

// ReportSource fetches raw report data from the combat-log service.
type ReportSource interface {
	ListReports(ctx context.Context, guildID int) ([]string, error)
	FetchReport(ctx context.Context, code string) (*api.Report, error)
}

// KeyService runs the ingestion pipeline: list report codes, bulk-check
// the cache, fetch-and-normalize misses under a bounded worker limit,
// then merge duplicates into the final run list.
type KeyService struct {
	source     ReportSource
	normalizer *Normalizer
	cache      cache.Cache
	cfg        *config.Config
	logger     zerolog.Logger
}

func NewKeyService(source ReportSource, normalizer *Normalizer, c cache.Cache, cfg *config.Config, logger zerolog.Logger) *KeyService {
	return &KeyService{
		source:     source,
		normalizer: normalizer,
		cache:      c,
		cfg:        cfg,
		logger:     logger,
	}
}

func reportKey(code string) string {
	return "report:" + code
}

// Runs returns the guild's deduplicated run list, newest first.
func (s *KeyService) Runs(ctx context.Context) ([]domain.Run, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	codes, err := s.source.ListReports(ctx, s.cfg.GuildID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	if len(codes) == 0 {
		return []domain.Run{}, nil
	}

	keys := make([]string, len(codes))
	for i, code := range codes {
		keys[i] = reportKey(code)
	}

	// one bulk round trip, then workers only for the misses
	cached, err := s.cache.MGet(ctx, keys...)
	if err != nil {
		s.logger.Warn().Err(err).Msg("bulk cache check failed, fetching everything")
		cached = make([]*string, len(codes))
	}

	results := make([][]domain.Run, len(codes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.FetchWorkers)
	for i, code := range codes {
		i, code := i, code
		if cached[i] != nil {
			var runs []domain.Run
			if err := json.Unmarshal([]byte(*cached[i]), &runs); err == nil {
				results[i] = runs
				continue
			}
			s.logger.Warn().Str("code", code).Msg("discarding undecodable cached report")
		}

		g.Go(func() error {
			runs, err := s.fetchAndNormalize(gctx, code)
			if err != nil {
				// one bad report never aborts its siblings
				s.logger.Warn().Err(err).Str("code", code).Msg("report skipped")
				return nil
			}
			results[i] = runs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []domain.Run
	for _, runs := range results {
		all = append(all, runs...)
	}

	merged := Merge(all, s.cfg.PreferredOwner, s.cfg.DedupWindow)
	s.logger.Info().
		Int("reports", len(codes)).
		Int("runs", len(all)).
		Int("merged", len(merged)).
		Msg("pipeline completed")
	return merged, nil
}

func (s *KeyService) fetchAndNormalize(ctx context.Context, code string) ([]domain.Run, error) {
	report, err := s.source.FetchReport(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch report: %w", err)
	}

	runs, err := s.normalizer.Normalize(report)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize report: %w", err)
	}

	encoded, err := json.Marshal(runs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode runs: %w", err)
	}
	if err := s.cache.Set(ctx, reportKey(code), string(encoded), s.cfg.ReportCacheTTL); err != nil {
		s.logger.Warn().Err(err).Str("code", code).Msg("failed to cache report runs")
	}

	return runs, nil
}
