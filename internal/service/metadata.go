package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"keystone-tracker/internal/api"
	"keystone-tracker/internal/config"
	"keystone-tracker/internal/constants"
	"keystone-tracker/internal/domain"
)

// MetadataSource is the dungeon/affix metadata provider.
type MetadataSource interface {
	LeaderboardIndex(ctx context.Context) ([]api.Identifier, error)
	Keystone(ctx context.Context, dungeonID int) (*api.Keystone, error)
	KeystoneMedia(ctx context.Context, dungeonID int) (string, error)
	Affixes(ctx context.Context) ([]api.Identifier, error)
	AffixMedia(ctx context.Context, affixID int) (string, error)
}

// EncounterSource lists the combat-log encounter ids joined against the
// metadata provider's dungeon names.
type EncounterSource interface {
	Encounters(ctx context.Context) ([]api.Encounter, error)
}

// Metadata holds the process-wide immutable lookup tables. Built once
// at cold start and injected into the normalizer; never mutated after.
type Metadata struct {
	Dungeons map[int]domain.Dungeon // by encounter id
	Affixes  map[int]domain.Affix
}

// NewMetadata builds both tables at startup. Any failure here aborts
// startup: every run record depends on these joins.
func NewMetadata(cfg *config.Config, meta MetadataSource, enc EncounterSource, logger zerolog.Logger) (*Metadata, error) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.MetadataTimeout)
	defer cancel()

	var (
		dungeons map[int]domain.Dungeon
		affixes  map[int]domain.Affix
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		dungeons, err = loadDungeons(gctx, cfg, meta, enc)
		return err
	})
	g.Go(func() error {
		var err error
		affixes, err = loadAffixes(gctx, cfg, meta)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.Info().
		Int("dungeons", len(dungeons)).
		Int("affixes", len(affixes)).
		Msg("metadata tables loaded")

	return &Metadata{Dungeons: dungeons, Affixes: affixes}, nil
}

// loadDungeons joins the metadata provider's current-season dungeon
// list against the combat-log encounter listing by dungeon name. A name
// present on one side and absent from the other is a hard failure, not
// a droppable row.
func loadDungeons(ctx context.Context, cfg *config.Config, meta MetadataSource, enc EncounterSource) (map[int]domain.Dungeon, error) {
	var (
		index      []api.Identifier
		encounters []api.Encounter
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		index, err = meta.LeaderboardIndex(gctx)
		if err != nil {
			return fmt.Errorf("failed to list season dungeons: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		encounters, err = enc.Encounters(gctx)
		if err != nil {
			return fmt.Errorf("failed to list encounters: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	encounterIDs := make(map[string]int, len(encounters))
	for _, e := range encounters {
		encounterIDs[e.Name] = e.ID
	}

	var mu sync.Mutex
	dungeons := make(map[int]domain.Dungeon, len(index))

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(cfg.FetchWorkers)
	for _, entry := range index {
		entry := entry
		encounterID, ok := encounterIDs[entry.Name]
		if !ok {
			return nil, &domain.MetadataMismatchError{Dungeon: entry.Name}
		}

		g.Go(func() error {
			keystone, err := meta.Keystone(gctx, entry.ID)
			if err != nil {
				return fmt.Errorf("failed to fetch keystone %q: %w", entry.Name, err)
			}
			image, err := meta.KeystoneMedia(gctx, entry.ID)
			if err != nil {
				return fmt.Errorf("failed to fetch media for %q: %w", entry.Name, err)
			}

			mu.Lock()
			dungeons[encounterID] = domain.Dungeon{
				Title:       entry.Name,
				EncounterID: encounterID,
				Timer:       millisToDuration(keystone.TimerMillis()),
				Image:       image,
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return dungeons, nil
}

func loadAffixes(ctx context.Context, cfg *config.Config, meta MetadataSource) (map[int]domain.Affix, error) {
	index, err := meta.Affixes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list affixes: %w", err)
	}

	var mu sync.Mutex
	affixes := make(map[int]domain.Affix, len(index))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.FetchWorkers)
	for _, entry := range index {
		entry := entry
		g.Go(func() error {
			icon, err := meta.AffixMedia(gctx, entry.ID)
			if err != nil {
				return fmt.Errorf("failed to fetch affix media for %q: %w", entry.Name, err)
			}

			mu.Lock()
			affixes[entry.ID] = domain.Affix{ID: entry.ID, Name: entry.Name, Icon: icon}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return affixes, nil
}
