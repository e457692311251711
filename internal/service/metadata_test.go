package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keystone-tracker/internal/api"
	"keystone-tracker/internal/config"
	"keystone-tracker/internal/domain"
)

type fakeMetadataSource struct {
	dungeons []api.Identifier
	timers   map[int]int64
	affixes  []api.Identifier
}

func (f *fakeMetadataSource) LeaderboardIndex(_ context.Context) ([]api.Identifier, error) {
	return f.dungeons, nil
}

func (f *fakeMetadataSource) Keystone(_ context.Context, dungeonID int) (*api.Keystone, error) {
	return &api.Keystone{
		ID: dungeonID,
		Upgrades: []api.KeystoneUpgrade{
			{UpgradeLevel: 1, QualifyingDuration: f.timers[dungeonID]},
		},
	}, nil
}

func (f *fakeMetadataSource) KeystoneMedia(_ context.Context, dungeonID int) (string, error) {
	return "https://example.test/dungeon.jpg", nil
}

func (f *fakeMetadataSource) Affixes(_ context.Context) ([]api.Identifier, error) {
	return f.affixes, nil
}

func (f *fakeMetadataSource) AffixMedia(_ context.Context, _ int) (string, error) {
	return "https://example.test/affix.jpg", nil
}

type fakeEncounterSource struct {
	encounters []api.Encounter
}

func (f *fakeEncounterSource) Encounters(_ context.Context) ([]api.Encounter, error) {
	return f.encounters, nil
}

func metadataConfig() *config.Config {
	return &config.Config{FetchWorkers: 4}
}

func TestNewMetadataJoinsByName(t *testing.T) {
	meta := &fakeMetadataSource{
		dungeons: []api.Identifier{
			{ID: 100, Name: "Halls of Infusion"},
			{ID: 101, Name: "The Vortex Pinnacle"},
		},
		timers: map[int]int64{
			100: (35 * time.Minute).Milliseconds(),
			101: (30 * time.Minute).Milliseconds(),
		},
		affixes: []api.Identifier{
			{ID: 9, Name: "Tyrannical"},
			{ID: 10, Name: "Fortified"},
		},
	}
	enc := &fakeEncounterSource{encounters: []api.Encounter{
		{ID: 12527, Name: "Halls of Infusion"},
		{ID: 10657, Name: "The Vortex Pinnacle"},
	}}

	tables, err := NewMetadata(metadataConfig(), meta, enc, zerolog.Nop())
	require.NoError(t, err)

	require.Len(t, tables.Dungeons, 2)
	hoi := tables.Dungeons[12527]
	assert.Equal(t, "Halls of Infusion", hoi.Title)
	assert.Equal(t, 12527, hoi.EncounterID)
	assert.Equal(t, 35*time.Minute, hoi.Timer)
	assert.Equal(t, "https://example.test/dungeon.jpg", hoi.Image)

	require.Len(t, tables.Affixes, 2)
	assert.Equal(t, "Tyrannical", tables.Affixes[9].Name)
	assert.Equal(t, "https://example.test/affix.jpg", tables.Affixes[9].Icon)
}

func TestNewMetadataMismatchIsFatal(t *testing.T) {
	meta := &fakeMetadataSource{
		dungeons: []api.Identifier{{ID: 100, Name: "Halls of Infusion"}},
		timers:   map[int]int64{100: (35 * time.Minute).Milliseconds()},
	}
	// the combat-log side knows this dungeon under no name we have
	enc := &fakeEncounterSource{encounters: []api.Encounter{
		{ID: 10657, Name: "The Vortex Pinnacle"},
	}}

	_, err := NewMetadata(metadataConfig(), meta, enc, zerolog.Nop())

	var mismatch *domain.MetadataMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "Halls of Infusion", mismatch.Dungeon)
}
