package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keystone-tracker/internal/api"
	"keystone-tracker/internal/config"
	"keystone-tracker/internal/constants"
	"keystone-tracker/internal/domain"
)

const (
	testEncounterID = 12527
	testTimer       = 35 * time.Minute
)

func testMetadata() *Metadata {
	return &Metadata{
		Dungeons: map[int]domain.Dungeon{
			testEncounterID: {
				Title:       "Halls of Infusion",
				EncounterID: testEncounterID,
				Timer:       testTimer,
				Image:       "https://example.test/hoi.jpg",
			},
		},
		Affixes: map[int]domain.Affix{
			9:   {ID: 9, Name: "Tyrannical"},
			10:  {ID: 10, Name: "Fortified"},
			152: {ID: 152, Name: "Challenger's Peril"},
		},
	}
}

func testNormalizer() *Normalizer {
	return NewNormalizer(testMetadata(), &config.Config{Region: "us"}, zerolog.Nop())
}

func player(id int, name, class, spec string) *api.Player {
	return &api.Player{ID: id, Name: name, Type: class, Icon: class + "-" + spec, Server: "Proudmoore"}
}

func millis(d time.Duration) *int64 {
	v := d.Milliseconds()
	return &v
}

func testReport(fights ...api.Fight) *api.Report {
	return &api.Report{
		Code:      "AbCd1234",
		Owner:     api.Owner{Name: "Justice"},
		StartTime: 1_700_000_000_000,
		PlayerDetails: api.PlayerDetails{
			Tanks:   []*api.Player{player(1, "Wall", "Warrior", "Protection")},
			Healers: []*api.Player{player(2, "Mend", "Monk", "Mistweaver")},
			DPS: []*api.Player{
				player(3, "Zap", "Mage", "Frost"),
				player(4, "Stab", "Rogue", "Assassination"),
				player(5, "Boom", "Druid", "Balance"),
			},
		},
		Fights: fights,
	}
}

func testFight(id int, keystoneTime *int64) api.Fight {
	return api.Fight{
		ID:              id,
		Name:            "Halls of Infusion",
		EncounterID:     testEncounterID,
		KeystoneLevel:   18,
		KeystoneAffixes: []int{10, 9},
		Kill:            keystoneTime != nil,
		FriendlyPlayers: []int{5, 3, 1, 4, 2},
		StartTime:       int64(id) * 100_000,
		KeystoneTime:    keystoneTime,
	}
}

func TestNormalizeUnusablePlayerDetails(t *testing.T) {
	report := testReport(testFight(1, millis(30*time.Minute)))
	report.PlayerDetails = api.PlayerDetails{Unusable: true}

	runs, err := testNormalizer().Normalize(report)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestNormalizeEndToEnd(t *testing.T) {
	// two fights, newest first as upstream delivers them: fight 2 timed
	// under budget, fight 1 abandoned (null keystone time)
	report := testReport(
		testFight(2, millis(30*time.Minute)),
		testFight(1, nil),
	)

	runs, err := testNormalizer().Normalize(report)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	// chronological emission: fight 1 before fight 2
	abandoned, finished := runs[0], runs[1]
	assert.Contains(t, abandoned.URL, "AbCd1234")
	assert.Contains(t, abandoned.URL, "#fight=1")
	assert.Contains(t, finished.URL, "#fight=2")
	assert.Less(t, abandoned.Date, finished.Date)

	assert.False(t, abandoned.Finished)
	assert.False(t, abandoned.Timed)
	assert.Equal(t, "xx:xx", abandoned.TimeDiff)
	assert.Equal(t, "00:00", abandoned.Time)

	assert.True(t, finished.Finished)
	assert.True(t, finished.Timed)
	assert.Equal(t, "30:00", finished.Time)
	assert.Equal(t, "-05:00", finished.TimeDiff)

	assert.Equal(t, "Halls of Infusion", finished.Key)
	assert.Equal(t, 18, finished.Level)
	assert.Equal(t, []string{"Fortified", "Tyrannical"}, finished.Affixes)
	assert.Equal(t, "Justice", finished.Owner)
	assert.Equal(t, report.StartTime+200_000, finished.Date)

	require.Len(t, finished.Players, 5)
	roles := make([]domain.Role, len(finished.Players))
	for i, p := range finished.Players {
		roles[i] = p.Role
	}
	assert.Equal(t, []domain.Role{
		domain.RoleTank, domain.RoleHealer,
		domain.RoleDamage, domain.RoleDamage, domain.RoleDamage,
	}, roles)

	tank := finished.Players[0]
	assert.Equal(t, "Wall", tank.Name)
	assert.Equal(t, "Warrior-Protection", tank.ClassSpec)
	assert.Equal(t, "https://raider.io/characters/us/Proudmoore/Wall", tank.RioURL)
	assert.Contains(t, tank.CompareURL, "report=AbCd1234")
	assert.Contains(t, tank.CompareURL, "fight=2")
	assert.Contains(t, tank.CompareURL, fmt.Sprintf("encounter=%d", testEncounterID))
}

func TestNormalizeOverBudget(t *testing.T) {
	report := testReport(testFight(1, millis(37*time.Minute)))

	runs, err := testNormalizer().Normalize(report)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	assert.True(t, runs[0].Finished)
	assert.False(t, runs[0].Timed)
	assert.Equal(t, "+02:00", runs[0].TimeDiff)
}

func TestNormalizeExtraTimeAffixExtendsBudget(t *testing.T) {
	// 35:30 misses the 35:00 budget but makes it once the extra-time
	// affix adds its 90 seconds
	fight := testFight(1, millis(35*time.Minute+30*time.Second))
	fight.KeystoneAffixes = []int{10, constants.ExtraTimeAffixID}
	report := testReport(fight)

	runs, err := testNormalizer().Normalize(report)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	assert.True(t, runs[0].Timed)
	assert.Equal(t, "-01:00", runs[0].TimeDiff)
}

func TestNormalizeUnknownAffixLabel(t *testing.T) {
	fight := testFight(1, millis(30*time.Minute))
	fight.KeystoneAffixes = []int{10, 9999}
	report := testReport(fight)

	runs, err := testNormalizer().Normalize(report)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, []string{"Fortified", "unknown"}, runs[0].Affixes)
}

func TestNormalizeUnknownEncounterFails(t *testing.T) {
	fight := testFight(1, millis(30*time.Minute))
	fight.EncounterID = 99999
	report := testReport(fight)

	_, err := testNormalizer().Normalize(report)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "99999")
}

func TestResolvePlayersCapsRolesAndSize(t *testing.T) {
	roster := map[int]domain.RunPlayer{}
	ids := make([]int, 0, 12)
	for i := 1; i <= 3; i++ {
		roster[i] = domain.RunPlayer{Role: domain.RoleTank, ID: i, Name: fmt.Sprintf("tank%d", i)}
		ids = append(ids, i)
	}
	for i := 4; i <= 6; i++ {
		roster[i] = domain.RunPlayer{Role: domain.RoleHealer, ID: i, Name: fmt.Sprintf("healer%d", i)}
		ids = append(ids, i)
	}
	for i := 7; i <= 12; i++ {
		roster[i] = domain.RunPlayer{Role: domain.RoleDamage, ID: i, Name: fmt.Sprintf("dps%d", i)}
		ids = append(ids, i)
	}

	players := resolvePlayers(roster, ids)
	require.Len(t, players, 5)

	var tanks, healers int
	for _, p := range players {
		switch p.Role {
		case domain.RoleTank:
			tanks++
		case domain.RoleHealer:
			healers++
		}
	}
	assert.Equal(t, 1, tanks)
	assert.Equal(t, 1, healers)
}

func TestResolvePlayersUnknownIDPlaceholder(t *testing.T) {
	roster := map[int]domain.RunPlayer{
		1: {Role: domain.RoleTank, ID: 1, Name: "Wall"},
	}

	players := resolvePlayers(roster, []int{42, 1})
	require.Len(t, players, 2)

	// tank sorts first, placeholder counts as damage
	assert.Equal(t, "Wall", players[0].Name)
	assert.Equal(t, "?", players[1].Name)
	assert.Equal(t, domain.RoleDamage, players[1].Role)
	assert.Empty(t, players[1].RioURL)
}

func TestResolvePlayersDeterministicOrder(t *testing.T) {
	roster := map[int]domain.RunPlayer{
		3: {Role: domain.RoleDamage, ID: 3, Name: "c"},
		7: {Role: domain.RoleDamage, ID: 7, Name: "a"},
		5: {Role: domain.RoleDamage, ID: 5, Name: "b"},
	}

	first := resolvePlayers(roster, []int{7, 3, 5})
	second := resolvePlayers(roster, []int{5, 7, 3})
	assert.Equal(t, first, second)
	assert.Equal(t, "c", first[0].Name) // lowest id first within a role
}

func TestBuildRosterFirstClaimWins(t *testing.T) {
	details := &api.PlayerDetails{
		Tanks: []*api.Player{player(1, "Wall", "Warrior", "Protection")},
		// same id listed again under damage; tank claim must hold
		DPS: []*api.Player{player(1, "Wall", "Warrior", "Arms"), nil},
	}

	roster := buildRoster(details, "us")
	require.Len(t, roster, 1)
	assert.Equal(t, domain.RoleTank, roster[1].Role)
	assert.Equal(t, "Warrior-Protection", roster[1].ClassSpec)
}
