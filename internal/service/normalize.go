package service

import (
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"keystone-tracker/internal/api"
	"keystone-tracker/internal/config"
	"keystone-tracker/internal/constants"
	"keystone-tracker/internal/domain"
)

const (
	reportBaseURL  = "https://www.warcraftlogs.com/reports/"
	profileBaseURL = "https://raider.io/characters/"

	// shown when a run has no recorded completion time
	sentinelDiff = "xx:xx"

	unknownAffixLabel = "unknown"
)

// Normalizer converts raw combat-log reports into run records using the
// immutable metadata tables. It holds no mutable state and is safe for
// concurrent use.
type Normalizer struct {
	meta           *Metadata
	region         string
	extraTimeAffix int
	extraTimeBonus time.Duration
	logger         zerolog.Logger
}

func NewNormalizer(meta *Metadata, cfg *config.Config, logger zerolog.Logger) *Normalizer {
	return &Normalizer{
		meta:           meta,
		region:         cfg.Region,
		extraTimeAffix: constants.ExtraTimeAffixID,
		extraTimeBonus: constants.ExtraTimeBonus,
		logger:         logger,
	}
}

// Normalize emits one run per fight in chronological order. A report
// whose player details carry the degenerate array sentinel yields no
// runs; its player data is unusable upstream, not broken here.
func (n *Normalizer) Normalize(report *api.Report) ([]domain.Run, error) {
	if report.PlayerDetails.Unusable {
		n.logger.Debug().Str("code", report.Code).Msg("report has unusable player details, skipping")
		return []domain.Run{}, nil
	}

	roster := buildRoster(&report.PlayerDetails, n.region)

	runs := make([]domain.Run, 0, len(report.Fights))
	// fights arrive newest-first; walk backwards for chronological emission
	for i := len(report.Fights) - 1; i >= 0; i-- {
		fight := &report.Fights[i]

		dungeon, ok := n.meta.Dungeons[fight.EncounterID]
		if !ok {
			return nil, fmt.Errorf("no dungeon metadata for encounter %d (%s)", fight.EncounterID, fight.Name)
		}

		affixes := make([]string, len(fight.KeystoneAffixes))
		for j, id := range fight.KeystoneAffixes {
			if affix, ok := n.meta.Affixes[id]; ok {
				affixes[j] = affix.Name
			} else {
				affixes[j] = unknownAffixLabel
			}
		}

		var elapsed int64
		if fight.KeystoneTime != nil {
			elapsed = *fight.KeystoneTime
		}
		timed, diff := n.timing(dungeon, fight.KeystoneAffixes, elapsed)

		players := resolvePlayers(roster, fight.FriendlyPlayers)
		permalink := fmt.Sprintf("%s%s#fight=%d", reportBaseURL, report.Code, fight.ID)
		for j := range players {
			players[j].CompareURL = compareDeeplink(report.Code, fight.ID, fight.EncounterID, &players[j])
		}

		runs = append(runs, domain.Run{
			Key:      dungeon.Title,
			Image:    dungeon.Image,
			Level:    fight.KeystoneLevel,
			Affixes:  affixes,
			Finished: fight.Kill,
			Timed:    timed,
			Time:     formatMillis(elapsed),
			TimeDiff: diff,
			Owner:    report.Owner.Name,
			Date:     report.StartTime + fight.StartTime,
			Players:  players,
			URL:      permalink,
		})
	}

	return runs, nil
}

// timing compares the elapsed time against the dungeon budget. A zero
// elapsed time means the key was abandoned, never an instant clear.
func (n *Normalizer) timing(dungeon domain.Dungeon, affixIDs []int, elapsedMillis int64) (bool, string) {
	if elapsedMillis == 0 {
		return false, sentinelDiff
	}

	budget := dungeon.Timer
	for _, id := range affixIDs {
		if id == n.extraTimeAffix {
			budget += n.extraTimeBonus
			break
		}
	}

	elapsed := millisToDuration(elapsedMillis)
	timed := elapsed < budget

	sign := "+"
	if timed {
		sign = "-"
	}
	delta := budget - elapsed
	if delta < 0 {
		delta = -delta
	}
	return timed, sign + formatDuration(delta)
}

// buildRoster maps player id to resolved role detail. Roles are walked
// in fixed priority order and the first claim on an id wins.
func buildRoster(details *api.PlayerDetails, region string) map[int]domain.RunPlayer {
	roster := make(map[int]domain.RunPlayer)

	byRole := []struct {
		role    domain.Role
		players []*api.Player
	}{
		{domain.RoleTank, details.Tanks},
		{domain.RoleHealer, details.Healers},
		{domain.RoleDamage, details.DPS},
	}

	for _, group := range byRole {
		for _, player := range group.players {
			if player == nil {
				continue
			}
			if _, claimed := roster[player.ID]; claimed {
				continue
			}
			roster[player.ID] = domain.RunPlayer{
				Role:      group.role,
				ID:        player.ID,
				Name:      player.Name,
				Type:      player.Type,
				ClassSpec: player.Icon,
				RioURL:    profileBaseURL + region + "/" + url.PathEscape(player.Server) + "/" + url.PathEscape(player.Name),
			}
		}
	}

	return roster
}

// resolvePlayers produces a deterministic, role-ordered party snapshot:
// ids sorted ascending, unmapped ids substituted with a placeholder
// (the API cross-contaminates rosters across runs sharing a party), at
// most one tank and one healer, at most five players.
func resolvePlayers(roster map[int]domain.RunPlayer, playerIDs []int) []domain.RunPlayer {
	ids := make([]int, len(playerIDs))
	copy(ids, playerIDs)
	sort.Ints(ids)

	var hasTank, hasHealer bool
	players := make([]domain.RunPlayer, 0, len(ids))
	for _, id := range ids {
		player, ok := roster[id]
		if !ok {
			player = domain.RunPlayer{Role: domain.RoleDamage, Name: "?", Type: "?"}
		}

		switch player.Role {
		case domain.RoleTank:
			if hasTank {
				continue
			}
			hasTank = true
		case domain.RoleHealer:
			if hasHealer {
				continue
			}
			hasHealer = true
		}
		players = append(players, player)
	}

	sort.SliceStable(players, func(i, j int) bool {
		return players[i].Role.Priority() < players[j].Role.Priority()
	})

	if len(players) > constants.PartySize {
		players = players[:constants.PartySize]
	}
	return players
}

// compareDeeplink builds the relative link into the comparison feature.
// Placeholder players have no identity to compare against.
func compareDeeplink(code string, fightID, encounterID int, player *domain.RunPlayer) string {
	if player.ID == 0 || player.ClassSpec == "" {
		return ""
	}

	values := url.Values{}
	values.Set("report", code)
	values.Set("fight", fmt.Sprint(fightID))
	values.Set("encounter", fmt.Sprint(encounterID))
	values.Set("spec", player.ClassSpec)
	values.Set("source", fmt.Sprint(player.ID))
	return "/api/compare?" + values.Encode()
}

func millisToDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// formatMillis renders mm:ss, discarding hours; runs never approach an
// hour in practice.
func formatMillis(ms int64) string {
	return formatDuration(millisToDuration(ms))
}

func formatDuration(d time.Duration) string {
	total := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", (total/60)%60, total%60)
}
