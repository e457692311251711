package api

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"keystone-tracker/internal/cache"
	"keystone-tracker/internal/config"
	"keystone-tracker/internal/constants"
	"keystone-tracker/internal/domain"
)

const (
	wclAPIURL   = "https://www.warcraftlogs.com/api/v2/client"
	wclTokenURL = "https://www.warcraftlogs.com/oauth/token"

	// current mythic+ season zone on the combat-log side
	wclSeasonZone = 39
)

// WCLClient talks to the combat-log GraphQL API: report listings, full
// report bodies and the encounter listing for the metadata join.
type WCLClient struct {
	tokens  *TokenSource
	cache   cache.Cache
	client  *fasthttp.Client
	listTTL time.Duration
	logger  zerolog.Logger
}

func NewWCLClient(cfg *config.Config, c cache.Cache, logger zerolog.Logger) *WCLClient {
	client := newHTTPClient()
	return &WCLClient{
		tokens:  NewTokenSource("wcl", wclTokenURL, cfg.WCLClientID, cfg.WCLClientSecret, cfg.TokenTTLPercent, c, client, logger),
		cache:   c,
		client:  client,
		listTTL: cfg.ReportListTTL,
		logger:  logger,
	}
}

// Report is the raw combat-log report body.
type Report struct {
	Code      string `json:"code"`
	Owner     Owner  `json:"owner"`
	StartTime int64  `json:"startTime"`

	PlayerDetails PlayerDetails `json:"playerDetails"`

	// newest-first per upstream convention
	Fights []Fight `json:"fights"`
}

type Owner struct {
	Name string `json:"name"`
}

type Fight struct {
	ID              int    `json:"id"`
	Name            string `json:"name"`
	EncounterID     int    `json:"encounterID"`
	KeystoneLevel   int    `json:"keystoneLevel"`
	KeystoneAffixes []int  `json:"keystoneAffixes"`
	Kill            bool   `json:"kill"`
	FriendlyPlayers []int  `json:"friendlyPlayers"`
	StartTime       int64  `json:"startTime"`
	KeystoneTime    *int64 `json:"keystoneTime"` // nil when the key was abandoned
}

// Player is one roster entry from the report's player details. Icon is
// the upstream "Class-Spec" label.
type Player struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Icon   string `json:"icon"`
	Server string `json:"server"`
}

// PlayerDetails is the nested role-keyed roster block. Upstream
// sometimes substitutes an array of nulls for the whole object; that
// degenerate shape marks the report's player data unusable and is a
// normal branch, not an error.
type PlayerDetails struct {
	Unusable bool
	Tanks    []*Player
	Healers  []*Player
	DPS      []*Player
}

func (d *PlayerDetails) UnmarshalJSON(b []byte) error {
	var envelope struct {
		Data struct {
			PlayerDetails json.RawMessage `json:"playerDetails"`
		} `json:"data"`
	}
	if err := json.Unmarshal(b, &envelope); err != nil {
		return err
	}

	raw := bytes.TrimSpace(envelope.Data.PlayerDetails)
	if len(raw) == 0 || raw[0] == '[' {
		d.Unusable = true
		return nil
	}

	var roles struct {
		Tanks   []*Player `json:"tanks"`
		Healers []*Player `json:"healers"`
		DPS     []*Player `json:"dps"`
	}
	if err := json.Unmarshal(raw, &roles); err != nil {
		return err
	}

	d.Tanks = roles.Tanks
	d.Healers = roles.Healers
	d.DPS = roles.DPS
	return nil
}

// Encounter joins a dungeon's combat-log identity to its metadata name.
type Encounter struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func fightIDsLiteral() string {
	ids := make([]string, constants.MaxFightIDs)
	for i := range ids {
		ids[i] = strconv.Itoa(i)
	}
	return "[" + strings.Join(ids, " ") + "]"
}

// ListReports returns the guild's recent mythic+ report codes, cached
// for a short TTL since the upstream list changes slowly.
func (c *WCLClient) ListReports(ctx context.Context, guildID int) ([]string, error) {
	cacheKey := fmt.Sprintf("wcl:reports:%d", guildID)

	if cached, ok, err := c.cache.Get(ctx, cacheKey); err == nil && ok {
		var codes []string
		if err := json.Unmarshal([]byte(cached), &codes); err == nil {
			return codes, nil
		}
		c.logger.Warn().Str("key", cacheKey).Msg("discarding undecodable report list cache entry")
	}

	start := time.Now().Add(-constants.ReportWindow).UnixMilli()
	query := fmt.Sprintf(`query {
		reportData {
			reports(guildID: %d, limit: %d, startTime: %d, zoneID: %d) {
				data { code }
			}
		}
	}`, guildID, constants.ReportLimit, start, wclSeasonZone)

	var resp struct {
		Data struct {
			ReportData struct {
				Reports struct {
					Data []struct {
						Code string `json:"code"`
					} `json:"data"`
				} `json:"reports"`
			} `json:"reportData"`
		} `json:"data"`
	}
	if err := c.query(ctx, query, &resp); err != nil {
		return nil, err
	}

	codes := make([]string, len(resp.Data.ReportData.Reports.Data))
	for i, r := range resp.Data.ReportData.Reports.Data {
		if r.Code == "" {
			return nil, &domain.SchemaError{
				Path:   fmt.Sprintf("reportData.reports.data[%d].code", i),
				Reason: "missing report code",
			}
		}
		codes[i] = r.Code
	}

	if encoded, err := json.Marshal(codes); err == nil {
		if err := c.cache.Set(ctx, cacheKey, string(encoded), c.listTTL); err != nil {
			c.logger.Warn().Err(err).Msg("failed to cache report list")
		}
	}

	c.logger.Debug().Int("guild_id", guildID).Int("count", len(codes)).Msg("report list fetched")
	return codes, nil
}

// FetchReport fetches one full report body.
func (c *WCLClient) FetchReport(ctx context.Context, code string) (*Report, error) {
	query := fmt.Sprintf(`query {
		reportData {
			report(code: %q) {
				code
				owner { name }
				startTime
				playerDetails(fightIDs: %s)
				fights(difficulty: %d) {
					id
					name
					encounterID
					keystoneLevel
					keystoneAffixes
					kill
					friendlyPlayers
					keystoneTime
					startTime
				}
			}
		}
	}`, code, fightIDsLiteral(), constants.MythicDifficulty)

	var resp struct {
		Data struct {
			ReportData struct {
				Report *Report `json:"report"`
			} `json:"reportData"`
		} `json:"data"`
	}
	if err := c.query(ctx, query, &resp); err != nil {
		return nil, err
	}

	report := resp.Data.ReportData.Report
	if report == nil {
		return nil, &domain.SchemaError{Path: "reportData.report", Reason: "missing report body"}
	}
	if err := validateReport(report); err != nil {
		return nil, err
	}
	return report, nil
}

// Encounters lists the current zone's encounter ids for the metadata join.
func (c *WCLClient) Encounters(ctx context.Context) ([]Encounter, error) {
	query := fmt.Sprintf(`query {
		worldData {
			zone(id: %d) {
				encounters { id name }
			}
		}
	}`, wclSeasonZone)

	var resp struct {
		Data struct {
			WorldData struct {
				Zone *struct {
					Encounters []Encounter `json:"encounters"`
				} `json:"zone"`
			} `json:"worldData"`
		} `json:"data"`
	}
	if err := c.query(ctx, query, &resp); err != nil {
		return nil, err
	}

	if resp.Data.WorldData.Zone == nil {
		return nil, &domain.SchemaError{Path: "worldData.zone", Reason: "missing zone"}
	}
	for i, e := range resp.Data.WorldData.Zone.Encounters {
		if e.ID == 0 || e.Name == "" {
			return nil, &domain.SchemaError{
				Path:   fmt.Sprintf("worldData.zone.encounters[%d]", i),
				Reason: "missing encounter id or name",
			}
		}
	}
	return resp.Data.WorldData.Zone.Encounters, nil
}

func validateReport(r *Report) error {
	if r.Code == "" {
		return &domain.SchemaError{Path: "reportData.report.code", Reason: "missing report code"}
	}
	if r.Owner.Name == "" {
		return &domain.SchemaError{Path: "reportData.report.owner.name", Reason: "missing owner name"}
	}
	if r.StartTime <= 0 {
		return &domain.SchemaError{Path: "reportData.report.startTime", Reason: "missing start time"}
	}
	for i, f := range r.Fights {
		if f.Name == "" {
			return &domain.SchemaError{
				Path:   fmt.Sprintf("reportData.report.fights[%d].name", i),
				Reason: "missing fight name",
			}
		}
		if f.EncounterID == 0 {
			return &domain.SchemaError{
				Path:   fmt.Sprintf("reportData.report.fights[%d].encounterID", i),
				Reason: "missing encounter id",
			}
		}
	}
	return nil
}

func (c *WCLClient) query(ctx context.Context, query string, out any) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(wclAPIURL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.SetBody(body)

	if err := do(ctx, c.client, req, resp); err != nil {
		return err
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		return fmt.Errorf("combat-log API error: %d", resp.StatusCode())
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return &domain.SchemaError{Path: "$", Reason: err.Error()}
	}
	return nil
}
