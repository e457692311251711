package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"keystone-tracker/internal/config"
	"keystone-tracker/internal/domain"
)

const wclV1BaseURL = "https://www.warcraftlogs.com/v1"

// V1Client talks to the combat-log legacy REST API, which still owns
// the rankings, class and report-composition endpoints the comparison
// feature needs. Auth is a static api key on the query string.
type V1Client struct {
	apiKey string
	client *fasthttp.Client
	logger zerolog.Logger
}

func NewV1Client(cfg *config.Config, logger zerolog.Logger) *V1Client {
	return &V1Client{
		apiKey: cfg.WCLAPIKeyV1,
		client: newHTTPClient(),
		logger: logger,
	}
}

type Identifier struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type Class struct {
	ID    int          `json:"id"`
	Name  string       `json:"name"`
	Specs []Identifier `json:"specs"`
}

// Ranking is one leaderboard entry for an encounter.
type Ranking struct {
	Name       string  `json:"name"`
	ServerName string  `json:"serverName"`
	ReportID   string  `json:"reportID"`
	FightID    int     `json:"fightID"`
	Score      float64 `json:"score"`
	Affixes    []int   `json:"affixes"`
}

// CompositionEntry is one actor from a report's summary table.
type CompositionEntry struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

func (c *V1Client) Classes(ctx context.Context) ([]Class, error) {
	classes, err := getJSON[[]Class](ctx, c.client, c.url("/classes", nil), "")
	if err != nil {
		return nil, err
	}
	for i, cl := range *classes {
		if cl.ID == 0 || cl.Name == "" {
			return nil, &domain.SchemaError{
				Path:   fmt.Sprintf("classes[%d]", i),
				Reason: "missing class id or name",
			}
		}
	}
	return *classes, nil
}

func (c *V1Client) Rankings(ctx context.Context, encounterID, classID, specID int) ([]Ranking, error) {
	path := fmt.Sprintf("/rankings/encounter/%d", encounterID)
	resp, err := getJSON[struct {
		Rankings []Ranking `json:"rankings"`
	}](ctx, c.client, c.url(path, map[string]string{
		"class":              fmt.Sprint(classID),
		"spec":               fmt.Sprint(specID),
		"excludeLeaderboard": "true",
		"page":               "1",
	}), "")
	if err != nil {
		return nil, err
	}
	return resp.Rankings, nil
}

func (c *V1Client) Composition(ctx context.Context, reportID string) ([]CompositionEntry, error) {
	path := fmt.Sprintf("/report/tables/summary/%s", reportID)
	resp, err := getJSON[struct {
		Composition []CompositionEntry `json:"composition"`
	}](ctx, c.client, c.url(path, map[string]string{
		// hostility/sourceclass narrow the summary so upstream filters faster
		"hostility":   "1",
		"sourceclass": "junk",
		"end":         "10000000",
	}), "")
	if err != nil {
		return nil, err
	}
	return resp.Composition, nil
}

func (c *V1Client) url(path string, qs map[string]string) string {
	values := url.Values{}
	values.Set("api_key", c.apiKey)
	for k, v := range qs {
		values.Set(k, v)
	}
	return wclV1BaseURL + path + "?" + values.Encode()
}
