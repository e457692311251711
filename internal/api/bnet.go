package api

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"keystone-tracker/internal/cache"
	"keystone-tracker/internal/config"
	"keystone-tracker/internal/domain"
)

const bnetTokenURL = "https://oauth.battle.net/token"

// BnetClient talks to the dungeon/affix metadata provider: current
// season leaderboard dungeon list, per-dungeon timer and media, and
// the affix catalog. Its OAuth domain is independent of the combat-log
// service, so it carries its own token source.
type BnetClient struct {
	tokens  *TokenSource
	baseURL string
	region  string
	client  *fasthttp.Client
	logger  zerolog.Logger
}

func NewBnetClient(cfg *config.Config, c cache.Cache, logger zerolog.Logger) *BnetClient {
	client := newHTTPClient()
	return &BnetClient{
		tokens:  NewTokenSource("bnet", bnetTokenURL, cfg.BnetClientID, cfg.BnetClientSecret, cfg.TokenTTLPercent, c, client, logger),
		baseURL: fmt.Sprintf("https://%s.api.blizzard.com/data/wow", cfg.Region),
		region:  cfg.Region,
		client:  client,
		logger:  logger,
	}
}

// Keystone is the per-dungeon detail: timer budget and a media link.
type Keystone struct {
	ID       int               `json:"id"`
	Name     string            `json:"name"`
	Upgrades []KeystoneUpgrade `json:"keystone_upgrades"`
}

type KeystoneUpgrade struct {
	UpgradeLevel       int   `json:"upgrade_level"`
	QualifyingDuration int64 `json:"qualifying_duration"` // ms
}

// TimerMillis is the one-chest budget for the dungeon.
func (k *Keystone) TimerMillis() int64 {
	for _, u := range k.Upgrades {
		if u.UpgradeLevel == 1 {
			return u.QualifyingDuration
		}
	}
	return 0
}

type mediaResponse struct {
	Assets []struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	} `json:"assets"`
}

// LeaderboardIndex lists the current season's leaderboard dungeons.
func (c *BnetClient) LeaderboardIndex(ctx context.Context) ([]Identifier, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/connected-realm/11/mythic-leaderboard/index?namespace=dynamic-%s&locale=en_US", c.baseURL, c.region)
	resp, err := getJSON[struct {
		CurrentLeaderboards []Identifier `json:"current_leaderboards"`
	}](ctx, c.client, url, token)
	if err != nil {
		return nil, err
	}

	for i, d := range resp.CurrentLeaderboards {
		if d.ID == 0 || d.Name == "" {
			return nil, &domain.SchemaError{
				Path:   fmt.Sprintf("current_leaderboards[%d]", i),
				Reason: "missing dungeon id or name",
			}
		}
	}
	return resp.CurrentLeaderboards, nil
}

// Keystone fetches one dungeon's keystone detail.
func (c *BnetClient) Keystone(ctx context.Context, dungeonID int) (*Keystone, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/mythic-keystone/dungeon/%d?namespace=dynamic-%s&locale=en_US", c.baseURL, dungeonID, c.region)
	keystone, err := getJSON[Keystone](ctx, c.client, url, token)
	if err != nil {
		return nil, err
	}
	if keystone.TimerMillis() == 0 {
		return nil, &domain.SchemaError{
			Path:   fmt.Sprintf("mythic-keystone/dungeon/%d.keystone_upgrades", dungeonID),
			Reason: "missing qualifying duration",
		}
	}
	return keystone, nil
}

// KeystoneMedia fetches one dungeon's image URL.
func (c *BnetClient) KeystoneMedia(ctx context.Context, dungeonID int) (string, error) {
	url := fmt.Sprintf("%s/media/journal-instance/%d?namespace=static-%s&locale=en_US", c.baseURL, dungeonID, c.region)
	return c.mediaURL(ctx, url)
}

// Affixes lists the affix catalog.
func (c *BnetClient) Affixes(ctx context.Context) ([]Identifier, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/keystone-affix/index?namespace=static-%s&locale=en_US", c.baseURL, c.region)
	resp, err := getJSON[struct {
		Affixes []Identifier `json:"affixes"`
	}](ctx, c.client, url, token)
	if err != nil {
		return nil, err
	}
	return resp.Affixes, nil
}

// AffixMedia fetches one affix's icon URL; missing media is not an
// error, some affixes simply have none.
func (c *BnetClient) AffixMedia(ctx context.Context, affixID int) (string, error) {
	url := fmt.Sprintf("%s/media/keystone-affix/%d?namespace=static-%s&locale=en_US", c.baseURL, affixID, c.region)
	return c.mediaURL(ctx, url)
}

func (c *BnetClient) mediaURL(ctx context.Context, url string) (string, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return "", err
	}

	media, err := getJSON[mediaResponse](ctx, c.client, url, token)
	if err != nil {
		return "", err
	}
	if len(media.Assets) == 0 {
		return "", nil
	}
	return media.Assets[0].Value, nil
}
