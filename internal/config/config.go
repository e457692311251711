package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"keystone-tracker/internal/constants"
)

type Config struct {
	// combat-log service (OAuth2 client credentials + legacy v1 key)
	WCLClientID     string
	WCLClientSecret string
	WCLAPIKeyV1     string

	// dungeon/affix metadata provider (separate OAuth2 domain)
	BnetClientID     string
	BnetClientSecret string

	RedisURL string

	GuildID        int
	Region         string
	PreferredOwner string

	ServerPort string
	LogLevel   string

	// Empirical knobs. The half-expiry token margin and the 60s dedup
	// window come from observed upstream behavior, not a derivation, so
	// they stay overridable.
	TokenTTLPercent int
	DedupWindow     time.Duration
	FetchWorkers    int
	ReportListTTL   time.Duration
	ReportCacheTTL  time.Duration
	WarmInterval    time.Duration
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	guildID, err := getEnvInt("GUILD_ID", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid GUILD_ID: %w", err)
	}

	cfg := &Config{
		WCLClientID:      getEnv("WCL_CLIENT_ID", ""),
		WCLClientSecret:  getEnv("WCL_CLIENT_SECRET", ""),
		WCLAPIKeyV1:      getEnv("WCL_API_KEY_V1", ""),
		BnetClientID:     getEnv("BNET_CLIENT_ID", ""),
		BnetClientSecret: getEnv("BNET_CLIENT_SECRET", ""),
		RedisURL:         getEnv("REDIS_URL", ""),
		GuildID:          guildID,
		Region:           getEnv("REGION", "us"),
		PreferredOwner:   getEnv("PREFERRED_OWNER", ""),
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		TokenTTLPercent:  constants.TokenTTLPercent,
		DedupWindow:      constants.DedupWindow,
		FetchWorkers:     constants.FetchWorkers,
		ReportListTTL:    constants.ReportListTTL,
		ReportCacheTTL:   constants.ReportCacheTTL,
		WarmInterval:     constants.WarmInterval,
	}

	if pct, err := getEnvInt("TOKEN_TTL_PERCENT", cfg.TokenTTLPercent); err == nil && pct > 0 && pct <= 100 {
		cfg.TokenTTLPercent = pct
	}
	if workers, err := getEnvInt("FETCH_WORKERS", cfg.FetchWorkers); err == nil && workers > 0 {
		cfg.FetchWorkers = workers
	}
	cfg.DedupWindow = getEnvDuration("DEDUP_WINDOW", cfg.DedupWindow)
	cfg.ReportListTTL = getEnvDuration("REPORT_LIST_TTL", cfg.ReportListTTL)
	cfg.ReportCacheTTL = getEnvDuration("REPORT_CACHE_TTL", cfg.ReportCacheTTL)
	cfg.WarmInterval = getEnvDuration("WARM_INTERVAL", cfg.WarmInterval)

	if cfg.WCLClientID == "" || cfg.WCLClientSecret == "" {
		return nil, fmt.Errorf("WCL_CLIENT_ID and WCL_CLIENT_SECRET are required")
	}
	if cfg.BnetClientID == "" || cfg.BnetClientSecret == "" {
		return nil, fmt.Errorf("BNET_CLIENT_ID and BNET_CLIENT_SECRET are required")
	}
	if cfg.GuildID == 0 {
		return nil, fmt.Errorf("GUILD_ID is required")
	}

	logger.Info().
		Int("guild_id", cfg.GuildID).
		Str("region", cfg.Region).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Int("fetch_workers", cfg.FetchWorkers).
		Dur("dedup_window", cfg.DedupWindow).
		Dur("report_cache_ttl", cfg.ReportCacheTTL).
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
