package constants

import "time"

const (
	ReportListTTL   = 5 * time.Minute
	ReportCacheTTL  = 7 * 24 * time.Hour
	DedupWindow     = 60 * time.Second
	TokenTTLPercent = 50
	WarmInterval    = 10 * time.Minute
)

const (
	ExternalAPITimeout = 10 * time.Second
	MetadataTimeout    = 30 * time.Second
	RequestTimeout     = 30 * time.Second
)

const (
	FetchWorkers = 4
	PartySize    = 5
)

const (
	MythicDifficulty = 10
	ReportLimit      = 12
	ReportWindow     = 30 * 24 * time.Hour
	MaxFightIDs      = 100
)

// Challenger's Peril adds 90 seconds to the timer budget when present.
const (
	ExtraTimeAffixID = 152
	ExtraTimeBonus   = 90 * time.Second
)

const (
	ShutdownTimeout = 5 * time.Second
)
