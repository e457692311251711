package fx

import (
	"keystone-tracker/internal/api"
	"keystone-tracker/internal/cache"
	"keystone-tracker/internal/config"
	"keystone-tracker/internal/logger"
	"keystone-tracker/internal/server"
	"keystone-tracker/internal/service"

	"go.uber.org/fx"
)

func ProvideReportSource(c *api.WCLClient) service.ReportSource {
	return c
}

func ProvideEncounterSource(c *api.WCLClient) service.EncounterSource {
	return c
}

func ProvideMetadataSource(c *api.BnetClient) service.MetadataSource {
	return c
}

func ProvideRankingSource(c *api.V1Client) service.RankingSource {
	return c
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(cache.New),
	// api clients
	fx.Provide(api.NewWCLClient),
	fx.Provide(api.NewV1Client),
	fx.Provide(api.NewBnetClient),
	fx.Provide(ProvideReportSource),
	fx.Provide(ProvideEncounterSource),
	fx.Provide(ProvideMetadataSource),
	fx.Provide(ProvideRankingSource),
	// metadata tables, built once; a join failure aborts startup
	fx.Provide(service.NewMetadata),
	// svc
	fx.Provide(service.NewNormalizer),
	fx.Provide(service.NewKeyService),
	fx.Provide(service.NewCompareService),
	// server
	fx.Provide(server.NewTrackerServer),
)
