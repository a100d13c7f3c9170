package handler

import (
	"net/http"

	"github.com/vfg2006/ad-publisher-api/internal/api/handler/router"
	"github.com/vfg2006/ad-publisher-api/internal/usecases/insighting"
	"github.com/vfg2006/ad-publisher-api/internal/usecases/publishing"
)

func Healthcheck() []router.Route {
	return []router.Route{
		{
			Path:    "/healthcheck",
			Method:  http.MethodGet,
			Handler: HealthcheckHandler(),
		},
	}
}

func Publishing(service publishing.Publisher) []router.Route {
	return []router.Route{
		{
			Path:    "/v1/publish",
			Method:  http.MethodPost,
			Handler: PublishAd(service),
		},
		{
			Path:    "/v1/jobs",
			Method:  http.MethodGet,
			Handler: ListPublishJobs(service),
		},
		{
			Path:    "/v1/jobs/:id",
			Method:  http.MethodGet,
			Handler: GetPublishJob(service),
		},
		{
			Path:    "/v1/jobs/:id/cancel",
			Method:  http.MethodPost,
			Handler: CancelPublishJob(service),
		},
		{
			Path:    "/v1/jobs/:id/retry",
			Method:  http.MethodPost,
			Handler: RetryPublishJob(service),
		},
	}
}

func Insights(service insighting.Insighter) []router.Route {
	return []router.Route{
		{
			Path:    "/v1/insights/watch",
			Method:  http.MethodPost,
			Handler: WatchEntity(service),
		},
		{
			Path:    "/v1/insights/watch/:id/enable",
			Method:  http.MethodPost,
			Handler: EnableWatchedEntity(service),
		},
		{
			Path:    "/v1/entities/:entityId/insights",
			Method:  http.MethodGet,
			Handler: GetEntityInsights(service),
		},
	}
}

func CronJobs(services CronJobServices) []router.Route {
	return []router.Route{
		{
			Path:    "/v1/cron/:type/run",
			Method:  http.MethodPost,
			Handler: RunCronJob(services),
		},
		{
			Path:    "/v1/cron/status",
			Method:  http.MethodGet,
			Handler: GetCronStatus(services),
		},
	}
}
