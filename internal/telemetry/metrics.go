package telemetry

import (
	"context"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/detectors/aws/ecs"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/IliaW/defacement-crawler/config"
	"github.com/google/uuid"
)

var meter metric.Meter

type MetricsProvider struct {
	AppMetrics *AppMetrics
	Close      func()
}

type AppMetrics struct {
	PagesCrawledCnt       func(count int64)
	FetchFailedCnt        func(count int64)
	RenderCnt             func(count int64)
	RenderFailedCnt       func(count int64)
	RenderCacheHitCnt     func(count int64)
	BlockedUrlCnt         func(count int64)
	DefacementDetectedCnt func(count int64)
	AlertSendFailedCnt    func(count int64)
}

// NewNoopAppMetrics returns counters that record nothing. Used by tests and
// by call sites that run before the provider is ready.
func NewNoopAppMetrics() *AppMetrics {
	noop := func(int64) {}
	return &AppMetrics{
		PagesCrawledCnt:       noop,
		FetchFailedCnt:        noop,
		RenderCnt:             noop,
		RenderFailedCnt:       noop,
		RenderCacheHitCnt:     noop,
		BlockedUrlCnt:         noop,
		DefacementDetectedCnt: noop,
		AlertSendFailedCnt:    noop,
	}
}

func SetupMetrics(ctx context.Context, cfg *config.Config) *MetricsProvider {
	metricsProvider := new(MetricsProvider)
	var meterProvider *sdkmetric.MeterProvider

	if cfg.TelemetrySettings.Enabled {
		r, err := newResource(cfg)
		if err != nil {
			slog.Error("failed to get resource.", slog.String("err", err.Error()))
			os.Exit(1)
		}
		exporter, err := newMetricExporter(ctx, cfg.TelemetrySettings)
		if err != nil {
			slog.Error("failed to get metric exporter.", slog.String("err", err.Error()))
			os.Exit(1)
		}
		meterProvider = newMeterProvider(exporter, *r)
		otel.SetMeterProvider(meterProvider)
	}

	meter = otel.Meter(cfg.ServiceName)
	metricsProvider.Close = func() {
		if meterProvider != nil {
			err := meterProvider.Shutdown(ctx)
			if err != nil {
				slog.Error("failed to shutdown metrics provider.", slog.String("err", err.Error()))
			}
		}
	}

	pagesCrawledCounter, err := meter.Int64Counter("defacement-crawler.pages.crawled",
		metric.WithDescription("The number of pages fetched and processed"),
		metric.WithUnit("{pages}"))
	fetchFailedCounter, err := meter.Int64Counter("defacement-crawler.pages.fetch-failed",
		metric.WithDescription("The number of pages that could not be fetched"),
		metric.WithUnit("{pages}"))
	renderCounter, err := meter.Int64Counter("defacement-crawler.render.count",
		metric.WithDescription("The number of pages escalated to the headless browser"),
		metric.WithUnit("{pages}"))
	renderFailedCounter, err := meter.Int64Counter("defacement-crawler.render.fail",
		metric.WithDescription("The number of renders that failed or timed out"),
		metric.WithUnit("{pages}"))
	renderCacheHitCounter, err := meter.Int64Counter("defacement-crawler.render.cache-hit",
		metric.WithDescription("The number of render escalations served from the cache"),
		metric.WithUnit("{pages}"))
	blockedUrlCounter, err := meter.Int64Counter("defacement-crawler.urls.blocked",
		metric.WithDescription("The number of extracted URLs dropped by block rules or the domain filter"),
		metric.WithUnit("{urls}"))
	defacementCounter, err := meter.Int64Counter("defacement-crawler.defacements.detected",
		metric.WithDescription("The number of changed pages recorded in COMPARE mode"),
		metric.WithUnit("{pages}"))
	alertFailedCounter, err := meter.Int64Counter("defacement-crawler.alerts.send-fail",
		metric.WithDescription("The number of defacement alerts that could not be sent to kafka"),
		metric.WithUnit("{messages}"))
	if err != nil {
		slog.Error("failed to create telemetry counters.", slog.String("err", err.Error()))
		os.Exit(1)
	}

	counting := func(counter metric.Int64Counter) func(int64) {
		return func(count int64) {
			if cfg.TelemetrySettings.Enabled {
				counter.Add(ctx, count)
			}
		}
	}
	metricsProvider.AppMetrics = &AppMetrics{
		PagesCrawledCnt:       counting(pagesCrawledCounter),
		FetchFailedCnt:        counting(fetchFailedCounter),
		RenderCnt:             counting(renderCounter),
		RenderFailedCnt:       counting(renderFailedCounter),
		RenderCacheHitCnt:     counting(renderCacheHitCounter),
		BlockedUrlCnt:         counting(blockedUrlCounter),
		DefacementDetectedCnt: counting(defacementCounter),
		AlertSendFailedCnt:    counting(alertFailedCounter),
	}

	return metricsProvider
}

func newResource(cfg *config.Config) (*resource.Resource, error) {
	ecsResourceDetector := ecs.NewResourceDetector()
	ecsResource, err := ecsResourceDetector.Detect(context.Background())
	if err != nil {
		slog.Error("ecs detection failed", slog.String("err", err.Error()))
	}
	mergedResource, err := resource.Merge(ecsResource, resource.Default())
	if err != nil {
		slog.Error("failed to merge resources", slog.String("err", err.Error()))
	}
	keyValue, found := ecsResource.Set().Value("container.id")
	var serviceId string
	if found {
		serviceId = keyValue.AsString()
	} else {
		serviceId = uuid.New().String()
	}
	return resource.Merge(mergedResource,
		resource.NewWithAttributes(semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.DeploymentEnvironment(cfg.Env),
			semconv.ServiceInstanceID(serviceId),
		))
}

func newMetricExporter(ctx context.Context, cfg *config.TelemetryConfig) (sdkmetric.Exporter, error) {
	return otlpmetrichttp.New(ctx,
		otlpmetrichttp.WithEndpoint(cfg.CollectorUrl),
		otlpmetrichttp.WithInsecure())
}

func newMeterProvider(meterExporter sdkmetric.Exporter, resource resource.Resource) *sdkmetric.MeterProvider {
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(meterExporter)),
		sdkmetric.WithResource(&resource),
	)
	return meterProvider
}
