package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/storefront"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Identity metrics
	PrincipalsProvisionedTotal metric.Int64Counter
	IdentityFailuresTotal      metric.Int64Counter
	KeySetRefreshesTotal       metric.Int64Counter

	// Tenancy metrics
	TenantBindsTotal metric.Int64Counter

	// Numbering metrics
	DocumentNumbersIssuedTotal metric.Int64Counter
	AdvisoryLockWaitDuration   metric.Float64Histogram

	// Storefront metrics
	DocumentsSubmittedTotal metric.Int64Counter
	VisitsRecordedTotal     metric.Int64Counter
	RateLimitedTotal        metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	// Identity metrics
	m.PrincipalsProvisionedTotal, _ = meter.Int64Counter(
		"storefront.principals.provisioned.total",
		metric.WithDescription("Total number of principals created on first sight"),
		metric.WithUnit("{principal}"),
	)

	m.IdentityFailuresTotal, _ = meter.Int64Counter(
		"storefront.identity.failures.total",
		metric.WithDescription("Total number of rejected credentials, by reason"),
		metric.WithUnit("{failure}"),
	)

	m.KeySetRefreshesTotal, _ = meter.Int64Counter(
		"storefront.keyset.refreshes.total",
		metric.WithDescription("Total number of identity provider key set fetches"),
		metric.WithUnit("{refresh}"),
	)

	// Tenancy metrics
	m.TenantBindsTotal, _ = meter.Int64Counter(
		"storefront.tenancy.binds.total",
		metric.WithDescription("Total number of tenant context binds, by mode and outcome"),
		metric.WithUnit("{bind}"),
	)

	// Numbering metrics
	m.DocumentNumbersIssuedTotal, _ = meter.Int64Counter(
		"storefront.numbering.issued.total",
		metric.WithDescription("Total number of document numbers issued, by prefix"),
		metric.WithUnit("{number}"),
	)

	m.AdvisoryLockWaitDuration, _ = meter.Float64Histogram(
		"storefront.numbering.lock_wait.duration",
		metric.WithDescription("Time spent waiting for the per tenant and prefix advisory lock"),
		metric.WithUnit("ms"),
	)

	// Storefront metrics
	m.DocumentsSubmittedTotal, _ = meter.Int64Counter(
		"storefront.documents.submitted.total",
		metric.WithDescription("Total number of documents submitted through the storefront, by kind"),
		metric.WithUnit("{document}"),
	)

	m.VisitsRecordedTotal, _ = meter.Int64Counter(
		"storefront.visits.recorded.total",
		metric.WithDescription("Total number of storefront visits recorded"),
		metric.WithUnit("{visit}"),
	)

	m.RateLimitedTotal, _ = meter.Int64Counter(
		"storefront.http.rate_limited.total",
		metric.WithDescription("Total number of requests rejected by the public rate limiter"),
		metric.WithUnit("{request}"),
	)

	return m
}
