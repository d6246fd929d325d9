// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package metrics records OpenTelemetry instruments and exposes them in
// Prometheus text format.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds the application instruments.
type Metrics struct {
	HTTPRequests  metric.Int64Counter
	HTTPDuration  metric.Float64Histogram
	CacheHits     metric.Int64Counter
	CacheMisses   metric.Int64Counter
	Logins        metric.Int64Counter
	MediaUploaded metric.Int64Counter
	MediaBytes    metric.Int64Counter
}

// Setup creates the meter provider backed by a private Prometheus registry
// and returns the instruments plus the handler serving /metrics.
func Setup(serviceName string) (*Metrics, http.Handler, error) {
	reg := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(reg))
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)
	m := &Metrics{}

	if m.HTTPRequests, err = meter.Int64Counter(
		"inkpost_http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	); err != nil {
		return nil, nil, err
	}
	if m.HTTPDuration, err = meter.Float64Histogram(
		"inkpost_http_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, nil, err
	}
	if m.CacheHits, err = meter.Int64Counter(
		"inkpost_listing_cache_hits_total",
		metric.WithDescription("Listing cache hits"),
	); err != nil {
		return nil, nil, err
	}
	if m.CacheMisses, err = meter.Int64Counter(
		"inkpost_listing_cache_misses_total",
		metric.WithDescription("Listing cache misses"),
	); err != nil {
		return nil, nil, err
	}
	if m.Logins, err = meter.Int64Counter(
		"inkpost_logins_total",
		metric.WithDescription("Login attempts by outcome"),
	); err != nil {
		return nil, nil, err
	}
	if m.MediaUploaded, err = meter.Int64Counter(
		"inkpost_media_uploads_total",
		metric.WithDescription("Media files stored by backend"),
	); err != nil {
		return nil, nil, err
	}
	if m.MediaBytes, err = meter.Int64Counter(
		"inkpost_media_upload_bytes_total",
		metric.WithDescription("Bytes of media stored"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, nil, err
	}

	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	return m, handler, nil
}

// The Record methods are safe on a nil *Metrics so that callers built
// without instrumentation (tests, the CLI) need no guards.

// RecordHTTPRequest records one served request. route is the chi route
// pattern, not the raw path, to keep label cardinality bounded.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.String("status", strconv.Itoa(status)),
	)
	m.HTTPRequests.Add(ctx, 1, labels)
	m.HTTPDuration.Record(ctx, duration.Seconds(), labels)
}

// RecordCache records a listing cache lookup.
func (m *Metrics) RecordCache(ctx context.Context, route string, hit bool) {
	if m == nil {
		return
	}
	labels := metric.WithAttributes(attribute.String("route", route))
	if hit {
		m.CacheHits.Add(ctx, 1, labels)
		return
	}
	m.CacheMisses.Add(ctx, 1, labels)
}

// RecordLogin records a login attempt with its outcome ("success",
// "invalid_credentials", "otp_required").
func (m *Metrics) RecordLogin(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.Logins.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordUpload records a stored media blob.
func (m *Metrics) RecordUpload(ctx context.Context, disk string, size int64) {
	if m == nil {
		return
	}
	labels := metric.WithAttributes(attribute.String("disk", disk))
	m.MediaUploaded.Add(ctx, 1, labels)
	m.MediaBytes.Add(ctx, size, labels)
}
