// Package metrics provides Prometheus metrics for the offramp service.
//
// Collectors are package-level and safe to use before registration, so tests
// can exercise instrumented code without a registry. Call RegisterMetrics once
// at startup to expose them on /metrics.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/core-coin/offramp/pkg/logger"
)

const namespace = "offramp"

// RegisterMetrics registers all collectors with the default registry
func RegisterMetrics(logger *logger.Logger) {
	registerIfNotExists(collectors.NewGoCollector(), "go_collector", logger)
	registerIfNotExists(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}), "process_collector", logger)

	registerIfNotExists(httpRequestsTotal, "http_requests_total", logger)
	registerIfNotExists(httpRequestDuration, "http_request_duration", logger)

	registerIfNotExists(transfersTotal, "transfers_total", logger)
	registerIfNotExists(transferDuration, "transfer_duration", logger)
	registerIfNotExists(balanceReadFailuresTotal, "balance_read_failures_total", logger)
	registerIfNotExists(priceFallbacksTotal, "price_fallbacks_total", logger)
	registerIfNotExists(withdrawalsTotal, "withdrawals_total", logger)
}

// registerIfNotExists registers a collector if it's not already registered
func registerIfNotExists(collector prometheus.Collector, name string, logger *logger.Logger) {
	if err := prometheus.Register(collector); err != nil {
		var alreadyRegErr prometheus.AlreadyRegisteredError
		if errors.As(err, &alreadyRegErr) {
			logger.Debug("Collector already registered", "name", name)
		} else {
			logger.Error("Failed to register collector", "name", name, "error", err)
		}
	}
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
