package main

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agentcore/runtime/internal/config"
	"github.com/agentcore/runtime/internal/hooks"
	"github.com/agentcore/runtime/internal/observability"
)

// runtimeObservability bundles the logging, metrics, and tracing
// surfaces a process wires once at startup.
type runtimeObservability struct {
	Logger   *observability.Logger
	Metrics  *observability.Metrics
	Tracer   *observability.Tracer
	Shutdown func(context.Context) error
}

func setupObservability(cfg *config.Config) (*runtimeObservability, error) {
	logger := observability.MustNewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	metrics := observability.NewMetrics()

	shutdown := func(context.Context) error { return nil }
	var tracer *observability.Tracer
	if cfg.Observability.Tracing.Enabled {
		var tracerShutdown func(context.Context) error
		tracer, tracerShutdown = observability.NewTracer(observability.TraceConfig{
			ServiceName:    cfg.Observability.Tracing.ServiceName,
			Endpoint:       cfg.Observability.Tracing.Endpoint,
			SamplingRate:   cfg.Observability.Tracing.SampleRatio,
			EnableInsecure: cfg.Observability.Tracing.Insecure,
		})
		shutdown = tracerShutdown
	}

	return &runtimeObservability{Logger: logger, Metrics: metrics, Tracer: tracer, Shutdown: shutdown}, nil
}

// serveMetrics exposes the Prometheus registry on cfg.Server.MetricsPort
// and returns a function that shuts the listener down.
func serveMetrics(cfg *config.Config) func(context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addrFromPort(cfg.Server.MetricsPort), Handler: mux}
	go func() {
		_ = srv.ListenAndServe()
	}()
	return srv.Shutdown
}

func addrFromPort(port int) string {
	if port <= 0 {
		port = 9090
	}
	return ":" + strconv.Itoa(port)
}

// metricsObserver adapts *observability.Metrics to hooks.RuntimeObserver so
// the built-in observability subscriber can record run/tool telemetry
// without the Runtime Hook Bus depending on Prometheus directly.
type metricsObserver struct {
	metrics *observability.Metrics
}

func (o *metricsObserver) ObserveRunEnd(status string, durationMs int64) {
	o.metrics.RecordRunAttempt(status)
}

func (o *metricsObserver) ObserveToolCall(toolID string, isError bool, durationMs int64) {
	status := "ok"
	if isError {
		status = "error"
	}
	o.metrics.RecordToolExecution(toolID, status, float64(durationMs)/1000)
}
