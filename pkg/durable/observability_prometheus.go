package durable

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusObserver implements Observer using Prometheus metrics.
// This is useful if you're already using Prometheus for monitoring.
//
// Example:
//
//	observer := durable.NewPrometheusObserver("my_service", prometheus.DefaultRegisterer)
//	w, _ := durable.NewWorker(ctx, log, durable.WithObserver(observer))
type PrometheusObserver struct {
	callDuration  *prometheus.HistogramVec
	replayHits    *prometheus.CounterVec
	liveCalls     *prometheus.CounterVec
	callErrors    *prometheus.CounterVec
	modeSwitches  prometheus.Counter
	batchDuration *prometheus.HistogramVec
	batchOutcomes *prometheus.CounterVec
}

// NewPrometheusObserver creates a Prometheus observer with the given
// namespace. All metrics are prefixed with "{namespace}_oplog_".
//
// Example:
//
//	observer := NewPrometheusObserver("myapp", prometheus.DefaultRegisterer)
//	// Creates metrics like: myapp_oplog_call_duration_seconds
func NewPrometheusObserver(namespace string, registerer prometheus.Registerer) *PrometheusObserver {
	if namespace == "" {
		namespace = "oplog"
	}

	callDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "oplog",
			Name:      "call_duration_seconds",
			Help:      "Duration of durable calls in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation", "mode", "status"},
	)

	replayHits := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oplog",
			Name:      "replay_hits_total",
			Help:      "Total number of calls satisfied from the invocation log",
		},
		[]string{"operation"},
	)

	liveCalls := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oplog",
			Name:      "live_calls_total",
			Help:      "Total number of calls executed against the real dependency",
		},
		[]string{"operation"},
	)

	callErrors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oplog",
			Name:      "call_errors_total",
			Help:      "Total number of durable calls that returned an error",
		},
		[]string{"operation"},
	)

	modeSwitches := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oplog",
			Name:      "mode_switches_total",
			Help:      "Total number of replay-to-live transitions",
		},
	)

	batchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "oplog",
			Name:      "batch_duration_seconds",
			Help:      "Duration of batch dispatches in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"worker_id"},
	)

	batchOutcomes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oplog",
			Name:      "batch_outcomes_total",
			Help:      "Total batch request outcomes by status",
		},
		[]string{"status"},
	)

	registerer.MustRegister(
		callDuration,
		replayHits,
		liveCalls,
		callErrors,
		modeSwitches,
		batchDuration,
		batchOutcomes,
	)

	return &PrometheusObserver{
		callDuration:  callDuration,
		replayHits:    replayHits,
		liveCalls:     liveCalls,
		callErrors:    callErrors,
		modeSwitches:  modeSwitches,
		batchDuration: batchDuration,
		batchOutcomes: batchOutcomes,
	}
}

func (o *PrometheusObserver) OnCallStart(ctx context.Context, event *CallStartEvent) {
	// Nothing to do on start for Prometheus
}

func (o *PrometheusObserver) OnCallEnd(ctx context.Context, event *CallEndEvent) {
	status := "success"
	if event.Err != nil {
		status = "error"
	}

	o.callDuration.WithLabelValues(
		event.Operation.String(),
		event.Mode.String(),
		status,
	).Observe(event.Duration.Seconds())

	if event.Replayed {
		o.replayHits.WithLabelValues(event.Operation.String()).Inc()
	} else {
		o.liveCalls.WithLabelValues(event.Operation.String()).Inc()
	}

	if event.Err != nil {
		o.callErrors.WithLabelValues(event.Operation.String()).Inc()
	}
}

func (o *PrometheusObserver) OnModeSwitch(ctx context.Context, event *ModeSwitchEvent) {
	o.modeSwitches.Inc()
}

func (o *PrometheusObserver) OnBatchStart(ctx context.Context, event *BatchStartEvent) {
	// Nothing to do on start for Prometheus
}

func (o *PrometheusObserver) OnBatchEnd(ctx context.Context, event *BatchEndEvent) {
	o.batchDuration.WithLabelValues(event.WorkerID).Observe(event.Duration.Seconds())
	o.batchOutcomes.WithLabelValues("success").Add(float64(event.Successes))
	o.batchOutcomes.WithLabelValues("failure").Add(float64(event.Failures))
}
