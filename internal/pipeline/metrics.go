package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Observer captures telemetry for pipeline runs.
type Observer interface {
	StageCompleted(stage Stage, d time.Duration)
	StageFailed(stage Stage, code string)
	BytesStaged(n int64)
	RemoteRetry()
	OrphanedAsset()
}

type nopObserver struct{}

func (nopObserver) StageCompleted(Stage, time.Duration) {}
func (nopObserver) StageFailed(Stage, string)           {}
func (nopObserver) BytesStaged(int64)                   {}
func (nopObserver) RemoteRetry()                        {}
func (nopObserver) OrphanedAsset()                      {}

// NopObserver discards everything.
func NopObserver() Observer { return nopObserver{} }

// PrometheusObserver exports pipeline metrics to Prometheus.
type PrometheusObserver struct {
	stageDuration *prometheus.HistogramVec
	stageFailures *prometheus.CounterVec
	stagedBytes   prometheus.Counter
	remoteRetries prometheus.Counter
	orphans       prometheus.Counter
}

func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "navistream_upload"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	o := &PrometheusObserver{
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Latency of each successful upload pipeline stage.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"stage"}),
		stageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_failures_total",
			Help:      "Upload pipeline failures by stage and error code.",
		}, []string{"stage", "code"}),
		stagedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "staged_bytes_total",
			Help:      "Bytes written to the staging store.",
		}),
		remoteRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_retries_total",
			Help:      "Transient remote storage failures that were retried.",
		}),
		orphans: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orphaned_assets_total",
			Help:      "Remote objects left without a metadata record.",
		}),
	}

	var err error
	if o.stageDuration, err = register(reg, o.stageDuration); err != nil {
		return nil, err
	}
	if o.stageFailures, err = register(reg, o.stageFailures); err != nil {
		return nil, err
	}
	if o.stagedBytes, err = register(reg, o.stagedBytes); err != nil {
		return nil, err
	}
	if o.remoteRetries, err = register(reg, o.remoteRetries); err != nil {
		return nil, err
	}
	if o.orphans, err = register(reg, o.orphans); err != nil {
		return nil, err
	}
	return o, nil
}

// register reuses an already registered collector of the same type, so
// building two observers on one registry is harmless.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register pipeline metric: %w", err)
	}
	return c, nil
}

func (o *PrometheusObserver) StageCompleted(stage Stage, d time.Duration) {
	o.stageDuration.WithLabelValues(string(stage)).Observe(d.Seconds())
}

func (o *PrometheusObserver) StageFailed(stage Stage, code string) {
	o.stageFailures.WithLabelValues(string(stage), code).Inc()
}

func (o *PrometheusObserver) BytesStaged(n int64) { o.stagedBytes.Add(float64(n)) }
func (o *PrometheusObserver) RemoteRetry()        { o.remoteRetries.Inc() }
func (o *PrometheusObserver) OrphanedAsset()      { o.orphans.Inc() }
