package metrics

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

const namespace = "invoice_fetcher"

var (
	// DownloadedCounterVec counts persisted invoices per provider
	DownloadedCounterVec = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "invoices_downloaded",
		Help:      "Number of invoices persisted",
	}, []string{"provider"})

	// SkippedCounterVec counts skipped candidates per provider and reason
	SkippedCounterVec = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "invoices_skipped",
		Help:      "Number of candidates skipped, by reason",
	}, []string{"provider", "reason"})

	// FailedCounterVec counts failed candidate downloads per provider
	FailedCounterVec = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "invoice_download_failures",
		Help:      "Number of candidates whose download failed",
	}, []string{"provider"})

	// LoginCounterVec counts login attempts per provider and outcome
	LoginCounterVec = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_attempts",
		Help:      "Number of login attempts, by outcome",
	}, []string{"provider", "outcome"})

	// RunDurationHistogramVec observes download run durations per provider
	RunDurationHistogramVec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "download_run_seconds",
		Help:      "Duration of download runs",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"provider"})
)

func init() {
	if err := registerMetrics(); err != nil {
		logrus.WithError(err).Error("failed to register invoice fetcher metrics")
	}
}

func registerMetrics() error {
	if err := prometheus.Register(DownloadedCounterVec); err != nil {
		if e, ok := err.(prometheus.AlreadyRegisteredError); ok {
			DownloadedCounterVec = e.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return errors.Wrap(err, "failed to register downloaded counter")
		}
	}

	if err := prometheus.Register(SkippedCounterVec); err != nil {
		if e, ok := err.(prometheus.AlreadyRegisteredError); ok {
			SkippedCounterVec = e.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return errors.Wrap(err, "failed to register skipped counter")
		}
	}

	if err := prometheus.Register(FailedCounterVec); err != nil {
		if e, ok := err.(prometheus.AlreadyRegisteredError); ok {
			FailedCounterVec = e.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return errors.Wrap(err, "failed to register failure counter")
		}
	}

	if err := prometheus.Register(LoginCounterVec); err != nil {
		if e, ok := err.(prometheus.AlreadyRegisteredError); ok {
			LoginCounterVec = e.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return errors.Wrap(err, "failed to register login counter")
		}
	}

	if err := prometheus.Register(RunDurationHistogramVec); err != nil {
		if e, ok := err.(prometheus.AlreadyRegisteredError); ok {
			RunDurationHistogramVec = e.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			return errors.Wrap(err, "failed to register run duration histogram")
		}
	}

	return nil
}
