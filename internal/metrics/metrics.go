package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reportPages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "topgo_report_files_total",
			Help: "Spreadsheet files produced, by report kind",
		},
		[]string{"report"},
	)

	mailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "topgo_report_mails_total",
			Help: "Report e-mails by outcome",
		},
		[]string{"report", "status"},
	)

	entityFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "topgo_report_entity_failures_total",
			Help: "Couriers or restaurants whose report failed, by stage",
		},
		[]string{"report", "stage"},
	)

	triggerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "topgo_trigger_duration_seconds",
			Help:    "Duration of scheduled trigger runs",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 1800},
		},
		[]string{"trigger", "status"},
	)

	triggerSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "topgo_trigger_skipped_total",
			Help: "Ticks skipped because the previous run of the trigger was still going",
		},
		[]string{"trigger"},
	)
)

func RecordFile(report string) {
	reportPages.WithLabelValues(report).Inc()
}

func RecordMail(report string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	mailsSent.WithLabelValues(report, status).Inc()
}

func RecordEntityFailure(report, stage string) {
	entityFailures.WithLabelValues(report, stage).Inc()
}

func ObserveTrigger(trigger string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	triggerDuration.WithLabelValues(trigger, status).Observe(d.Seconds())
}

func RecordSkip(trigger string) {
	triggerSkipped.WithLabelValues(trigger).Inc()
}
