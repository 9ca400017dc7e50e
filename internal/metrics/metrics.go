package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fuelkl_requests_total",
			Help: "Total number of API requests per path",
		},
		[]string{"path"},
	)

	RequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fuelkl_request_duration_seconds",
			Help:    "API request duration in seconds per path",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	RequestErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fuelkl_request_errors_total",
			Help: "Total number of API error responses per path and code",
		},
		[]string{"path", "code"},
	)
)

var (
	FetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fuelkl_fetch_total",
			Help: "Price fetch attempts by result (ok, config, upstream, extraction, error)",
		},
		[]string{"result"},
	)

	Prices = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fuelkl_prices",
			Help: "Last successfully fetched price per fuel",
		},
		[]string{"fuel"},
	)
)

// ObservePrices records the prices of the last successful fetch.
func ObservePrices(petrol, diesel float64) {
	Prices.WithLabelValues("petrol").Set(petrol)
	Prices.WithLabelValues("diesel").Set(diesel)
}

var ShellRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "fuelkl_shell_requests_total",
		Help: "Requests handled by the shell cache by strategy and response source (cache, network, miss, error)",
	},
	[]string{"strategy", "source"},
)

var (
	ScheduledJobLastRun = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fuelkl_job_last_run_timestamp",
			Help: "Unix timestamp of the last completed run for a job",
		},
		[]string{"job"},
	)

	ScheduledJobLastDurationSeconds = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fuelkl_job_last_duration_seconds",
			Help: "Duration of the last completed run for a job",
		},
		[]string{"job"},
	)

	ScheduledJobFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fuelkl_job_failures_total",
			Help: "Total number of failed executions per job",
		},
		[]string{"job"},
	)
)

func UpdateJobMetrics(job string, startedAt time.Time, err error) {
	dur := time.Since(startedAt).Seconds()
	ScheduledJobLastDurationSeconds.WithLabelValues(job).Set(dur)
	ScheduledJobLastRun.WithLabelValues(job).Set(float64(time.Now().Unix()))
	if err != nil {
		ScheduledJobFailuresTotal.WithLabelValues(job).Inc()
	}
}
