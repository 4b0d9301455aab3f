package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recordedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fraud_results_recorded_total",
		Help: "Total number of analysis results recorded by the monitoring service",
	})

	alertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fraud_alerts_total",
		Help: "Total number of fraud alerts emitted by severity",
	}, []string{"severity"})
)
