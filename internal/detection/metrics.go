package detection

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	detectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fraudwatch",
		Subsystem: "detection",
		Name:      "verdicts_total",
		Help:      "Total merged verdicts by outcome.",
	}, []string{"outcome"})

	ruleFetchErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fraudwatch",
		Subsystem: "detection",
		Name:      "rule_fetch_errors_total",
		Help:      "Total failures fetching the active rule set.",
	})

	scoringResults = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fraudwatch",
		Subsystem: "detection",
		Name:      "scoring_results_total",
		Help:      "Total anomaly scoring calls by resulting signal.",
	}, []string{"signal"})

	dispatchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fraudwatch",
		Subsystem: "detection",
		Name:      "report_dispatch_total",
		Help:      "Total fraud report dispatch attempts by result.",
	}, []string{"result"})

	persistErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fraudwatch",
		Subsystem: "detection",
		Name:      "persist_errors_total",
		Help:      "Total ledger write failures.",
	})

	batchItems = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fraudwatch",
		Subsystem: "detection",
		Name:      "batch_items",
		Help:      "Transactions per batch detection call.",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500},
	})
)

func init() {
	prometheus.MustRegister(
		detectionsTotal,
		ruleFetchErrors,
		scoringResults,
		dispatchTotal,
		persistErrors,
		batchItems,
	)
}
