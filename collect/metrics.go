package collect

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// collectionRuns counts adapter invocations by outcome.
	collectionRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spotprice_collection_runs_total",
		Help: "Total number of adapter collections by provider and status",
	}, []string{"provider", "status"})

	// recordsInserted counts price records that were new to the store.
	recordsInserted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spotprice_records_inserted_total",
		Help: "Total number of inserted price records by provider",
	}, []string{"provider"})

	collectionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "spotprice_collection_duration_seconds",
		Help:    "Time taken to fetch, normalize and store prices by provider",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"provider"})

	// fetchErrors tracks failed fetches, kind is one of auth, rate_limit,
	// server, timeout, status or other.
	fetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spotprice_fetch_errors_total",
		Help: "Total number of failed provider fetches by provider and error kind",
	}, []string{"provider", "kind"})
)
