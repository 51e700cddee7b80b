package market

import "github.com/prometheus/client_golang/prometheus"

var (
	cacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_cache_hits_total",
			Help: "Total number of market cache hits",
		},
		[]string{"cache"},
	)
	cacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_cache_misses_total",
			Help: "Total number of market cache misses",
		},
		[]string{"cache"},
	)
	fetchErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_fetch_errors_total",
			Help: "Total number of failed market data API calls",
		},
		[]string{"endpoint"},
	)
)

const (
	cacheSnapshot      = "snapshot"
	cacheGainersLosers = "gainers_losers"

	endpointMarkets     = "coins/markets"
	endpointSimplePrice = "simple/price"
)

func init() {
	prometheus.MustRegister(cacheHitsTotal)
	prometheus.MustRegister(cacheMissesTotal)
	prometheus.MustRegister(fetchErrorsTotal)

	// series exist at zero before the first lookup
	for _, cache := range []string{cacheSnapshot, cacheGainersLosers} {
		cacheHitsTotal.WithLabelValues(cache)
		cacheMissesTotal.WithLabelValues(cache)
	}
	for _, endpoint := range []string{endpointMarkets, endpointSimplePrice} {
		fetchErrorsTotal.WithLabelValues(endpoint)
	}
}
