package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce         sync.Once
	httpRequestsTotal    *prometheus.CounterVec
	httpLatencySeconds   *prometheus.HistogramVec
	httpErrorsTotal      *prometheus.CounterVec
	listingQueriesTotal  *prometheus.CounterVec
	quotaRejectionsTotal *prometheus.CounterVec
	listingRenewalsTotal prometheus.Counter
	messagesSentTotal    prometheus.Counter
	messagesRateLimited  prometheus.Counter
)

// RegisterMetrics initialises the Prometheus collectors used across the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pazar_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pazar_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pazar_errors_total",
			Help: "Total number of error responses returned.",
		}, []string{"method", "route", "status"})

		listingQueriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pazar_listing_queries_total",
			Help: "Listing searches served, labelled by requested status.",
		}, []string{"status"})

		quotaRejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pazar_quota_rejections_total",
			Help: "Listing operations refused by a quota gate.",
		}, []string{"kind"})

		listingRenewalsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pazar_listing_renewals_total",
			Help: "Successful listing renewals.",
		})

		messagesSentTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pazar_messages_sent_total",
			Help: "Messages accepted and persisted.",
		})

		messagesRateLimited = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pazar_messages_rate_limited_total",
			Help: "Messages refused by the per-sender rate limit.",
		})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			listingQueriesTotal,
			quotaRejectionsTotal,
			listingRenewalsTotal,
			messagesSentTotal,
			messagesRateLimited,
		)
	})
}

// HTTPRequests exposes the counter for served requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// ListingQueries exposes the counter for listing searches.
func ListingQueries() *prometheus.CounterVec {
	RegisterMetrics()
	return listingQueriesTotal
}

// QuotaRejections exposes the counter for refused quota gates.
func QuotaRejections() *prometheus.CounterVec {
	RegisterMetrics()
	return quotaRejectionsTotal
}

// ListingRenewals exposes the counter for successful renewals.
func ListingRenewals() prometheus.Counter {
	RegisterMetrics()
	return listingRenewalsTotal
}

// MessagesSent exposes the counter for accepted messages.
func MessagesSent() prometheus.Counter {
	RegisterMetrics()
	return messagesSentTotal
}

// MessagesRateLimited exposes the counter for rate-limited sends.
func MessagesRateLimited() prometheus.Counter {
	RegisterMetrics()
	return messagesRateLimited
}
