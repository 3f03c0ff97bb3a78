package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the crawl.
type Metrics struct {
	Registry           *prometheus.Registry
	RequestsTotal      *prometheus.CounterVec
	RequestDuration    prometheus.Histogram
	WorkItemsTotal     *prometheus.CounterVec
	ItemsScrapedTotal  prometheus.Counter
	FieldsMissingTotal *prometheus.CounterVec
	RetriesTotal       prometheus.Counter
	ErrorsTotal        *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "books_requests_total",
			Help: "Total HTTP requests issued by the crawler.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "books_request_duration_seconds",
			Help:    "HTTP request latency for crawler requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
	workItems := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "books_work_items_total",
			Help: "Work items emitted by listing pages, by kind.",
		},
		[]string{"kind"},
	)
	itemsScraped := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "books_records_extracted_total",
			Help: "Total number of records extracted from detail pages.",
		},
	)
	fieldsMissing := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "books_fields_missing_total",
			Help: "Record fields left absent because their markup was missing.",
		},
		[]string{"field"},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "books_retries_total",
			Help: "Total number of retry attempts scheduled.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "books_errors_total",
			Help: "Total number of request errors by type.",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(requests, requestDuration, workItems, itemsScraped, fieldsMissing, retries, errorsTotal)

	return &Metrics{
		Registry:           registry,
		RequestsTotal:      requests,
		RequestDuration:    requestDuration,
		WorkItemsTotal:     workItems,
		ItemsScrapedTotal:  itemsScraped,
		FieldsMissingTotal: fieldsMissing,
		RetriesTotal:       retries,
		ErrorsTotal:        errorsTotal,
	}
}

func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

func (m *Metrics) IncWorkItem(kind string) {
	if m == nil {
		return
	}
	m.WorkItemsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncItems() {
	if m == nil {
		return
	}
	m.ItemsScrapedTotal.Inc()
}

func (m *Metrics) IncMissing(field string) {
	if m == nil {
		return
	}
	m.FieldsMissingTotal.WithLabelValues(field).Inc()
}

func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
