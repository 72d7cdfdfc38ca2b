package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP Metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameHTTPRequestsTotal,
			Help: HelpTextHTTPRequestsTotal,
		},
		[]string{LabelMethod, LabelPath, LabelStatus},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    MetricNameHTTPRequestDuration,
			Help:    HelpTextHTTPRequestDuration,
			Buckets: HTTPLatencyBuckets,
		},
		[]string{LabelMethod, LabelPath},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: MetricNameHTTPRequestsInFlight,
			Help: HelpTextHTTPRequestsInFlight,
		},
	)
)

// Ingress Metrics
var (
	EventsAccepted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: MetricNameEventsAccepted,
			Help: HelpTextEventsAccepted,
		},
	)

	EventsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameEventsRejected,
			Help: HelpTextEventsRejected,
		},
		[]string{LabelReason},
	)

	AdmissionQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: MetricNameAdmissionQueueDepth,
			Help: HelpTextAdmissionQueueDepth,
		},
	)
)

// Pipeline Metrics
var (
	EventsPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: MetricNameEventsPublished,
			Help: HelpTextEventsPublished,
		},
	)

	ProducerBatchRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: MetricNameProducerBatchRetries,
			Help: HelpTextProducerBatchRetries,
		},
	)

	ProducerBatchesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: MetricNameProducerBatchesLost,
			Help: HelpTextProducerBatchesLost,
		},
	)

	EventsConsumed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: MetricNameEventsConsumed,
			Help: HelpTextEventsConsumed,
		},
	)

	MessagesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: MetricNameMessagesSkipped,
			Help: HelpTextMessagesSkipped,
		},
	)

	BatchesFlushed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: MetricNameBatchesFlushed,
			Help: HelpTextBatchesFlushed,
		},
	)

	EventsArchived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: MetricNameEventsArchived,
			Help: HelpTextEventsArchived,
		},
	)

	FactRowsWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: MetricNameFactRowsWritten,
			Help: HelpTextFactRowsWritten,
		},
	)

	TimestampsUnparsable = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: MetricNameTimestampsUnparsable,
			Help: HelpTextTimestampsUnparsable,
		},
	)
)

// Aggregation Metrics
var (
	AggregationCycles = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: MetricNameAggregationCycles,
			Help: HelpTextAggregationCycles,
		},
	)

	AggregationRuleRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameAggregationRuleRuns,
			Help: HelpTextAggregationRuleRuns,
		},
		[]string{LabelRule},
	)

	AggregationRuleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameAggregationRuleErrors,
			Help: HelpTextAggregationRuleErrors,
		},
		[]string{LabelRule},
	)
)

// Live Metrics
var (
	LiveSubscribers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: MetricNameLiveSubscribers,
			Help: HelpTextLiveSubscribers,
		},
		[]string{LabelRule},
	)

	LiveBroadcasts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameLiveBroadcasts,
			Help: HelpTextLiveBroadcasts,
		},
		[]string{LabelRule},
	)
)
