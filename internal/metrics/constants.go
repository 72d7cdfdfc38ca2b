package metrics

// Metric names
const (
	MetricNameHTTPRequestsTotal    = "http_requests_total"
	MetricNameHTTPRequestDuration  = "http_request_duration_seconds"
	MetricNameHTTPRequestsInFlight = "http_requests_in_flight"

	MetricNameEventsAccepted      = "ingest_events_accepted_total"
	MetricNameEventsRejected      = "ingest_events_rejected_total"
	MetricNameAdmissionQueueDepth = "ingest_admission_queue_depth"

	MetricNameEventsPublished       = "producer_events_published_total"
	MetricNameProducerBatchRetries  = "producer_batch_retries_total"
	MetricNameProducerBatchesLost   = "producer_batches_dropped_total"
	MetricNameEventsConsumed        = "consumer_events_consumed_total"
	MetricNameMessagesSkipped       = "consumer_messages_skipped_total"
	MetricNameBatchesFlushed        = "consumer_batches_flushed_total"
	MetricNameEventsArchived        = "sink_events_archived_total"
	MetricNameFactRowsWritten       = "sink_fact_rows_written_total"
	MetricNameTimestampsUnparsable  = "sink_timestamps_unparsable_total"
	MetricNameAggregationCycles     = "aggregation_cycles_total"
	MetricNameAggregationRuleRuns   = "aggregation_rule_runs_total"
	MetricNameAggregationRuleErrors = "aggregation_rule_errors_total"
	MetricNameLiveSubscribers       = "live_subscribers"
	MetricNameLiveBroadcasts        = "live_broadcasts_total"
)

// Help texts
const (
	HelpTextHTTPRequestsTotal    = "Total number of HTTP requests"
	HelpTextHTTPRequestDuration  = "HTTP request duration in seconds"
	HelpTextHTTPRequestsInFlight = "Number of HTTP requests currently being served"

	HelpTextEventsAccepted      = "Events accepted by the ingress boundary"
	HelpTextEventsRejected      = "Events rejected by the ingress boundary"
	HelpTextAdmissionQueueDepth = "Current number of batches in the admission queue"

	HelpTextEventsPublished       = "Events successfully published to the log"
	HelpTextProducerBatchRetries  = "Whole-batch publish retries after transient failures"
	HelpTextProducerBatchesLost   = "Batches dropped after exhausting the retry ceiling"
	HelpTextEventsConsumed        = "Messages consumed from the log"
	HelpTextMessagesSkipped       = "Malformed messages skipped with offset advanced"
	HelpTextBatchesFlushed        = "Batches flushed to both sinks before commit"
	HelpTextEventsArchived        = "Events written to the document-store archive"
	HelpTextFactRowsWritten       = "Rows written to the fact table"
	HelpTextTimestampsUnparsable  = "Events archived but excluded from the fact table"
	HelpTextAggregationCycles     = "Lock-holding aggregation scheduler cycles"
	HelpTextAggregationRuleRuns   = "Individual rule executions"
	HelpTextAggregationRuleErrors = "Rule executions that failed"
	HelpTextLiveSubscribers       = "Currently subscribed live connections per rule"
	HelpTextLiveBroadcasts        = "Envelopes broadcast to live subscribers"
)

// Label names
const (
	LabelMethod = "method"
	LabelPath   = "path"
	LabelStatus = "status"
	LabelReason = "reason"
	LabelRule   = "rule_id"
)

// Rejection reasons
const (
	ReasonOverloaded   = "overloaded"
	ReasonBatchTooBig  = "batch_too_big"
	ReasonInvalidEvent = "invalid_event"
)

// HTTPLatencyBuckets are the histogram buckets for request duration
var HTTPLatencyBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}
