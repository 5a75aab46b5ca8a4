package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Tracing fields, propagated through the call chain via context.
const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldJobID is the batch ingestion job ID
	FieldJobID = "job_id"

	// FieldTenderID is the tender case identifier being processed
	FieldTenderID = "tender_id"

	// FieldStage is the pipeline stage of the current identifier
	FieldStage = "stage"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldSource is the identifier source
	FieldSource = "source"
)

// Metric fields, used for aggregation and alerting.
const (
	FieldDurationMs = "duration_ms"
	FieldCount      = "count"
	FieldSize       = "size"
	FieldStatus     = "status"
	FieldAttempt    = "attempt"
)
