// Package checkoutlog defines the audit trail of checkout attempts.
//
// Every call to CreateOrder appends a STARTED row and then exactly one
// terminal row (COMPLETED, REJECTED or FAILED). The log lives outside the
// order transaction so that rejected and failed attempts, whose writes are
// rolled back, still leave a trace. Rows carry the OpenTelemetry trace id so
// an entry can be joined with the distributed trace of the request.
package checkoutlog

import "time"

// Status is the lifecycle state of a checkout attempt.
type Status string

const (
	StatusStarted   Status = "STARTED"
	StatusCompleted Status = "COMPLETED"
	// StatusRejected marks a client-side failure: validation, unknown product
	// or insufficient stock.
	StatusRejected Status = "REJECTED"
	// StatusFailed marks a storage fault.
	StatusFailed Status = "FAILED"
)

// Entry is a single row in the checkout_logs table.
type Entry struct {
	// AttemptID groups the rows of one CreateOrder call.
	AttemptID string

	// OrderID is set on COMPLETED rows only.
	OrderID string

	Status Status

	// RequestID is the HTTP request id (chi middleware.RequestID).
	RequestID string

	// Payload is the JSON-serialised purchase intent. Written once on STARTED.
	Payload string

	// ErrorMessages is a JSON array of failure details.
	ErrorMessages string

	TraceID string
	SpanID  string

	UpdatedAt time.Time
}
