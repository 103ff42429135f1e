package events

import "time"

// RequestStart is emitted when a request enters an executor's pipeline.
type RequestStart struct {
	ExecutorName  string
	Query         string
	OperationName string
}

// RequestFinish is emitted when the pipeline returns.
type RequestFinish struct {
	ExecutorName  string
	Query         string
	OperationName string
	ErrorCount    int
	Duration      time.Duration
}
