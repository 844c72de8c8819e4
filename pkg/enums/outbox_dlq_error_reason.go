package enums

// OutboxDLQErrorReason records why an outbox row was dead-lettered.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"  // attempt budget exhausted
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable" // publish can never succeed, e.g. no topic
	OutboxDLQReasonMalformed    OutboxDLQErrorReason = "malformed"     // row cannot be decoded or routed
)

// IsValid reports whether the value is a known OutboxDLQErrorReason.
func (r OutboxDLQErrorReason) IsValid() bool {
	switch r {
	case OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable, OutboxDLQReasonMalformed:
		return true
	}
	return false
}
