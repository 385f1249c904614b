package operator

// Status is the terminal outcome of one pipeline run.
type Status string

const (
	// StatusRecorded marks a fully answered request.
	StatusRecorded Status = "recorded"
	// StatusSkipped marks a deterministic skip; the id will not be
	// retried.
	StatusSkipped Status = "skipped"
	// StatusFailed marks a transient failure; the id stays eligible
	// for the next poll.
	StatusFailed Status = "failed"
)

// SkipReason classifies deterministic skips.
type SkipReason string

const (
	SkipAlreadyProcessed SkipReason = "already_processed"
	SkipAlreadyAnswered  SkipReason = "already_answered"
	SkipMissingTags      SkipReason = "missing_tags"
	SkipPaymentMissing   SkipReason = "payment_missing"
	SkipBelowStartHeight SkipReason = "below_start_height"
)

// Outcome is what a pipeline run reports back to the dispatcher.
type Outcome struct {
	Status Status
	Reason SkipReason
	Err    error
}

func recorded() Outcome                 { return Outcome{Status: StatusRecorded} }
func skipped(reason SkipReason) Outcome { return Outcome{Status: StatusSkipped, Reason: reason} }
func failed(err error) Outcome          { return Outcome{Status: StatusFailed, Err: err} }

// Event is a notification the dispatcher sends the orchestrator over the
// event channel: log/result delivery by message passing rather than
// callbacks.
type Event struct {
	JobID          string
	RequestID      string
	RegistrationID string
	Outcome        Outcome
}
