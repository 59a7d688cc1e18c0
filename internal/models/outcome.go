package models

// OutcomeCode tags the result of a workflow operation. Handlers switch on the
// code to pick a status; services never see transport concerns.
type OutcomeCode string

const (
	OutcomeCreated          OutcomeCode = "created"
	OutcomeUpdated          OutcomeCode = "updated"
	OutcomeCredited         OutcomeCode = "credited"
	OutcomeAlreadyCredited  OutcomeCode = "alreadyCredited"
	OutcomeAlreadyProcessed OutcomeCode = "alreadyProcessed"
	OutcomeIgnored          OutcomeCode = "ignored"
	OutcomeFrozen           OutcomeCode = "frozen"
	OutcomeApproved         OutcomeCode = "approved"
	OutcomeRejected         OutcomeCode = "rejected"
	OutcomePaid             OutcomeCode = "paid"
	OutcomeSkipped          OutcomeCode = "skipped"
)

// Outcome is the tagged result of a state-machine operation. Skipped outcomes
// carry a human-readable reason; they are well-defined no-ops, not errors.
type Outcome struct {
	Code   OutcomeCode `json:"outcome"`
	Reason string      `json:"reason,omitempty"`
}

func Skipped(reason string) Outcome {
	return Outcome{Code: OutcomeSkipped, Reason: reason}
}

func Ignored(reason string) Outcome {
	return Outcome{Code: OutcomeIgnored, Reason: reason}
}
