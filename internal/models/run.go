package models

import "time"

// OutcomeStatus is the result of processing one account in a run.
type OutcomeStatus string

const (
	OutcomeProcessed OutcomeStatus = "processed"
	OutcomeSkipped   OutcomeStatus = "skipped"
	OutcomeFailed    OutcomeStatus = "failed"
)

// AccountOutcome records what a run did for one account.
type AccountOutcome struct {
	Account      string        `json:"account"`
	Action       PlanAction    `json:"action"`
	Status       OutcomeStatus `json:"status"`
	Fetched      []Dataset     `json:"fetched,omitempty"`
	Materialized []Dataset     `json:"materialized,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// RunReport is the persisted summary of one snapshot run.
type RunReport struct {
	ID         string           `json:"id"`
	TargetDate string           `json:"target_date"`
	Trigger    string           `json:"trigger"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Outcomes   []AccountOutcome `json:"outcomes"`
}

// Count returns how many accounts ended with the given status.
func (r *RunReport) Count(status OutcomeStatus) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// Failed reports whether any account failed.
func (r *RunReport) Failed() bool {
	return r.Count(OutcomeFailed) > 0
}

// Duration returns the wall time of the run.
func (r *RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
