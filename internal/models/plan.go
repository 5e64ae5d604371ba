package models

// PlanAction is what the runner does for one account.
type PlanAction string

const (
	ActionSkip            PlanAction = "SKIP"
	ActionFetchAndPersist PlanAction = "FETCH_AND_PERSIST"
	ActionMaterializeOnly PlanAction = "MATERIALIZE_ONLY"
)

// StateKey addresses one dataset of one account on the planned date.
type StateKey struct {
	Dataset Dataset
	Account string
}

// StoreState is a read-only view of the store for a single target date.
type StoreState map[StateKey]ExistState

// Get returns the state of a key, StateAbsent when it was never observed.
func (s StoreState) Get(dataset Dataset, account string) ExistState {
	if st, ok := s[StateKey{Dataset: dataset, Account: account}]; ok {
		return st
	}
	return StateAbsent
}

// Set records the state of a key.
func (s StoreState) Set(dataset Dataset, account string, state ExistState) {
	s[StateKey{Dataset: dataset, Account: account}] = state
}

// PlanDecision is the planned action for one account.
type PlanDecision struct {
	Account     string     `json:"account"`
	Action      PlanAction `json:"action"`
	Fetch       []Dataset  `json:"fetch,omitempty"`
	Materialize []Dataset  `json:"materialize,omitempty"`
}

// Plan holds one decision per configured account, in configuration order.
type Plan struct {
	TargetDate string         `json:"target_date"`
	Decisions  []PlanDecision `json:"decisions"`
}

// Pending reports whether any account needs work.
func (p *Plan) Pending() bool {
	for _, d := range p.Decisions {
		if d.Action != ActionSkip {
			return true
		}
	}
	return false
}
