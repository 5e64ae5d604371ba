// Package planner decides, per account, what a snapshot run must do.
package planner

import (
	"github.com/bobmcallan/snaptrail/internal/calendar"
	"github.com/bobmcallan/snaptrail/internal/models"
)

// Plan is a pure function of the target date, the configured accounts and
// the observed store state. Decisions follow account order; repeated
// account names are planned once.
//
//   - both datasets MATERIALIZED: SKIP
//   - any dataset ABSENT: FETCH_AND_PERSIST, fetching only ABSENT datasets
//     and materializing RAW_ONLY ones
//   - otherwise: MATERIALIZE_ONLY for the RAW_ONLY datasets
func Plan(target calendar.Date, accounts []string, state models.StoreState) models.Plan {
	plan := models.Plan{
		TargetDate: target.String(),
		Decisions:  make([]models.PlanDecision, 0, len(accounts)),
	}

	seen := make(map[string]bool, len(accounts))
	for _, account := range accounts {
		if seen[account] {
			continue
		}
		seen[account] = true
		plan.Decisions = append(plan.Decisions, decide(account, state))
	}
	return plan
}

func decide(account string, state models.StoreState) models.PlanDecision {
	d := models.PlanDecision{Account: account}
	for _, ds := range models.Datasets {
		switch state.Get(ds, account) {
		case models.StateAbsent:
			d.Fetch = append(d.Fetch, ds)
		case models.StateRawOnly:
			d.Materialize = append(d.Materialize, ds)
		}
	}

	switch {
	case len(d.Fetch) > 0:
		d.Action = models.ActionFetchAndPersist
	case len(d.Materialize) > 0:
		d.Action = models.ActionMaterializeOnly
	default:
		d.Action = models.ActionSkip
	}
	return d
}
