package snapshot

import "context"

// Run triggers recorded on the run report.
const (
	TriggerManual   = "manual"
	TriggerSchedule = "schedule"
	TriggerBackfill = "backfill"
	TriggerCatchUp  = "catchup"
)

type triggerKey struct{}

// WithTrigger tags ctx with what started the run.
func WithTrigger(ctx context.Context, trigger string) context.Context {
	return context.WithValue(ctx, triggerKey{}, trigger)
}

// TriggerFromContext returns the run trigger, TriggerManual when unset.
func TriggerFromContext(ctx context.Context) string {
	if t, ok := ctx.Value(triggerKey{}).(string); ok && t != "" {
		return t
	}
	return TriggerManual
}
