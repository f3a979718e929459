package agent

import "context"

// ReconcileAll runs the read-only reconciliation pass over every active
// agent. Discrepancies are logged by the portfolio manager; the pass never
// mutates state. Intended for an hourly schedule.
func (o *Orchestrator) ReconcileAll(ctx context.Context) {
	agents, err := o.store.ListActiveAgents(ctx)
	if err != nil {
		o.logger.Error().Err(err).Msg("Reconciler failed to enumerate agents")
		return
	}

	flagged := 0
	for _, ag := range agents {
		report, err := o.manager.Reconcile(ctx, ag.ID)
		if err != nil {
			o.logger.Error().Err(err).Str("agent", ag.Name).Msg("Reconciliation failed")
			continue
		}
		if report.HasDiscrepancy {
			flagged++
		}
	}

	o.logger.Info().
		Int("agents", len(agents)).
		Int("flagged", flagged).
		Msg("Reconciliation pass finished")
}
