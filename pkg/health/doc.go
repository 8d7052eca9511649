/*
Package health verifies the cluster after a mutation.

Every check runs an external, read-only status command through a
command.Runner and turns its outcome into a Result:

	┌─────────────────────────────────────────────┐
	│                  Verifier                    │
	└──────┬──────────────┬───────────────┬───────┘
	       ▼              ▼               ▼
	┌────────────┐ ┌──────────────┐ ┌─────────────┐
	│    Exec    │ │   Quorate    │ │    Units    │
	│  Checker   │ │   Checker    │ │   Checker   │
	└────────────┘ └──────────────┘ └─────────────┘
	corosync-       pvecm status     systemctl is-active
	quorumtool -s   "Quorate: Yes"   corosync pve-cluster

The Verifier prints each result (with the command's output indented below
it) for the operator, logs it, and aggregates failures with go-multierror
into a Report. Verification never fails the operation: by the time it runs
the configuration is installed and the services restarted, so there is
nothing left to roll back. A bad report tells the operator where to look.

# Usage

	checkers := health.DefaultCheckers(runner, cfg)
	report := health.NewVerifier(os.Stdout, checkers...).Verify(ctx)
	if !report.Healthy() {
		logger.Warn().Err(report.Err).Msg("cluster not healthy yet")
	}
*/
package health
