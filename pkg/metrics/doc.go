/*
Package metrics records what a recovery run did as Prometheus metrics.

The tool is a short-lived process, so nothing is scraped over HTTP. At the end
of every mutating run the registry is written to a node_exporter textfile
(see WriteTextfile) when a target path is configured, and the next scrape of
node_exporter picks it up.

# Metrics Catalog

quorum_rescue_step_duration_seconds{operation, step}:
  - Type: Histogram
  - Description: Duration of each procedure step (preflight, backup, render,
    install, stop, local-start, resume, restart, verify)

quorum_rescue_operations_total{operation, result}:
  - Type: Counter
  - Description: Completed operations by result (success, noop, failure)

quorum_rescue_backups_total:
  - Type: Counter
  - Description: Configuration snapshots written

quorum_rescue_service_state:
  - Type: Gauge
  - Description: Last known filesystem daemon mode
    (0 = stopped, 1 = local-authoritative, 2 = normal)

# Usage

	timer := metrics.NewTimer()
	err := gate.Check(ctx, path, retry.Once)
	timer.ObserveDurationVec(metrics.StepDuration, "apply", "preflight")

	metrics.OperationsTotal.WithLabelValues("apply", "success").Inc()
	if err := metrics.WriteTextfile(cfg.Paths.MetricsTextfile); err != nil {
		logger.Warn().Err(err).Msg("failed to write metrics textfile")
	}

The metrics live in a dedicated Registry rather than the Prometheus default
registry, so the textfile carries no Go runtime series that would collide
with node_exporter's own.
*/
package metrics
