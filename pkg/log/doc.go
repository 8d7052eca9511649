/*
Package log provides structured logging for quorum-rescue using zerolog.

A single global Logger is configured once by Init from the command line and
tool configuration. Components derive child loggers with WithComponent, and
each top-level run is tagged with WithOperation so every line of one recovery
attempt carries the same run_id:

	log.Init(log.Config{Level: log.InfoLevel})
	logger := log.WithComponent("service")
	logger.Info().Str("state", "stopped").Msg("daemons stopped")

Console output (the default) is meant for an operator at a terminal:

	2026-10-19T10:30:00Z INF daemons stopped component=service state=stopped

JSON output (--log-json) is meant for collection by journald or a log shipper.
Diagnostics are written to stderr; operator-facing progress and previews are
printed to stdout by the command layer.
*/
package log
