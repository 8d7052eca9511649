/*
Package rescue sequences the top-level recovery operations of quorum-rescue.

A Rescuer combines the preflight gate, the service controller, the backup
manager, the corosync renderer and the verifier into four operations:

	Apply    privilege + write probe, idempotency check, render, backup,
	         atomic install, runtime quorum override, restart corosync, verify
	DryRun   print the current file and the patched preview; writes nothing
	Restore  privilege, backup check, snapshot of the live file, copy-over,
	         restart corosync, verify
	Repair   stop both daemons, start the filesystem daemon in local mode and
	         poll for write access, render totem/nodelist/quorum for this
	         node, backup, atomic install, return to normal, verify

Every step that fails is fatal except the ones marked best-effort at their
call site (service stop, quorum override, local mirror) and the final
verification, which only reports. Errors carry an errdefs kind and a hint
naming what to check next; once a new configuration is installed the hint
also names the backup to restore from.

Apply, Restore and Repair are journaled: each run appends one record to the
run journal and updates the prometheus collectors, written out as a
node_exporter textfile when configured. DryRun is neither journaled nor
metered.

Operations run strictly in sequence with no cancellation. The package
assumes it is the only writer of the configuration file for the duration
of a run.
*/
package rescue
