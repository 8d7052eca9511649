/*
Package journal keeps an audit trail of recovery runs in a BoltDB file.

Every apply, restore and repair run appends one Record: which operation ran,
when, how it ended, the backup it took and the service state it left
behind. The `quorum-rescue history` command lists them, newest first.

Records live in the "runs" bucket, JSON encoded, keyed by zero-padded start
time plus run ID so a reverse cursor walk yields newest first without
sorting.

The journal is a convenience for the operator. Failing to open or write it
is logged and never blocks a recovery, and it does not index backups:
snapshots stay discoverable only by listing the backup directory.
*/
package journal
