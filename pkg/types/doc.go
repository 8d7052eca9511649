/*
Package types defines the shared data model of quorum-rescue.

The types here are plain values passed between packages: the service state of
the clustered-filesystem daemon, the node identity rendered into totem and
nodelist, the quorum settings owned by the renderer and snapshot metadata.

# Service State

The clustered-filesystem daemon is driven through three states by the service
controller only:

	normal ──stop──▶ stopped ──pmxcfs -l──▶ local-authoritative
	   ▲                                           │
	   └──────────── kill, settle, start ──────────┘

# Node Identity

NodeIdentity is immutable once discovered. The struct carries validator tags
checked by the identity package: node id must be at least 1 and the ring
address must be an IPv4 address.
*/
package types
