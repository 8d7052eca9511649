/*
Package corosync parses, edits and renders cluster membership configuration.

The format is line oriented:

	# comment
	totem {
	  cluster_name: lab
	  interface {
	    linknumber: 0
	  }
	}

Parse turns text into a Document: an ordered list of top-level items, each
either a verbatim line (comment or blank) or a Block. Blocks may contain
key/value entries and nested sections one level deep (nodelist.node,
totem.interface). Deeper nesting, a stray closing brace or a block left open
at end of input fails with errdefs.KindMalformedConfig.

Parsed blocks remember their source lines, so Render reproduces untouched
content byte for byte. Edits are tree operations: PatchQuorum removes every
quorum block and appends one single-node block; RenderRepair additionally
replaces totem and nodelist with blocks built from a types.NodeIdentity.

All functions here are pure over text. Validate and SyntaxChecker gate what
may be installed; nothing in this package writes the live configuration.
*/
package corosync
