package corosync

import (
	"fmt"
	"strings"

	"github.com/cuemby/quorum-rescue/pkg/errdefs"
)

// Validate checks generated text before it may be installed: it must be
// non-empty, parse cleanly and hold exactly one single-node quorum block.
func Validate(text string) error {
	if strings.TrimSpace(text) == "" {
		return invalid("generated configuration is empty", nil)
	}
	if !strings.Contains(text, "quorum {") {
		return invalid("generated configuration has no quorum block", nil)
	}

	doc, err := Parse(text)
	if err != nil {
		return invalid("generated configuration does not parse", err)
	}

	quorums := doc.Blocks("quorum")
	if len(quorums) != 1 {
		return invalid(fmt.Sprintf("generated configuration has %d quorum blocks, want 1", len(quorums)), nil)
	}
	if v, _ := quorums[0].Get("expected_votes"); v != "1" {
		return invalid(fmt.Sprintf("expected_votes is %q, want \"1\"", v), nil)
	}
	if v, _ := quorums[0].Get("two_node"); v != "1" {
		return invalid(fmt.Sprintf("two_node is %q, want \"1\"", v), nil)
	}
	return nil
}

func invalid(msg string, cause error) error {
	return errdefs.Wrap(errdefs.KindInvalidGeneratedConfig, cause, msg,
		"nothing was installed; run --dry-run to inspect the generated configuration")
}
