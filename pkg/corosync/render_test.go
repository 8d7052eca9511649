package corosync

import (
	"strings"
	"testing"

	"github.com/cuemby/quorum-rescue/pkg/errdefs"
	"github.com/cuemby/quorum-rescue/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const canonicalQuorum = `quorum {
  provider: corosync_votequorum
  expected_votes: 1
  two_node: 1
  wait_for_all: 0
  auto_tie_breaker: 0
  last_man_standing: 1
  last_man_standing_window: 0
}
`

func TestCanonicalQuorumBlock(t *testing.T) {
	assert.Equal(t, canonicalQuorum, CanonicalQuorumBlock())
}

func TestPatchQuorum_ReplacesSingleBlock(t *testing.T) {
	in := "totem {\n  version: 2\n}\n\nquorum {\n  provider: corosync_votequorum\n  expected_votes: 2\n}\n"

	out, err := PatchQuorum(in)
	require.NoError(t, err)
	assert.Equal(t, "totem {\n  version: 2\n}\n\n"+canonicalQuorum, out)
}

func TestPatchQuorum_InlineHeaderQuorum(t *testing.T) {
	in := "totem {\n  version: 2\n}\nquorum { provider: corosync_votequorum\n expected_votes: 2\n}"

	out, err := PatchQuorum(in)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "totem {\n  version: 2\n}\n\n"))
	assert.Equal(t, 1, strings.Count(out, "quorum {"))
	assert.Contains(t, out, "expected_votes: 1")
	assert.NotContains(t, out, "expected_votes: 2")
}

func TestPatchQuorum_PreservesOtherBlocksInOrder(t *testing.T) {
	out, err := PatchQuorum(twoNodeConfig)
	require.NoError(t, err)

	doc, err := Parse(out)
	require.NoError(t, err)

	var names []string
	for _, it := range doc.Items {
		if it.Block != nil {
			names = append(names, it.Block.Name)
		}
	}
	assert.Equal(t, []string{"logging", "nodelist", "totem", "quorum"}, names)

	orig, _ := Parse(twoNodeConfig)
	for _, name := range []string{"logging", "nodelist", "totem"} {
		assert.Equal(t, orig.Block(name).Raw, doc.Block(name).Raw, "block %s changed", name)
	}
	assert.True(t, strings.HasSuffix(out, "}\n\n"+canonicalQuorum))
}

func TestPatchQuorum_NoQuorumBlock(t *testing.T) {
	out, err := PatchQuorum("totem {\n  version: 2\n}")
	require.NoError(t, err)
	assert.Equal(t, "totem {\n  version: 2\n}\n\n"+canonicalQuorum, out)
}

func TestPatchQuorum_EmptyInput(t *testing.T) {
	out, err := PatchQuorum("")
	require.NoError(t, err)
	assert.Equal(t, canonicalQuorum, out)
}

func TestPatchQuorum_DuplicateQuorumBlocks(t *testing.T) {
	in := "quorum {\n  expected_votes: 3\n}\ntotem {\n}\nquorum {\n  expected_votes: 2\n}\n"
	out, err := PatchQuorum(in)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "quorum {"))
	assert.NoError(t, Validate(out))
}

func TestPatchQuorum_Malformed(t *testing.T) {
	_, err := PatchQuorum("quorum {\n  expected_votes: 2\n")
	assert.True(t, errdefs.IsKind(err, errdefs.KindMalformedConfig))
}

func TestPatchQuorum_OutputIsAlreadyPatched(t *testing.T) {
	out, err := PatchQuorum(twoNodeConfig)
	require.NoError(t, err)
	assert.True(t, IsSingleNodeQuorum(out))

	again, err := PatchQuorum(out)
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestIsSingleNodeQuorum(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"canonical", canonicalQuorum, true},
		{"two node cluster", twoNodeConfig, false},
		{"only expected votes", "quorum {\n  expected_votes: 1\n}\n", false},
		{"ten is not one", "quorum {\n  expected_votes: 10\n  two_node: 1\n}\n", false},
		{"values outside quorum", "totem {\n  expected_votes: 1\n  two_node: 1\n}\n", false},
		{"malformed", "quorum {\n  expected_votes: 1\n  two_node: 1\n", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsSingleNodeQuorum(tt.text))
		})
	}
}

func TestRenderRepair_ReusesLayoutAndBumpsVersion(t *testing.T) {
	id := types.NodeIdentity{ClusterName: "lab", NodeName: "pve1", NodeID: 1, RingAddress: "192.168.1.10"}

	out, err := RenderRepair(twoNodeConfig, id)
	require.NoError(t, err)
	require.NoError(t, Validate(out))

	doc, err := Parse(out)
	require.NoError(t, err)

	var names []string
	for _, it := range doc.Items {
		if it.Block != nil {
			names = append(names, it.Block.Name)
		}
	}
	assert.Equal(t, []string{"logging", "nodelist", "totem", "quorum"}, names)

	prior := ScrapeDocument(doc)
	assert.Equal(t, "lab", prior.ClusterName)
	assert.Equal(t, 5, prior.ConfigVersion)
	require.Len(t, prior.Nodes, 1)
	assert.Equal(t, NodeEntry{Name: "pve1", NodeID: 1, RingAddr: "192.168.1.10"}, prior.Nodes[0])

	orig, _ := Parse(twoNodeConfig)
	assert.Equal(t, orig.Block("logging").Raw, doc.Block("logging").Raw)
}

func TestRenderRepair_FromNothing(t *testing.T) {
	id := types.NodeIdentity{ClusterName: "pve", NodeName: "node-a", NodeID: 1, RingAddress: "10.0.0.5"}

	out, err := RenderRepair("", id)
	require.NoError(t, err)

	want := `totem {
  cluster_name: pve
  config_version: 1
  ip_version: ipv4-6
  link_mode: passive
  secauth: on
  version: 2
  interface {
    linknumber: 0
  }
}

nodelist {
  node {
    name: node-a
    nodeid: 1
    quorum_votes: 1
    ring0_addr: 10.0.0.5
  }
}

` + canonicalQuorum
	assert.Equal(t, want, out)
}

func TestRenderRepair_KeepsUnknownBlocks(t *testing.T) {
	id := types.NodeIdentity{ClusterName: "pve", NodeName: "n", NodeID: 2, RingAddress: "10.0.0.2"}
	in := "# managed by hand\nlogging {\n  debug: on\n}\n"

	out, err := RenderRepair(in, id)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "totem {\n"))
	assert.Contains(t, out, "\n# managed by hand\nlogging {\n  debug: on\n}\n\nquorum {\n")
}

func TestRenderRepair_Malformed(t *testing.T) {
	_, err := RenderRepair("totem {\n", types.NodeIdentity{})
	assert.True(t, errdefs.IsKind(err, errdefs.KindMalformedConfig))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantErr bool
	}{
		{"canonical", canonicalQuorum, false},
		{"empty", "  \n", true},
		{"no quorum", "totem {\n}\n", true},
		{"two quorum blocks", canonicalQuorum + canonicalQuorum, true},
		{"wrong votes", "quorum {\n  expected_votes: 2\n  two_node: 1\n}\n", true},
		{"missing two_node", "quorum {\n  expected_votes: 1\n}\n", true},
		{"unparseable", "quorum {\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.text)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errdefs.IsKind(err, errdefs.KindInvalidGeneratedConfig))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
