package corosync

import (
	"strconv"
	"strings"

	"github.com/cuemby/quorum-rescue/pkg/types"
)

const indent = "  "

// Render emits the document. Parsed blocks come out byte-for-byte as they
// were read; generated blocks use two-space indentation.
func Render(doc *Document) string {
	var lines []string
	for _, it := range doc.Items {
		if it.Block == nil {
			lines = append(lines, it.Line)
			continue
		}
		if it.Block.Raw != nil {
			lines = append(lines, it.Block.Raw...)
		} else {
			lines = append(lines, formatBlock(it.Block)...)
		}
	}

	out := strings.Join(lines, "\n")
	if doc.TrailingNewline && len(lines) > 0 {
		out += "\n"
	}
	return out
}

func formatBlock(b *Block) []string {
	lines := []string{b.Name + " {"}
	for _, e := range b.Entries {
		lines = append(lines, indent+e.Key+": "+e.Value)
	}
	for _, s := range b.Sections {
		lines = append(lines, indent+s.Name+" {")
		for _, e := range s.Entries {
			lines = append(lines, indent+indent+e.Key+": "+e.Value)
		}
		lines = append(lines, indent+"}")
	}
	return append(lines, "}")
}

// QuorumBlock builds a quorum block from settings
func QuorumBlock(q types.QuorumSettings) *Block {
	return &Block{
		Name: "quorum",
		Entries: []Entry{
			{"provider", q.Provider},
			{"expected_votes", strconv.Itoa(q.ExpectedVotes)},
			{"two_node", strconv.Itoa(q.TwoNode)},
			{"wait_for_all", strconv.Itoa(q.WaitForAll)},
			{"auto_tie_breaker", strconv.Itoa(q.AutoTieBreaker)},
			{"last_man_standing", strconv.Itoa(q.LastManStanding)},
			{"last_man_standing_window", strconv.Itoa(q.LastManStandingWindow)},
		},
	}
}

// CanonicalQuorumBlock returns the single-node quorum block as text
func CanonicalQuorumBlock() string {
	return strings.Join(formatBlock(QuorumBlock(types.SingleNodeQuorum())), "\n") + "\n"
}

// PatchQuorum replaces every quorum block in text with one single-node
// quorum block appended after all other content. Everything else is kept
// verbatim and in order.
func PatchQuorum(text string) (string, error) {
	doc, err := Parse(text)
	if err != nil {
		return "", err
	}
	doc.RemoveBlocks("quorum")
	doc.Append(QuorumBlock(types.SingleNodeQuorum()))
	return Render(doc), nil
}

// IsSingleNodeQuorum reports whether text already carries a quorum block
// with expected_votes 1 and two_node 1. Unparseable text is never
// considered patched.
func IsSingleNodeQuorum(text string) bool {
	doc, err := Parse(text)
	if err != nil {
		return false
	}
	for _, q := range doc.Blocks("quorum") {
		votes, _ := q.Get("expected_votes")
		twoNode, _ := q.Get("two_node")
		if votes == "1" && twoNode == "1" {
			return true
		}
	}
	return false
}

// TotemBlock builds the totem block for id. configVersion should be one
// above the version found in the previous configuration.
func TotemBlock(id types.NodeIdentity, configVersion int) *Block {
	return &Block{
		Name: "totem",
		Entries: []Entry{
			{"cluster_name", id.ClusterName},
			{"config_version", strconv.Itoa(configVersion)},
			{"ip_version", "ipv4-6"},
			{"link_mode", "passive"},
			{"secauth", "on"},
			{"version", "2"},
		},
		Sections: []*Section{
			{Name: "interface", Entries: []Entry{{"linknumber", "0"}}},
		},
	}
}

// NodelistBlock builds a nodelist holding only id
func NodelistBlock(id types.NodeIdentity) *Block {
	return &Block{
		Name: "nodelist",
		Sections: []*Section{
			{
				Name: "node",
				Entries: []Entry{
					{"name", id.NodeName},
					{"nodeid", strconv.Itoa(id.NodeID)},
					{"quorum_votes", "1"},
					{"ring0_addr", id.RingAddress},
				},
			},
		},
	}
}

// RenderRepair regenerates totem, nodelist and quorum for a single node.
// Existing totem and nodelist blocks are replaced in place, missing ones are
// placed at the top, the quorum block goes last and all other content is
// kept verbatim. text may be empty when no configuration survives.
func RenderRepair(text string, id types.NodeIdentity) (string, error) {
	doc, err := Parse(text)
	if err != nil {
		return "", err
	}

	prior := ScrapeDocument(doc)
	totem := TotemBlock(id, prior.ConfigVersion+1)
	nodelist := NodelistBlock(id)

	var items []Item
	placedTotem, placedNodelist := false, false
	for _, it := range doc.Items {
		if it.Block == nil {
			items = append(items, it)
			continue
		}
		switch it.Block.Name {
		case "totem":
			if !placedTotem {
				items = append(items, Item{Block: totem})
				placedTotem = true
			}
		case "nodelist":
			if !placedNodelist {
				items = append(items, Item{Block: nodelist})
				placedNodelist = true
			}
		case "quorum":
		default:
			items = append(items, it)
		}
	}

	var head []Item
	if !placedTotem {
		head = append(head, Item{Block: totem}, Item{Line: ""})
	}
	if !placedNodelist {
		head = append(head, Item{Block: nodelist}, Item{Line: ""})
	}
	if len(items) == 0 && len(head) > 0 {
		head = head[:len(head)-1]
	}

	doc.Items = append(head, items...)
	doc.Append(QuorumBlock(types.SingleNodeQuorum()))
	return Render(doc), nil
}
