package corosync

import "strconv"

// NodeEntry is one node section of a nodelist
type NodeEntry struct {
	Name     string
	NodeID   int
	RingAddr string
}

// Prior holds identity values found in an existing configuration
type Prior struct {
	ClusterName   string
	ConfigVersion int
	Nodes         []NodeEntry
}

// Node returns the entry named name. When no entry matches, a nodelist
// holding a single node yields that node; a larger one yields nothing.
func (p Prior) Node(name string) (NodeEntry, bool) {
	for _, n := range p.Nodes {
		if n.Name == name {
			return n, true
		}
	}
	if len(p.Nodes) == 1 {
		return p.Nodes[0], true
	}
	return NodeEntry{}, false
}

// Scrape parses text and extracts prior identity values
func Scrape(text string) (Prior, error) {
	doc, err := Parse(text)
	if err != nil {
		return Prior{}, err
	}
	return ScrapeDocument(doc), nil
}

// ScrapeDocument extracts prior identity values from a parsed document.
// Missing or non-numeric values are left zero.
func ScrapeDocument(doc *Document) Prior {
	var p Prior

	if totem := doc.Block("totem"); totem != nil {
		p.ClusterName, _ = totem.Get("cluster_name")
		if v, ok := totem.Get("config_version"); ok {
			p.ConfigVersion, _ = strconv.Atoi(v)
		}
	}

	for _, nodelist := range doc.Blocks("nodelist") {
		for _, s := range nodelist.SectionsNamed("node") {
			var n NodeEntry
			n.Name, _ = s.Get("name")
			if v, ok := s.Get("nodeid"); ok {
				n.NodeID, _ = strconv.Atoi(v)
			}
			if v, ok := s.Get("ring0_addr"); ok {
				n.RingAddr = v
			}
			p.Nodes = append(p.Nodes, n)
		}
	}
	return p
}
