package corosync

import (
	"fmt"
	"strings"

	"github.com/cuemby/quorum-rescue/pkg/errdefs"
)

// Entry is one "key: value" line
type Entry struct {
	Key   string
	Value string
}

// Section is a block nested one level inside a top-level block,
// e.g. nodelist.node or totem.interface
type Section struct {
	Name    string
	Entries []Entry
}

// Get returns the value of key within the section
func (s *Section) Get(key string) (string, bool) {
	return lookup(s.Entries, key)
}

// Block is a top-level "name { ... }" block. Parsed blocks keep their
// original lines in Raw and are re-emitted verbatim; generated blocks
// have no Raw and are formatted from Entries and Sections.
type Block struct {
	Name     string
	Entries  []Entry
	Sections []*Section
	Raw      []string
}

// Get returns the value of a direct entry of the block
func (b *Block) Get(key string) (string, bool) {
	return lookup(b.Entries, key)
}

// SectionsNamed returns the nested sections with the given name
func (b *Block) SectionsNamed(name string) []*Section {
	var out []*Section
	for _, s := range b.Sections {
		if s.Name == name {
			out = append(out, s)
		}
	}
	return out
}

// Item is either a verbatim top-level line (comment, blank) or a block
type Item struct {
	Line  string
	Block *Block
}

// Document is an ordered sequence of top-level items
type Document struct {
	Items []Item
	// TrailingNewline records whether the source ended with a newline
	TrailingNewline bool
}

// Blocks returns the top-level blocks named name in document order
func (d *Document) Blocks(name string) []*Block {
	var out []*Block
	for _, it := range d.Items {
		if it.Block != nil && it.Block.Name == name {
			out = append(out, it.Block)
		}
	}
	return out
}

// Block returns the first top-level block named name, or nil
func (d *Document) Block(name string) *Block {
	if blocks := d.Blocks(name); len(blocks) > 0 {
		return blocks[0]
	}
	return nil
}

// RemoveBlocks drops every top-level block named name and reports how many
// were removed
func (d *Document) RemoveBlocks(name string) int {
	kept := d.Items[:0]
	removed := 0
	for _, it := range d.Items {
		if it.Block != nil && it.Block.Name == name {
			removed++
			continue
		}
		kept = append(kept, it)
	}
	d.Items = kept
	return removed
}

// Append adds a block at the end, separated from prior content by one blank line
func (d *Document) Append(b *Block) {
	if n := len(d.Items); n > 0 {
		last := d.Items[n-1]
		if last.Block != nil || strings.TrimSpace(last.Line) != "" {
			d.Items = append(d.Items, Item{Line: ""})
		}
	}
	d.Items = append(d.Items, Item{Block: b})
	d.TrailingNewline = true
}

// ParseError locates a syntax problem in the source text
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// Parse reads corosync configuration text into a Document. Blocks may nest
// one level deep; anything deeper, an unmatched closing brace or a block left
// open at end of input is a MalformedConfig error.
func Parse(text string) (*Document, error) {
	doc := &Document{}
	if text == "" {
		return doc, nil
	}

	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		doc.TrailingNewline = true
		lines = lines[:len(lines)-1]
	}

	var (
		block      *Block
		section    *Section
		blockStart int
	)

	for i, raw := range lines {
		lineNo := i + 1
		l := classify(strings.TrimSpace(raw))

		if block == nil {
			switch l.kind {
			case lineBlank, lineComment:
				doc.Items = append(doc.Items, Item{Line: raw})
			case lineOpen:
				block = &Block{Name: l.name, Raw: []string{raw}}
				blockStart = lineNo
				if l.inline != nil {
					block.Entries = append(block.Entries, *l.inline)
				}
				if l.closed {
					doc.Items = append(doc.Items, Item{Block: block})
					block = nil
				}
			case lineClose:
				return nil, malformed(lineNo, "unexpected closing brace")
			default:
				return nil, malformed(lineNo, fmt.Sprintf("unexpected %q outside of a block", l.text))
			}
			continue
		}

		block.Raw = append(block.Raw, raw)

		if section != nil {
			switch l.kind {
			case lineBlank, lineComment:
			case lineOpen:
				return nil, malformed(lineNo, fmt.Sprintf("block %q nested deeper than two levels", l.name))
			case lineClose:
				block.Sections = append(block.Sections, section)
				section = nil
			case lineEntry:
				section.Entries = append(section.Entries, *l.inline)
			default:
				return nil, malformed(lineNo, fmt.Sprintf("unrecognized line %q", l.text))
			}
			continue
		}

		switch l.kind {
		case lineBlank, lineComment:
		case lineOpen:
			section = &Section{Name: l.name}
			if l.inline != nil {
				section.Entries = append(section.Entries, *l.inline)
			}
			if l.closed {
				block.Sections = append(block.Sections, section)
				section = nil
			}
		case lineClose:
			doc.Items = append(doc.Items, Item{Block: block})
			block = nil
		case lineEntry:
			block.Entries = append(block.Entries, *l.inline)
		default:
			return nil, malformed(lineNo, fmt.Sprintf("unrecognized line %q", l.text))
		}
	}

	if block != nil {
		return nil, malformed(blockStart, fmt.Sprintf("block %q is not closed before end of input", block.Name))
	}
	return doc, nil
}

type lineKind int

const (
	lineBlank lineKind = iota
	lineComment
	lineOpen
	lineClose
	lineEntry
	lineUnknown
)

// classified is one trimmed source line. A header may carry an inline
// entry ("quorum { provider: x") or close at once ("quorum { }"). Braces
// may be followed by a "#" comment; a value containing a brace is rejected.
type classified struct {
	kind   lineKind
	text   string
	name   string
	inline *Entry
	closed bool
}

func classify(line string) classified {
	c := classified{kind: lineUnknown, text: line}

	switch {
	case line == "":
		c.kind = lineBlank
	case strings.HasPrefix(line, "#"):
		c.kind = lineComment
	case line == "}" || strings.HasPrefix(line, "}") && isComment(line[1:]):
		c.kind = lineClose
	case strings.Contains(line, "{"):
		idx := strings.Index(line, "{")
		name := strings.TrimSpace(line[:idx])
		rest := strings.TrimSpace(line[idx+1:])
		if isComment(rest) {
			rest = ""
		}
		if name == "" || strings.ContainsAny(name, " \t:{}") {
			return c
		}
		c.name = name
		switch {
		case rest == "":
		case rest == "}" || strings.HasPrefix(rest, "}") && isComment(rest[1:]):
			c.closed = true
		case strings.Contains(rest, ":") && !strings.ContainsAny(rest, "{}"):
			e := parseEntry(rest)
			c.inline = &e
		default:
			return c
		}
		c.kind = lineOpen
	case strings.Contains(line, ":") && !strings.Contains(line, "}"):
		e := parseEntry(line)
		c.kind = lineEntry
		c.inline = &e
	}
	return c
}

// isComment reports whether s, after leading blanks, is a "#" comment
func isComment(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), "#")
}

func parseEntry(line string) Entry {
	idx := strings.Index(line, ":")
	return Entry{
		Key:   strings.TrimSpace(line[:idx]),
		Value: strings.TrimSpace(line[idx+1:]),
	}
}

func lookup(entries []Entry, key string) (string, bool) {
	for _, e := range entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return "", false
}

func malformed(line int, msg string) error {
	return errdefs.Wrap(errdefs.KindMalformedConfig, &ParseError{Line: line, Msg: msg},
		"cannot parse cluster configuration",
		"inspect the file by hand and fix its braces before retrying")
}
