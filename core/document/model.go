// Package document is the note editor's rich-text model: an ordered sequence of
// typed blocks, each holding runs of text with inline marks.
//
// Formatting commands are applied to a Selection of the model rather than to a
// rendering engine; HTML is only a serialization (see ParseHTML and Document.HTML).
package document

import "strings"

type BlockKind string

const (
	Paragraph   BlockKind = "p"
	Heading1    BlockKind = "h1"
	Heading2    BlockKind = "h2"
	Heading3    BlockKind = "h3"
	Quote       BlockKind = "blockquote"
	BulletItem  BlockKind = "ul"
	OrderedItem BlockKind = "ol"
)

func (k BlockKind) IsList() bool { return k == BulletItem || k == OrderedItem }

type Align string

const (
	AlignDefault Align = ""
	AlignLeft    Align = "left"
	AlignCenter  Align = "center"
	AlignRight   Align = "right"
	AlignJustify Align = "justify"
)

// Marks are the inline attributes of a Run.
type Marks struct {
	Bold      bool
	Italic    bool
	Underline bool
	Strike    bool
	Color     string // #rrggbb, empty for default
	FontSize  int    // 1-7, 0 for default
	Link      string // href, empty when the run is not a link
}

func (m Marks) IsZero() bool { return m == Marks{} }

// Image is an inline picture. It takes one position in its block.
type Image struct {
	Src string
	Alt string
}

// imageText stands in for an image in Run.Text so that offsets count it.
const imageText = "\uFFFC"

type Run struct {
	Text  string
	Marks Marks
	Image *Image // set on image runs, never modified once set
}

func (r Run) IsImage() bool { return r.Image != nil }

type Block struct {
	Kind  BlockKind
	Align Align
	Runs  []Run
}

// Text is the block's unformatted text.
func (b Block) Text() string {
	var sb strings.Builder
	for _, r := range b.Runs {
		if !r.IsImage() {
			sb.WriteString(r.Text)
		}
	}
	return sb.String()
}

// Len is the block's length in runes.
func (b Block) Len() int {
	n := 0
	for _, r := range b.Runs {
		n += len([]rune(r.Text))
	}
	return n
}

type Document struct {
	Blocks []Block

	unsupported []string // elements ParseHTML could only keep as text
}

// Unsupported lists the elements of the parsed markup that the model flattened to
// their text, in document order without repeats. Serializing such a document loses them.
func (d *Document) Unsupported() []string {
	return append([]string(nil), d.unsupported...)
}

// New returns a document holding a single empty paragraph.
func New() *Document {
	return &Document{Blocks: []Block{{Kind: Paragraph}}}
}

func (d *Document) Clone() *Document {
	c := &Document{Blocks: make([]Block, len(d.Blocks)), unsupported: d.Unsupported()}
	for i, b := range d.Blocks {
		c.Blocks[i] = Block{Kind: b.Kind, Align: b.Align, Runs: append([]Run(nil), b.Runs...)}
	}
	return c
}

// Text is the unformatted text of the document, one line per block.
func (d *Document) Text() string {
	lines := make([]string, 0, len(d.Blocks))
	for _, b := range d.Blocks {
		lines = append(lines, b.Text())
	}
	return strings.Join(lines, "\n")
}

// IsEmpty reports whether the document holds no text at all.
func (d *Document) IsEmpty() bool {
	for _, b := range d.Blocks {
		if b.Len() > 0 {
			return false
		}
	}
	return true
}

// normalize merges adjacent runs with equal marks and drops empty runs.
func normalizeRuns(runs []Run) []Run {
	out := runs[:0:0]
	for _, r := range runs {
		if r.Text == "" {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Marks == r.Marks && !r.IsImage() && !out[n-1].IsImage() {
			out[n-1].Text += r.Text
			continue
		}
		out = append(out, r)
	}
	return out
}

func (d *Document) ensureBlock() {
	if len(d.Blocks) == 0 {
		d.Blocks = []Block{{Kind: Paragraph}}
	}
}
