package document

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

	// fontSize command values 1-7 and their CSS keywords
	fontSizeNames = []string{"", "x-small", "small", "medium", "large", "x-large", "xx-large", "xxx-large"}
)

// HTML serializes the document. Consecutive list items share one <ul>/<ol>.
func (d *Document) HTML() string {
	var sb strings.Builder
	var openList BlockKind
	closeList := func() {
		if openList != "" {
			sb.WriteString("</" + string(openList) + ">")
			openList = ""
		}
	}

	for _, b := range d.Blocks {
		tag := string(b.Kind)
		if b.Kind.IsList() {
			if openList != b.Kind {
				closeList()
				sb.WriteString("<" + string(b.Kind) + ">")
				openList = b.Kind
			}
			tag = "li"
		} else {
			closeList()
		}
		if tag == "" {
			tag = string(Paragraph)
		}

		sb.WriteString("<" + tag)
		if b.Align != AlignDefault {
			sb.WriteString(` style="text-align: ` + string(b.Align) + `;"`)
		}
		sb.WriteString(">")
		if len(b.Runs) == 0 {
			sb.WriteString("<br>")
		}
		for _, r := range b.Runs {
			writeRun(&sb, r)
		}
		sb.WriteString("</" + tag + ">")
	}
	closeList()
	return sb.String()
}

func writeRun(sb *strings.Builder, r Run) {
	m := r.Marks
	var closers []string
	open := func(tag, attrs string) {
		sb.WriteString("<" + tag + attrs + ">")
		closers = append(closers, "</"+tag+">")
	}

	if m.Link != "" {
		open("a", ` href="`+html.EscapeString(m.Link)+`"`)
	}
	if r.IsImage() {
		sb.WriteString(`<img src="` + html.EscapeString(r.Image.Src) + `" alt="` + html.EscapeString(r.Image.Alt) + `">`)
		for i := len(closers) - 1; i >= 0; i-- {
			sb.WriteString(closers[i])
		}
		return
	}
	if m.Bold {
		open("strong", "")
	}
	if m.Italic {
		open("em", "")
	}
	if m.Underline {
		open("u", "")
	}
	if m.Strike {
		open("s", "")
	}
	var styles []string
	if m.Color != "" {
		styles = append(styles, "color: "+m.Color+";")
	}
	if m.FontSize > 0 && m.FontSize < len(fontSizeNames) {
		styles = append(styles, "font-size: "+fontSizeNames[m.FontSize]+";")
	}
	if len(styles) > 0 {
		open("span", ` style="`+strings.Join(styles, " ")+`"`)
	}

	sb.WriteString(textEscaper.Replace(r.Text))
	for i := len(closers) - 1; i >= 0; i-- {
		sb.WriteString(closers[i])
	}
}

// ParseHTML reads editor markup into a document. Unknown elements contribute
// their text and are listed by Document.Unsupported; unsupported attributes are
// dropped, as are links and images with script URLs.
func ParseHTML(markup string) (*Document, error) {
	ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(markup), ctx)
	if err != nil {
		return nil, err
	}

	p := &parser{doc: &Document{}}
	for _, n := range nodes {
		p.walk(n, Marks{}, Paragraph, AlignDefault)
	}
	p.flush()
	p.doc.ensureBlock()
	return p.doc, nil
}

type parser struct {
	doc *Document
	cur *Block
}

// transparentElements only carry styling the model does not keep; their text is all that matters.
var transparentElements = map[atom.Atom]bool{
	atom.Span: true, atom.Font: true, atom.Section: true, atom.Article: true, atom.Main: true,
	atom.Header: true, atom.Footer: true, atom.Code: true, atom.Small: true, atom.Mark: true,
	atom.Abbr: true, atom.Cite: true, atom.Sub: true, atom.Sup: true, atom.Kbd: true,
	atom.Samp: true, atom.Var: true, atom.Time: true, atom.Label: true,
}

func (p *parser) unsupported(name string) {
	for _, n := range p.doc.unsupported {
		if n == name {
			return
		}
	}
	p.doc.unsupported = append(p.doc.unsupported, name)
}

func (p *parser) image(img *Image, marks Marks, kind BlockKind, align Align) {
	if p.cur == nil {
		p.cur = &Block{Kind: kind, Align: align}
	}
	p.cur.Runs = append(p.cur.Runs, Run{Text: imageText, Marks: marks, Image: img})
}

// safeURL rejects URLs that would run script when followed or loaded.
func safeURL(u string) bool {
	u = strings.ToLower(strings.TrimSpace(u))
	if u == "" {
		return false
	}
	for _, scheme := range []string{"javascript:", "vbscript:", "data:text"} {
		if strings.HasPrefix(u, scheme) {
			return false
		}
	}
	return true
}

// flush closes the block being filled.
func (p *parser) flush() {
	if p.cur == nil {
		return
	}
	if n := len(p.cur.Runs); n > 0 {
		p.cur.Runs[n-1].Text = strings.TrimRight(p.cur.Runs[n-1].Text, " ")
	}
	p.cur.Runs = normalizeRuns(p.cur.Runs)
	p.doc.Blocks = append(p.doc.Blocks, *p.cur)
	p.cur = nil
}

func (p *parser) open(kind BlockKind, align Align) {
	p.flush()
	p.cur = &Block{Kind: kind, Align: align}
}

func (p *parser) text(s string, marks Marks, kind BlockKind, align Align) {
	s = collapseSpace(s)
	if p.cur == nil {
		if strings.TrimSpace(s) == "" {
			return // inter-block whitespace
		}
		p.cur = &Block{Kind: kind, Align: align}
	}
	if len(p.cur.Runs) == 0 {
		s = strings.TrimLeft(s, " ")
	}
	if s != "" {
		p.cur.Runs = append(p.cur.Runs, Run{Text: s, Marks: marks})
	}
}

func (p *parser) walk(n *html.Node, marks Marks, kind BlockKind, align Align) {
	switch n.Type {
	case html.TextNode:
		p.text(n.Data, marks, kind, align)
		return
	case html.ElementNode:
	default:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			p.walk(c, marks, kind, align)
		}
		return
	}

	styles := parseStyle(attr(n, "style"))
	if a, ok := styles["text-align"]; ok {
		switch Align(a) {
		case AlignLeft, AlignCenter, AlignRight, AlignJustify:
			align = Align(a)
		}
	}
	marks = applyStyleMarks(marks, styles)

	block := false
	switch n.DataAtom {
	case atom.P, atom.Div, atom.Pre:
		block = true
		if !kind.IsList() {
			kind = Paragraph
		}
	case atom.H1:
		block, kind = true, Heading1
	case atom.H2:
		block, kind = true, Heading2
	case atom.H3, atom.H4, atom.H5, atom.H6:
		block, kind = true, Heading3
	case atom.Blockquote:
		block, kind = true, Quote
	case atom.Ul:
		p.flush()
		kind = BulletItem
	case atom.Ol:
		p.flush()
		kind = OrderedItem
	case atom.Li:
		block = true
		if !kind.IsList() {
			kind = BulletItem
		}
	case atom.Br:
		if p.cur != nil && len(p.cur.Runs) > 0 {
			p.open(p.cur.Kind, p.cur.Align)
		}
		return
	case atom.Strong, atom.B:
		marks.Bold = true
	case atom.Em, atom.I:
		marks.Italic = true
	case atom.U:
		marks.Underline = true
	case atom.S, atom.Strike, atom.Del:
		marks.Strike = true
	case atom.Font:
		if c, ok := NormalizeColor(attr(n, "color")); ok {
			marks.Color = c
		}
		if size, err := strconv.Atoi(attr(n, "size")); err == nil && size >= 1 && size <= 7 {
			marks.FontSize = size
		}
	case atom.A:
		if href := strings.TrimSpace(attr(n, "href")); safeURL(href) {
			marks.Link = href
		}
	case atom.Img:
		if src := strings.TrimSpace(attr(n, "src")); safeURL(src) {
			p.image(&Image{Src: src, Alt: attr(n, "alt")}, marks, kind, align)
		}
		return
	case atom.Script, atom.Style:
		return
	default:
		if !transparentElements[n.DataAtom] {
			p.unsupported(n.Data)
		}
	}

	if block {
		p.open(kind, align)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.walk(c, marks, kind, align)
	}
	if block || n.DataAtom == atom.Ul || n.DataAtom == atom.Ol {
		p.flush()
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func parseStyle(style string) map[string]string {
	styles := make(map[string]string)
	for _, decl := range strings.Split(style, ";") {
		kv := strings.SplitN(decl, ":", 2)
		if len(kv) != 2 {
			continue
		}
		styles[strings.ToLower(strings.TrimSpace(kv[0]))] = strings.ToLower(strings.TrimSpace(kv[1]))
	}
	return styles
}

func applyStyleMarks(marks Marks, styles map[string]string) Marks {
	if c, ok := NormalizeColor(styles["color"]); ok {
		marks.Color = c
	}
	if fs := styles["font-size"]; fs != "" {
		for i, name := range fontSizeNames {
			if i > 0 && name == fs {
				marks.FontSize = i
			}
		}
	}
	switch styles["font-weight"] {
	case "bold", "bolder", "600", "700", "800", "900":
		marks.Bold = true
	}
	if styles["font-style"] == "italic" {
		marks.Italic = true
	}
	if deco := styles["text-decoration"] + " " + styles["text-decoration-line"]; deco != " " {
		if strings.Contains(deco, "underline") {
			marks.Underline = true
		}
		if strings.Contains(deco, "line-through") {
			marks.Strike = true
		}
	}
	return marks
}

// collapseSpace folds whitespace runs into one space, as a browser renders them.
func collapseSpace(s string) string {
	var sb strings.Builder
	space := false
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r', '\f':
			if !space {
				sb.WriteByte(' ')
			}
			space = true
		default:
			sb.WriteRune(r)
			space = false
		}
	}
	return sb.String()
}

// PlainText extracts the unformatted text of editor markup.
func PlainText(markup string) string {
	doc, err := ParseHTML(markup)
	if err != nil {
		return markup
	}
	return doc.Text()
}
