package document

import (
	"strconv"

	"github.com/pkg/errors"
)

// Apply runs cmd over sel. Inline commands over an empty selection change nothing;
// block commands always reach the blocks the selection touches.
func (d *Document) Apply(cmd Command, sel Selection) error {
	cmd, err := ParseCommand(string(cmd.Name), cmd.Arg)
	if err != nil {
		return err
	}
	d.ensureBlock()
	sel = d.Normalize(sel)

	switch cmd.Name {
	case CmdBold:
		d.toggleMark(sel, func(m Marks) bool { return m.Bold }, func(m *Marks, on bool) { m.Bold = on })
	case CmdItalic:
		d.toggleMark(sel, func(m Marks) bool { return m.Italic }, func(m *Marks, on bool) { m.Italic = on })
	case CmdUnderline:
		d.toggleMark(sel, func(m Marks) bool { return m.Underline }, func(m *Marks, on bool) { m.Underline = on })
	case CmdStrike:
		d.toggleMark(sel, func(m Marks) bool { return m.Strike }, func(m *Marks, on bool) { m.Strike = on })
	case CmdForeColor:
		d.mapMarks(sel, func(m *Marks) { m.Color = cmd.Arg })
	case CmdFontSize:
		size, _ := strconv.Atoi(cmd.Arg)
		d.mapMarks(sel, func(m *Marks) { m.FontSize = size })
	case CmdRemoveFormat:
		d.mapMarks(sel, func(m *Marks) { *m = Marks{Link: m.Link} })
	case CmdJustifyLeft:
		d.mapBlocks(sel, func(b *Block) { b.Align = AlignLeft })
	case CmdJustifyCenter:
		d.mapBlocks(sel, func(b *Block) { b.Align = AlignCenter })
	case CmdJustifyRight:
		d.mapBlocks(sel, func(b *Block) { b.Align = AlignRight })
	case CmdJustifyFull:
		d.mapBlocks(sel, func(b *Block) { b.Align = AlignJustify })
	case CmdBulletList:
		d.toggleKind(sel, BulletItem)
	case CmdOrderedList:
		d.toggleKind(sel, OrderedItem)
	case CmdFormatBlock:
		kind := blockFormats[cmd.Arg]
		d.mapBlocks(sel, func(b *Block) { b.Kind = kind })
	default:
		return errors.Wrapf(ErrUnknownCommand, "%q", cmd.Name)
	}
	return nil
}

// splitRuns cuts runs at rune offsets from and to.
func splitRuns(runs []Run, from, to int) (before, middle, after []Run) {
	pos := 0
	for _, r := range runs {
		text := []rune(r.Text)
		start, end := pos, pos+len(text)
		pos = end

		cut := func(a, b int) string {
			a, b = clampInt(a-start, 0, len(text)), clampInt(b-start, 0, len(text))
			return string(text[a:b])
		}
		if s := cut(start, from); s != "" {
			before = append(before, Run{Text: s, Marks: r.Marks, Image: r.Image})
		}
		if s := cut(from, to); s != "" {
			middle = append(middle, Run{Text: s, Marks: r.Marks, Image: r.Image})
		}
		if s := cut(to, end); s != "" {
			after = append(after, Run{Text: s, Marks: r.Marks, Image: r.Image})
		}
	}
	return before, middle, after
}

// eachSpan calls fn with the selected runs of every block the selection covers
// and stores what fn returns back into the block.
func (d *Document) eachSpan(sel Selection, fn func(middle []Run) []Run) {
	for i := sel.Start.Block; i <= sel.End.Block; i++ {
		b := &d.Blocks[i]
		from, to := sel.spanIn(i, b.Len())
		if from >= to {
			continue
		}
		before, middle, after := splitRuns(b.Runs, from, to)
		middle = fn(middle)
		runs := make([]Run, 0, len(before)+len(middle)+len(after))
		runs = append(runs, before...)
		runs = append(runs, middle...)
		runs = append(runs, after...)
		b.Runs = normalizeRuns(runs)
	}
}

func (d *Document) mapMarks(sel Selection, fn func(m *Marks)) {
	if sel.IsEmpty() {
		return
	}
	d.eachSpan(sel, func(middle []Run) []Run {
		for i := range middle {
			fn(&middle[i].Marks)
		}
		return middle
	})
}

// toggleMark removes the mark when every selected run carries it, otherwise sets it.
func (d *Document) toggleMark(sel Selection, has func(Marks) bool, set func(*Marks, bool)) {
	if sel.IsEmpty() {
		return
	}
	all := true
	d.eachSpan(sel, func(middle []Run) []Run {
		for _, r := range middle {
			if !has(r.Marks) {
				all = false
			}
		}
		return middle
	})
	d.mapMarks(sel, func(m *Marks) { set(m, !all) })
}

func (d *Document) mapBlocks(sel Selection, fn func(b *Block)) {
	for i := sel.Start.Block; i <= sel.End.Block; i++ {
		fn(&d.Blocks[i])
	}
}

// toggleKind turns the touched blocks into kind, or back into paragraphs when they all already are.
func (d *Document) toggleKind(sel Selection, kind BlockKind) {
	all := true
	d.mapBlocks(sel, func(b *Block) {
		if b.Kind != kind {
			all = false
		}
	})
	d.mapBlocks(sel, func(b *Block) {
		if all {
			b.Kind = Paragraph
		} else {
			b.Kind = kind
		}
	})
}
