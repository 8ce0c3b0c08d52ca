package document

// Pos points into the document by block index and rune offset within the block.
type Pos struct {
	Block  int `json:"block"`
	Offset int `json:"offset"`
}

// Selection is a half-open range [Start, End) in document order once normalized.
type Selection struct {
	Start Pos `json:"start"`
	End   Pos `json:"end"`
}

func ComparePos(a, b Pos) int {
	switch {
	case a.Block < b.Block:
		return -1
	case a.Block > b.Block:
		return 1
	case a.Offset < b.Offset:
		return -1
	case a.Offset > b.Offset:
		return 1
	}
	return 0
}

func (s Selection) IsEmpty() bool { return s.Start == s.End }

// All selects the whole document.
func (d *Document) All() Selection {
	d.ensureBlock()
	last := len(d.Blocks) - 1
	return Selection{End: Pos{Block: last, Offset: d.Blocks[last].Len()}}
}

// ClampPos clamps p into the document bounds.
func (d *Document) ClampPos(p Pos) Pos {
	d.ensureBlock()
	row := clampInt(p.Block, 0, len(d.Blocks)-1)
	return Pos{Block: row, Offset: clampInt(p.Offset, 0, d.Blocks[row].Len())}
}

// Normalize clamps both ends and orders them.
func (d *Document) Normalize(s Selection) Selection {
	s = Selection{Start: d.ClampPos(s.Start), End: d.ClampPos(s.End)}
	if ComparePos(s.Start, s.End) > 0 {
		s.Start, s.End = s.End, s.Start
	}
	return s
}

// spanIn returns the [from, to) rune range the selection covers inside block i.
func (s Selection) spanIn(i int, blockLen int) (from, to int) {
	from, to = 0, blockLen
	if i == s.Start.Block {
		from = s.Start.Offset
	}
	if i == s.End.Block {
		to = s.End.Offset
	}
	return from, to
}

func clampInt(v, min, max int) int {
	if max < min {
		return min
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
