package document

// Snapshot is one undo step: the model and the exact markup it was serialized to.
type Snapshot struct {
	Doc    *Document
	Markup string
}

// History is a bounded undo/redo stack of snapshots.
type History struct {
	limit int
	undo  []Snapshot
	redo  []Snapshot
}

func NewHistory(limit int) *History {
	if limit == 0 {
		limit = 100
	}
	return &History{limit: limit}
}

// Record pushes the state preceding a change and drops the redo stack.
func (h *History) Record(prev Snapshot) {
	if h.limit <= 0 {
		return
	}
	h.undo = append(h.undo, prev)
	if len(h.undo) > h.limit {
		h.undo = h.undo[len(h.undo)-h.limit:]
	}
	h.redo = nil
}

func (h *History) CanUndo() bool { return len(h.undo) > 0 }

func (h *History) CanRedo() bool { return len(h.redo) > 0 }

// Undo returns the state to restore, remembering cur for Redo.
func (h *History) Undo(cur Snapshot) (Snapshot, bool) {
	if len(h.undo) == 0 {
		return Snapshot{}, false
	}
	i := len(h.undo) - 1
	prev := h.undo[i]
	h.undo = h.undo[:i]
	h.redo = append(h.redo, cur)
	return prev, true
}

// Redo returns the state undone last, remembering cur for Undo.
func (h *History) Redo(cur Snapshot) (Snapshot, bool) {
	if len(h.redo) == 0 {
		return Snapshot{}, false
	}
	i := len(h.redo) - 1
	next := h.redo[i]
	h.redo = h.redo[:i]

	h.undo = append(h.undo, cur)
	if len(h.undo) > h.limit {
		h.undo = h.undo[len(h.undo)-h.limit:]
	}
	return next, true
}

// Reset forgets every step.
func (h *History) Reset() {
	h.undo, h.redo = nil, nil
}
