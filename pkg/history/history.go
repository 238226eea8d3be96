// Package history implements the bounded linear undo/redo log shared by
// overlay and stroke edits.
//
// Callers apply the inverse or forward effect of a peeked action themselves
// and only then move the cursor with ConfirmUndo or ConfirmRedo, so the log
// never points past a state the scene has not reached.
package history

import (
	"slices"

	"k8s.io/klog/v2"
)

// DefaultLimit is the maximum number of retained entries
const DefaultLimit = 50

// History is the action log. cursor indexes the last applied entry (-1 when
// nothing can be undone).
type History struct {
	entries []Action
	cursor  int
	limit   int
}

// New creates a History holding at most DefaultLimit entries
func New() *History {
	return NewWithLimit(DefaultLimit)
}

// NewWithLimit creates a History with a custom cap
func NewWithLimit(limit int) *History {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &History{cursor: -1, limit: limit}
}

// Record discards everything after the cursor, appends action and evicts
// the oldest entry once the cap is exceeded.
func (h *History) Record(action Action) {
	if action == nil {
		return
	}
	h.entries = append(h.entries[:h.cursor+1], action)
	if len(h.entries) > h.limit {
		h.entries = slices.Delete(h.entries, 0, len(h.entries)-h.limit)
	}
	h.cursor = len(h.entries) - 1
	klog.V(2).Infof("history: recorded %s (%d/%d)", action.Type(), h.cursor+1, len(h.entries))
}

// PeekUndo returns the entry an undo would revert
func (h *History) PeekUndo() (Action, bool) {
	if h.cursor < 0 {
		return nil, false
	}
	return h.entries[h.cursor], true
}

// PeekRedo returns the entry a redo would reapply
func (h *History) PeekRedo() (Action, bool) {
	if h.cursor+1 >= len(h.entries) {
		return nil, false
	}
	return h.entries[h.cursor+1], true
}

// ConfirmUndo moves the cursor back after the undo effect was applied
func (h *History) ConfirmUndo() {
	if h.cursor >= 0 {
		h.cursor--
	}
}

// ConfirmRedo moves the cursor forward after the redo effect was applied
func (h *History) ConfirmRedo() {
	if h.cursor+1 < len(h.entries) {
		h.cursor++
	}
}

// CanUndo reports whether an entry is available to undo
func (h *History) CanUndo() bool {
	return h.cursor >= 0
}

// CanRedo reports whether an entry is available to redo
func (h *History) CanRedo() bool {
	return h.cursor+1 < len(h.entries)
}

// Len returns the number of retained entries
func (h *History) Len() int {
	return len(h.entries)
}

// Entries returns a copy of the log
func (h *History) Entries() []Action {
	return slices.Clone(h.entries)
}

// Clear drops all entries
func (h *History) Clear() {
	h.entries = nil
	h.cursor = -1
}
