// Package history is a linear undo/redo log of project snapshots.
package history

import "github.com/forPelevin/tlcut/internal/types"

const DefaultLimit = 50

// Log is a list of snapshots with a movable cursor. Cursor is -1 for an empty
// log and otherwise points at an existing entry.
type Log struct {
	entries []types.Snapshot
	cursor  int
	limit   int
}

// New returns an empty log retaining at most limit entries (DefaultLimit if limit <= 0).
func New(limit int) *Log {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Log{cursor: -1, limit: limit}
}

// Push drops every entry after the cursor, appends e and moves the cursor onto it.
// The oldest entry is evicted when the log grows past its limit.
func (l *Log) Push(e types.Snapshot) {
	l.Truncate()
	l.entries = append(l.entries, e.Clone())
	if len(l.entries) > l.limit {
		drop := len(l.entries) - l.limit
		l.entries = append([]types.Snapshot(nil), l.entries[drop:]...)
	}
	l.cursor = len(l.entries) - 1
}

// Truncate discards the redo branch without adding anything.
func (l *Log) Truncate() {
	l.entries = l.entries[:l.cursor+1]
}

// Undo moves the cursor back one entry and returns it.
func (l *Log) Undo() (types.Snapshot, bool) {
	if !l.CanUndo() {
		return types.Snapshot{}, false
	}
	l.cursor--
	return l.entries[l.cursor].Clone(), true
}

// Redo moves the cursor forward one entry and returns it.
func (l *Log) Redo() (types.Snapshot, bool) {
	if !l.CanRedo() {
		return types.Snapshot{}, false
	}
	l.cursor++
	return l.entries[l.cursor].Clone(), true
}

func (l *Log) CanUndo() bool { return l.cursor > 0 }

func (l *Log) CanRedo() bool { return l.cursor < len(l.entries)-1 }

func (l *Log) Len() int { return len(l.entries) }

func (l *Log) Cursor() int { return l.cursor }

func (l *Log) Limit() int { return l.limit }

// Entries returns copies of every retained entry, oldest first.
func (l *Log) Entries() []types.Snapshot {
	out := make([]types.Snapshot, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.Clone()
	}
	return out
}

// Restore rebuilds a log from persisted entries. An out-of-range cursor is
// clamped to the last entry and surplus entries are dropped from the front.
func Restore(entries []types.Snapshot, cursor, limit int) *Log {
	l := New(limit)
	for _, e := range entries {
		l.entries = append(l.entries, e.Clone())
	}
	if drop := len(l.entries) - l.limit; drop > 0 {
		l.entries = l.entries[drop:]
		cursor -= drop
	}
	switch {
	case len(l.entries) == 0:
		l.cursor = -1
	case cursor < 0:
		l.cursor = 0
	case cursor >= len(l.entries):
		l.cursor = len(l.entries) - 1
	default:
		l.cursor = cursor
	}
	return l
}
