// Package queue implements the ordered worklist of objects waiting for a run.
package queue

import (
	"fmt"
	"strings"
)

// Item references a source mesh object by its stable identifier. The name is
// kept for display and for lookup when the identifier is unknown.
type Item struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// Action is a queue editing command.
type Action int

// Action constants.
const (
	ActionAdd Action = iota
	ActionRemove
	ActionUp
	ActionDown
)

var actionNames = map[Action]string{
	ActionAdd:    "add",
	ActionRemove: "remove",
	ActionUp:     "up",
	ActionDown:   "down",
}

func (a Action) String() string {
	if s, ok := actionNames[a]; ok {
		return s
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// ParseAction parses an action name (case-insensitive).
func ParseAction(s string) (Action, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for a, name := range actionNames {
		if name == s {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown queue action %q", s)
}

// State is the persisted form of a queue.
type State struct {
	Items []Item `yaml:"items"`
	Index int    `yaml:"index"`
}

// Queue is an ordered list of items with a tracked current index.
// The index satisfies 0 <= index < Len(), or is -1 when the queue is empty.
// Not safe for concurrent use.
type Queue struct {
	items []Item
	index int
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{index: -1}
}

// FromState restores a queue, clamping a stale index into bounds.
func FromState(s State) *Queue {
	q := &Queue{items: append([]Item(nil), s.Items...), index: s.Index}
	q.clampIndex()
	return q
}

// State returns a copy of the queue for persistence.
func (q *Queue) State() State {
	return State{Items: q.Items(), Index: q.index}
}

// Len returns the number of queued items.
func (q *Queue) Len() int {
	return len(q.items)
}

// Index returns the current index, or -1 when the queue is empty.
func (q *Queue) Index() int {
	return q.index
}

// Items returns a copy of the queued items in order.
func (q *Queue) Items() []Item {
	return append([]Item(nil), q.items...)
}

// Current returns the item at the current index.
func (q *Queue) Current() (Item, bool) {
	if q.index < 0 || q.index >= len(q.items) {
		return Item{}, false
	}
	return q.items[q.index], true
}

// Select moves the current index to i. Out-of-range values are ignored.
func (q *Queue) Select(i int) bool {
	if i < 0 || i >= len(q.items) {
		return false
	}
	q.index = i
	return true
}

// Find returns the position of the first item with the given ID, or -1.
func (q *Queue) Find(id string) int {
	for i, it := range q.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// Add appends an item and makes it current.
func (q *Queue) Add(item Item) {
	q.items = append(q.items, item)
	q.index = len(q.items) - 1
}

// Remove deletes the current item. The index moves to the previous item,
// staying at 0 when the first item was removed. No-op when the index is out
// of bounds.
func (q *Queue) Remove() bool {
	if q.index < 0 || q.index >= len(q.items) {
		return false
	}
	q.items = append(q.items[:q.index], q.items[q.index+1:]...)
	if q.index > 0 {
		q.index--
	}
	q.clampIndex()
	return true
}

// MoveUp swaps the current item with the one before it.
func (q *Queue) MoveUp() bool {
	if q.index < 1 || q.index >= len(q.items) {
		return false
	}
	q.items[q.index-1], q.items[q.index] = q.items[q.index], q.items[q.index-1]
	q.index--
	return true
}

// MoveDown swaps the current item with the one after it.
func (q *Queue) MoveDown() bool {
	if q.index < 0 || q.index >= len(q.items)-1 {
		return false
	}
	q.items[q.index], q.items[q.index+1] = q.items[q.index+1], q.items[q.index]
	q.index++
	return true
}

// Replace swaps the contents for items and selects the first one.
func (q *Queue) Replace(items []Item) {
	q.items = append([]Item(nil), items...)
	q.index = 0
	q.clampIndex()
}

// Clear removes every item.
func (q *Queue) Clear() {
	q.items = nil
	q.index = -1
}

func (q *Queue) clampIndex() {
	switch {
	case len(q.items) == 0:
		q.index = -1
	case q.index < 0:
		q.index = 0
	case q.index >= len(q.items):
		q.index = len(q.items) - 1
	}
}
