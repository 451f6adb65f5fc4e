package checkpoint

import "sync/atomic"

// CursorCell holds the most recent durable cursor. The crawl loop advances it
// after each flushed page; the interrupt watcher reads it when saving.
type CursorCell struct {
	v atomic.Pointer[string]
}

// NewCursorCell creates a cell holding the initial cursor
func NewCursorCell(initial *string) *CursorCell {
	c := &CursorCell{}
	c.Set(initial)
	return c
}

// Get returns the current cursor, nil meaning "from the beginning"
func (c *CursorCell) Get() *string {
	return c.v.Load()
}

// Set stores a copy of cursor
func (c *CursorCell) Set(cursor *string) {
	if cursor == nil {
		c.v.Store(nil)
		return
	}
	v := *cursor
	c.v.Store(&v)
}
