package bt

import (
	"sort"
	"time"
)

// Debouncer tracks, per path, the instant after which a pending change is
// considered settled. Every touch pushes that instant back by the window, so
// a path fires only once it has been quiet for a full window.
//
// A Debouncer is owned by a single loop and is not safe for concurrent use.
type Debouncer struct {
	window  time.Duration
	pending map[string]time.Time
}

// NewDebouncer creates a Debouncer with the given quiet window.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window:  window,
		pending: make(map[string]time.Time),
	}
}

// Touch records a change to path at now, replacing any earlier deadline.
func (d *Debouncer) Touch(path string, now time.Time) {
	d.pending[path] = now.Add(d.window)
}

// Due removes and returns every path whose deadline is at or before now,
// in lexical order.
func (d *Debouncer) Due(now time.Time) []string {
	var due []string
	for path, deadline := range d.pending {
		if !deadline.After(now) {
			due = append(due, path)
		}
	}
	for _, path := range due {
		delete(d.pending, path)
	}
	sort.Strings(due)
	return due
}

// Pending returns the number of paths waiting to settle.
func (d *Debouncer) Pending() int {
	return len(d.pending)
}

// IsPending reports whether path has an outstanding deadline.
func (d *Debouncer) IsPending(path string) bool {
	_, ok := d.pending[path]
	return ok
}
