package testutil

import (
	"strings"
	"sync"

	"autobackup/internal/bt"
)

// MemoryActivityLog collects activity messages in memory. Safe for concurrent use.
type MemoryActivityLog struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func NewMemoryActivityLog() *MemoryActivityLog {
	return &MemoryActivityLog{}
}

func (l *MemoryActivityLog) Record(message string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.messages = append(l.messages, message)
	return nil
}

// FailWith makes every later Record call return err.
func (l *MemoryActivityLog) FailWith(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.err = err
}

// Messages returns a copy of every recorded message in order.
func (l *MemoryActivityLog) Messages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.messages...)
}

// WithPrefix returns the recorded messages that start with prefix.
func (l *MemoryActivityLog) WithPrefix(prefix string) []string {
	var out []string
	for _, m := range l.Messages() {
		if strings.HasPrefix(m, prefix) {
			out = append(out, m)
		}
	}
	return out
}

var _ bt.ActivityLog = (*MemoryActivityLog)(nil)
