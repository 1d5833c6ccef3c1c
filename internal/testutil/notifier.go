package testutil

import "autobackup/internal/bt"

// StubNotifier is a bt.Notifier whose channels are fed by the test.
type StubNotifier struct {
	events chan string
	errors chan error
}

// NewStubNotifier creates a StubNotifier with roomy buffers so tests can
// queue events before the consumer runs.
func NewStubNotifier() *StubNotifier {
	return &StubNotifier{
		events: make(chan string, 256),
		errors: make(chan error, 16),
	}
}

func (n *StubNotifier) Events() <-chan string { return n.events }

func (n *StubNotifier) Errors() <-chan error { return n.errors }

// Emit queues a change notification for path.
func (n *StubNotifier) Emit(path string) {
	n.events <- path
}

// Fail queues a watch error.
func (n *StubNotifier) Fail(err error) {
	n.errors <- err
}

// Close closes the event stream.
func (n *StubNotifier) Close() {
	close(n.events)
}

var _ bt.Notifier = (*StubNotifier)(nil)
