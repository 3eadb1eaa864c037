package pipeline

import "sync/atomic"

// TerminationCoordinator holds the one-way high-confidence-seen flag
// shared between the Matching Batcher (writer) and the Quality Gate
// (reader). A single atomic word gives every reader a consistent view
// of the false→true transition without a lock.
type TerminationCoordinator struct {
	flag atomic.Bool
}

// Seen reports whether a high-confidence match has been observed.
func (t *TerminationCoordinator) Seen() bool {
	return t.flag.Load()
}

// Set transitions the flag to true. Calling it more than once, or from
// multiple goroutines concurrently, is safe and has no further effect
// once true.
func (t *TerminationCoordinator) Set() {
	t.flag.Store(true)
}
