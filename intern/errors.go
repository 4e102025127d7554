package intern

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrClosed is returned by a second Shutdown and is the panic value of
	// Intern calls made after Shutdown.
	ErrClosed = errors.New("intern: table is shut down")

	// ErrCorrupt marks an invariant violation (an entry missing from its
	// chain, a reference count below zero). It is always raised via panic.
	ErrCorrupt = errors.New("intern: table corrupted")

	// ErrLeaked matches any *LeakError via errors.Is.
	ErrLeaked = errors.New("intern: entries leaked")
)

// Leak describes one entry that was still referenced at Shutdown.
type Leak struct {
	Shard int
	Hash  uint32
	Refs  int32
	Len   int
	Dump  string // hex + ASCII rendering of the content, see Dump
}

// LeakError lists every entry found alive at Shutdown.
type LeakError struct {
	Leaks []Leak
}

func (e *LeakError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "intern: %d entries leaked", len(e.Leaks))
	for i, l := range e.Leaks {
		if i == 3 {
			fmt.Fprintf(&b, "; ... %d more", len(e.Leaks)-i)
			break
		}
		fmt.Fprintf(&b, "; shard %d refs=%d %s", l.Shard, l.Refs, l.Dump)
	}
	return b.String()
}

func (e *LeakError) Is(target error) bool { return target == ErrLeaked }

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrCorrupt}, args...)...)
}
