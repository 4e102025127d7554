package intern

import (
	"bytes"
	"fmt"
)

// Kind says how a Slice's bytes are backed.
type Kind uint8

const (
	// KindInline is a small private copy with no reference counting.
	// The zero Slice is an empty inline slice.
	KindInline Kind = iota
	// KindStatic points at process-lifetime content (Options.Static or
	// StaticSlice). Never refcounted.
	KindStatic
	// KindInterned is a counted reference to a table entry.
	KindInterned
)

// InlineCap is the largest content InlineSlice accepts.
const InlineCap = 23

func (k Kind) String() string {
	switch k {
	case KindInline:
		return "inline"
	case KindStatic:
		return "static"
	case KindInterned:
		return "interned"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Slice is an immutable byte buffer. Its Kind is fixed when the Slice is
// built and never inferred later.
//
// Interned slices are handles: every one obtained from Intern* or Ref must
// be Released exactly once. Release is a no-op for the other kinds, so
// callers can treat all Slices alike.
type Slice struct {
	kind Kind
	b    []byte // inline and static content
	e    *entry // interned content
}

// StaticSlice wraps b as static content. b must stay unmodified for the
// life of the process.
func StaticSlice(b []byte) Slice { return Slice{kind: KindStatic, b: b} }

// InlineSlice copies b into a private inline slice. It panics if b is longer
// than InlineCap.
func InlineSlice(b []byte) Slice {
	if len(b) > InlineCap {
		panic(fmt.Sprintf("intern: inline slice of %d bytes exceeds %d", len(b), InlineCap))
	}
	if len(b) == 0 {
		return Slice{}
	}
	return Slice{kind: KindInline, b: append([]byte(nil), b...)}
}

// Kind returns how the slice is backed.
func (s Slice) Kind() Kind { return s.kind }

// Bytes returns the content. The result must not be modified.
func (s Slice) Bytes() []byte {
	if s.kind == KindInterned {
		return s.e.data
	}
	return s.b
}

func (s Slice) String() string { return string(s.Bytes()) }

// Len returns the content length.
func (s Slice) Len() int { return len(s.Bytes()) }

// Ref returns another handle to the same content. For interned slices it
// adds a reference that must be Released separately.
func (s Slice) Ref() Slice {
	if s.kind == KindInterned {
		s.e.ref()
	}
	return s
}

// Release drops the reference held by an interned slice. Dropping the last
// one removes the entry from its table. Releasing the same reference twice
// corrupts the count and panics once it goes negative.
func (s Slice) Release() {
	if s.kind == KindInterned {
		s.e.unref()
	}
}

// Refs returns the current reference count of an interned slice, or 0 for
// unrefcounted kinds. Only meaningful for diagnostics.
func (s Slice) Refs() int32 {
	if s.kind == KindInterned {
		return s.e.refs.Load()
	}
	return 0
}

// Equal reports whether both slices hold the same bytes. Two interned
// slices from the same table are equal only if they share the entry, so
// the comparison is a pointer check.
func (s Slice) Equal(o Slice) bool {
	if s.kind == KindInterned && o.kind == KindInterned && s.e.sh.tab == o.e.sh.tab {
		return s.e == o.e
	}
	return bytes.Equal(s.Bytes(), o.Bytes())
}

// Same reports whether both slices are backed by the same interned entry.
func (s Slice) Same(o Slice) bool {
	return s.kind == KindInterned && o.kind == KindInterned && s.e == o.e
}
