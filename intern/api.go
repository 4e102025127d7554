package intern

// Interner is the interning surface of a Table, for callers that want to
// depend on an interface. *Table implements it.
//
// Intern* always succeed on a live table; each returned Slice must be
// Released exactly once.
type Interner interface {
	Intern(b []byte) Slice
	InternOwned(b []byte) Slice
	InternString(s string) Slice
	InternSlice(s Slice) Slice

	// Hash returns the table's content hash (fixed function and seed).
	Hash(b []byte) uint32

	// Len returns the number of live entries across all shards.
	Len() int
}

var _ Interner = (*Table)(nil)
