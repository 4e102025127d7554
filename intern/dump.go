package intern

import (
	"encoding/hex"
	"strings"
)

// Dump renders b for diagnostics as space-separated hex bytes followed by
// the quoted ASCII view (non-printable bytes shown as '.'), e.g.
//
//	61 62 00 'ab.'
//
// An empty buffer renders as "''".
func Dump(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b)*4 + 2)
	for i := range b {
		sb.WriteString(hex.EncodeToString(b[i : i+1]))
		sb.WriteByte(' ')
	}
	sb.WriteByte('\'')
	for _, c := range b {
		if c >= 0x20 && c < 0x7f {
			sb.WriteByte(c)
		} else {
			sb.WriteByte('.')
		}
	}
	sb.WriteByte('\'')
	return sb.String()
}
