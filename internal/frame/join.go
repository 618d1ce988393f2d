package frame

import (
	"fmt"
	"strings"

	"github.com/zeebo/xxh3"
)

// rowKey builds a stable composite key for the named columns of one row.
// Cells are rendered with CellString and separated by an unlikely byte, then
// hashed; hashing keeps the join maps compact when key columns are wide.
func rowKey(f *Frame, on []string, row int) uint64 {
	var b strings.Builder
	for i, n := range on {
		if i > 0 {
			b.WriteByte('\x1f')
		}
		b.WriteString(CellString(f.cols[n][row]))
	}
	return xxh3.HashString(b.String())
}

// LeftJoin joins right onto left by the named key columns. Every left row
// appears exactly once in the output; when a key has no match on the right,
// the right-side cells are nil. When a key matches several right rows, the
// first one wins (the engine joins against de-duplicated lookup tables, so
// multiplicity is a caller bug, not a fan-out feature).
//
// Non-key columns present on both sides are disambiguated: the left copy is
// renamed name+leftSuffix and the right copy name+rightSuffix, mirroring the
// spatial-join convention the geocoder relies on.
func LeftJoin(left, right *Frame, on []string, leftSuffix, rightSuffix string) (*Frame, error) {
	for _, n := range on {
		if !left.Has(n) {
			return nil, fmt.Errorf("frame: join: left side missing key column %q", n)
		}
		if !right.Has(n) {
			return nil, fmt.Errorf("frame: join: right side missing key column %q", n)
		}
	}

	keyed := make(map[string]bool, len(on))
	for _, n := range on {
		keyed[n] = true
	}

	overlap := map[string]bool{}
	for _, n := range right.order {
		if !keyed[n] && left.Has(n) {
			overlap[n] = true
		}
	}

	// First match wins.
	lookup := make(map[uint64]int, right.rows)
	for i := 0; i < right.rows; i++ {
		k := rowKey(right, on, i)
		if _, ok := lookup[k]; !ok {
			lookup[k] = i
		}
	}

	out := New(left.rows)
	for _, n := range left.order {
		name := n
		if overlap[n] {
			name = n + leftSuffix
		}
		col := make([]any, left.rows)
		copy(col, left.cols[n])
		if err := out.Set(name, col); err != nil {
			return nil, err
		}
	}
	for _, n := range right.order {
		if keyed[n] {
			continue
		}
		name := n
		if overlap[n] {
			name = n + rightSuffix
		}
		col := make([]any, left.rows)
		src := right.cols[n]
		for i := 0; i < left.rows; i++ {
			if j, ok := lookup[rowKey(left, on, i)]; ok {
				col[i] = src[j]
			}
		}
		if err := out.Set(name, col); err != nil {
			return nil, err
		}
	}
	return out, nil
}
