package normalize

import "sort"

// Ledger maps each new column name to the ordered source columns it
// replaces. It is returned to the caller so the annotation tooling can keep
// its references current; the engine never persists it.
type Ledger map[string][]string

// Record notes that newName replaces the given source columns.
func (l Ledger) Record(newName string, sources ...string) {
	l[newName] = append([]string(nil), sources...)
}

// Merge copies every entry of other into l.
func (l Ledger) Merge(other Ledger) {
	for k, v := range other {
		l[k] = v
	}
}

// Audit removes rename pairs that cancel out. A column can be suffixed out
// of the way early and have its original name re-occupied later, leaving
// both {A: [B]} and {B: [A]} in the ledger; reporting that pair would tell
// the caller to rename a column back to itself, so both entries are
// dropped. Returns l for chaining.
func (l Ledger) Audit() Ledger {
	var remove []string
	for k, v := range l {
		if len(v) != 1 {
			continue
		}
		back, ok := l[v[0]]
		if ok && len(back) == 1 && back[0] == k {
			remove = append(remove, k, v[0])
		}
	}
	sort.Strings(remove)
	for _, k := range remove {
		delete(l, k)
	}
	return l
}
