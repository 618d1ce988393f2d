package normalize

import (
	"geonorm/internal/frame"
	"geonorm/internal/schema"
)

// CollisionSuffix is appended to source columns whose names collide with a
// reserved output column.
const CollisionSuffix = "_non_primary"

// resolveCollisions renames source columns that collide with reserved
// output names, so a secondary "country" column cannot shadow the canonical
// country slot the geocoder fills later. Affected columns are every
// non-primary geo or date annotation and every feature annotation that
// qualifies another column (plain features never surface under their own
// name, so their collisions are harmless).
//
// The table and the mapper are updated in place: annotation names, any
// qualifies references, and any associated_columns references all follow
// the rename. Returns the partial ledger of applied renames. Running it a
// second time is a no-op, since suffixed names no longer collide.
func resolveCollisions(f *frame.Frame, m *schema.Mapper, reserved []string) Ledger {
	isReserved := make(map[string]bool, len(reserved))
	for _, r := range reserved {
		isReserved[r] = true
	}

	collides := map[string]bool{}
	for _, a := range m.Geo {
		if !a.Primary && isReserved[a.Name] {
			collides[a.Name] = true
		}
	}
	for _, a := range m.Date {
		if !a.Primary && isReserved[a.Name] {
			collides[a.Name] = true
		}
	}
	for _, a := range m.Feature {
		if len(a.Qualifies) > 0 && isReserved[a.Name] {
			collides[a.Name] = true
		}
	}
	if len(collides) == 0 {
		return Ledger{}
	}

	ledger := Ledger{}
	for col := range collides {
		if f.Has(col) {
			_ = f.Rename(col, col+CollisionSuffix)
		}
		ledger.Record(col+CollisionSuffix, col)
	}

	fixRefs := func(refs []string) {
		for i, r := range refs {
			if collides[r] {
				refs[i] = r + CollisionSuffix
			}
		}
	}
	for i := range m.Geo {
		a := &m.Geo[i]
		if collides[a.Name] {
			a.Name += CollisionSuffix
		} else {
			fixRefs(a.Qualifies)
		}
	}
	for i := range m.Date {
		a := &m.Date[i]
		switch {
		case collides[a.Name]:
			a.Name += CollisionSuffix
		case len(a.Qualifies) > 0:
			fixRefs(a.Qualifies)
		default:
			for role, col := range a.AssociatedColumns {
				if collides[col] {
					a.AssociatedColumns[role] = col + CollisionSuffix
				}
			}
		}
	}
	for i := range m.Feature {
		a := &m.Feature[i]
		if collides[a.Name] {
			a.Name += CollisionSuffix
		} else {
			fixRefs(a.Qualifies)
		}
	}
	return ledger
}
