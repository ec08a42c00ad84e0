package depot

import (
	"iter"
	"sort"

	"github.com/TheBitDrifter/mask"
)

type ArchetypeID uint32

// archetype stores all entities sharing one exact component signature: one
// densely packed column per component type, index-aligned with a row-to-handle
// back-mapping. Rows stay dense; removal swaps the last row in.
type archetype struct {
	id       ArchetypeID
	mask     mask.Mask
	columns  []columnStore // canonical signature order
	colByID  map[ComponentTypeID]int
	entities []Entity
}

var _ Archetype = &archetype{}

func newArchetype(id ArchetypeID, components ...Component) *archetype {
	metas := make([]*componentMeta, len(components))
	for i, c := range components {
		metas[i] = metaOf(c)
	}
	// Canonical signature order is ascending ComponentTypeID.
	sort.Slice(metas, func(i, j int) bool { return metas[i].id < metas[j].id })

	a := &archetype{
		id:      id,
		colByID: make(map[ComponentTypeID]int, len(metas)),
	}
	for i, m := range metas {
		a.mask.Mark(uint32(m.id))
		a.columns = append(a.columns, m.newColumn(m))
		a.colByID[m.id] = i
	}
	return a
}

func (a *archetype) ID() ArchetypeID { return a.id }

func (a *archetype) Len() int { return len(a.entities) }

func (a *archetype) Signature() []ComponentTypeID {
	sig := make([]ComponentTypeID, len(a.columns))
	for i, col := range a.columns {
		sig[i] = col.meta().id
	}
	return sig
}

func (a *archetype) Components() iter.Seq[Component] {
	return func(yield func(Component) bool) {
		for _, col := range a.columns {
			if !yield(col.meta()) {
				return
			}
		}
	}
}

func (a *archetype) Contains(c Component) bool {
	_, ok := a.colByID[c.ID()]
	return ok
}

func (a *archetype) EntityAt(row int) Entity {
	return a.entities[row]
}

func (a *archetype) columnFor(id ComponentTypeID) (columnStore, bool) {
	i, ok := a.colByID[id]
	if !ok {
		return nil, false
	}
	return a.columns[i], true
}

// insertZeroRow appends one zero value per column plus the back-mapping
// entry, returning the new row index.
func (a *archetype) insertZeroRow(e Entity) int {
	for _, col := range a.columns {
		col.appendZero()
	}
	a.entities = append(a.entities, e)
	return len(a.entities) - 1
}

// insertRow appends one decoded value set per column. vals must hold exactly
// one entry per column in signature order.
func (a *archetype) insertRow(e Entity, vals [][]Value) (int, error) {
	if len(vals) != len(a.columns) {
		return 0, SignatureMismatchError{Archetype: a.id, Got: len(vals), Want: len(a.columns)}
	}
	for i, col := range a.columns {
		if err := col.appendValues(vals[i]); err != nil {
			// Roll back the columns already appended so lengths stay equal.
			for j := 0; j < i; j++ {
				a.columns[j].swapRemove(a.columns[j].len() - 1)
			}
			return 0, err
		}
	}
	a.entities = append(a.entities, e)
	return len(a.entities) - 1, nil
}

// removeRow swaps the last row into row and truncates. It returns the handle
// of the entity that physically moved into row, if any; the caller owns
// updating that entity's directory entry. Row indices held by anyone else are
// invalid after this call.
func (a *archetype) removeRow(row int) (moved Entity, didMove bool) {
	last := len(a.entities) - 1
	for _, col := range a.columns {
		col.swapRemove(row)
	}
	if row != last {
		moved = a.entities[last]
		didMove = true
		a.entities[row] = moved
	}
	a.entities = a.entities[:last]
	return moved, didMove
}
