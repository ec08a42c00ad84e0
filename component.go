package depot

import "reflect"

// AccessibleComponent extends a base Component with statically typed access
// to column data. The engine stores values type-erased; this is the boundary
// where callers get their concrete type back, failing fast (panicking on the
// type assertion) if the assumed type disagrees with the registered column.
type AccessibleComponent[T any] struct {
	Component
}

// GetFromCursor retrieves the component value for the entity at the cursor
// position. The pointer is valid only until the next structural mutation.
func (c AccessibleComponent[T]) GetFromCursor(cursor *Cursor) *T {
	col, ok := cursor.currentArchetype.columnFor(c.ID())
	if !ok {
		return nil
	}
	return col.(*column[T]).at(cursor.entityIndex - 1)
}

// GetFromCursorSafe reports whether the component exists in the archetype at
// the cursor position before retrieving it.
func (c AccessibleComponent[T]) GetFromCursorSafe(cursor *Cursor) (bool, *T) {
	if !c.CheckCursor(cursor) {
		return false, nil
	}
	return true, c.GetFromCursor(cursor)
}

// CheckCursor determines if the component exists in the archetype at the
// cursor position.
func (c AccessibleComponent[T]) CheckCursor(cursor *Cursor) bool {
	return cursor.currentArchetype.Contains(c)
}

// GetFromEntity retrieves the component value for the specified entity.
func (c AccessibleComponent[T]) GetFromEntity(sto Storage, e Entity) (*T, error) {
	s := sto.(*storage)
	m, err := s.dir.resolve(e)
	if err != nil {
		return nil, err
	}
	arch := s.archetypes.asSlice[m.archetype-1]
	col, ok := arch.columnFor(c.ID())
	if !ok {
		return nil, ComponentNotPresentError{Component: c.Component}
	}
	return col.(*column[T]).at(m.row), nil
}

// AddToEntity adds the component with an initial value in one operation.
func (c AccessibleComponent[T]) AddToEntity(sto Storage, e Entity, v T) error {
	vals, err := c.toValues(v)
	if err != nil {
		return err
	}
	return sto.(*storage).addComponent(e, c.Component, vals)
}

// EnqueueAddToEntity defers AddToEntity until the storage unlocks, capturing
// the value at enqueue time.
func (c AccessibleComponent[T]) EnqueueAddToEntity(sto Storage, e Entity, v T) error {
	s := sto.(*storage)
	if !s.locked {
		return c.AddToEntity(sto, e, v)
	}
	vals, err := c.toValues(v)
	if err != nil {
		return err
	}
	s.opQueue.enqueueComponentOp(opAddComponent, e, c.Component, vals)
	return nil
}

func (c AccessibleComponent[T]) toValues(v T) ([]Value, error) {
	return metaOf(c.Component).valuesOf(reflect.ValueOf(&v).Elem())
}
