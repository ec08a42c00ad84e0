package depot

import "reflect"

// columnStore is the type-erased face of one archetype column. The concrete
// column[T] keeps values in a densely packed typed slice; everything that
// walks columns generically (structural moves, the codec, the scripting
// bridge) goes through this interface.
type columnStore interface {
	meta() *componentMeta
	len() int
	appendZero()
	// appendFrom copies the value at row in src (a column of the same type)
	// onto the end of this column.
	appendFrom(src columnStore, row int)
	// swapRemove moves the last value into row and truncates by one. The
	// freed tail slot is zeroed so dropped values release what they hold.
	swapRemove(row int)
	values(row int) ([]Value, error)
	setValues(row int, vals []Value) error
	appendValues(vals []Value) error
}

type column[T any] struct {
	m    *componentMeta
	data []T
}

func newColumn[T any](m *componentMeta) columnStore {
	return &column[T]{m: m}
}

func (c *column[T]) meta() *componentMeta { return c.m }

func (c *column[T]) len() int { return len(c.data) }

func (c *column[T]) at(row int) *T { return &c.data[row] }

func (c *column[T]) appendZero() {
	var zero T
	c.data = append(c.data, zero)
}

func (c *column[T]) appendFrom(src columnStore, row int) {
	c.data = append(c.data, src.(*column[T]).data[row])
}

func (c *column[T]) swapRemove(row int) {
	last := len(c.data) - 1
	c.data[row] = c.data[last]
	var zero T
	c.data[last] = zero
	c.data = c.data[:last]
}

func (c *column[T]) values(row int) ([]Value, error) {
	return c.m.valuesOf(reflect.ValueOf(&c.data[row]).Elem())
}

func (c *column[T]) setValues(row int, vals []Value) error {
	return c.m.setFrom(reflect.ValueOf(&c.data[row]).Elem(), vals)
}

func (c *column[T]) appendValues(vals []Value) error {
	var v T
	if err := c.m.setFrom(reflect.ValueOf(&v).Elem(), vals); err != nil {
		return err
	}
	c.data = append(c.data, v)
	return nil
}
