package depot

import (
	"fmt"
	"reflect"
	"sync"
)

// ComponentTypeID identifies a registered component type for the lifetime of
// the process. IDs are assigned in registration order and are not stable
// across runs; the string tag is the cross-run identity.
type ComponentTypeID uint32

// componentMeta is the registry's record for one component type: its
// identity, its field layout, and the factory for its storage columns. It is
// immutable after registration and doubles as the Component implementation.
type componentMeta struct {
	id        ComponentTypeID
	tag       string
	typ       reflect.Type
	fields    []fieldMeta
	newColumn func(meta *componentMeta) columnStore
}

type fieldMeta struct {
	name  string
	index int
}

var _ Component = &componentMeta{}

func (m *componentMeta) ID() ComponentTypeID { return m.id }
func (m *componentMeta) Tag() string         { return m.tag }
func (m *componentMeta) Type() reflect.Type  { return m.typ }

// metaOf unwraps any Component implementation back to its registry record.
// Wrapper types like AccessibleComponent carry the record behind the
// interface, so resolving by ID always lands on the same registration.
func metaOf(c Component) *componentMeta {
	if m, ok := c.(*componentMeta); ok {
		return m
	}
	m, err := mainRegistry.lookupID(c.ID())
	if err != nil {
		panic(fmt.Sprintf("component %q (id %d) is not registered", c.Tag(), c.ID()))
	}
	return m
}

// FieldNames reports a component's field names in declaration order, which is
// also the order of its values on the wire and across the scripting bridge.
func FieldNames(c Component) []string {
	m := metaOf(c)
	names := make([]string, len(m.fields))
	for i, f := range m.fields {
		names[i] = f.name
	}
	return names
}

// valuesOf reads one component value (addressed by rv) into Value form.
func (m *componentMeta) valuesOf(rv reflect.Value) ([]Value, error) {
	vals := make([]Value, len(m.fields))
	for i, f := range m.fields {
		v, err := fieldToValue(rv.Field(f.index))
		if err != nil {
			return nil, fmt.Errorf("component %s field %s: %w", m.tag, f.name, err)
		}
		vals[i] = v
	}
	return vals, nil
}

// setFrom writes vals into the component value addressed by rv. Trailing
// values beyond the known fields are ignored so newer files with extra
// fields still load.
func (m *componentMeta) setFrom(rv reflect.Value, vals []Value) error {
	if len(vals) < len(m.fields) {
		return fmt.Errorf("component %s expects %d values, got %d", m.tag, len(m.fields), len(vals))
	}
	for i, f := range m.fields {
		if err := fieldFromValue(rv.Field(f.index), vals[i]); err != nil {
			return fmt.Errorf("component %s field %s: %w", m.tag, f.name, err)
		}
	}
	return nil
}

type typeRegistry struct {
	mu     sync.RWMutex
	byType map[reflect.Type]*componentMeta
	byTag  map[string]*componentMeta
	metas  []*componentMeta
}

// mainRegistry is process-wide: component IDs must mean the same thing in
// every storage so that serialized files and queries agree.
var mainRegistry = &typeRegistry{
	byType: make(map[reflect.Type]*componentMeta),
	byTag:  make(map[string]*componentMeta),
}

// register is idempotent by Go type: registering the same type again returns
// the existing metadata. Conflicting registrations are programmer errors and
// panic rather than corrupting the registry.
func (r *typeRegistry) register(typ reflect.Type, tag string, newCol func(*componentMeta) columnStore) *componentMeta {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byType[typ]; ok {
		if existing.tag != tag {
			panic(fmt.Sprintf("component type %s already registered with tag %q, not %q",
				typ, existing.tag, tag))
		}
		return existing
	}
	if other, ok := r.byTag[tag]; ok {
		panic(fmt.Sprintf("component tag %q already used by type %s", tag, other.typ))
	}
	if typ.Kind() != reflect.Struct {
		panic(fmt.Sprintf("component type %s must be a struct", typ))
	}
	if err := checkFieldType(typ); err != nil {
		panic(fmt.Sprintf("component type %s: %v", typ, err))
	}

	fields := make([]fieldMeta, 0, typ.NumField())
	for i := 0; i < typ.NumField(); i++ {
		fields = append(fields, fieldMeta{name: typ.Field(i).Name, index: i})
	}

	meta := &componentMeta{
		id:        ComponentTypeID(len(r.metas)),
		tag:       tag,
		typ:       typ,
		fields:    fields,
		newColumn: newCol,
	}
	r.byType[typ] = meta
	r.byTag[tag] = meta
	r.metas = append(r.metas, meta)
	return meta
}

func (r *typeRegistry) lookupTag(tag string) (*componentMeta, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	meta, ok := r.byTag[tag]
	if !ok {
		return nil, UnknownTypeError{Tag: tag}
	}
	return meta, nil
}

func (r *typeRegistry) lookupID(id ComponentTypeID) (*componentMeta, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.metas) {
		return nil, UnknownTypeError{ID: id}
	}
	return r.metas[id], nil
}

// LookupTag resolves a component by its stable string tag. Scripted systems
// and deserialization name components this way.
func LookupTag(tag string) (Component, error) {
	return mainRegistry.lookupTag(tag)
}

// ComponentZeroValues returns the Value form of c's zero value, one entry per
// field. The scripting bridge uses it to fill fields a script omits.
func ComponentZeroValues(c Component) ([]Value, error) {
	m := metaOf(c)
	return m.valuesOf(reflect.New(m.typ).Elem())
}
