package depot

import (
	"fmt"

	"go.uber.org/zap"
)

type SystemKind int

const (
	SystemKindNone SystemKind = iota
	SystemKindNative
	SystemKindScripted
)

func (k SystemKind) String() string {
	switch k {
	case SystemKindNative:
		return "native"
	case SystemKindScripted:
		return "scripted"
	}
	return "none"
}

// SystemContext is what a system callback sees for one matched entity: the
// handle, typed row access via the cursor, and mutation requests that are
// queued until the enclosing iteration finishes.
type SystemContext struct {
	sto    *storage
	cursor *Cursor
	entity Entity
}

func (c *SystemContext) Entity() Entity {
	return c.entity
}

// Cursor exposes the live cursor position for typed access through
// AccessibleComponent.GetFromCursor.
func (c *SystemContext) Cursor() *Cursor {
	return c.cursor
}

func (c *SystemContext) Has(comp Component) bool {
	return c.cursor.currentArchetype.Contains(comp)
}

// Values marshals the entity's component into Value form, the same path the
// codec uses. Scripted callers never see raw memory layout.
func (c *SystemContext) Values(comp Component) ([]Value, error) {
	col, ok := c.cursor.currentArchetype.columnFor(comp.ID())
	if !ok {
		return nil, ComponentNotPresentError{Component: comp}
	}
	return col.values(c.cursor.entityIndex - 1)
}

// SetValues queues a value write for this entity, applied after iteration.
func (c *SystemContext) SetValues(comp Component, vals []Value) error {
	m := metaOf(comp)
	if len(vals) < len(m.fields) {
		return fmt.Errorf("component %s expects %d values, got %d", m.tag, len(m.fields), len(vals))
	}
	c.sto.opQueue.enqueueComponentOp(opSetValues, c.entity, comp, vals)
	return nil
}

// Despawn queues destruction of this entity.
func (c *SystemContext) Despawn() {
	c.sto.opQueue.enqueueDestroy([]Entity{c.entity})
}

// Add queues adding comp to this entity with the given values (nil for zero).
func (c *SystemContext) Add(comp Component, vals []Value) error {
	if vals != nil {
		m := metaOf(comp)
		if len(vals) < len(m.fields) {
			return fmt.Errorf("component %s expects %d values, got %d", m.tag, len(m.fields), len(vals))
		}
	}
	c.sto.opQueue.enqueueComponentOp(opAddComponent, c.entity, comp, vals)
	return nil
}

// Remove queues removing comp from this entity.
func (c *SystemContext) Remove(comp Component) error {
	c.sto.opQueue.enqueueComponentOp(opRemoveComponent, c.entity, comp, nil)
	return nil
}

// Spawn queues creation of one new entity carrying the given components and
// matching value sets.
func (c *SystemContext) Spawn(comps []Component, vals [][]Value) error {
	if vals != nil && len(vals) != len(comps) {
		return fmt.Errorf("spawn needs one value set per component: got %d, want %d", len(vals), len(comps))
	}
	c.sto.opQueue.enqueueCreate(1, comps, vals)
	return nil
}

// NativeSystem adapts a Go callback into a System.
type NativeSystem struct {
	name     string
	required []Component
	excluded []Component
	fn       func(*SystemContext) error
}

var _ System = &NativeSystem{}

func NewNativeSystem(name string, required, excluded []Component, fn func(*SystemContext) error) *NativeSystem {
	return &NativeSystem{name: name, required: required, excluded: excluded, fn: fn}
}

func (s *NativeSystem) Name() string          { return s.name }
func (s *NativeSystem) Required() []Component { return s.required }
func (s *NativeSystem) Excluded() []Component { return s.excluded }
func (s *NativeSystem) Kind() SystemKind      { return SystemKindNative }
func (s *NativeSystem) Process(ctx *SystemContext) error {
	return s.fn(ctx)
}

// Invoke runs one system over every matched entity. The storage is locked
// for the whole run, so structural mutations requested by callbacks are
// queued and applied in request order when the run ends. A failing callback
// is reported per entity and does not stop the remaining invocations; the
// returned slice carries those failures.
func Invoke(sto Storage, sys System) ([]ScriptError, error) {
	s := sto.(*storage)
	node, err := newSignatureQuery(sys.Required(), sys.Excluded())
	if err != nil {
		return nil, err
	}
	if s.locked {
		return nil, LockedStorageError{}
	}

	s.Lock()
	cursor := newCursor(node, sto)
	var failures []ScriptError
	for cursor.Next() {
		ctx := &SystemContext{
			sto:    s,
			cursor: cursor,
			entity: cursor.CurrentEntity(),
		}
		if err := invokeOne(sys, ctx); err != nil {
			fail := ScriptError{Entity: ctx.entity, Err: err}
			failures = append(failures, fail)
			s.log.Error("system callback failed",
				zap.Uint32("entity", ctx.entity.ID),
				zap.Uint32("generation", ctx.entity.Gen),
				zap.Error(err))
		}
	}
	if err := s.Unlock(); err != nil {
		return failures, err
	}
	return failures, nil
}

// invokeOne isolates a single callback invocation, converting panics into
// errors so one misbehaving callback cannot abort the batch.
func invokeOne(sys System, ctx *SystemContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("callback panicked: %v", r)
		}
	}()
	return sys.Process(ctx)
}

// SystemRegistry holds named systems, native or scripted, behind one
// interface.
type SystemRegistry struct {
	systems map[string]System
}

func NewSystemRegistry() *SystemRegistry {
	return &SystemRegistry{systems: make(map[string]System)}
}

// Register stores sys under name, replacing any previous registration, and
// reports what kind of system was replaced.
func (r *SystemRegistry) Register(name string, sys System) SystemKind {
	prev := SystemKindNone
	if old, ok := r.systems[name]; ok {
		prev = old.Kind()
	}
	r.systems[name] = sys
	return prev
}

func (r *SystemRegistry) Remove(name string) SystemKind {
	prev := SystemKindNone
	if old, ok := r.systems[name]; ok {
		prev = old.Kind()
	}
	delete(r.systems, name)
	return prev
}

func (r *SystemRegistry) Kind(name string) SystemKind {
	sys, ok := r.systems[name]
	if !ok {
		return SystemKindNone
	}
	return sys.Kind()
}

// Run invokes the named system; running an unregistered name is a no-op,
// matching registry semantics where removal and replacement are routine.
func (r *SystemRegistry) Run(sto Storage, name string) ([]ScriptError, error) {
	sys, ok := r.systems[name]
	if !ok {
		return nil, nil
	}
	return Invoke(sto, sys)
}
