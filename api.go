package depot

import (
	"iter"
	"reflect"
)

// Storage owns one entity population: its archetypes, its entity directory,
// and its global component. All structural operations go through it.
type Storage interface {
	NewEntities(int, ...Component) ([]Entity, error)
	EnqueueNewEntities(int, ...Component) error
	DestroyEntities(...Entity) error
	EnqueueDestroyEntities(...Entity) error

	AddComponent(Entity, Component) error
	RemoveComponent(Entity, Component) error
	EnqueueAddComponent(Entity, Component) error
	EnqueueRemoveComponent(Entity, Component) error

	// Resolve reports where an entity currently lives. The row index is only
	// valid until the next structural mutation.
	Resolve(Entity) (ArchetypeID, int, error)
	Alive(Entity) bool

	Global() *Global

	Locked() bool
	Lock()
	Unlock() error
}

// Component identifies a registered component type. Obtain one from
// FactoryNewComponent; the zero value is not usable.
type Component interface {
	ID() ComponentTypeID
	Tag() string
	Type() reflect.Type
}

type Archetype interface {
	ID() ArchetypeID
	Len() int
	Signature() []ComponentTypeID
	Components() iter.Seq[Component]
	Contains(Component) bool
	EntityAt(row int) Entity
}

type Query interface {
	QueryNode
	And(items ...interface{}) QueryNode
	Or(items ...interface{}) QueryNode
	Not(items ...interface{}) QueryNode
}

type QueryNode interface {
	Evaluate(archetype Archetype, storage Storage) bool
}

// System is a unit of logic matching a component signature, invoked once per
// matched entity. Native and scripted systems both satisfy it.
type System interface {
	Required() []Component
	Excluded() []Component
	Kind() SystemKind
	Process(*SystemContext) error
}
