package depot

import "fmt"

type LockedStorageError struct{}

func (e LockedStorageError) Error() string {
	return "storage is currently locked"
}

// StaleHandleError reports use of an entity handle whose slot was freed and
// possibly reused, or that was never allocated.
type StaleHandleError struct {
	Entity Entity
}

func (e StaleHandleError) Error() string {
	return fmt.Sprintf("stale entity handle: %d (gen %d)", e.Entity.ID, e.Entity.Gen)
}

type UnknownTypeError struct {
	Tag string
	ID  ComponentTypeID
}

func (e UnknownTypeError) Error() string {
	if e.Tag != "" {
		return fmt.Sprintf("unknown component type tag: %q", e.Tag)
	}
	return fmt.Sprintf("unknown component type id: %d", e.ID)
}

type SignatureMismatchError struct {
	Archetype ArchetypeID
	Got       int
	Want      int
}

func (e SignatureMismatchError) Error() string {
	return fmt.Sprintf("value set does not match archetype %d columns: got %d, want %d",
		e.Archetype, e.Got, e.Want)
}

type DuplicateComponentError struct {
	Component Component
}

func (e DuplicateComponentError) Error() string {
	return fmt.Sprintf("component already present on entity: %s", e.Component.Tag())
}

type ComponentNotPresentError struct {
	Component Component
}

func (e ComponentNotPresentError) Error() string {
	return fmt.Sprintf("component not present on entity: %s", e.Component.Tag())
}

// ConflictingQueryError reports a query whose required and excluded sets
// overlap; such a query can never match.
type ConflictingQueryError struct {
	Component Component
}

func (e ConflictingQueryError) Error() string {
	return fmt.Sprintf("component both required and excluded: %s", e.Component.Tag())
}

// SerializationError reports a malformed or truncated byte stream. Offset is
// the byte position the decoder had reached.
type SerializationError struct {
	Offset   int
	Expected string
	Got      string
}

func (e SerializationError) Error() string {
	return fmt.Sprintf("decode failed at byte %d: expected %s, got %s", e.Offset, e.Expected, e.Got)
}

// ScriptError carries a failure from one system callback invocation along
// with the entity being processed when it happened.
type ScriptError struct {
	Entity Entity
	Err    error
}

func (e ScriptError) Error() string {
	return fmt.Sprintf("system callback failed for entity %d (gen %d): %v", e.Entity.ID, e.Entity.Gen, e.Err)
}

func (e ScriptError) Unwrap() error {
	return e.Err
}
