/*
Package depot provides an archetype-based Entity-Component-System (ECS) store
with lossless binary serialization and a scripting-friendly system bridge.

Depot keeps entities with identical component sets together in archetypes,
one densely packed column per component type, so bulk iteration over a
component signature touches contiguous memory. Structural changes (adding or
removing a component) move an entity between archetypes without disturbing
entities in unrelated archetypes. The whole population can be written to and
read back from a compact binary format, and systems (native Go functions or
scripted handlers) run once per matched entity with deferred structural
mutation.

Core Concepts:

  - Entity: a stable handle (index + generation) identifying an object.
  - Component: a typed value attached to an entity, registered once per Go type.
  - Archetype: storage for all entities sharing one exact component set.
  - Query: a component-set predicate over archetypes.
  - System: a callback matching a signature, invoked per matched entity.

Basic Usage:

	// Define components
	position := depot.FactoryNewComponent[Position]("position")
	velocity := depot.FactoryNewComponent[Velocity]("velocity")

	// Create storage and entities
	storage := depot.Factory.NewStorage()
	entities, _ := storage.NewEntities(100, position, velocity)

	// Query entities and process them
	query := depot.Factory.NewQuery()
	queryNode := query.And(position, velocity)
	cursor := depot.Factory.NewCursor(queryNode, storage)

	for cursor.Next() {
		pos := position.GetFromCursor(cursor)
		vel := velocity.GetFromCursor(cursor)
		pos.X += vel.X
		pos.Y += vel.Y
	}

	// Persist and restore
	var buf bytes.Buffer
	depot.Save(storage, &buf)
	restored, _ := depot.Load(&buf)

Depot is the storage core for the Bappa Framework but also works as a
standalone library.
*/
package depot
