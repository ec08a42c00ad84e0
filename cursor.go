package depot

import "iter"

// Cursor iterates entities matching a query. It snapshots the set of
// matching archetypes when iteration starts but reads row data live, so each
// produced element observes current column contents. Row indices it yields
// are invalid after any structural mutation, which is why mutations issued
// mid-iteration must go through the Enqueue variants.
type Cursor struct {
	// The query to filter entities
	query QueryNode

	// The storage to iterate over
	storage Storage

	// Current iteration state
	currentArchetype *archetype
	storageIndex     int
	entityIndex      int
	remaining        int

	// Initialization state
	initialized     bool
	matchedStorages []*archetype
}

func newCursor(query QueryNode, storage Storage) *Cursor {
	return &Cursor{
		query:   query,
		storage: storage,
	}
}

func (c *Cursor) Next() bool {
	if c.entityIndex < c.remaining {
		c.entityIndex++
		return true
	}
	return c.advance()
}

func (c *Cursor) advance() bool {
	if !c.initialized {
		c.initialize()
	}
	for c.storageIndex < len(c.matchedStorages) {
		c.currentArchetype = c.matchedStorages[c.storageIndex]
		c.remaining = c.currentArchetype.Len()

		if c.entityIndex < c.remaining {
			c.entityIndex++
			return true
		}
		c.storageIndex++
		c.entityIndex = 0
	}
	c.Reset()
	return false
}

// Entities yields (row, archetype) pairs for every match. Stopping early
// resets the cursor.
func (c *Cursor) Entities() iter.Seq2[int, Archetype] {
	return func(yield func(int, Archetype) bool) {
		c.initialize()

		for c.storageIndex < len(c.matchedStorages) {
			c.currentArchetype = c.matchedStorages[c.storageIndex]
			c.remaining = c.currentArchetype.Len()

			for c.entityIndex < c.remaining {
				if !yield(c.entityIndex, c.currentArchetype) {
					c.Reset()
					return
				}
				c.entityIndex++
			}
			c.entityIndex = 0
			c.storageIndex++
		}
		c.Reset()
	}
}

// initialize snapshots the matching archetypes in creation order.
func (c *Cursor) initialize() {
	if c.initialized {
		return
	}
	c.matchedStorages = make([]*archetype, 0)

	for _, arch := range c.storage.(*storage).archetypes.asSlice {
		if c.query.Evaluate(arch, c.storage) {
			c.matchedStorages = append(c.matchedStorages, arch)
		}
	}
	if len(c.matchedStorages) > 0 {
		c.storageIndex = 0
		c.currentArchetype = c.matchedStorages[0]
		c.remaining = c.currentArchetype.Len()
	}
	c.initialized = true
}

func (c *Cursor) Reset() {
	c.storageIndex = 0
	c.entityIndex = 0
	c.remaining = 0
	c.matchedStorages = nil
	c.initialized = false
}

// CurrentEntity returns the handle at the cursor position.
func (c *Cursor) CurrentEntity() Entity {
	return c.currentArchetype.entities[c.entityIndex-1]
}

func (c *Cursor) RemainingInArchetype() int {
	return c.remaining - c.entityIndex
}

func (c *Cursor) TotalMatched() int {
	if !c.initialized {
		c.initialize()
	}
	total := 0
	for _, arch := range c.matchedStorages {
		total += arch.Len()
	}
	return total
}
