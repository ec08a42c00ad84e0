package depot

import (
	"errors"
	"testing"
)

// TestArchetypeCreation tests the creation and reuse of archetypes
func TestArchetypeCreation(t *testing.T) {
	tests := []struct {
		name                string
		firstComponents     []Component
		secondComponents    []Component
		expectSameArchetype bool
	}{
		{
			name:                "Identical components",
			firstComponents:     []Component{posComp, velComp},
			secondComponents:    []Component{posComp, velComp},
			expectSameArchetype: true,
		},
		{
			name:                "Different order",
			firstComponents:     []Component{posComp, velComp},
			secondComponents:    []Component{velComp, posComp},
			expectSameArchetype: true, // Archetypes are based on component sets, not order
		},
		{
			name:                "Different components",
			firstComponents:     []Component{posComp},
			secondComponents:    []Component{velComp},
			expectSameArchetype: false,
		},
		{
			name:                "Subset components",
			firstComponents:     []Component{posComp, velComp},
			secondComponents:    []Component{posComp},
			expectSameArchetype: false,
		},
		{
			name:                "Superset components",
			firstComponents:     []Component{posComp},
			secondComponents:    []Component{posComp, velComp, healthComp},
			expectSameArchetype: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage := Factory.NewStorage()

			first, err := storage.NewEntities(1, tt.firstComponents...)
			if err != nil {
				t.Fatalf("Failed to create first entity: %v", err)
			}
			second, err := storage.NewEntities(1, tt.secondComponents...)
			if err != nil {
				t.Fatalf("Failed to create second entity: %v", err)
			}

			arch1, _, err := storage.Resolve(first[0])
			if err != nil {
				t.Fatalf("Failed to resolve first entity: %v", err)
			}
			arch2, _, err := storage.Resolve(second[0])
			if err != nil {
				t.Fatalf("Failed to resolve second entity: %v", err)
			}

			sameArchetype := arch1 == arch2
			if sameArchetype != tt.expectSameArchetype {
				t.Errorf("Archetypes same: %v, expected: %v", sameArchetype, tt.expectSameArchetype)
			}
		})
	}
}

// TestEntityDestruction tests destroying entities
func TestEntityDestruction(t *testing.T) {
	storage := Factory.NewStorage()

	entities, err := storage.NewEntities(10, posComp)
	if err != nil {
		t.Fatalf("Failed to create entities: %v", err)
	}

	err = storage.DestroyEntities(entities[0], entities[2], entities[4], entities[6], entities[8])
	if err != nil {
		t.Fatalf("Failed to destroy entities: %v", err)
	}

	query := Factory.NewQuery()
	queryNode := query.And(posComp)
	cursor := Factory.NewCursor(queryNode, storage)

	count := 0
	for cursor.Next() {
		count++
	}
	if count != 5 {
		t.Errorf("Entity count after destruction: %d, want 5", count)
	}

	for _, i := range []int{0, 2, 4, 6, 8} {
		if storage.Alive(entities[i]) {
			t.Errorf("Entity %d still alive after destruction", i)
		}
	}
	for _, i := range []int{1, 3, 5, 7, 9} {
		if !storage.Alive(entities[i]) {
			t.Errorf("Entity %d not alive, should be untouched", i)
		}
	}
}

// TestStaleHandles tests generation-based handle invalidation
func TestStaleHandles(t *testing.T) {
	storage := Factory.NewStorage()

	entities, err := storage.NewEntities(1, posComp, velComp, healthComp)
	if err != nil {
		t.Fatalf("Failed to create entity: %v", err)
	}
	old := entities[0]

	if err := storage.DestroyEntities(old); err != nil {
		t.Fatalf("Failed to destroy entity: %v", err)
	}

	if _, _, err := storage.Resolve(old); !errors.As(err, &StaleHandleError{}) {
		t.Errorf("Resolve after destroy: got %v, want StaleHandleError", err)
	}
	if err := storage.DestroyEntities(old); !errors.As(err, &StaleHandleError{}) {
		t.Errorf("Double destroy: got %v, want StaleHandleError", err)
	}

	// The freed slot is reused with a strictly greater generation.
	reused, err := storage.NewEntities(1, posComp)
	if err != nil {
		t.Fatalf("Failed to respawn: %v", err)
	}
	if reused[0].ID != old.ID {
		t.Fatalf("Expected index reuse: got %d, want %d", reused[0].ID, old.ID)
	}
	if reused[0].Gen <= old.Gen {
		t.Errorf("Generation not bumped: got %d, old %d", reused[0].Gen, old.Gen)
	}
	if _, _, err := storage.Resolve(old); err == nil {
		t.Error("Old handle resolves after slot reuse")
	}
}

// TestRowSwapOnRemove verifies the swap-truncate rule updates the displaced
// entity's directory entry.
func TestRowSwapOnRemove(t *testing.T) {
	storage := Factory.NewStorage()

	entities, err := storage.NewEntities(3, posComp)
	if err != nil {
		t.Fatalf("Failed to create entities: %v", err)
	}
	a, b, c := entities[0], entities[1], entities[2]

	aArch, aRow, _ := storage.Resolve(a)
	if aRow != 0 {
		t.Fatalf("Entity A row: %d, want 0", aRow)
	}

	if err := storage.DestroyEntities(a); err != nil {
		t.Fatalf("Failed to destroy A: %v", err)
	}

	cArch, cRow, err := storage.Resolve(c)
	if err != nil {
		t.Fatalf("Failed to resolve C: %v", err)
	}
	if cArch != aArch || cRow != 0 {
		t.Errorf("C location after swap: archetype %d row %d, want archetype %d row 0", cArch, cRow, aArch)
	}
	if _, bRow, _ := storage.Resolve(b); bRow != 1 {
		t.Errorf("B row changed to %d, want 1", bRow)
	}
}

// TestAddRemoveComponent tests structural moves between archetypes
func TestAddRemoveComponent(t *testing.T) {
	storage := Factory.NewStorage()

	entities, err := storage.NewEntities(1, posComp)
	if err != nil {
		t.Fatalf("Failed to create entity: %v", err)
	}
	e := entities[0]

	pos, err := posComp.GetFromEntity(storage, e)
	if err != nil {
		t.Fatalf("Failed to get position: %v", err)
	}
	pos.X, pos.Y = 3, 4

	before, _, _ := storage.Resolve(e)
	if err := storage.AddComponent(e, velComp); err != nil {
		t.Fatalf("Failed to add component: %v", err)
	}
	after, _, _ := storage.Resolve(e)
	if before == after {
		t.Error("Archetype unchanged after component add")
	}

	// Existing values survive the move.
	pos, err = posComp.GetFromEntity(storage, e)
	if err != nil {
		t.Fatalf("Failed to get position after move: %v", err)
	}
	if pos.X != 3 || pos.Y != 4 {
		t.Errorf("Position after move: (%v, %v), want (3, 4)", pos.X, pos.Y)
	}

	if err := storage.RemoveComponent(e, velComp); err != nil {
		t.Fatalf("Failed to remove component: %v", err)
	}
	back, _, _ := storage.Resolve(e)
	if back != before {
		t.Errorf("Archetype after remove: %d, want original %d", back, before)
	}
	if _, err := velComp.GetFromEntity(storage, e); !errors.As(err, &ComponentNotPresentError{}) {
		t.Errorf("Velocity still accessible after remove: %v", err)
	}
}

// TestAddComponentAtomicity verifies a failed add leaves the entity untouched
func TestAddComponentAtomicity(t *testing.T) {
	storage := Factory.NewStorage()

	entities, err := storage.NewEntities(1, posComp, velComp)
	if err != nil {
		t.Fatalf("Failed to create entity: %v", err)
	}
	e := entities[0]

	archBefore, rowBefore, _ := storage.Resolve(e)
	err = storage.AddComponent(e, velComp)
	if !errors.As(err, &DuplicateComponentError{}) {
		t.Fatalf("Duplicate add: got %v, want DuplicateComponentError", err)
	}
	archAfter, rowAfter, _ := storage.Resolve(e)
	if archBefore != archAfter || rowBefore != rowAfter {
		t.Errorf("Entity moved by failed add: (%d, %d) -> (%d, %d)",
			archBefore, rowBefore, archAfter, rowAfter)
	}

	err = storage.RemoveComponent(e, healthComp)
	if !errors.As(err, &ComponentNotPresentError{}) {
		t.Fatalf("Absent remove: got %v, want ComponentNotPresentError", err)
	}
}

// TestStorageLocking tests the storage locking mechanism
func TestStorageLocking(t *testing.T) {
	tests := []struct {
		name      string
		operation func(Storage, Entity) error
	}{
		{
			name: "NewEntities",
			operation: func(s Storage, _ Entity) error {
				_, err := s.NewEntities(1, posComp)
				return err
			},
		},
		{
			name: "DestroyEntities",
			operation: func(s Storage, e Entity) error {
				return s.DestroyEntities(e)
			},
		},
		{
			name: "AddComponent",
			operation: func(s Storage, e Entity) error {
				return s.AddComponent(e, velComp)
			},
		},
		{
			name: "RemoveComponent",
			operation: func(s Storage, e Entity) error {
				return s.RemoveComponent(e, posComp)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage := Factory.NewStorage()
			entities, err := storage.NewEntities(1, posComp)
			if err != nil {
				t.Fatalf("Failed to create entity: %v", err)
			}

			storage.Lock()
			if err := tt.operation(storage, entities[0]); !errors.As(err, &LockedStorageError{}) {
				t.Errorf("Locked %s: got %v, want LockedStorageError", tt.name, err)
			}
			if err := storage.Unlock(); err != nil {
				t.Fatalf("Unlock failed: %v", err)
			}
		})
	}
}

// TestDeferredOperations tests that enqueued mutations apply on unlock in
// request order
func TestDeferredOperations(t *testing.T) {
	storage := Factory.NewStorage()
	entities, err := storage.NewEntities(2, posComp)
	if err != nil {
		t.Fatalf("Failed to create entities: %v", err)
	}

	storage.Lock()
	if err := storage.EnqueueAddComponent(entities[0], velComp); err != nil {
		t.Fatalf("Failed to enqueue add: %v", err)
	}
	if err := storage.EnqueueDestroyEntities(entities[1]); err != nil {
		t.Fatalf("Failed to enqueue destroy: %v", err)
	}
	if err := storage.EnqueueNewEntities(3, healthComp); err != nil {
		t.Fatalf("Failed to enqueue create: %v", err)
	}

	// Nothing applies while locked.
	if _, err := velComp.GetFromEntity(storage, entities[0]); err == nil {
		t.Error("Queued add applied while locked")
	}
	if !storage.Alive(entities[1]) {
		t.Error("Queued destroy applied while locked")
	}

	if err := storage.Unlock(); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}

	if _, err := velComp.GetFromEntity(storage, entities[0]); err != nil {
		t.Errorf("Queued add not applied: %v", err)
	}
	if storage.Alive(entities[1]) {
		t.Error("Queued destroy not applied")
	}

	query := Factory.NewQuery()
	cursor := Factory.NewCursor(query.And(healthComp), storage)
	if got := cursor.TotalMatched(); got != 3 {
		t.Errorf("Queued creates: %d entities, want 3", got)
	}
}

// TestComponentOpsDroppedForDestroyed verifies component ops queued after a
// destroy for the same entity are dropped, not errors
func TestComponentOpsDroppedForDestroyed(t *testing.T) {
	storage := Factory.NewStorage()
	entities, err := storage.NewEntities(1, posComp)
	if err != nil {
		t.Fatalf("Failed to create entity: %v", err)
	}

	storage.Lock()
	if err := storage.EnqueueDestroyEntities(entities[0]); err != nil {
		t.Fatalf("Failed to enqueue destroy: %v", err)
	}
	if err := storage.EnqueueAddComponent(entities[0], velComp); err != nil {
		t.Fatalf("Failed to enqueue add: %v", err)
	}
	if err := storage.Unlock(); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	if storage.Alive(entities[0]) {
		t.Error("Entity alive after queued destroy")
	}
}

// TestQueueDrainSurvivesFailedOp verifies one failing queued op is reported
// without discarding the mutations queued after it
func TestQueueDrainSurvivesFailedOp(t *testing.T) {
	storage := Factory.NewStorage()
	entities, err := storage.NewEntities(1, posComp)
	if err != nil {
		t.Fatalf("Failed to create entity: %v", err)
	}

	storage.Lock()
	if err := storage.EnqueueAddComponent(entities[0], velComp); err != nil {
		t.Fatalf("Failed to enqueue add: %v", err)
	}
	// The second add fails at drain time as a duplicate.
	if err := storage.EnqueueAddComponent(entities[0], velComp); err != nil {
		t.Fatalf("Failed to enqueue add: %v", err)
	}
	if err := storage.EnqueueNewEntities(1, healthComp); err != nil {
		t.Fatalf("Failed to enqueue create: %v", err)
	}

	err = storage.Unlock()
	if !errors.As(err, &DuplicateComponentError{}) {
		t.Errorf("Unlock: got %v, want DuplicateComponentError", err)
	}

	if _, err := velComp.GetFromEntity(storage, entities[0]); err != nil {
		t.Errorf("First queued add not applied: %v", err)
	}
	query := Factory.NewQuery()
	if got := Factory.NewCursor(query.And(healthComp), storage).TotalMatched(); got != 1 {
		t.Errorf("Create queued after the failing op: %d entities, want 1", got)
	}
}

// TestMarkerComponent tests zero-field components
func TestMarkerComponent(t *testing.T) {
	storage := Factory.NewStorage()
	entities, err := storage.NewEntities(2, posComp)
	if err != nil {
		t.Fatalf("Failed to create entities: %v", err)
	}
	if err := storage.AddComponent(entities[0], frozenComp); err != nil {
		t.Fatalf("Failed to add marker: %v", err)
	}

	query := Factory.NewQuery()
	cursor := Factory.NewCursor(query.And(posComp, frozenComp), storage)
	if got := cursor.TotalMatched(); got != 1 {
		t.Errorf("Marker query matched %d entities, want 1", got)
	}
}
