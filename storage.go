package depot

import (
	"github.com/TheBitDrifter/mask"
	iter_util "github.com/TheBitDrifter/util/iter"
	"go.uber.org/zap"
)

var _ Storage = &storage{}

type storage struct {
	locked     bool
	log        *zap.Logger
	archetypes *archetypes
	opQueue    opQueue
	dir        directory
	global     Global
}

type archetypes struct {
	nextID           ArchetypeID
	asSlice          []*archetype
	idsGroupedByMask map[mask.Mask]ArchetypeID
}

func newStorage(opts ...StorageOption) *storage {
	sto := &storage{
		log: zap.NewNop(),
		archetypes: &archetypes{
			nextID:           1,
			idsGroupedByMask: make(map[mask.Mask]ArchetypeID),
		},
		opQueue: newOpQueue(),
		global:  newGlobal(),
	}
	for _, opt := range opts {
		opt(sto)
	}
	return sto
}

// StorageOption configures a storage at creation.
type StorageOption func(*storage)

// WithLogger attaches a structured logger; the default is a no-op logger.
func WithLogger(log *zap.Logger) StorageOption {
	return func(s *storage) { s.log = log }
}

// WithEntityCapacity preallocates directory slots for the expected
// population size.
func WithEntityCapacity(n int) StorageOption {
	return func(s *storage) { s.dir.metas = make([]entityMeta, 0, n) }
}

// getOrCreateArchetype returns the unique archetype for the exact component
// set, creating it in registration order if unseen. Empty archetypes are
// retained for reuse, never duplicated.
func (sto *storage) getOrCreateArchetype(components ...Component) *archetype {
	var m mask.Mask
	for _, c := range components {
		m.Mark(uint32(c.ID()))
	}
	if id, found := sto.archetypes.idsGroupedByMask[m]; found {
		return sto.archetypes.asSlice[id-1]
	}
	created := newArchetype(sto.archetypes.nextID, components...)
	sto.archetypes.asSlice = append(sto.archetypes.asSlice, created)
	sto.archetypes.idsGroupedByMask[m] = sto.archetypes.nextID
	sto.archetypes.nextID++
	sto.log.Debug("archetype created",
		zap.Uint32("archetype", uint32(created.id)),
		zap.Int("components", len(created.columns)))
	return created
}

func (sto *storage) NewEntities(n int, components ...Component) ([]Entity, error) {
	if sto.locked {
		return nil, LockedStorageError{}
	}
	arch := sto.getOrCreateArchetype(components...)
	entities := make([]Entity, n)
	for i := range entities {
		e := sto.dir.spawn()
		row := arch.insertZeroRow(e)
		sto.dir.place(e, arch.id, row)
		entities[i] = e
	}
	return entities, nil
}

// newEntityWithValues spawns one entity with decoded values, used by the
// deferred queue and the deserializer. vals is index-aligned with components.
func (sto *storage) newEntityWithValues(components []Component, vals [][]Value) error {
	arch := sto.getOrCreateArchetype(components...)
	ordered, err := orderValuesBySignature(arch, components, vals)
	if err != nil {
		return err
	}
	e := sto.dir.spawn()
	row, err := arch.insertRow(e, ordered)
	if err != nil {
		_ = sto.dir.despawn(e)
		return err
	}
	sto.dir.place(e, arch.id, row)
	return nil
}

// orderValuesBySignature reorders caller-supplied (component, values) pairs
// into the archetype's canonical signature order.
func orderValuesBySignature(arch *archetype, components []Component, vals [][]Value) ([][]Value, error) {
	if len(components) != len(arch.columns) || len(vals) != len(components) {
		return nil, SignatureMismatchError{Archetype: arch.id, Got: len(vals), Want: len(arch.columns)}
	}
	ordered := make([][]Value, len(arch.columns))
	for i, c := range components {
		slot, ok := arch.colByID[c.ID()]
		if !ok {
			return nil, SignatureMismatchError{Archetype: arch.id, Got: len(vals), Want: len(arch.columns)}
		}
		ordered[slot] = vals[i]
	}
	return ordered, nil
}

func (sto *storage) DestroyEntities(entities ...Entity) error {
	if sto.locked {
		return LockedStorageError{}
	}
	for _, e := range entities {
		m, err := sto.dir.resolve(e)
		if err != nil {
			return err
		}
		arch := sto.archetypes.asSlice[m.archetype-1]
		row := m.row
		if moved, didMove := arch.removeRow(row); didMove {
			sto.dir.place(moved, arch.id, row)
		}
		if err := sto.dir.despawn(e); err != nil {
			return err
		}
		sto.log.Debug("entity destroyed", zap.Uint32("entity", e.ID))
	}
	return nil
}

func (sto *storage) AddComponent(e Entity, c Component) error {
	return sto.addComponent(e, c, nil)
}

// addComponent moves the entity to the archetype with c added, copying all
// existing column values and filling the new column with vals (or zero).
// Validation happens before any mutation so a failed call leaves the entity
// untouched in its old archetype.
func (sto *storage) addComponent(e Entity, c Component, vals []Value) error {
	if sto.locked {
		return LockedStorageError{}
	}
	m, err := sto.dir.resolve(e)
	if err != nil {
		return err
	}
	origin := sto.archetypes.asSlice[m.archetype-1]
	if origin.Contains(c) {
		return DuplicateComponentError{Component: c}
	}

	destComps := iter_util.Collect(origin.Components())
	destComps = append(destComps, c)
	dest := sto.getOrCreateArchetype(destComps...)

	oldRow := m.row
	for _, col := range origin.columns {
		destCol, _ := dest.columnFor(col.meta().id)
		destCol.appendFrom(col, oldRow)
	}
	newCol, _ := dest.columnFor(c.ID())
	if vals == nil {
		newCol.appendZero()
	} else if err := newCol.appendValues(vals); err != nil {
		// Unwind the copied columns; the origin row is still intact.
		for _, col := range origin.columns {
			destCol, _ := dest.columnFor(col.meta().id)
			destCol.swapRemove(destCol.len() - 1)
		}
		return err
	}
	dest.entities = append(dest.entities, e)
	newRow := len(dest.entities) - 1

	if moved, didMove := origin.removeRow(oldRow); didMove {
		sto.dir.place(moved, origin.id, oldRow)
	}
	sto.dir.place(e, dest.id, newRow)
	sto.log.Debug("component added",
		zap.Uint32("entity", e.ID), zap.String("component", c.Tag()))
	return nil
}

func (sto *storage) RemoveComponent(e Entity, c Component) error {
	if sto.locked {
		return LockedStorageError{}
	}
	m, err := sto.dir.resolve(e)
	if err != nil {
		return err
	}
	origin := sto.archetypes.asSlice[m.archetype-1]
	if !origin.Contains(c) {
		return ComponentNotPresentError{Component: c}
	}

	destComps := make([]Component, 0, len(origin.columns)-1)
	for comp := range origin.Components() {
		if comp.ID() != c.ID() {
			destComps = append(destComps, comp)
		}
	}
	dest := sto.getOrCreateArchetype(destComps...)

	oldRow := m.row
	for _, col := range origin.columns {
		if col.meta().id == c.ID() {
			continue
		}
		destCol, _ := dest.columnFor(col.meta().id)
		destCol.appendFrom(col, oldRow)
	}
	dest.entities = append(dest.entities, e)
	newRow := len(dest.entities) - 1

	// The removed value is dropped inside removeRow's swap-truncate.
	if moved, didMove := origin.removeRow(oldRow); didMove {
		sto.dir.place(moved, origin.id, oldRow)
	}
	sto.dir.place(e, dest.id, newRow)
	sto.log.Debug("component removed",
		zap.Uint32("entity", e.ID), zap.String("component", c.Tag()))
	return nil
}

// setComponentValues overwrites one component's value on a live entity. Used
// by the deferred queue for scripted value writes.
func (sto *storage) setComponentValues(e Entity, c Component, vals []Value) error {
	m, err := sto.dir.resolve(e)
	if err != nil {
		return err
	}
	arch := sto.archetypes.asSlice[m.archetype-1]
	col, ok := arch.columnFor(c.ID())
	if !ok {
		return ComponentNotPresentError{Component: c}
	}
	return col.setValues(m.row, vals)
}

func (sto *storage) Resolve(e Entity) (ArchetypeID, int, error) {
	m, err := sto.dir.resolve(e)
	if err != nil {
		return 0, 0, err
	}
	return m.archetype, m.row, nil
}

func (sto *storage) Alive(e Entity) bool {
	_, err := sto.dir.resolve(e)
	return err == nil
}

func (sto *storage) Global() *Global {
	return &sto.global
}

func (sto *storage) Locked() bool {
	return sto.locked
}

func (sto *storage) Lock() {
	sto.locked = true
}

// Unlock releases the storage and replays any mutations deferred while it
// was locked, in request order.
func (sto *storage) Unlock() error {
	sto.locked = false
	return sto.processOperationQueue()
}

func (sto *storage) EnqueueNewEntities(amount int, components ...Component) error {
	if !sto.locked {
		_, err := sto.NewEntities(amount, components...)
		return err
	}
	sto.opQueue.enqueueCreate(amount, components, nil)
	return nil
}

func (sto *storage) EnqueueDestroyEntities(entities ...Entity) error {
	if !sto.locked {
		return sto.DestroyEntities(entities...)
	}
	sto.opQueue.enqueueDestroy(entities)
	return nil
}

func (sto *storage) EnqueueAddComponent(e Entity, c Component) error {
	if !sto.locked {
		return sto.AddComponent(e, c)
	}
	sto.opQueue.enqueueComponentOp(opAddComponent, e, c, nil)
	return nil
}

func (sto *storage) EnqueueRemoveComponent(e Entity, c Component) error {
	if !sto.locked {
		return sto.RemoveComponent(e, c)
	}
	sto.opQueue.enqueueComponentOp(opRemoveComponent, e, c, nil)
	return nil
}
