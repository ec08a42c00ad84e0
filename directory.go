package depot

// Entity is a stable handle to one stored object. ID is a directory slot
// (starting at 1; the zero Entity is never live), Gen is bumped each time the
// slot is freed so stale handles are detectable rather than dangling.
type Entity struct {
	ID  uint32
	Gen uint32
}

// entityMeta records where a live entity's data currently lives. The
// (archetype, row) pair is a weak back-reference: ownership of component data
// stays in the archetype columns.
type entityMeta struct {
	archetype ArchetypeID
	row       int
	gen       uint32
	alive     bool
}

// directory maps entity handles to storage locations, recycling freed slots
// with a bumped generation.
type directory struct {
	metas []entityMeta
	free  []uint32
}

func (d *directory) spawn() Entity {
	if n := len(d.free); n > 0 {
		id := d.free[n-1]
		d.free = d.free[:n-1]
		m := &d.metas[id-1]
		m.alive = true
		m.archetype = 0
		m.row = 0
		return Entity{ID: id, Gen: m.gen}
	}
	d.metas = append(d.metas, entityMeta{alive: true})
	id := uint32(len(d.metas))
	return Entity{ID: id, Gen: 0}
}

func (d *directory) resolve(e Entity) (*entityMeta, error) {
	if e.ID == 0 || int(e.ID) > len(d.metas) {
		return nil, StaleHandleError{Entity: e}
	}
	m := &d.metas[e.ID-1]
	if !m.alive || m.gen != e.Gen {
		return nil, StaleHandleError{Entity: e}
	}
	return m, nil
}

// despawn frees the slot and bumps its generation; the caller has already
// removed the entity's row from its archetype.
func (d *directory) despawn(e Entity) error {
	m, err := d.resolve(e)
	if err != nil {
		return err
	}
	m.alive = false
	m.gen++
	d.free = append(d.free, e.ID)
	return nil
}

// place points a live entity at its new (archetype, row) location.
func (d *directory) place(e Entity, arch ArchetypeID, row int) {
	m := &d.metas[e.ID-1]
	m.archetype = arch
	m.row = row
}
