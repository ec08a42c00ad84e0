package depot

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"
)

// Binary format constants. All multi-byte integers are big-endian.
const (
	formatMagic   uint32 = 0x44504F54 // "DPOT"
	formatVersion uint16 = 1

	// invalidOrdinal marks an embedded entity reference that was stale or
	// absent at save time.
	invalidOrdinal uint32 = 0xFFFFFFFF
)

type encodeState struct {
	w       io.Writer
	scratch [8]byte
}

func (e *encodeState) write(buf []byte) error {
	_, err := e.w.Write(buf)
	return err
}

func (e *encodeState) writeU8(v uint8) error {
	e.scratch[0] = v
	return e.write(e.scratch[:1])
}

func (e *encodeState) writeU16(v uint16) error {
	binary.BigEndian.PutUint16(e.scratch[:2], v)
	return e.write(e.scratch[:2])
}

func (e *encodeState) writeU32(v uint32) error {
	binary.BigEndian.PutUint32(e.scratch[:4], v)
	return e.write(e.scratch[:4])
}

func (e *encodeState) writeI64(v int64) error {
	binary.BigEndian.PutUint64(e.scratch[:8], uint64(v))
	return e.write(e.scratch[:8])
}

func (e *encodeState) writeF64(v float64) error {
	binary.BigEndian.PutUint64(e.scratch[:8], math.Float64bits(v))
	return e.write(e.scratch[:8])
}

func (e *encodeState) writeTag(s string) error {
	if len(s) > math.MaxUint16 {
		return fmt.Errorf("tag too long: %d bytes", len(s))
	}
	if err := e.writeU16(uint16(len(s))); err != nil {
		return err
	}
	return e.write([]byte(s))
}

// entityTransform rewrites embedded entity handles into their dense stored
// ordinal at encode time; references to entities not in the population
// become the invalid sentinel.
type entityTransform func(Entity) uint32

func (e *encodeState) encodeValue(v Value, xf entityTransform) error {
	if err := e.writeU8(uint8(v.Kind)); err != nil {
		return err
	}
	switch v.Kind {
	case KindNil:
		return nil
	case KindBool:
		if v.Bool {
			return e.writeU8(1)
		}
		return e.writeU8(0)
	case KindInt:
		return e.writeI64(v.Int)
	case KindFloat:
		return e.writeF64(v.Float)
	case KindBytes:
		if err := e.writeU32(uint32(len(v.Bytes))); err != nil {
			return err
		}
		return e.write(v.Bytes)
	case KindString:
		if err := e.writeU32(uint32(len(v.Str))); err != nil {
			return err
		}
		return e.write([]byte(v.Str))
	case KindList:
		if err := e.writeU32(uint32(len(v.List))); err != nil {
			return err
		}
		for _, elem := range v.List {
			if err := e.encodeValue(elem, xf); err != nil {
				return err
			}
		}
		return nil
	case KindEntity:
		return e.writeU32(xf(v.Entity))
	}
	return fmt.Errorf("cannot encode value of kind %s", v.Kind)
}

// encodeCell writes one length-prefixed cell: the values of a single
// component (or a single global field) back to back. The prefix lets a
// reader skip trailing values it does not know about.
func (e *encodeState) encodeCell(vals []Value, xf entityTransform) error {
	var cell bytes.Buffer
	sub := &encodeState{w: &cell}
	for _, v := range vals {
		if err := sub.encodeValue(v, xf); err != nil {
			return err
		}
	}
	if err := e.writeU32(uint32(cell.Len())); err != nil {
		return err
	}
	return e.write(cell.Bytes())
}

// Save writes the full population to w in the depot binary format. Archetypes
// are written in creation order, rows in row order; empty archetypes are not
// written. Saving a locked storage fails: the population could be mid-tick.
func Save(sto Storage, w io.Writer) error {
	s := sto.(*storage)
	if s.locked {
		return LockedStorageError{}
	}

	var archs []*archetype
	for _, a := range s.archetypes.asSlice {
		if a.Len() > 0 {
			archs = append(archs, a)
		}
	}

	// Type table: every component type present, ascending ComponentTypeID,
	// with the number of archetypes using it.
	uses := make(map[ComponentTypeID]uint32)
	var typeOrder []ComponentTypeID
	for _, a := range archs {
		for _, col := range a.columns {
			id := col.meta().id
			if uses[id] == 0 {
				typeOrder = append(typeOrder, id)
			}
			uses[id]++
		}
	}
	sort.Slice(typeOrder, func(i, j int) bool { return typeOrder[i] < typeOrder[j] })
	typeIndex := make(map[ComponentTypeID]uint16, len(typeOrder))
	for i, id := range typeOrder {
		typeIndex[id] = uint16(i)
	}

	// Dense ordinals in stored order, the target space for embedded entity
	// references.
	ordinals := make(map[Entity]uint32)
	var next uint32
	for _, a := range archs {
		for _, e := range a.entities {
			ordinals[e] = next
			next++
		}
	}
	xf := func(e Entity) uint32 {
		if ord, ok := ordinals[e]; ok {
			return ord
		}
		return invalidOrdinal
	}

	enc := &encodeState{w: w}
	if err := enc.writeU32(formatMagic); err != nil {
		return err
	}
	if err := enc.writeU16(formatVersion); err != nil {
		return err
	}
	if err := enc.writeU16(uint16(len(typeOrder))); err != nil {
		return err
	}
	for _, id := range typeOrder {
		meta, err := mainRegistry.lookupID(id)
		if err != nil {
			return err
		}
		if err := enc.writeTag(meta.tag); err != nil {
			return err
		}
		if err := enc.writeU32(uses[id]); err != nil {
			return err
		}
	}

	if err := enc.writeU32(uint32(len(archs))); err != nil {
		return err
	}
	for _, a := range archs {
		if err := enc.writeU16(uint16(len(a.columns))); err != nil {
			return err
		}
		for _, col := range a.columns {
			if err := enc.writeU16(typeIndex[col.meta().id]); err != nil {
				return err
			}
		}
		if err := enc.writeU32(uint32(a.Len())); err != nil {
			return err
		}
		for _, col := range a.columns {
			for row := 0; row < a.Len(); row++ {
				vals, err := col.values(row)
				if err != nil {
					return fmt.Errorf("failed to read archetype %d row %d: %w", a.id, row, err)
				}
				if err := enc.encodeCell(vals, xf); err != nil {
					return err
				}
			}
		}
	}

	// Global component section.
	if err := enc.writeU16(uint16(s.global.Len())); err != nil {
		return err
	}
	for _, f := range s.global.fields {
		if err := enc.writeTag(f.tag); err != nil {
			return err
		}
		if err := enc.encodeCell([]Value{f.val}, xf); err != nil {
			return err
		}
	}
	return nil
}
