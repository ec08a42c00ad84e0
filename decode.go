package depot

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

type decodeState struct {
	r   io.Reader
	off int
}

func (d *decodeState) errUnexpected(expected, got string) error {
	return SerializationError{Offset: d.off, Expected: expected, Got: got}
}

// maxReadChunk bounds single allocations while reading length-prefixed
// regions. Lengths come straight off the wire, so a malformed stream
// claiming a multi-gigabyte cell must hit EOF before the memory is
// committed, not after.
const maxReadChunk = 1 << 20

func (d *decodeState) read(n int, expected string) ([]byte, error) {
	if n <= maxReadChunk {
		buf := make([]byte, n)
		read, err := io.ReadFull(d.r, buf)
		d.off += read
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, d.errUnexpected(expected, "EOF")
		}
		if err != nil {
			return nil, err
		}
		return buf, nil
	}
	buf := make([]byte, 0, maxReadChunk)
	for len(buf) < n {
		chunk := n - len(buf)
		if chunk > maxReadChunk {
			chunk = maxReadChunk
		}
		start := len(buf)
		buf = append(buf, make([]byte, chunk)...)
		read, err := io.ReadFull(d.r, buf[start:])
		d.off += read
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, d.errUnexpected(expected, "EOF")
		}
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func (d *decodeState) readU8(expected string) (uint8, error) {
	buf, err := d.read(1, expected)
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (d *decodeState) readU16(expected string) (uint16, error) {
	buf, err := d.read(2, expected)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(buf), nil
}

func (d *decodeState) readU32(expected string) (uint32, error) {
	buf, err := d.read(4, expected)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf), nil
}

func (d *decodeState) readI64(expected string) (int64, error) {
	buf, err := d.read(8, expected)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(buf)), nil
}

func (d *decodeState) readF64(expected string) (float64, error) {
	buf, err := d.read(8, expected)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(buf)), nil
}

func (d *decodeState) readTag(expected string) (string, error) {
	n, err := d.readU16(expected + " length")
	if err != nil {
		return "", err
	}
	buf, err := d.read(int(n), expected)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// entityResolver maps a stored dense ordinal back to a freshly assigned
// handle at load time.
type entityResolver func(ordinal uint32) (Entity, error)

func (d *decodeState) decodeValue(resolve entityResolver) (Value, error) {
	kind, err := d.readU8("value kind tag")
	if err != nil {
		return Value{}, err
	}
	switch ValueKind(kind) {
	case KindNil:
		return NilValue(), nil
	case KindBool:
		b, err := d.readU8("bool payload")
		if err != nil {
			return Value{}, err
		}
		switch b {
		case 0:
			return BoolValue(false), nil
		case 1:
			return BoolValue(true), nil
		}
		return Value{}, d.errUnexpected("bool payload (0 or 1)", fmt.Sprintf("byte %d", b))
	case KindInt:
		i, err := d.readI64("64-bit int")
		if err != nil {
			return Value{}, err
		}
		return IntValue(i), nil
	case KindFloat:
		f, err := d.readF64("64-bit float")
		if err != nil {
			return Value{}, err
		}
		return FloatValue(f), nil
	case KindBytes:
		n, err := d.readU32("bytes length")
		if err != nil {
			return Value{}, err
		}
		buf, err := d.read(int(n), "bytes payload")
		if err != nil {
			return Value{}, err
		}
		return BytesValue(buf), nil
	case KindString:
		n, err := d.readU32("string length")
		if err != nil {
			return Value{}, err
		}
		buf, err := d.read(int(n), "string payload")
		if err != nil {
			return Value{}, err
		}
		return StringValue(string(buf)), nil
	case KindList:
		n, err := d.readU32("list length")
		if err != nil {
			return Value{}, err
		}
		list := make([]Value, 0, n)
		for i := uint32(0); i < n; i++ {
			v, err := d.decodeValue(resolve)
			if err != nil {
				return Value{}, err
			}
			list = append(list, v)
		}
		return ListValue(list...), nil
	case KindEntity:
		ord, err := d.readU32("entity ordinal")
		if err != nil {
			return Value{}, err
		}
		e, err := resolve(ord)
		if err != nil {
			return Value{}, d.errUnexpected("entity ordinal within population", err.Error())
		}
		return EntityValue(e), nil
	}
	return Value{}, d.errUnexpected("value kind tag", fmt.Sprintf("byte %d", kind))
}

// stagedArchetype holds one archetype's structure and raw cells until every
// row count is known and handles can be assigned.
type stagedArchetype struct {
	metas []*componentMeta
	rows  int
	// cells[col][row] is the raw byte region of one length-prefixed cell,
	// including its prefix, re-parsed once handles exist.
	cells [][][]byte
	// cellOffs mirrors cells with the absolute offset of each payload, so
	// second-phase errors still report true positions.
	cellOffs [][]int
}

// Load reads a population saved by Save into a fresh storage. The load is
// all-or-nothing: any failure returns before a storage is produced. Every
// type tag in the stream must already be registered in this process, and
// entity handles are newly assigned in stored order.
func Load(r io.Reader, opts ...StorageOption) (Storage, error) {
	d := &decodeState{r: r}

	magic, err := d.readU32("format magic")
	if err != nil {
		return nil, err
	}
	if magic != formatMagic {
		return nil, d.errUnexpected("depot format magic", fmt.Sprintf("0x%08X", magic))
	}
	version, err := d.readU16("format version")
	if err != nil {
		return nil, err
	}
	if version != formatVersion {
		return nil, d.errUnexpected(
			fmt.Sprintf("format version %d", formatVersion),
			fmt.Sprintf("version %d", version))
	}

	typeCount, err := d.readU16("component type count")
	if err != nil {
		return nil, err
	}
	typeMetas := make([]*componentMeta, typeCount)
	declaredUses := make([]uint32, typeCount)
	for i := range typeMetas {
		tag, err := d.readTag("component type tag")
		if err != nil {
			return nil, err
		}
		meta, err := mainRegistry.lookupTag(tag)
		if err != nil {
			return nil, err
		}
		typeMetas[i] = meta
		if declaredUses[i], err = d.readU32("archetype use count"); err != nil {
			return nil, err
		}
	}

	archCount, err := d.readU32("archetype count")
	if err != nil {
		return nil, err
	}
	staged := make([]stagedArchetype, 0, archCount)
	countedUses := make([]uint32, typeCount)
	totalRows := 0
	for i := uint32(0); i < archCount; i++ {
		sigLen, err := d.readU16("signature length")
		if err != nil {
			return nil, err
		}
		sa := stagedArchetype{
			metas:    make([]*componentMeta, sigLen),
			cells:    make([][][]byte, sigLen),
			cellOffs: make([][]int, sigLen),
		}
		sigSeen := make(map[uint16]struct{}, sigLen)
		for j := range sa.metas {
			idx, err := d.readU16("type table index")
			if err != nil {
				return nil, err
			}
			if int(idx) >= len(typeMetas) {
				return nil, d.errUnexpected(
					fmt.Sprintf("type table index below %d", len(typeMetas)),
					fmt.Sprintf("index %d", idx))
			}
			if _, dup := sigSeen[idx]; dup {
				return nil, d.errUnexpected(
					"distinct type table indices in signature",
					fmt.Sprintf("index %d repeated", idx))
			}
			sigSeen[idx] = struct{}{}
			sa.metas[j] = typeMetas[idx]
			countedUses[idx]++
		}
		rows, err := d.readU32("row count")
		if err != nil {
			return nil, err
		}
		sa.rows = int(rows)
		totalRows += sa.rows
		for j := range sa.metas {
			sa.cells[j] = make([][]byte, sa.rows)
			sa.cellOffs[j] = make([]int, sa.rows)
			for row := 0; row < sa.rows; row++ {
				n, err := d.readU32("cell length")
				if err != nil {
					return nil, err
				}
				sa.cellOffs[j][row] = d.off
				if sa.cells[j][row], err = d.read(int(n), "cell payload"); err != nil {
					return nil, err
				}
			}
		}
		staged = append(staged, sa)
	}
	for i, counted := range countedUses {
		if counted != declaredUses[i] {
			return nil, d.errUnexpected(
				fmt.Sprintf("%d archetypes using type %q", declaredUses[i], typeMetas[i].tag),
				fmt.Sprintf("%d", counted))
		}
	}

	globalCount, err := d.readU16("global field count")
	if err != nil {
		return nil, err
	}
	type globalCell struct {
		tag string
		raw []byte
		off int
	}
	globals := make([]globalCell, globalCount)
	for i := range globals {
		if globals[i].tag, err = d.readTag("global field tag"); err != nil {
			return nil, err
		}
		n, err := d.readU32("cell length")
		if err != nil {
			return nil, err
		}
		globals[i].off = d.off
		if globals[i].raw, err = d.read(int(n), "cell payload"); err != nil {
			return nil, err
		}
	}

	if _, err := d.readU8("end of stream"); err == nil {
		return nil, d.errUnexpected("end of stream", "trailing bytes")
	} else if _, ok := err.(SerializationError); !ok {
		return nil, err
	}

	// Structure is sound; assign handles in stored order and populate a
	// fresh storage.
	s := newStorage(opts...)
	handles := make([]Entity, 0, totalRows)
	for _, sa := range staged {
		for row := 0; row < sa.rows; row++ {
			handles = append(handles, s.dir.spawn())
		}
	}
	resolve := func(ord uint32) (Entity, error) {
		if ord == invalidOrdinal {
			return Entity{}, nil
		}
		if int(ord) >= len(handles) {
			return Entity{}, fmt.Errorf("ordinal %d out of range (%d entities)", ord, len(handles))
		}
		return handles[ord], nil
	}

	next := 0
	for _, sa := range staged {
		comps := make([]Component, len(sa.metas))
		for i, m := range sa.metas {
			comps[i] = m
		}
		arch := s.getOrCreateArchetype(comps...)
		if arch.Len() > 0 {
			return nil, d.errUnexpected("unique archetype signatures", "duplicate signature")
		}
		for row := 0; row < sa.rows; row++ {
			e := handles[next]
			next++
			rowVals := make([][]Value, len(arch.columns))
			for j, m := range sa.metas {
				sub := &decodeState{
					r:   bytes.NewReader(sa.cells[j][row]),
					off: sa.cellOffs[j][row],
				}
				vals := make([]Value, 0, len(m.fields))
				for k := 0; k < len(m.fields); k++ {
					v, err := sub.decodeValue(resolve)
					if err != nil {
						return nil, err
					}
					vals = append(vals, v)
				}
				rowVals[arch.colByID[m.id]] = vals
			}
			placed, err := arch.insertRow(e, rowVals)
			if err != nil {
				return nil, err
			}
			s.dir.place(e, arch.id, placed)
		}
	}

	for _, g := range globals {
		sub := &decodeState{r: bytes.NewReader(g.raw), off: g.off}
		v, err := sub.decodeValue(resolve)
		if err != nil {
			return nil, err
		}
		s.global.Set(g.tag, v)
	}
	return s, nil
}
