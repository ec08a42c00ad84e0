package luabridge

import (
	"fmt"

	"github.com/TheBitDrifter/depot"
	lua "github.com/yuin/gopher-lua"
)

// valueToLua lowers one depot Value into its Lua representation. Entity
// handles become {id, gen} tables; raw memory never crosses.
func valueToLua(L *lua.LState, v depot.Value) lua.LValue {
	switch v.Kind {
	case depot.KindNil:
		return lua.LNil
	case depot.KindBool:
		return lua.LBool(v.Bool)
	case depot.KindInt:
		return lua.LNumber(v.Int)
	case depot.KindFloat:
		return lua.LNumber(v.Float)
	case depot.KindBytes:
		return lua.LString(v.Bytes)
	case depot.KindString:
		return lua.LString(v.Str)
	case depot.KindList:
		t := L.NewTable()
		for i, elem := range v.List {
			t.RawSetInt(i+1, valueToLua(L, elem))
		}
		return t
	case depot.KindEntity:
		return entityToLua(L, v.Entity)
	}
	return lua.LNil
}

func entityToLua(L *lua.LState, e depot.Entity) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("id", lua.LNumber(e.ID))
	t.RawSetString("gen", lua.LNumber(e.Gen))
	return t
}

// luaToValue raises a Lua value back into depot Value form. proto supplies
// the expected kind, since Lua's dynamic types cannot distinguish ints from
// floats or bytes from strings on their own.
func luaToValue(lv lua.LValue, proto depot.Value) (depot.Value, error) {
	switch proto.Kind {
	case depot.KindNil:
		return depot.NilValue(), nil
	case depot.KindBool:
		b, ok := lv.(lua.LBool)
		if !ok {
			return depot.Value{}, conversionError("boolean", lv)
		}
		return depot.BoolValue(bool(b)), nil
	case depot.KindInt:
		n, ok := lv.(lua.LNumber)
		if !ok {
			return depot.Value{}, conversionError("number", lv)
		}
		return depot.IntValue(int64(n)), nil
	case depot.KindFloat:
		n, ok := lv.(lua.LNumber)
		if !ok {
			return depot.Value{}, conversionError("number", lv)
		}
		return depot.FloatValue(float64(n)), nil
	case depot.KindBytes:
		s, ok := lv.(lua.LString)
		if !ok {
			return depot.Value{}, conversionError("string", lv)
		}
		return depot.BytesValue([]byte(s)), nil
	case depot.KindString:
		s, ok := lv.(lua.LString)
		if !ok {
			return depot.Value{}, conversionError("string", lv)
		}
		return depot.StringValue(string(s)), nil
	case depot.KindList:
		t, ok := lv.(*lua.LTable)
		if !ok {
			return depot.Value{}, conversionError("table", lv)
		}
		n := t.Len()
		list := make([]depot.Value, 0, n)
		for i := 1; i <= n; i++ {
			elemProto, err := listElemProto(proto, i-1, n)
			if err != nil {
				return depot.Value{}, err
			}
			elem, err := luaToValue(t.RawGetInt(i), elemProto)
			if err != nil {
				return depot.Value{}, err
			}
			list = append(list, elem)
		}
		return depot.ListValue(list...), nil
	case depot.KindEntity:
		t, ok := lv.(*lua.LTable)
		if !ok {
			return depot.Value{}, conversionError("entity table", lv)
		}
		id, ok := t.RawGetString("id").(lua.LNumber)
		if !ok {
			return depot.Value{}, fmt.Errorf("entity table missing numeric id")
		}
		gen, ok := t.RawGetString("gen").(lua.LNumber)
		if !ok {
			return depot.Value{}, fmt.Errorf("entity table missing numeric gen")
		}
		return depot.EntityValue(depot.Entity{ID: uint32(id), Gen: uint32(gen)}), nil
	}
	return depot.Value{}, fmt.Errorf("cannot convert to value kind %s", proto.Kind)
}

// listElemProto picks the prototype for list element i. Fixed-shape lists
// (struct fields) match the prototype per index; variable-length lists reuse
// the first element's shape.
func listElemProto(proto depot.Value, i, n int) (depot.Value, error) {
	if len(proto.List) == n {
		return proto.List[i], nil
	}
	if len(proto.List) > 0 {
		return proto.List[0], nil
	}
	return depot.Value{}, fmt.Errorf("cannot infer element type of list grown from empty")
}

func conversionError(expected string, got lua.LValue) error {
	return fmt.Errorf("expected %s, got %s", expected, got.Type())
}

// tableToValues reads a component's worth of field values out of a Lua
// table, filling omitted fields from the component's zero value.
func tableToValues(comp depot.Component, t *lua.LTable) ([]depot.Value, error) {
	zeros, err := depot.ComponentZeroValues(comp)
	if err != nil {
		return nil, err
	}
	names := depot.FieldNames(comp)
	vals := make([]depot.Value, len(names))
	for i, name := range names {
		lv := t.RawGetString(name)
		if lv == lua.LNil {
			vals[i] = zeros[i]
			continue
		}
		v, err := luaToValue(lv, zeros[i])
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		vals[i] = v
	}
	return vals, nil
}
