package depot

import (
	"fmt"
	"reflect"
)

// ValueKind tags a Value. The numeric values are part of the binary format.
type ValueKind uint8

const (
	KindNil ValueKind = iota
	KindBool
	KindInt
	KindFloat
	KindBytes
	KindString
	KindList
	KindEntity
)

func (k ValueKind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBytes:
		return "bytes"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindEntity:
		return "entity"
	}
	return fmt.Sprintf("ValueKind(%d)", uint8(k))
}

// Value is the tagged intermediate through which component data crosses type
// boundaries: the serialization codec encodes Values, and the scripting
// bridge marshals Values instead of exposing raw memory layout.
type Value struct {
	Kind   ValueKind
	Bool   bool
	Int    int64
	Float  float64
	Bytes  []byte
	Str    string
	List   []Value
	Entity Entity
}

func NilValue() Value             { return Value{Kind: KindNil} }
func BoolValue(b bool) Value      { return Value{Kind: KindBool, Bool: b} }
func IntValue(i int64) Value      { return Value{Kind: KindInt, Int: i} }
func FloatValue(f float64) Value  { return Value{Kind: KindFloat, Float: f} }
func BytesValue(b []byte) Value   { return Value{Kind: KindBytes, Bytes: b} }
func StringValue(s string) Value  { return Value{Kind: KindString, Str: s} }
func ListValue(vs ...Value) Value { return Value{Kind: KindList, List: vs} }
func EntityValue(e Entity) Value  { return Value{Kind: KindEntity, Entity: e} }

var entityType = reflect.TypeOf(Entity{})

// fieldToValue converts one component field into its Value form. The
// supported field shapes mirror what the binary format can carry.
func fieldToValue(fv reflect.Value) (Value, error) {
	t := fv.Type()
	if t == entityType {
		return EntityValue(fv.Interface().(Entity)), nil
	}
	switch t.Kind() {
	case reflect.Bool:
		return BoolValue(fv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return IntValue(fv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return IntValue(int64(fv.Uint())), nil
	case reflect.Float32, reflect.Float64:
		return FloatValue(fv.Float()), nil
	case reflect.String:
		return StringValue(fv.String()), nil
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return BytesValue(append([]byte(nil), fv.Bytes()...)), nil
		}
		list := make([]Value, fv.Len())
		for i := range list {
			v, err := fieldToValue(fv.Index(i))
			if err != nil {
				return Value{}, err
			}
			list[i] = v
		}
		return ListValue(list...), nil
	case reflect.Struct:
		list := make([]Value, 0, t.NumField())
		for i := 0; i < t.NumField(); i++ {
			v, err := fieldToValue(fv.Field(i))
			if err != nil {
				return Value{}, err
			}
			list = append(list, v)
		}
		return ListValue(list...), nil
	}
	return Value{}, fmt.Errorf("unsupported component field type %s", t)
}

// fieldFromValue writes a Value back into one component field, failing if the
// Value's kind disagrees with the field's static type.
func fieldFromValue(fv reflect.Value, v Value) error {
	t := fv.Type()
	if t == entityType {
		if v.Kind != KindEntity {
			return kindMismatch(t, v)
		}
		fv.Set(reflect.ValueOf(v.Entity))
		return nil
	}
	switch t.Kind() {
	case reflect.Bool:
		if v.Kind != KindBool {
			return kindMismatch(t, v)
		}
		fv.SetBool(v.Bool)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if v.Kind != KindInt {
			return kindMismatch(t, v)
		}
		fv.SetInt(v.Int)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if v.Kind != KindInt {
			return kindMismatch(t, v)
		}
		fv.SetUint(uint64(v.Int))
	case reflect.Float32, reflect.Float64:
		if v.Kind != KindFloat {
			return kindMismatch(t, v)
		}
		fv.SetFloat(v.Float)
	case reflect.String:
		if v.Kind != KindString {
			return kindMismatch(t, v)
		}
		fv.SetString(v.Str)
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			if v.Kind != KindBytes {
				return kindMismatch(t, v)
			}
			fv.SetBytes(append([]byte(nil), v.Bytes...))
			return nil
		}
		if v.Kind != KindList {
			return kindMismatch(t, v)
		}
		s := reflect.MakeSlice(t, len(v.List), len(v.List))
		for i, elem := range v.List {
			if err := fieldFromValue(s.Index(i), elem); err != nil {
				return err
			}
		}
		fv.Set(s)
	case reflect.Struct:
		if v.Kind != KindList {
			return kindMismatch(t, v)
		}
		if len(v.List) != t.NumField() {
			return fmt.Errorf("struct %s has %d fields, value has %d", t, t.NumField(), len(v.List))
		}
		for i, elem := range v.List {
			if err := fieldFromValue(fv.Field(i), elem); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unsupported component field type %s", t)
	}
	return nil
}

func kindMismatch(t reflect.Type, v Value) error {
	return fmt.Errorf("cannot assign %s value to %s field", v.Kind, t)
}

// checkFieldType validates a component field type at registration time so
// that conversion failures cannot appear later on the hot path.
func checkFieldType(t reflect.Type) error {
	if t == entityType {
		return nil
	}
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.String:
		return nil
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return nil
		}
		return checkFieldType(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				return fmt.Errorf("field %s of %s is unexported", f.Name, t)
			}
			if err := checkFieldType(f.Type); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("unsupported component field type %s", t)
}
