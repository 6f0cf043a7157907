package bencode

import (
	"errors"
	"fmt"
	"math"
	"reflect"

	"golang.org/x/exp/slices"
)

var valueType = reflect.TypeOf((*Value)(nil)).Elem()

// Marshal converts x with ToValue and returns its canonical encoding.
func Marshal(x interface{}) ([]byte, error) {
	v, err := ToValue(x)
	if err != nil {
		return nil, err
	}
	return Serialize(v), nil
}

// Unmarshal parses buf and stores the result in the value pointed to by out.
func Unmarshal(buf []byte, out interface{}, opts ...DecoderOption) error {
	v, err := Parse(buf, opts...)
	if err != nil {
		return err
	}
	return FromValue(v, out)
}

// ToValue converts a Go value to a bencode value. Booleans become 0 or 1, strings and byte arrays become byte
// strings, slices and arrays become lists, and maps with string or byte array keys become dictionaries. Structs
// become dictionaries keyed by the `bencode` tag of each exported field.
func ToValue(x interface{}) (Value, error) {
	if x == nil {
		return nil, errors.New("cannot convert nil to a bencode value")
	}
	return toValue(reflect.ValueOf(x))
}

func toValue(v reflect.Value) (Value, error) {
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, fmt.Errorf("cannot convert nil %s", v.Type())
		}
		return toValue(v.Elem())
	}
	if v.Kind() != reflect.Pointer && v.Type().Implements(valueType) {
		return v.Interface().(Value), nil
	}

	switch v.Kind() {
	case reflect.Bool:
		if v.Bool() {
			return Integer(1), nil
		}
		return Integer(0), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Integer(v.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n := v.Uint()
		if n > math.MaxInt64 {
			return nil, fmt.Errorf("expected number to be at most %d, got %d", int64(math.MaxInt64), n)
		}
		return Integer(n), nil
	case reflect.String:
		return ByteString(v.String()), nil
	case reflect.Slice, reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			b := make([]byte, v.Len())
			reflect.Copy(reflect.ValueOf(b), v)
			return ByteString(b), nil
		}
		l := make(List, 0, v.Len())
		for i := 0; i != v.Len(); i++ {
			e, err := toValue(v.Index(i))
			if err != nil {
				return nil, err
			}
			l = append(l, e)
		}
		return l, nil
	case reflect.Map:
		d := make(Dictionary, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			k, err := keyToString(iter.Key())
			if err != nil {
				return nil, err
			}
			e, err := toValue(iter.Value())
			if err != nil {
				return nil, err
			}
			d[k] = e
		}
		return d, nil
	case reflect.Struct:
		return structToValue(v)
	case reflect.Pointer:
		if v.IsNil() {
			return nil, fmt.Errorf("cannot convert nil %s", v.Type())
		}
		return toValue(v.Elem())
	default:
		return nil, fmt.Errorf("unhandled kind %v", v.Kind())
	}
}

func keyToString(k reflect.Value) (string, error) {
	switch k.Kind() {
	case reflect.String:
		return k.String(), nil
	case reflect.Array:
		if k.Type().Elem().Kind() == reflect.Uint8 {
			b := make([]byte, k.Len())
			reflect.Copy(reflect.ValueOf(b), k)
			return string(b), nil
		}
	}
	return "", fmt.Errorf("cannot use %s as a dictionary key", k.Type())
}

// Returns the tagged exported fields of t in canonical key order.
func structFields(t reflect.Type) (map[string]reflect.StructField, []string, error) {
	fields := make(map[string]reflect.StructField)
	names := make([]string, 0, t.NumField())
	for i := 0; i != t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag := f.Tag.Get("bencode")
		if tag == "" {
			return nil, nil, fmt.Errorf("expected bencode tag on %s.%s", t, f.Name)
		}
		if tag == "-" {
			continue
		}
		if _, ok := fields[tag]; ok {
			return nil, nil, fmt.Errorf("duplicate bencode tag %q on %s", tag, t)
		}
		fields[tag] = f
		names = append(names, tag)
	}
	slices.Sort(names)
	return fields, names, nil
}

func structToValue(v reflect.Value) (Value, error) {
	fields, names, err := structFields(v.Type())
	if err != nil {
		return nil, err
	}
	d := make(Dictionary, len(names))
	for _, name := range names {
		e, err := toValue(v.FieldByIndex(fields[name].Index))
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		d[name] = e
	}
	return d, nil
}

// FromValue stores v in the value pointed to by out, following the same rules as ToValue in reverse. Integers are
// range checked against the destination type and every tagged struct field must be present.
func FromValue(v Value, out interface{}) error {
	if v == nil {
		return errors.New("cannot assign a nil value")
	}
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("expected a non-nil pointer, got %T", out)
	}
	return assign(v, rv.Elem())
}

func mismatch(v Value, t reflect.Type) error {
	return fmt.Errorf("cannot assign %s to %s", v.Kind(), t)
}

func assign(v Value, dst reflect.Value) error {
	t := dst.Type()
	if t == valueType || (t.Kind() != reflect.Pointer && t.Implements(valueType)) || (t.Kind() == reflect.Interface && t.NumMethod() == 0) {
		rv := reflect.ValueOf(v)
		if !rv.Type().AssignableTo(t) {
			return mismatch(v, t)
		}
		dst.Set(rv)
		return nil
	}

	switch t.Kind() {
	case reflect.Bool:
		n, ok := v.(Integer)
		if !ok {
			return mismatch(v, t)
		}
		if n != 0 && n != 1 {
			return fmt.Errorf("expected number to be 0 or 1, got %d", n)
		}
		dst.SetBool(n == 1)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, ok := v.(Integer)
		if !ok {
			return mismatch(v, t)
		}
		if dst.OverflowInt(int64(n)) {
			return fmt.Errorf("number %d does not fit in %s", n, t)
		}
		dst.SetInt(int64(n))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, ok := v.(Integer)
		if !ok {
			return mismatch(v, t)
		}
		if n < 0 || dst.OverflowUint(uint64(n)) {
			return fmt.Errorf("number %d does not fit in %s", n, t)
		}
		dst.SetUint(uint64(n))
	case reflect.String:
		b, ok := v.(ByteString)
		if !ok {
			return mismatch(v, t)
		}
		dst.SetString(string(b))
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			b, ok := v.(ByteString)
			if !ok {
				return mismatch(v, t)
			}
			s := reflect.MakeSlice(t, len(b), len(b))
			reflect.Copy(s, reflect.ValueOf([]byte(b)))
			dst.Set(s)
			return nil
		}
		l, ok := v.(List)
		if !ok {
			return mismatch(v, t)
		}
		s := reflect.MakeSlice(t, len(l), len(l))
		for i, e := range l {
			if err := assign(e, s.Index(i)); err != nil {
				return err
			}
		}
		dst.Set(s)
	case reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			b, ok := v.(ByteString)
			if !ok {
				return mismatch(v, t)
			}
			if len(b) != t.Len() {
				return fmt.Errorf("expected %d bytes for %s, got %d", t.Len(), t, len(b))
			}
			reflect.Copy(dst, reflect.ValueOf([]byte(b)))
			return nil
		}
		l, ok := v.(List)
		if !ok {
			return mismatch(v, t)
		}
		if len(l) != t.Len() {
			return fmt.Errorf("expected %d elements for %s, got %d", t.Len(), t, len(l))
		}
		for i, e := range l {
			if err := assign(e, dst.Index(i)); err != nil {
				return err
			}
		}
	case reflect.Map:
		d, ok := v.(Dictionary)
		if !ok {
			return mismatch(v, t)
		}
		m := reflect.MakeMapWithSize(t, len(d))
		for k, e := range d {
			kv, err := stringToKey(k, t.Key())
			if err != nil {
				return err
			}
			ev := reflect.New(t.Elem()).Elem()
			if err := assign(e, ev); err != nil {
				return err
			}
			m.SetMapIndex(kv, ev)
		}
		dst.Set(m)
	case reflect.Struct:
		d, ok := v.(Dictionary)
		if !ok {
			return mismatch(v, t)
		}
		return assignStruct(d, dst)
	case reflect.Pointer:
		p := reflect.New(t.Elem())
		if err := assign(v, p.Elem()); err != nil {
			return err
		}
		dst.Set(p)
	default:
		return fmt.Errorf("unhandled kind %v", t.Kind())
	}
	return nil
}

func stringToKey(k string, t reflect.Type) (reflect.Value, error) {
	switch t.Kind() {
	case reflect.String:
		return reflect.ValueOf(k).Convert(t), nil
	case reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			if len(k) != t.Len() {
				return reflect.Value{}, fmt.Errorf("expected %d byte key for %s, got %d", t.Len(), t, len(k))
			}
			kv := reflect.New(t).Elem()
			reflect.Copy(kv, reflect.ValueOf([]byte(k)))
			return kv, nil
		}
	}
	return reflect.Value{}, fmt.Errorf("cannot use %s as a dictionary key", t)
}

func assignStruct(d Dictionary, dst reflect.Value) error {
	fields, names, err := structFields(dst.Type())
	if err != nil {
		return err
	}
	for _, name := range names {
		e, ok := d[name]
		if !ok {
			return fmt.Errorf("missing key for %s", name)
		}
		if err := assign(e, dst.FieldByIndex(fields[name].Index)); err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
	}
	if len(d) != len(names) {
		for k := range d {
			if _, ok := fields[k]; !ok {
				return fmt.Errorf("unexpected key %q for %s", k, dst.Type())
			}
		}
	}
	return nil
}
