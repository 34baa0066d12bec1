package cache

import (
	"bytes"
	"encoding"
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"strconv"
)

// Key identifies a cacheable call: the policy key or operation name, followed
// by each argument whose position the policy does not exclude.
//
// Keys compare by their canonical form (String), never by argument identity.
// The canonical form tags every value with its Go type, follows pointers, and
// sorts map entries. It is stable across processes, which is what lets
// FileStore rebuild its index from disk. Arguments holding channels, funcs,
// NaN, or structs with unexported fields have no canonical form.
type Key struct {
	name string
	args []any
	id   string
}

// BuildKey derives the key for a call to op with args under p.
// Excluded positions are skipped without a placeholder, so keys built from the
// same operation may differ in length.
func BuildKey(p Policy, op string, args []any) (Key, error) {
	name := p.prefix(op)

	kept := make([]any, 0, len(args))
	for i, arg := range args {
		if p.excludes(i) {
			continue
		}
		kept = append(kept, arg)
	}

	id, err := canonicalKey(name, kept)
	if err != nil {
		return Key{}, fmt.Errorf("%w: %w", ErrUnkeyable, err)
	}
	return Key{name: name, args: kept, id: id}, nil
}

// Name returns the first key element.
func (k Key) Name() string { return k.name }

// Args returns a copy of the argument elements of the key.
func (k Key) Args() []any { return slices.Clone(k.args) }

// Len returns the number of key elements, including the name.
func (k Key) Len() int { return len(k.args) + 1 }

// String returns the canonical form of the key.
func (k Key) String() string { return k.id }

// Equal reports whether k and o identify the same entry.
func (k Key) Equal(o Key) bool { return k.id == o.id }

// IsZero reports whether k is the zero Key.
func (k Key) IsZero() bool { return k.id == "" }

// maxKeyDepth bounds nesting so cyclic pointers fail instead of recursing.
const maxKeyDepth = 32

var (
	jsonMarshalerType = reflect.TypeFor[json.Marshaler]()
	textMarshalerType = reflect.TypeFor[encoding.TextMarshaler]()
)

// canonicalKey renders ["name",{"<type>":<value>},...]. Every value carries its
// Go type at every depth, so int(1) and float64(1) differ inside slices, maps
// and structs too.
func canonicalKey(name string, args []any) (string, error) {
	buf, err := json.Marshal(name)
	if err != nil {
		return "", err
	}
	out := append([]byte{'['}, buf...)

	for i, arg := range args {
		out = append(out, ',')
		out, err = appendTagged(out, reflect.ValueOf(arg), 0)
		if err != nil {
			return "", fmt.Errorf("argument %d (%T): %w", i, arg, err)
		}
	}

	return string(append(out, ']')), nil
}

// appendTagged appends {"<type>":<value>} for v, or null when v is a nil
// interface.
func appendTagged(out []byte, v reflect.Value, depth int) ([]byte, error) {
	for v.IsValid() && v.Kind() == reflect.Interface {
		if v.IsNil() {
			return append(out, "null"...), nil
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return append(out, "null"...), nil
	}
	if depth > maxKeyDepth {
		return nil, fmt.Errorf("nested deeper than %d levels", maxKeyDepth)
	}

	tag, err := json.Marshal(v.Type().String())
	if err != nil {
		return nil, err
	}
	out = append(out, '{')
	out = append(out, tag...)
	out = append(out, ':')
	if out, err = appendValue(out, v, depth); err != nil {
		return nil, err
	}
	return append(out, '}'), nil
}

// appendValue appends the untagged canonical form of v. Values implementing
// json.Marshaler or encoding.TextMarshaler are keyed by that encoding. Structs
// with unexported fields are rejected.
func appendValue(out []byte, v reflect.Value, depth int) ([]byte, error) {
	t := v.Type()
	if t.Implements(jsonMarshalerType) || t.Implements(textMarshalerType) {
		b, err := json.Marshal(v.Interface())
		if err != nil {
			return nil, err
		}
		return append(out, b...), nil
	}

	switch v.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		b, err := json.Marshal(v.Interface())
		if err != nil {
			return nil, err
		}
		return append(out, b...), nil

	case reflect.Complex64, reflect.Complex128:
		b, err := json.Marshal(strconv.FormatComplex(v.Complex(), 'g', -1, t.Bits()))
		if err != nil {
			return nil, err
		}
		return append(out, b...), nil

	case reflect.Pointer:
		if v.IsNil() {
			return append(out, "null"...), nil
		}
		return appendTagged(out, v.Elem(), depth+1)

	case reflect.Slice:
		if v.IsNil() {
			return append(out, "null"...), nil
		}
		if t.Elem().Kind() == reflect.Uint8 {
			b, err := json.Marshal(v.Bytes())
			if err != nil {
				return nil, err
			}
			return append(out, b...), nil
		}
		return appendElems(out, v, depth)

	case reflect.Array:
		return appendElems(out, v, depth)

	case reflect.Map:
		if v.IsNil() {
			return append(out, "null"...), nil
		}
		return appendMap(out, v, depth)

	case reflect.Struct:
		return appendStruct(out, v, depth)

	default:
		return nil, fmt.Errorf("unsupported kind %s", v.Kind())
	}
}

func appendElems(out []byte, v reflect.Value, depth int) ([]byte, error) {
	out = append(out, '[')
	for i := 0; i < v.Len(); i++ {
		if i > 0 {
			out = append(out, ',')
		}
		var err error
		if out, err = appendTagged(out, v.Index(i), depth+1); err != nil {
			return nil, err
		}
	}
	return append(out, ']'), nil
}

// appendMap renders a map as [[key,value],...] sorted by the canonical key.
func appendMap(out []byte, v reflect.Value, depth int) ([]byte, error) {
	type entry struct{ key, val []byte }
	entries := make([]entry, 0, v.Len())

	iter := v.MapRange()
	for iter.Next() {
		k, err := appendTagged(nil, iter.Key(), depth+1)
		if err != nil {
			return nil, err
		}
		val, err := appendTagged(nil, iter.Value(), depth+1)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry{k, val})
	}
	slices.SortFunc(entries, func(a, b entry) int { return bytes.Compare(a.key, b.key) })

	out = append(out, '[')
	for i, e := range entries {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, '[')
		out = append(out, e.key...)
		out = append(out, ',')
		out = append(out, e.val...)
		out = append(out, ']')
	}
	return append(out, ']'), nil
}

// appendStruct renders exported fields in declaration order.
func appendStruct(out []byte, v reflect.Value, depth int) ([]byte, error) {
	t := v.Type()
	out = append(out, '{')
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			return nil, fmt.Errorf("%s has unexported field %s", t, f.Name)
		}
		if i > 0 {
			out = append(out, ',')
		}
		name, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, name...)
		out = append(out, ':')
		if out, err = appendTagged(out, v.Field(i), depth+1); err != nil {
			return nil, err
		}
	}
	return append(out, '}'), nil
}
