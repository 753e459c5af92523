// Package codec implements the two wire representations of every message and
// query type: a compact, deterministic protobuf-compatible binary encoding and a
// JSON encoding with lowerCamelCase names.
package codec

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ruteri/envelope-registry/interfaces"
	"google.golang.org/protobuf/encoding/protowire"
)

var (
	ErrUnsupportedType = errors.New("unsupported message type")
	ErrMalformed       = errors.New("malformed encoding")
)

// encoder appends fields in the order they are written. Callers write fields in
// field-number order, which together with sorted maps makes output deterministic.
type encoder struct {
	b []byte
}

func (e *encoder) uint(num protowire.Number, v uint64) {
	if v == 0 {
		return
	}
	e.b = protowire.AppendTag(e.b, num, protowire.VarintType)
	e.b = protowire.AppendVarint(e.b, v)
}

func (e *encoder) bool(num protowire.Number, v bool) {
	if v {
		e.uint(num, 1)
	}
}

func (e *encoder) bytes(num protowire.Number, v []byte) {
	if len(v) == 0 {
		return
	}
	e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
	e.b = protowire.AppendBytes(e.b, v)
}

func (e *encoder) string(num protowire.Number, v string) {
	if v == "" {
		return
	}
	e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
	e.b = protowire.AppendString(e.b, v)
}

// repeatedBytes writes every element, including empty ones.
func (e *encoder) repeatedBytes(num protowire.Number, vs [][]byte) {
	for _, v := range vs {
		e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
		e.b = protowire.AppendBytes(e.b, v)
	}
}

func (e *encoder) repeatedString(num protowire.Number, vs []string) {
	for _, v := range vs {
		e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
		e.b = protowire.AppendString(e.b, v)
	}
}

func (e *encoder) message(num protowire.Number, fn func(*encoder)) {
	var sub encoder
	fn(&sub)
	e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
	e.b = protowire.AppendBytes(e.b, sub.b)
}

// stringMap writes map entries sorted by key.
func (e *encoder) stringMap(num protowire.Number, m map[string]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
		var entry []byte
		entry = protowire.AppendTag(entry, 1, protowire.BytesType)
		entry = protowire.AppendString(entry, k)
		entry = protowire.AppendTag(entry, 2, protowire.BytesType)
		entry = protowire.AppendString(entry, m[k])
		e.b = protowire.AppendBytes(e.b, entry)
	}
}

func (e *encoder) address(num protowire.Number, a interfaces.Address) {
	if !a.IsZero() {
		e.string(num, a.String())
	}
}

// field is a decoded varint or length-delimited field value.
type field struct {
	num protowire.Number
	typ protowire.Type
	u   uint64
	raw []byte
}

func (f field) uint64() (uint64, error) {
	if f.typ != protowire.VarintType {
		return 0, fmt.Errorf("%w: field %d: expected varint", ErrMalformed, f.num)
	}
	return f.u, nil
}

func (f field) uint32() (uint32, error) {
	v, err := f.uint64()
	if err != nil {
		return 0, err
	}
	if v > 0xffffffff {
		return 0, fmt.Errorf("%w: field %d: value overflows uint32", ErrMalformed, f.num)
	}
	return uint32(v), nil
}

func (f field) bool() (bool, error) {
	v, err := f.uint64()
	return v != 0, err
}

// bytes returns a copy, so decoded values never alias the input buffer.
func (f field) bytes() ([]byte, error) {
	if f.typ != protowire.BytesType {
		return nil, fmt.Errorf("%w: field %d: expected bytes", ErrMalformed, f.num)
	}
	return append([]byte(nil), f.raw...), nil
}

func (f field) string() (string, error) {
	if f.typ != protowire.BytesType {
		return "", fmt.Errorf("%w: field %d: expected bytes", ErrMalformed, f.num)
	}
	return string(f.raw), nil
}

func (f field) address() (interfaces.Address, error) {
	s, err := f.string()
	if err != nil {
		return interfaces.Address{}, err
	}
	return interfaces.NewAddressFromHex(s)
}

func (f field) message(fn func(field) error) error {
	if f.typ != protowire.BytesType {
		return fmt.Errorf("%w: field %d: expected message", ErrMalformed, f.num)
	}
	return decodeFields(f.raw, fn)
}

// decodeFields calls fn for every varint and length-delimited field. Fields of
// other wire types are skipped, as are unknown field numbers by convention of fn.
func decodeFields(b []byte, fn func(field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.u, n = protowire.ConsumeVarint(b)
		case protowire.BytesType:
			f.raw, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
		}
		b = b[n:]

		if typ != protowire.VarintType && typ != protowire.BytesType {
			continue
		}
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

func decodeMapEntry(f field) (string, string, error) {
	var k, v string
	err := f.message(func(ef field) (err error) {
		switch ef.num {
		case 1:
			k, err = ef.string()
		case 2:
			v, err = ef.string()
		}
		return err
	})
	return k, v, err
}

// Marshal returns the binary encoding of msg, which must be a pointer to one of
// the interfaces message, query or domain types.
func Marshal(msg any) ([]byte, error) {
	e := &encoder{}
	if err := encodeAny(e, msg); err != nil {
		return nil, err
	}
	return e.b, nil
}

// Unmarshal decodes the binary encoding into msg, which must be a pointer to a
// supported type. msg is reset first.
func Unmarshal(data []byte, msg any) error {
	return decodeAny(data, msg)
}
