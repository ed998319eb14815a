package abi

import "strconv"

// TypeSchema is the static description of an ABI type: enough to decode a
// value, but carrying no data of its own. AbiValue is the dual — a value
// that carries enough type information to encode itself — and the two are
// isomorphic (§3.1). Schema() on an AbiValue derives one from the other;
// there is deliberately no reverse "zero value for a schema" helper, since
// decoding always produces a concrete AbiValue anyway.
type TypeSchema struct {
	Kind       Kind
	BitWidth   int           // Uint/Int: bit width, 8..256, multiple of 8
	FixedSize  int           // FixedBytes: byte length 1..32; Array: element count, or DynArrayLen
	Elem       *TypeSchema   // Array: element schema
	Components []*TypeSchema // Tuple: component schemas, in order
}

func UintSchema(bitWidth int) *TypeSchema   { return &TypeSchema{Kind: KindUint, BitWidth: bitWidth} }
func IntSchema(bitWidth int) *TypeSchema    { return &TypeSchema{Kind: KindInt, BitWidth: bitWidth} }
func AddressSchema() *TypeSchema            { return &TypeSchema{Kind: KindAddress} }
func BoolSchema() *TypeSchema               { return &TypeSchema{Kind: KindBool} }
func FixedBytesSchema(n int) *TypeSchema    { return &TypeSchema{Kind: KindFixedBytes, FixedSize: n} }
func DynamicBytesSchema() *TypeSchema       { return &TypeSchema{Kind: KindDynamicBytes} }
func StringSchema() *TypeSchema             { return &TypeSchema{Kind: KindString} }

func ArraySchema(elem *TypeSchema, length int) *TypeSchema {
	return &TypeSchema{Kind: KindArray, Elem: elem, FixedSize: length}
}

func TupleSchema(components ...*TypeSchema) *TypeSchema {
	return &TypeSchema{Kind: KindTuple, Components: components}
}

// IsDynamic reports whether this type's encoding has variable length and
// therefore must be placed in the tail and referenced by a head offset.
func (s *TypeSchema) IsDynamic() bool {
	switch s.Kind {
	case KindDynamicBytes, KindString:
		return true
	case KindArray:
		if s.FixedSize == DynArrayLen {
			return true
		}
		return s.Elem.IsDynamic()
	case KindTuple:
		for _, c := range s.Components {
			if c.IsDynamic() {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// HeadSize is the number of bytes this type occupies in a head position:
// 32 for any dynamic type (an offset slot) or its StaticSize otherwise.
func (s *TypeSchema) HeadSize() int {
	if s.IsDynamic() {
		return wordSize
	}
	return s.StaticSize()
}

// StaticSize is only meaningful when !IsDynamic(); it is the exact encoded
// byte length of the type with no offsets involved.
func (s *TypeSchema) StaticSize() int {
	switch s.Kind {
	case KindUint, KindInt, KindAddress, KindBool, KindFixedBytes:
		return wordSize
	case KindArray:
		return s.FixedSize * s.Elem.StaticSize()
	case KindTuple:
		total := 0
		for _, c := range s.Components {
			total += c.StaticSize()
		}
		return total
	default:
		return 0
	}
}

// Canonical renders the type the way it appears in a function/event
// signature: elementary types by name, tuples expanded as "(T1,T2,...)",
// arrays with their "[n]"/"[]" suffix appended after the element's own
// canonical form.
func (s *TypeSchema) Canonical() string {
	switch s.Kind {
	case KindUint:
		return "uint" + strconv.Itoa(s.BitWidth)
	case KindInt:
		return "int" + strconv.Itoa(s.BitWidth)
	case KindAddress:
		return "address"
	case KindBool:
		return "bool"
	case KindFixedBytes:
		return "bytes" + strconv.Itoa(s.FixedSize)
	case KindDynamicBytes:
		return "bytes"
	case KindString:
		return "string"
	case KindArray:
		if s.FixedSize == DynArrayLen {
			return s.Elem.Canonical() + "[]"
		}
		return s.Elem.Canonical() + "[" + strconv.Itoa(s.FixedSize) + "]"
	case KindTuple:
		out := "("
		for i, c := range s.Components {
			if i > 0 {
				out += ","
			}
			out += c.Canonical()
		}
		return out + ")"
	default:
		return "?"
	}
}
