package abi

import (
	"math/big"
)

// AbiValue is a tagged value carrying both its type and its content — the
// encoder's input. It is the dual of TypeSchema (the decoder's input); the
// two are isomorphic (§3.1) but only the Value → Schema direction is stored,
// since decoding always manufactures a fresh AbiValue from bytes anyway.
type AbiValue struct {
	Kind      Kind
	BitWidth  int
	Int       *big.Int    // Uint, Int
	Address   [20]byte    // Address
	Bool      bool        // Bool
	Bytes     []byte      // FixedBytes (len == FixedSize), DynamicBytes
	FixedSize int         // FixedBytes byte length; Array element count or DynArrayLen
	Str       string      // String
	Elem      *TypeSchema // Array: schema of every element (needed even when Array is empty)
	Elems     []*AbiValue // Array, Tuple
}

func uintBound(bitWidth int) *big.Int {
	return new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), uint(bitWidth)), big.NewInt(1))
}

func intBounds(bitWidth int) (min, max *big.Int) {
	max = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), uint(bitWidth-1)), big.NewInt(1))
	min = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), uint(bitWidth-1)))
	return min, max
}

func validBitWidth(w int) bool {
	return w >= 8 && w <= 256 && w%8 == 0
}

// NewUint constructs an unsigned integer value, rejecting out-of-range
// magnitudes and malformed widths at construction time (§3.1 invariants).
func NewUint(bitWidth int, v *big.Int) (*AbiValue, error) {
	if !validBitWidth(bitWidth) {
		return nil, encErr("uint", "bit width %d is not a multiple of 8 in [8,256]", bitWidth)
	}
	if v.Sign() < 0 {
		return nil, encErr("uint", "value %s is negative", v.String())
	}
	if v.Cmp(uintBound(bitWidth)) > 0 {
		return nil, encErr("uint", "value %s exceeds uint%d range", v.String(), bitWidth)
	}
	return &AbiValue{Kind: KindUint, BitWidth: bitWidth, Int: new(big.Int).Set(v)}, nil
}

// NewInt constructs a signed integer value, enforcing the two's-complement
// range for the given width.
func NewInt(bitWidth int, v *big.Int) (*AbiValue, error) {
	if !validBitWidth(bitWidth) {
		return nil, encErr("int", "bit width %d is not a multiple of 8 in [8,256]", bitWidth)
	}
	min, max := intBounds(bitWidth)
	if v.Cmp(min) < 0 || v.Cmp(max) > 0 {
		return nil, encErr("int", "value %s outside int%d range [%s,%s]", v.String(), bitWidth, min.String(), max.String())
	}
	return &AbiValue{Kind: KindInt, BitWidth: bitWidth, Int: new(big.Int).Set(v)}, nil
}

// NewAddress constructs an address value from its 20 raw bytes.
func NewAddress(b [20]byte) *AbiValue {
	return &AbiValue{Kind: KindAddress, Address: b}
}

// NewAddressFromHex parses a "0x"-prefixed or bare 40-hex-digit address.
func NewAddressFromHex(s string) (*AbiValue, error) {
	b, err := DecodeHex(s)
	if err != nil {
		return nil, encErr("address", "invalid hex: %v", err)
	}
	if len(b) != 20 {
		return nil, encErr("address", "expected 20 bytes, got %d", len(b))
	}
	var out [20]byte
	copy(out[:], b)
	return NewAddress(out), nil
}

// NewBool constructs a boolean value.
func NewBool(b bool) *AbiValue {
	return &AbiValue{Kind: KindBool, Bool: b}
}

// NewFixedBytes constructs a bytesN value; n must be in [1,32] and b must
// have exactly n bytes.
func NewFixedBytes(n int, b []byte) (*AbiValue, error) {
	if n < 1 || n > 32 {
		return nil, encErr("fixedBytes", "width %d outside [1,32]", n)
	}
	if len(b) != n {
		return nil, encErr("fixedBytes", "expected %d bytes, got %d", n, len(b))
	}
	out := make([]byte, n)
	copy(out, b)
	return &AbiValue{Kind: KindFixedBytes, FixedSize: n, Bytes: out}, nil
}

// NewDynamicBytes constructs a `bytes` value.
func NewDynamicBytes(b []byte) *AbiValue {
	out := make([]byte, len(b))
	copy(out, b)
	return &AbiValue{Kind: KindDynamicBytes, Bytes: out}
}

// NewString constructs a `string` value. Go strings are already UTF-8 byte
// sequences, so unlike a UTF-16-native host language there is no temporary
// encoded buffer to build: len(s) already is the UTF-8 byte length.
func NewString(s string) *AbiValue {
	return &AbiValue{Kind: KindString, Str: s}
}

// NewArray constructs an array value. length is the fixed element count, or
// DynArrayLen for a dynamically sized `elem[]`. elemSchema is required even
// for an empty array, since the array's own dynamism depends on its element
// type.
func NewArray(elemSchema *TypeSchema, length int, elems []*AbiValue) (*AbiValue, error) {
	if length != DynArrayLen {
		if length < 0 {
			return nil, encErr("array", "negative fixed length %d", length)
		}
		if len(elems) != length {
			return nil, encErr("array", "expected %d elements, got %d", length, len(elems))
		}
	}
	cp := make([]*AbiValue, len(elems))
	copy(cp, elems)
	return &AbiValue{Kind: KindArray, Elem: elemSchema, FixedSize: length, Elems: cp}, nil
}

// NewTuple constructs a tuple value from its components, in order.
func NewTuple(components ...*AbiValue) *AbiValue {
	cp := make([]*AbiValue, len(components))
	copy(cp, components)
	return &AbiValue{Kind: KindTuple, Elems: cp}
}

// Schema derives the static TypeSchema this value encodes under.
func (v *AbiValue) Schema() *TypeSchema {
	switch v.Kind {
	case KindUint:
		return UintSchema(v.BitWidth)
	case KindInt:
		return IntSchema(v.BitWidth)
	case KindAddress:
		return AddressSchema()
	case KindBool:
		return BoolSchema()
	case KindFixedBytes:
		return FixedBytesSchema(v.FixedSize)
	case KindDynamicBytes:
		return DynamicBytesSchema()
	case KindString:
		return StringSchema()
	case KindArray:
		return ArraySchema(v.Elem, v.FixedSize)
	case KindTuple:
		components := make([]*TypeSchema, len(v.Elems))
		for i, e := range v.Elems {
			components[i] = e.Schema()
		}
		return TupleSchema(components...)
	default:
		return nil
	}
}

// IsDynamic reports whether this value's encoding is variable-length.
func (v *AbiValue) IsDynamic() bool {
	switch v.Kind {
	case KindDynamicBytes, KindString:
		return true
	case KindArray:
		if v.FixedSize == DynArrayLen {
			return true
		}
		return v.Elem.IsDynamic()
	case KindTuple:
		for _, e := range v.Elems {
			if e.IsDynamic() {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// HeadSize is this value's contribution to a head area: 32 bytes (an
// offset slot) if dynamic, its exact static width otherwise.
func (v *AbiValue) HeadSize() int {
	if v.IsDynamic() {
		return wordSize
	}
	return v.StaticSize()
}

// StaticSize is only valid when !IsDynamic().
func (v *AbiValue) StaticSize() int {
	switch v.Kind {
	case KindUint, KindInt, KindAddress, KindBool, KindFixedBytes:
		return wordSize
	case KindArray:
		total := 0
		for _, e := range v.Elems {
			total += e.StaticSize()
		}
		return total
	case KindTuple:
		total := 0
		for _, e := range v.Elems {
			total += e.StaticSize()
		}
		return total
	default:
		return 0
	}
}

// ceilWords rounds a byte length up to the next multiple of 32.
func ceilWords(n int) int {
	return ((n + wordSize - 1) / wordSize) * wordSize
}

// headsAndDynamicTails sums the head sizes of a sequence of values plus the
// content size of every dynamic value among them — the shared arithmetic
// behind a dynamic tuple's or array's own content_byte_size (§4.1).
func headsAndDynamicTails(vs []*AbiValue) int {
	total := 0
	for _, v := range vs {
		total += v.HeadSize()
		if v.IsDynamic() {
			total += v.ContentByteSize()
		}
	}
	return total
}

// ContentByteSize is the tail size of a dynamic value — meaningless unless
// IsDynamic() is true.
func (v *AbiValue) ContentByteSize() int {
	switch v.Kind {
	case KindDynamicBytes:
		return wordSize + ceilWords(len(v.Bytes))
	case KindString:
		return wordSize + ceilWords(len(v.Str))
	case KindArray:
		size := headsAndDynamicTails(v.Elems)
		if v.FixedSize == DynArrayLen {
			size += wordSize
		}
		return size
	case KindTuple:
		return headsAndDynamicTails(v.Elems)
	default:
		return 0
	}
}
