package abi

import (
	"fmt"
	"math"
	"math/big"

	"github.com/holiman/uint256"
)

// Decoder converts ABI-encoded bytes, interpreted under a sequence of
// TypeSchemas, back into AbiValues. The zero value is ready to use.
type Decoder struct{}

// NewDecoder returns a ready-to-use Decoder.
func NewDecoder() *Decoder { return &Decoder{} }

// Decode interprets data as a tuple encoding under schemas (§4.2). It never
// panics: truncated buffers, out-of-range offsets/lengths, and overflowing
// conversions all surface as *Error with Kind == ErrDecoding.
func (d *Decoder) Decode(data []byte, schemas []*TypeSchema) ([]*AbiValue, error) {
	return decodeTuple(data, 0, schemas, "")
}

func path(parent string, i int) string {
	if parent == "" {
		return fmt.Sprintf("[%d]", i)
	}
	return fmt.Sprintf("%s[%d]", parent, i)
}

// decodeTuple decodes len(schemas) values whose head area begins at the
// absolute position root within data. Every nested dynamic schema recurses
// with its own root — offsets are always relative to the tuple that
// directly contains the offset word (§4.2).
func decodeTuple(data []byte, root int, schemas []*TypeSchema, parentPath string) ([]*AbiValue, error) {
	values := make([]*AbiValue, len(schemas))
	cursor := root
	for i, s := range schemas {
		field := path(parentPath, i)
		if s.IsDynamic() {
			off, err := readOffset(data, cursor, field)
			if err != nil {
				return nil, err
			}
			cursor += wordSize
			abs := root + off
			if abs < 0 || abs > len(data) {
				return nil, decErr(field, "offset %d resolves outside the buffer (len %d)", abs, len(data))
			}
			v, err := decodeDynamic(data, abs, s, field)
			if err != nil {
				return nil, err
			}
			values[i] = v
			continue
		}

		sz := s.StaticSize()
		if cursor+sz > len(data) {
			return nil, decErr(field, "head area truncated: need %d bytes at offset %d, buffer has %d", sz, cursor, len(data))
		}
		v, err := decodeStatic(data[cursor:cursor+sz], s, field)
		if err != nil {
			return nil, err
		}
		values[i] = v
		cursor += sz
	}
	return values, nil
}

// decodeDynamic decodes the tail encoding of a dynamic schema rooted at the
// absolute position abs within data.
func decodeDynamic(data []byte, abs int, s *TypeSchema, field string) (*AbiValue, error) {
	switch s.Kind {
	case KindDynamicBytes, KindString:
		length, err := readLength(data, abs, field)
		if err != nil {
			return nil, err
		}
		start := abs + wordSize
		end := start + length
		if end < start || end > len(data) {
			return nil, decErr(field, "payload of length %d at offset %d exceeds buffer (len %d)", length, start, len(data))
		}
		payload := data[start:end]
		if s.Kind == KindString {
			return NewString(string(payload)), nil
		}
		return NewDynamicBytes(payload), nil

	case KindArray:
		if s.FixedSize == DynArrayLen {
			length, err := readLength(data, abs, field)
			if err != nil {
				return nil, err
			}
			if length*wordSize > len(data)-(abs+wordSize) {
				return nil, decErr(field, "array length %d at offset %d cannot fit in remaining buffer (len %d)", length, abs, len(data))
			}
			elemSchemas := make([]*TypeSchema, length)
			for i := range elemSchemas {
				elemSchemas[i] = s.Elem
			}
			elems, err := decodeTuple(data, abs+wordSize, elemSchemas, field)
			if err != nil {
				return nil, err
			}
			return NewArray(s.Elem, DynArrayLen, elems)
		}
		elemSchemas := make([]*TypeSchema, s.FixedSize)
		for i := range elemSchemas {
			elemSchemas[i] = s.Elem
		}
		elems, err := decodeTuple(data, abs, elemSchemas, field)
		if err != nil {
			return nil, err
		}
		return NewArray(s.Elem, s.FixedSize, elems)

	case KindTuple:
		elems, err := decodeTuple(data, abs, s.Components, field)
		if err != nil {
			return nil, err
		}
		return NewTuple(elems...), nil

	default:
		// A non-dynamic schema should never reach here; decodeTuple routes
		// statics through decodeStatic instead.
		sz := s.StaticSize()
		if abs+sz > len(data) {
			return nil, decErr(field, "truncated buffer: need %d bytes at offset %d", sz, abs)
		}
		return decodeStatic(data[abs:abs+sz], s, field)
	}
}

// decodeStatic decodes a non-dynamic schema from a buffer slice that is
// exactly schema.StaticSize() bytes long and self-contained (no offsets).
func decodeStatic(buf []byte, s *TypeSchema, field string) (*AbiValue, error) {
	switch s.Kind {
	case KindUint:
		return &AbiValue{Kind: KindUint, BitWidth: s.BitWidth, Int: wordToUint(buf)}, nil
	case KindInt:
		return &AbiValue{Kind: KindInt, BitWidth: s.BitWidth, Int: wordToInt(buf)}, nil
	case KindAddress:
		var addr [20]byte
		copy(addr[:], buf[wordSize-20:])
		return NewAddress(addr), nil
	case KindBool:
		return NewBool(buf[wordSize-1] == 1), nil
	case KindFixedBytes:
		b, err := NewFixedBytes(s.FixedSize, buf[:s.FixedSize])
		if err != nil {
			return nil, decErrWrap(field, err, "invalid fixedBytes")
		}
		return b, nil
	case KindArray:
		elemSize := s.Elem.StaticSize()
		elems := make([]*AbiValue, s.FixedSize)
		for i := 0; i < s.FixedSize; i++ {
			start := i * elemSize
			v, err := decodeStatic(buf[start:start+elemSize], s.Elem, path(field, i))
			if err != nil {
				return nil, err
			}
			elems[i] = v
		}
		return NewArray(s.Elem, s.FixedSize, elems)
	case KindTuple:
		elems := make([]*AbiValue, len(s.Components))
		cursor := 0
		for i, c := range s.Components {
			sz := c.StaticSize()
			v, err := decodeStatic(buf[cursor:cursor+sz], c, path(field, i))
			if err != nil {
				return nil, err
			}
			elems[i] = v
			cursor += sz
		}
		return NewTuple(elems...), nil
	default:
		return nil, decErr(field, "unknown static kind %s", s.Kind)
	}
}

// readOffset reads a 32-byte unsigned offset word at pos and checks it fits
// a signed 32-bit integer, per §4.2's bounds rules.
func readOffset(data []byte, pos int, field string) (int, error) {
	return readUint32Word(data, pos, field, "offset")
}

// readLength reads a 32-byte unsigned length word at pos.
func readLength(data []byte, pos int, field string) (int, error) {
	return readUint32Word(data, pos, field, "length")
}

func readUint32Word(data []byte, pos int, field, what string) (int, error) {
	if pos < 0 || pos+wordSize > len(data) {
		return 0, decErr(field, "%s word truncated at offset %d (buffer len %d)", what, pos, len(data))
	}
	v := wordToUint(data[pos : pos+wordSize])
	if v.Sign() < 0 || v.Cmp(big.NewInt(math.MaxInt32)) > 0 {
		return 0, decErr(field, "%s %s does not fit a signed 32-bit integer", what, v.String())
	}
	return int(v.Int64()), nil
}

// wordToUint interprets a 32-byte big-endian word as an unsigned integer.
func wordToUint(buf []byte) *big.Int {
	var u uint256.Int
	u.SetBytes(buf)
	return u.ToBig()
}

// wordToInt interprets a 32-byte big-endian word as a two's-complement
// signed integer.
func wordToInt(buf []byte) *big.Int {
	v := wordToUint(buf)
	if buf[0] < 0x80 {
		return v
	}
	return new(big.Int).Sub(v, twoPow256)
}
