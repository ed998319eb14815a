package abi

import (
	"math/big"

	"github.com/holiman/uint256"
)

var twoPow256 = new(big.Int).Lsh(big.NewInt(1), 256)

// Encoder converts a sequence of AbiValues into ABI-encoded bytes.
// The zero value is ready to use; Encoder carries no state between calls.
type Encoder struct{}

// NewEncoder returns a ready-to-use Encoder.
func NewEncoder() *Encoder { return &Encoder{} }

// Encode serializes values as a tuple encoding: the head/tail layout of
// §3.1 and §4.1, with no function selector.
func (e *Encoder) Encode(values []*AbiValue) ([]byte, error) {
	return encodeTuple(values)
}

// EncodeFunction prepends the 4-byte selector of sig (the first 4 bytes of
// Keccak-256 of its ASCII bytes) to Encode(values).
func (e *Encoder) EncodeFunction(sig string, values []*AbiValue) ([]byte, error) {
	body, err := encodeTuple(values)
	if err != nil {
		return nil, err
	}
	sel := Selector(sig)
	out := make([]byte, 4+len(body))
	copy(out, sel[:])
	copy(out[4:], body)
	return out, nil
}

// EncodeConstructor is identical to Encode; it yields empty bytes iff no
// values were supplied (no constructor to call).
func (e *Encoder) EncodeConstructor(values []*AbiValue) ([]byte, error) {
	if len(values) == 0 {
		return []byte{}, nil
	}
	return encodeTuple(values)
}

// encodeTuple implements the two-pass head/tail algorithm of §4.1 for any
// ordered sequence of values — the root call for Encode, and recursively
// for every dynamic array or tuple's own tail content.
func encodeTuple(values []*AbiValue) ([]byte, error) {
	headSize := 0
	for _, v := range values {
		headSize += v.HeadSize()
	}
	total := headSize
	for _, v := range values {
		if v.IsDynamic() {
			total += v.ContentByteSize()
		}
	}

	out := make([]byte, total)
	headCursor := 0
	tailCursor := headSize
	for _, v := range values {
		if v.IsDynamic() {
			writeUint256(out[headCursor:headCursor+wordSize], big.NewInt(int64(tailCursor)))
			headCursor += wordSize

			tail, err := encodeValue(v)
			if err != nil {
				return nil, err
			}
			copy(out[tailCursor:], tail)
			tailCursor += len(tail)
			continue
		}

		b, err := encodeStatic(v)
		if err != nil {
			return nil, err
		}
		copy(out[headCursor:], b)
		headCursor += len(b)
	}
	return out, nil
}

// encodeValue dispatches a value's full "tail" encoding — the bytes that
// land at the offset a dynamic head slot points to.
func encodeValue(v *AbiValue) ([]byte, error) {
	switch v.Kind {
	case KindDynamicBytes:
		return encodeBytesTail(v.Bytes), nil
	case KindString:
		return encodeBytesTail([]byte(v.Str)), nil
	case KindArray:
		body, err := encodeTuple(v.Elems)
		if err != nil {
			return nil, err
		}
		if v.FixedSize != DynArrayLen {
			return body, nil
		}
		out := make([]byte, wordSize+len(body))
		writeUint256(out[:wordSize], big.NewInt(int64(len(v.Elems))))
		copy(out[wordSize:], body)
		return out, nil
	case KindTuple:
		return encodeTuple(v.Elems)
	default:
		return encodeStatic(v)
	}
}

// encodeBytesTail writes a length-prefixed, right-zero-padded byte blob:
// the shared tail shape of DynamicBytes and String.
func encodeBytesTail(data []byte) []byte {
	out := make([]byte, wordSize+ceilWords(len(data)))
	writeUint256(out[:wordSize], big.NewInt(int64(len(data))))
	copy(out[wordSize:], data)
	return out
}

// encodeStatic encodes a non-dynamic value into exactly v.StaticSize() bytes.
func encodeStatic(v *AbiValue) ([]byte, error) {
	switch v.Kind {
	case KindUint:
		out := make([]byte, wordSize)
		writeUint256(out, v.Int)
		return out, nil
	case KindInt:
		out := make([]byte, wordSize)
		writeInt256(out, v.Int)
		return out, nil
	case KindAddress:
		out := make([]byte, wordSize)
		copy(out[wordSize-20:], v.Address[:])
		return out, nil
	case KindBool:
		out := make([]byte, wordSize)
		if v.Bool {
			out[wordSize-1] = 1
		}
		return out, nil
	case KindFixedBytes:
		out := make([]byte, wordSize)
		copy(out, v.Bytes)
		return out, nil
	case KindArray:
		out := make([]byte, 0, v.StaticSize())
		for _, e := range v.Elems {
			b, err := encodeStatic(e)
			if err != nil {
				return nil, err
			}
			out = append(out, b...)
		}
		return out, nil
	case KindTuple:
		out := make([]byte, 0, v.StaticSize())
		for _, e := range v.Elems {
			b, err := encodeStatic(e)
			if err != nil {
				return nil, err
			}
			out = append(out, b...)
		}
		return out, nil
	default:
		return nil, encErr("encode", "unknown static kind %s", v.Kind)
	}
}

// writeUint256 writes v, which must fit in 256 bits unsigned, left-padded
// with zeros, into a 32-byte destination slice.
func writeUint256(dst []byte, v *big.Int) {
	var u uint256.Int
	u.SetFromBig(v)
	b32 := u.Bytes32()
	copy(dst, b32[:])
}

// writeInt256 writes v in two's-complement form into a 32-byte destination
// slice: zero-extended when non-negative, 0xFF-extended when negative.
func writeInt256(dst []byte, v *big.Int) {
	if v.Sign() >= 0 {
		writeUint256(dst, v)
		return
	}
	mod := new(big.Int).Add(v, twoPow256)
	writeUint256(dst, mod)
}
