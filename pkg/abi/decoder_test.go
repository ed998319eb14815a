package abi

import (
	"math/big"
	"testing"
)

func TestDecodeRoundTripScalar(t *testing.T) {
	enc := NewEncoder()
	dec := NewDecoder()

	addr, _ := NewAddressFromHex("0x00000000000000000000000000000000000000ff")
	in := []*AbiValue{mustUint(t, 256, 7), addr, NewBool(true), NewString("hello")}

	data, err := enc.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	schemas := []*TypeSchema{UintSchema(256), AddressSchema(), BoolSchema(), StringSchema()}
	out, err := dec.Decode(data, schemas)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out[0].Int.Cmp(big.NewInt(7)) != 0 {
		t.Errorf("uint mismatch: got %s", out[0].Int)
	}
	if out[1].Address != addr.Address {
		t.Errorf("address mismatch: got %x want %x", out[1].Address, addr.Address)
	}
	if out[2].Bool != true {
		t.Errorf("bool mismatch")
	}
	if out[3].Str != "hello" {
		t.Errorf("string mismatch: got %q", out[3].Str)
	}
}

func TestDecodeRoundTripNestedTupleAndArray(t *testing.T) {
	enc := NewEncoder()
	dec := NewDecoder()

	inner := NewTuple(mustUint(t, 256, 1), NewString("x"))
	arr, err := NewArray(inner.Schema(), DynArrayLen, []*AbiValue{inner, NewTuple(mustUint(t, 256, 2), NewString("yy"))})
	if err != nil {
		t.Fatalf("NewArray: %v", err)
	}

	data, err := enc.Encode([]*AbiValue{arr})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	schema := ArraySchema(TupleSchema(UintSchema(256), StringSchema()), DynArrayLen)
	out, err := dec.Decode(data, []*TypeSchema{schema})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got := out[0]
	if len(got.Elems) != 2 {
		t.Fatalf("expected 2 elements, got %d", len(got.Elems))
	}
	if got.Elems[0].Elems[1].Str != "x" || got.Elems[1].Elems[1].Str != "yy" {
		t.Errorf("tuple contents mismatch: %+v", got.Elems)
	}
}

func TestDecodeNegativeIntRoundTrip(t *testing.T) {
	enc := NewEncoder()
	dec := NewDecoder()

	data, err := enc.Encode([]*AbiValue{mustInt(t, 64, -12345)})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := dec.Decode(data, []*TypeSchema{IntSchema(64)})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out[0].Int.Cmp(big.NewInt(-12345)) != 0 {
		t.Errorf("got %s, want -12345", out[0].Int)
	}
}

func TestDecodeTruncatedHeadFails(t *testing.T) {
	dec := NewDecoder()
	_, err := dec.Decode(make([]byte, 16), []*TypeSchema{UintSchema(256)})
	if err == nil {
		t.Fatal("expected error decoding a 16-byte buffer as a 32-byte head")
	}
	abiErr, ok := err.(*Error)
	if !ok || abiErr.Kind != ErrDecoding {
		t.Fatalf("expected *Error with ErrDecoding, got %v (%T)", err, err)
	}
}

func TestDecodeOffsetOutOfBoundsFails(t *testing.T) {
	dec := NewDecoder()
	data := make([]byte, 32)
	// Offset 16960 fits easily in an int32 but points far past this 32-byte
	// buffer, so the resolved absolute position check must catch it.
	data[30] = 0x42
	data[31] = 0x40
	_, err := dec.Decode(data, []*TypeSchema{StringSchema()})
	if err == nil {
		t.Fatal("expected error for out-of-bounds offset")
	}
}

func TestDecodeOffsetExceedsInt32Fails(t *testing.T) {
	dec := NewDecoder()
	data := make([]byte, 32)
	// A 32-byte word whose value exceeds MaxInt32 must be rejected before
	// any buffer arithmetic is attempted.
	data[27] = 0xff
	_, err := dec.Decode(data, []*TypeSchema{StringSchema()})
	if err == nil {
		t.Fatal("expected error for offset exceeding int32 range")
	}
}

func TestDecodeTruncatedBytesPayloadFails(t *testing.T) {
	dec := NewDecoder()
	// offset=32, length=100, but no payload bytes follow.
	data := make([]byte, 64)
	data[31] = 32
	data[63] = 100
	_, err := dec.Decode(data, []*TypeSchema{DynamicBytesSchema()})
	if err == nil {
		t.Fatal("expected error for payload extending past buffer end")
	}
}

func TestDecodeTruncateByOneByteFailsForEveryWidth(t *testing.T) {
	enc := NewEncoder()
	dec := NewDecoder()
	for bits := 8; bits <= 256; bits += 8 {
		v, err := NewUint(bits, big.NewInt(1))
		if err != nil {
			t.Fatalf("NewUint(%d): %v", bits, err)
		}
		data, err := enc.Encode([]*AbiValue{v})
		if err != nil {
			t.Fatalf("Encode(%d): %v", bits, err)
		}
		truncated := data[:len(data)-1]
		if _, err := dec.Decode(truncated, []*TypeSchema{UintSchema(bits)}); err == nil {
			t.Errorf("uint%d: expected decode failure on truncated buffer", bits)
		}
	}
}

func TestDecodeBoolCoercesNonCanonicalByte(t *testing.T) {
	dec := NewDecoder()
	data := make([]byte, 32)
	data[31] = 1
	out, err := dec.Decode(data, []*TypeSchema{BoolSchema()})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !out[0].Bool {
		t.Errorf("expected true")
	}

	// A non-canonical word (e.g. 0x02 in the last byte) decodes to false
	// rather than erroring — decision recorded for §9 Open Question 1.
	data[31] = 2
	out, err = dec.Decode(data, []*TypeSchema{BoolSchema()})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out[0].Bool {
		t.Errorf("expected false for non-canonical bool word")
	}
}
