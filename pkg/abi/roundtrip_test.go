package abi

import (
	"bytes"
	"math/big"
	"testing"
)

// TestSelectorsMatchKnownSignatures pins the literal ERC-20 transfer
// selector.
func TestSelectorsMatchKnownSignatures(t *testing.T) {
	// transfer(address,uint256) is the canonical ERC-20 selector, known
	// independently of this package's own Keccak256 implementation.
	sel := Selector("transfer(address,uint256)")
	got := EncodeHex(sel[:])[2:]
	if got != "a9059cbb" {
		t.Errorf("Selector(transfer(address,uint256)) = %s, want a9059cbb", got)
	}
}

// TestSelectorAndTopic0AreDeterministicAndDistinct checks that selectors for
// distinct signatures collide only by the astronomical chance Keccak-256
// collision, and that the same signature always yields the same selector.
func TestSelectorAndTopic0AreDeterministicAndDistinct(t *testing.T) {
	sigs := []string{"set(string)", "get()", "Transfer(address,address,uint256)"}
	seen := make(map[[4]byte]string)
	for _, sig := range sigs {
		sel := Selector(sig)
		if other, dup := seen[sel]; dup {
			t.Fatalf("selector collision between %q and %q", sig, other)
		}
		seen[sel] = sig
		if Selector(sig) != sel {
			t.Errorf("Selector(%q) not deterministic", sig)
		}
	}

	topic := Topic0("Transfer(address,address,uint256)")
	if Topic0("Transfer(address,address,uint256)") != topic {
		t.Error("Topic0 not deterministic")
	}
}

// TestEncodeDeterministic checks the same logical input always produces
// byte-identical output (§8 "determinism").
func TestEncodeDeterministic(t *testing.T) {
	build := func(t *testing.T) []*AbiValue {
		addr, _ := NewAddressFromHex("0x0000000000000000000000000000000000000abc")
		arr, _ := NewArray(UintSchema(256), DynArrayLen, []*AbiValue{mustUint(t, 256, 1), mustUint(t, 256, 2)})
		return []*AbiValue{addr, NewString("payload"), arr}
	}
	enc := NewEncoder()
	a, err := enc.Encode(build(t))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	b, err := enc.Encode(build(t))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("expected identical encodings for identical logical input")
	}
}

// TestRoundTripDepthThree builds a nested tuple(array(tuple)) structure at
// depth 3 and checks Decode recovers exactly what was encoded.
func TestRoundTripDepthThree(t *testing.T) {
	enc := NewEncoder()
	dec := NewDecoder()

	leafSchema := TupleSchema(UintSchema(256), StringSchema())
	leaf1 := NewTuple(mustUint(t, 256, 10), NewString("a"))
	leaf2 := NewTuple(mustUint(t, 256, 20), NewString("bb"))

	midArr, err := NewArray(leafSchema, DynArrayLen, []*AbiValue{leaf1, leaf2})
	if err != nil {
		t.Fatalf("NewArray: %v", err)
	}
	outer := NewTuple(mustUint(t, 256, 99), midArr, NewBool(true))

	data, err := enc.Encode(outer.Elems)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	schema := TupleSchema(UintSchema(256), ArraySchema(leafSchema, DynArrayLen), BoolSchema())
	out, err := dec.Decode(data, schema.Components)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if out[0].Int.Cmp(big.NewInt(99)) != 0 {
		t.Errorf("outer uint mismatch: %s", out[0].Int)
	}
	if len(out[1].Elems) != 2 {
		t.Fatalf("expected 2 array elements, got %d", len(out[1].Elems))
	}
	if out[1].Elems[0].Elems[0].Int.Cmp(big.NewInt(10)) != 0 || out[1].Elems[0].Elems[1].Str != "a" {
		t.Errorf("leaf1 mismatch: %+v", out[1].Elems[0])
	}
	if out[1].Elems[1].Elems[0].Int.Cmp(big.NewInt(20)) != 0 || out[1].Elems[1].Elems[1].Str != "bb" {
		t.Errorf("leaf2 mismatch: %+v", out[1].Elems[1])
	}
	if !out[2].Bool {
		t.Errorf("expected trailing bool true")
	}
}

// TestRoundTripAllIntegerWidths exercises every valid bit width for
// unsigned integers at their maximum value.
func TestRoundTripAllIntegerWidths(t *testing.T) {
	enc := NewEncoder()
	dec := NewDecoder()

	for bits := 8; bits <= 256; bits += 8 {
		max := uintBound(bits)
		v, err := NewUint(bits, max)
		if err != nil {
			t.Fatalf("NewUint(%d, max): %v", bits, err)
		}
		data, err := enc.Encode([]*AbiValue{v})
		if err != nil {
			t.Fatalf("Encode uint%d: %v", bits, err)
		}
		out, err := dec.Decode(data, []*TypeSchema{UintSchema(bits)})
		if err != nil {
			t.Fatalf("Decode uint%d: %v", bits, err)
		}
		if out[0].Int.Cmp(max) != 0 {
			t.Errorf("uint%d round trip mismatch: got %s want %s", bits, out[0].Int, max)
		}
	}
}

func TestAddressHexRoundTrip(t *testing.T) {
	addr, err := NewAddressFromHex("0x5aAeb6053f3e94c9b9a09f33669435E7ef1beAe")
	if err != nil {
		t.Fatalf("NewAddressFromHex: %v", err)
	}
	got := EncodeHex(addr.Address[:])
	if got != "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beae" {
		t.Errorf("got %s", got)
	}
}

func TestAddressHexRejectsWrongLength(t *testing.T) {
	if _, err := NewAddressFromHex("0x5aAeb6053f3e94c9b9a09f33669435E7ef1beAed0"); err == nil {
		t.Fatal("expected error: 41 hex digits (21 bytes once padded) should fail length check")
	}
}
