package abi

import "golang.org/x/crypto/sha3"

// Keccak256 returns the 32-byte Keccak-256 digest of data. This is the
// original Keccak padding (not the later NIST SHA3-256 finalization), which
// is what every EVM chain uses for selectors, topics, and state roots.
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// Selector returns the 4-byte function selector for a canonical signature.
func Selector(signature string) [4]byte {
	sum := Keccak256([]byte(signature))
	var out [4]byte
	copy(out[:], sum[:4])
	return out
}

// Topic0 returns the 32-byte event topic for a canonical signature.
func Topic0(signature string) [32]byte {
	sum := Keccak256([]byte(signature))
	var out [32]byte
	copy(out[:], sum)
	return out
}
