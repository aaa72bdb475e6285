// Package mask implements the pairwise masking scheme used to hide
// per-client weight deltas from the aggregator while letting the masks
// cancel out of the sum.
package mask

import (
	"crypto/sha256"
	"encoding/binary"
	"sort"
)

// pairSeparator is the literal byte sequence inserted between the sorted
// client identifiers when deriving a pair seed. Both sides of a pair must
// use this exact separator or their seeds will not match.
const pairSeparator = "|pair|"

// PairSeed derives the 32-byte seed shared by two clients a and b under a
// secret S. The identifiers are sorted lexicographically before hashing so
// that PairSeed(S, a, b) == PairSeed(S, b, a) for any ordering of the
// arguments.
func PairSeed(secret []byte, a, b string) [32]byte {
	low, high := a, b
	if high < low {
		low, high = high, low
	}

	h := sha256.New()
	h.Write(secret)
	h.Write([]byte(pairSeparator))
	h.Write([]byte(low))
	h.Write([]byte("|"))
	h.Write([]byte(high))

	var seed [32]byte
	copy(seed[:], h.Sum(nil))
	return seed
}

// Expand deterministically expands a 32-byte seed into length floats in
// [-0.5, 0.5). For counter c = 0, 1, 2, ..., it hashes seed || be32(c) and
// slices the 32-byte digest into four big-endian uint64 chunks, each mapped
// to (chunk / 2^64) - 0.5. Output stops mid-digest once length floats have
// been produced.
func Expand(seed [32]byte, length int) []float64 {
	out := make([]float64, length)
	if length == 0 {
		return out
	}

	var counter uint32
	var counterBytes [4]byte
	produced := 0

	for produced < length {
		binary.BigEndian.PutUint32(counterBytes[:], counter)

		h := sha256.New()
		h.Write(seed[:])
		h.Write(counterBytes[:])
		digest := h.Sum(nil)

		for off := 0; off < 32 && produced < length; off += 8 {
			u := binary.BigEndian.Uint64(digest[off : off+8])
			out[produced] = float64(u)/float64(1<<64) - 0.5
			produced++
		}

		counter++
	}

	return out
}

// SortedPair returns a and b ordered so the lower string comes first,
// matching the ordering PairSeed uses internally and the byte-wise
// comparison Vector uses to decide which side of a pair adds and which
// subtracts a mask vector.
func SortedPair(a, b string) (low, high string) {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair[0], pair[1]
}

// Vector computes the masked contribution that self adds for a single
// peer, given the shared secret, self's id, the peer's id, and the
// dimension D of the model. Self adds +v if self sorts before peer,
// and -v otherwise; summed across every peer in a round this cancels
// exactly.
func Vector(secret []byte, self, peer string, dim int) []float64 {
	seed := PairSeed(secret, self, peer)
	v := Expand(seed, dim)

	if self < peer {
		return v
	}

	negated := make([]float64, dim)
	for i, x := range v {
		negated[i] = -x
	}
	return negated
}

// Sum computes the combined mask a client with id self adds to its delta,
// given the current roster (including self) and model dimension dim.
// roster must be exactly the set of clients the round is configured
// against: cancellation only holds when every participant computes its
// mask over the same roster the aggregator used to configure the round.
func Sum(secret []byte, self string, roster []string, dim int) []float64 {
	total := make([]float64, dim)
	for _, peer := range roster {
		if peer == self {
			continue
		}
		v := Vector(secret, self, peer, dim)
		for i, x := range v {
			total[i] += x
		}
	}
	return total
}
