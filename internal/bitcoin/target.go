// Package bitcoin implements the primitives the translator needs to reason
// about proof-of-work: compact-target decoding, 256-bit target arithmetic,
// and double-SHA256 block-header hashing. None of it talks to the network or
// validates consensus rules — it is pure, total functions on fixed-size
// byte arrays, in the spirit of the teacher's blockdag/algorithm.go target
// helpers but built for Bitcoin's actual double-SHA256 header format rather
// than a Scrypt variant.
package bitcoin

import (
	"encoding/hex"
	"errors"
	"math/big"
)

// ErrMantissaSignBit is returned by TargetFromCompact when the low 24 bits
// of a compact value have their sign bit set — Bitcoin targets are never
// negative.
var ErrMantissaSignBit = errors.New("bitcoin: compact target mantissa has sign bit set")

// Target is a 256-bit unsigned integer stored as 32 little-endian bytes.
type Target [32]byte

// Difficulty1Target is the network's "difficulty 1" target, nBits 0x1d00ffff.
var Difficulty1Target = mustFromCompact(0x1d00ffff)

func mustFromCompact(bits uint32) Target {
	t, err := TargetFromCompact(bits)
	if err != nil {
		panic(err)
	}
	return t
}

// TargetFromCompact decodes Bitcoin's 32-bit "nBits" encoding: the top byte
// is an exponent, the low 24 bits are a mantissa whose own top bit must be
// clear. value = mantissa << (8*(exponent-3)) when exponent > 3, otherwise
// mantissa >> (8*(3-exponent)).
func TargetFromCompact(bits uint32) (Target, error) {
	mantissa := bits & 0x00ffffff
	if mantissa&0x00800000 != 0 {
		return Target{}, ErrMantissaSignBit
	}
	exponent := int(bits >> 24)

	m := new(big.Int).SetUint64(uint64(mantissa))
	var v *big.Int
	if exponent > 3 {
		v = new(big.Int).Lsh(m, uint(8*(exponent-3)))
	} else {
		v = new(big.Int).Rsh(m, uint(8*(3-exponent)))
	}
	return targetFromBigInt(v), nil
}

// ToCompact re-encodes the target in Bitcoin's nBits form. Round-trips with
// TargetFromCompact for canonical encodings (mantissa's high byte nonzero);
// a compact value with a redundant leading zero byte in its mantissa
// normalizes to a smaller exponent on the way back, same as btcd's
// BigToCompact.
func (t Target) ToCompact() uint32 {
	n := t.bigInt()
	if n.Sign() == 0 {
		return 0
	}

	exponent := uint(len(n.Bytes()))
	var mantissa uint32
	if exponent <= 3 {
		mantissa = uint32(n.Uint64())
		mantissa <<= 8 * (3 - exponent)
	} else {
		shifted := new(big.Int).Rsh(n, 8*(exponent-3))
		mantissa = uint32(shifted.Uint64())
	}

	if mantissa&0x00800000 != 0 {
		mantissa >>= 8
		exponent++
	}
	return uint32(exponent)<<24 | mantissa
}

// FromPoolDifficulty computes Difficulty1Target / d using integer division.
// This diverges slightly from the floating-point division some pools use;
// the divergence is small and this is the behavior TestFromPoolDifficulty
// pins down.
func FromPoolDifficulty(d uint64) Target {
	if d == 0 {
		d = 1
	}
	v := new(big.Int).Div(Difficulty1Target.bigInt(), new(big.Int).SetUint64(d))
	return targetFromBigInt(v)
}

// GetDifficulty returns Difficulty1Target / t truncated to the low 64 bits.
func (t Target) GetDifficulty() uint64 {
	tv := t.bigInt()
	if tv.Sign() == 0 {
		return ^uint64(0)
	}
	d := new(big.Int).Div(Difficulty1Target.bigInt(), tv)
	return new(big.Int).And(d, new(big.Int).SetUint64(^uint64(0))).Uint64()
}

// Bytes returns the 32 little-endian bytes backing the target.
func (t Target) Bytes() [32]byte {
	return [32]byte(t)
}

// TargetFromBytes builds a Target from its 32 little-endian byte representation.
func TargetFromBytes(b [32]byte) Target {
	return Target(b)
}

// Hex renders the target in Bitcoin's conventional byte-reversed (big
// endian) hex display.
func (t Target) Hex() string {
	var be [32]byte
	for i := 0; i < 32; i++ {
		be[i] = t[31-i]
	}
	return hex.EncodeToString(be[:])
}

func (t Target) bigInt() *big.Int {
	var be [32]byte
	for i := 0; i < 32; i++ {
		be[i] = t[31-i]
	}
	return new(big.Int).SetBytes(be[:])
}

func targetFromBigInt(n *big.Int) Target {
	var t Target
	be := n.Bytes()
	if len(be) > 32 {
		be = be[len(be)-32:]
	}
	for i := 0; i < len(be); i++ {
		t[i] = be[len(be)-1-i]
	}
	return t
}

// Hash is a 32-byte double-SHA256 digest, stored in the byte order SHA256
// produces it (which is also its little-endian 256-bit integer
// interpretation for the purposes of Meets).
type Hash [32]byte

// Meets reports whether the hash, read as a little-endian 256-bit integer,
// is less than or equal to the target — the share/block "meets target"
// predicate.
func (h Hash) Meets(t Target) bool {
	for i := 31; i >= 0; i-- {
		if h[i] < t[i] {
			return true
		}
		if h[i] > t[i] {
			return false
		}
	}
	return true
}

// Hex renders the hash in Bitcoin's conventional byte-reversed hex display.
func (h Hash) Hex() string {
	var be [32]byte
	for i := 0; i < 32; i++ {
		be[i] = h[31-i]
	}
	return hex.EncodeToString(be[:])
}
