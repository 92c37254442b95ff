package bitcoin

import (
	"crypto/sha256"
	"encoding"
	"encoding/binary"
)

// HeaderSize is the packed length of a Bitcoin block header in bytes.
const HeaderSize = 80

// BlockHeader is the packed little-endian 80-byte Bitcoin block header:
// version | prev_hash | merkle_root | time | bits | nonce.
type BlockHeader struct {
	Version    uint32
	PrevHash   [32]byte
	MerkleRoot [32]byte
	Time       uint32
	Bits       uint32
	Nonce      uint32
}

// Bytes packs the header into its canonical 80-byte little-endian wire form.
func (h BlockHeader) Bytes() [HeaderSize]byte {
	var b [HeaderSize]byte
	binary.LittleEndian.PutUint32(b[0:4], h.Version)
	copy(b[4:36], h.PrevHash[:])
	copy(b[36:68], h.MerkleRoot[:])
	binary.LittleEndian.PutUint32(b[68:72], h.Time)
	binary.LittleEndian.PutUint32(b[72:76], h.Bits)
	binary.LittleEndian.PutUint32(b[76:80], h.Nonce)
	return b
}

// Hash computes the double-SHA256 of the packed header.
func (h BlockHeader) Hash() Hash {
	b := h.Bytes()
	first := sha256.Sum256(b[:])
	second := sha256.Sum256(first[:])
	return Hash(second)
}

// Target decodes the header's compact Bits field into a Target.
func (h BlockHeader) Target() (Target, error) {
	return TargetFromCompact(h.Bits)
}

// Midstate returns the SHA-256 internal chaining state after absorbing the
// first 64 bytes of the packed header (version | prev_hash | first 28 bytes
// of merkle_root) — the first full compression block, without any padding
// or finalization. ASIC firmware reuses this to skip recomputing the first
// block on every nonce/ntime roll.
func (h BlockHeader) Midstate() [32]byte {
	b := h.Bytes()
	return sha256Midstate(b[:64])
}

// sha256Midstate extracts the raw post-compression chaining value for an
// exact single 64-byte block. crypto/sha256's digest implements
// encoding.BinaryMarshaler/Unmarshaler (gob-free, stable format: a 4-byte
// magic, the 8 big-endian uint32 state words, the pending partial block,
// then the bit length) purely to let long-running hashes checkpoint their
// state; since exactly one full block was written and nothing is pending,
// the marshaled state words ARE the midstate, with no padding block mixed
// in the way a plain Sum would.
func sha256Midstate(block64 []byte) [32]byte {
	if len(block64) != 64 {
		panic("bitcoin: sha256Midstate requires exactly 64 bytes")
	}
	h := sha256.New()
	h.Write(block64)
	raw, err := h.(encoding.BinaryMarshaler).MarshalBinary()
	if err != nil {
		panic(err)
	}
	// Layout: 4-byte magic ("sha\x03"), then the 8 big-endian uint32 state
	// words, then the pending-block buffer and bit length (unused here,
	// since the digest has no partial block pending).
	const magicLen = 4
	if len(raw) < magicLen+32 {
		panic("bitcoin: unexpected sha256 marshaled state layout")
	}
	var state [32]byte
	copy(state[:], raw[magicLen:magicLen+32])
	return state
}
