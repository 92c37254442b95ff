package bitcoin

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Fields taken from Bitcoin block 171874
// (00000000000004b64108a8e4168cfaa890d62b8c061c6b74305b7f6cb2cf9fda).
func block171874Header() BlockHeader {
	var h BlockHeader
	h.Version = 1
	prevHash, err := hex.DecodeString("b3aec10cfb91d39d005f1a1e2a127a81e4af245fc0c4b6d08804000000000000")
	if err != nil {
		panic(err)
	}
	copy(h.PrevHash[:], prevHash)

	merkleRoot, err := hex.DecodeString("7e6ebbf2035cab9376138a28ef231f055fc9d6753fdb0f8309f3e9a02fa722ce")
	if err != nil {
		panic(err)
	}
	copy(h.MerkleRoot[:], merkleRoot)
	return h
}

// TestBlockHeaderMidstate reproduces the SHA-256 midstate vector for block
// 171874's first 64 bytes (version, previous hash, and the first 28 bytes
// of the merkle root).
func TestBlockHeaderMidstate(t *testing.T) {
	h := block171874Header()
	got := h.Midstate()

	want, err := hex.DecodeString("e48f544a9a3afa71451471134df6c35682b400254bfe0860c99876bf4679ba4e")
	require.NoError(t, err)
	require.Len(t, want, 32)
	assert.Equal(t, want, got[:])
}

// TestBlockHeaderHashSelfConsistent checks BlockHeader.Hash against a direct
// double-SHA256 of the packed bytes, independent of the implementation.
func TestBlockHeaderHashSelfConsistent(t *testing.T) {
	h := block171874Header()
	h.Time = 1333096598
	h.Bits = 0x1a0d9f8c
	h.Nonce = 0x12345678

	packed := h.Bytes()
	first := sha256.Sum256(packed[:])
	second := sha256.Sum256(first[:])

	assert.Equal(t, Hash(second), h.Hash())
}

// TestBlockHeaderHashGenesisBlock pins BlockHeader.Hash against the Bitcoin
// genesis block's well-known fields and hash, independent of anything this
// package computes — the corpus's own block-171874 vector (above) only
// carries enough fields for the midstate, not the time/bits/nonce a full
// hash assertion needs.
func TestBlockHeaderHashGenesisBlock(t *testing.T) {
	var h BlockHeader
	h.Version = 1
	// prev_hash is the zero hash for the genesis block.

	merkleRoot, err := hex.DecodeString("3ba3edfd7a7b12b27ac72c3e67768f617fc81bc3888a51323a9fb8aa4b1e5e4a")
	require.NoError(t, err)
	require.Len(t, merkleRoot, 32)
	copy(h.MerkleRoot[:], merkleRoot)

	h.Time = 1231006505
	h.Bits = 0x1d00ffff
	h.Nonce = 2083236893

	assert.Equal(t, "000000000019d6689c085ae165831e934ff763ae46a2a6c172b3f1b60a8ce26f", h.Hash().Hex())
}

func TestBlockHeaderBytesLayout(t *testing.T) {
	h := block171874Header()
	h.Time = 1
	h.Bits = 2
	h.Nonce = 3

	b := h.Bytes()
	require.Len(t, b, HeaderSize)
	assert.Equal(t, byte(1), b[0])
	assert.Equal(t, h.PrevHash[0], b[4])
	assert.Equal(t, h.MerkleRoot[0], b[36])
	assert.Equal(t, byte(1), b[68])
	assert.Equal(t, byte(2), b[72])
	assert.Equal(t, byte(3), b[76])
}
