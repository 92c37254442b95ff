// Package merkle computes the V2 NewMiningJob merkle root from a V1
// mining.notify job's coinbase halves and merkle branch (spec §4.H step 2):
// assemble the coinbase transaction from coinb1/extranonce1/extranonce2/coinb2,
// double-SHA256 it, then fold the branch siblings on top.
package merkle

import "crypto/sha256"

// Builder folds a merkle branch on top of a coinbase hash. It carries no
// state; the zero value is ready to use.
type Builder struct{}

// NewBuilder returns a ready-to-use Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// ComputeRoot folds branch onto coinbaseHash: at each step the running hash
// is double-SHA256'd together with the next sibling, coinbase always on the
// left (the fixed-index-0 convention every mining.notify branch assumes).
func (b *Builder) ComputeRoot(coinbaseHash []byte, branch [][]byte) []byte {
	current := coinbaseHash
	for _, sibling := range branch {
		combined := make([]byte, 0, len(current)+len(sibling))
		combined = append(combined, current...)
		combined = append(combined, sibling...)
		current = doubleSha256(combined)
	}
	return current
}

// ComputeJobRoot assembles the coinbase transaction from its two halves and
// the channel's extranonce, double-SHA256es it, then folds branch on top to
// produce the merkle root a V2 NewMiningJob carries.
func (b *Builder) ComputeJobRoot(coinb1, extranonce1, extranonce2, coinb2 []byte, branch [][]byte) [32]byte {
	coinbase := make([]byte, 0, len(coinb1)+len(extranonce1)+len(extranonce2)+len(coinb2))
	coinbase = append(coinbase, coinb1...)
	coinbase = append(coinbase, extranonce1...)
	coinbase = append(coinbase, extranonce2...)
	coinbase = append(coinbase, coinb2...)
	coinbaseHash := doubleSha256(coinbase)

	root := b.ComputeRoot(coinbaseHash, branch)
	var out [32]byte
	copy(out[:], root)
	return out
}

func doubleSha256(data []byte) []byte {
	h1 := sha256.Sum256(data)
	h2 := sha256.Sum256(h1[:])
	return h2[:]
}
