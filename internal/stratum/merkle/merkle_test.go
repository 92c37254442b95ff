package merkle

import (
	"bytes"
	"crypto/sha256"
	"testing"
)

func TestComputeRoot_NoBranch(t *testing.T) {
	b := NewBuilder()
	coinbaseHash := sha256Hash([]byte("coinbase"))

	root := b.ComputeRoot(coinbaseHash, nil)

	if !bytes.Equal(root, coinbaseHash) {
		t.Errorf("empty branch should return coinbase hash unchanged")
	}
}

func TestComputeRoot_OneSibling(t *testing.T) {
	b := NewBuilder()
	coinbaseHash := sha256Hash([]byte("coinbase"))
	sibling := sha256Hash([]byte("tx1"))

	root := b.ComputeRoot(coinbaseHash, [][]byte{sibling})

	expected := testDoubleSha256(append(append([]byte{}, coinbaseHash...), sibling...))
	if !bytes.Equal(root, expected) {
		t.Errorf("root mismatch\nexpected: %x\ngot:      %x", expected, root)
	}
}

func TestComputeRoot_MultipleSiblings(t *testing.T) {
	b := NewBuilder()
	coinbaseHash := sha256Hash([]byte("coinbase"))
	s1 := sha256Hash([]byte("s1"))
	s2 := sha256Hash([]byte("s2"))

	root := b.ComputeRoot(coinbaseHash, [][]byte{s1, s2})

	step1 := testDoubleSha256(append(append([]byte{}, coinbaseHash...), s1...))
	expected := testDoubleSha256(append(step1, s2...))
	if !bytes.Equal(root, expected) {
		t.Errorf("root mismatch\nexpected: %x\ngot:      %x", expected, root)
	}
}

func TestComputeJobRoot(t *testing.T) {
	b := NewBuilder()
	coinb1 := []byte("coinb1-")
	extranonce1 := []byte{0x01, 0x02}
	extranonce2 := []byte{0x00, 0x00, 0x00, 0x00}
	coinb2 := []byte("-coinb2")
	sibling := sha256Hash([]byte("sibling"))

	root := b.ComputeJobRoot(coinb1, extranonce1, extranonce2, coinb2, [][]byte{sibling})

	var coinbase []byte
	coinbase = append(coinbase, coinb1...)
	coinbase = append(coinbase, extranonce1...)
	coinbase = append(coinbase, extranonce2...)
	coinbase = append(coinbase, coinb2...)
	coinbaseHash := testDoubleSha256(coinbase)
	expected := testDoubleSha256(append(append([]byte{}, coinbaseHash...), sibling...))

	if !bytes.Equal(root[:], expected) {
		t.Errorf("job root mismatch\nexpected: %x\ngot:      %x", expected, root)
	}
}

func TestComputeJobRoot_NoBranch(t *testing.T) {
	b := NewBuilder()
	coinb1 := []byte("a")
	extranonce1 := []byte{0xaa}
	extranonce2 := []byte{0xbb}
	coinb2 := []byte("b")

	root := b.ComputeJobRoot(coinb1, extranonce1, extranonce2, coinb2, nil)

	coinbase := append(append(append(append([]byte{}, coinb1...), extranonce1...), extranonce2...), coinb2...)
	expected := testDoubleSha256(coinbase)
	if !bytes.Equal(root[:], expected) {
		t.Errorf("job root mismatch\nexpected: %x\ngot:      %x", expected, root)
	}
}

func sha256Hash(data []byte) []byte {
	h := sha256.Sum256(data)
	return h[:]
}

func testDoubleSha256(data []byte) []byte {
	h1 := sha256.Sum256(data)
	h2 := sha256.Sum256(h1[:])
	return h2[:]
}
