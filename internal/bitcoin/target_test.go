package bitcoin

import (
	"encoding/hex"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTargetFromCompact_Difficulty1(t *testing.T) {
	target, err := TargetFromCompact(0x1d00ffff)
	require.NoError(t, err)

	be, err := hex.DecodeString(target.Hex())
	require.NoError(t, err)
	require.Len(t, be, 32)
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x00, 0xff, 0xff}, be[:6])
	for _, b := range be[6:] {
		assert.Equal(t, byte(0), b)
	}
	assert.Equal(t, uint32(0x1d00ffff), target.ToCompact())
}

func TestTargetFromCompact_MantissaSignBit(t *testing.T) {
	_, err := TargetFromCompact(0x0fffffff)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMantissaSignBit))
}

func TestTargetCompactRoundTrip(t *testing.T) {
	cases := []uint32{0x1d00ffff, 0x04123456, 0x03123456, 0x207fffff, 0x00000000}
	for _, bits := range cases {
		target, err := TargetFromCompact(bits)
		require.NoError(t, err)
		assert.Equal(t, bits, target.ToCompact(), "round trip for 0x%08x", bits)
	}
}

func TestTargetMeets(t *testing.T) {
	target, err := TargetFromCompact(0x1d00ffff)
	require.NoError(t, err)

	var h Hash
	copy(h[:], target.Bytes()[:])
	assert.True(t, h.Meets(target))

	smaller, err := TargetFromCompact(0x1c00ffff)
	require.NoError(t, err)
	var hSmaller Hash
	copy(hSmaller[:], smaller.Bytes()[:])

	assert.True(t, hSmaller.Meets(target))
	assert.False(t, h.Meets(smaller))
}

func TestFromPoolDifficulty(t *testing.T) {
	target := FromPoolDifficulty(512)
	assert.Equal(t, uint64(512), target.GetDifficulty())
}
