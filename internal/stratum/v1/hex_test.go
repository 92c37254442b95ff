package v1

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHexBytesOddLengthLeftPad(t *testing.T) {
	var h HexBytes
	require.NoError(t, json.Unmarshal([]byte(`"abc"`), &h))
	assert.Equal(t, HexBytes{0x0a, 0xbc}, h)
}

func TestHexU32BeRoundTrip(t *testing.T) {
	var v HexU32Be
	require.NoError(t, json.Unmarshal([]byte(`"1fffe000"`), &v))
	assert.Equal(t, HexU32Be(0x1fffe000), v)

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, `"1fffe000"`, string(out))
}

func TestHexU32LeDiffersFromBe(t *testing.T) {
	var be HexU32Be
	var le HexU32Le
	require.NoError(t, json.Unmarshal([]byte(`"00000001"`), &be))
	require.NoError(t, json.Unmarshal([]byte(`"00000001"`), &le))
	assert.Equal(t, HexU32Be(1), be)
	assert.Equal(t, HexU32Le(0x01000000), le)
}

func TestPrevHashWordReversalRoundTrip(t *testing.T) {
	// 8 aligned words, each distinguishable after reversal.
	hexIn := `"0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20"`
	var p PrevHash
	require.NoError(t, json.Unmarshal([]byte(hexIn), &p))

	out, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Equal(t, hexIn, string(out))

	// first word 01 02 03 04 reversed to 04 03 02 01 internally.
	assert.Equal(t, byte(0x04), p[0])
	assert.Equal(t, byte(0x03), p[1])
	assert.Equal(t, byte(0x02), p[2])
	assert.Equal(t, byte(0x01), p[3])
}

func TestPrevHashRejectsWrongLength(t *testing.T) {
	var p PrevHash
	err := json.Unmarshal([]byte(`"abcd"`), &p)
	require.Error(t, err)
}
