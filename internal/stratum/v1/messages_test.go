package v1

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitParamsRoundTrip(t *testing.T) {
	vb := HexU32Be(0x1fffe000)
	in := SubmitParams{
		WorkerName:  "u.w",
		JobID:       "0",
		ExtraNonce2: HexBytes{0x00, 0x00, 0x00, 0x01},
		NTime:       HexU32Be(0x5f000000),
		Nonce:       HexU32Be(0xdeadbeef),
		VersionBits: &vb,
	}
	b, err := json.Marshal(in)
	require.NoError(t, err)

	var out SubmitParams
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, in, out)
}

func TestSubmitParamsWithoutVersionBits(t *testing.T) {
	in := SubmitParams{WorkerName: "u.w", JobID: "0", ExtraNonce2: HexBytes{1}, NTime: 1, Nonce: 2}
	b, err := json.Marshal(in)
	require.NoError(t, err)

	var out SubmitParams
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Nil(t, out.VersionBits)
	assert.Equal(t, in.WorkerName, out.WorkerName)
}

func TestNotifyParamsRoundTrip(t *testing.T) {
	in := NotifyParams{
		JobID:        "0",
		Coinb1:       HexBytes{0x01, 0x02},
		Coinb2:       HexBytes{0x03, 0x04},
		MerkleBranch: []HexBytes{{0xaa}, {0xbb}},
		Version:      1,
		NBits:        0x1d00ffff,
		NTime:        0x5f000000,
		CleanJobs:    true,
	}
	b, err := json.Marshal(in)
	require.NoError(t, err)

	var out NotifyParams
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, in, out)
}

func TestSetDifficultyParamsRoundTrip(t *testing.T) {
	in := SetDifficultyParams{Difficulty: 512}
	b, err := json.Marshal(in)
	require.NoError(t, err)

	var out SetDifficultyParams
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, in, out)
}

func TestSubscribeResultRoundTrip(t *testing.T) {
	in := SubscribeResult{ExtraNonce1: HexBytes{0x01, 0x65, 0x0f, 0x00}, ExtraNonce2Size: 4}
	b, err := json.Marshal(in)
	require.NoError(t, err)

	var out SubscribeResult
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, in, out)
}
