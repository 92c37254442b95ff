package binary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chimera-pool/stratum-noise-proxy/internal/bitcoin"
)

func TestSetupConnectionRoundTrip(t *testing.T) {
	in := SetupConnection{
		ProtocolVersion: 2,
		Flags:           0,
		EndpointHost:    "",
		EndpointPort:    0,
		Vendor:          "",
		HardwareVersion: "",
		Firmware:        "",
		DeviceID:        "",
	}
	b, err := in.Encode()
	require.NoError(t, err)

	out, err := DecodeSetupConnection(b)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestSetupConnectionSuccessRoundTrip(t *testing.T) {
	in := SetupConnectionSuccess{UsedProtocolVersion: 2, Flags: 0}
	b, err := in.Encode()
	require.NoError(t, err)

	out, err := DecodeSetupConnectionSuccess(b)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestOpenStandardMiningChannelRoundTrip(t *testing.T) {
	in := OpenStandardMiningChannel{
		RequestID:       10,
		User:            "u.w",
		NominalHashrate: 1e9,
		MaxTarget:       bitcoin.Difficulty1Target,
	}
	b, err := in.Encode()
	require.NoError(t, err)

	out, err := DecodeOpenStandardMiningChannel(b)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestOpenStandardMiningChannelSuccessRoundTrip(t *testing.T) {
	in := OpenStandardMiningChannelSuccess{
		RequestID:        10,
		ChannelID:        0,
		Target:           bitcoin.FromPoolDifficulty(512),
		ExtranoncePrefix: []byte{0x01, 0x65, 0x0f, 0x00, 0x1f, 0x25, 0xea},
		GroupChannelID:   0,
	}
	b, err := in.Encode()
	require.NoError(t, err)

	out, err := DecodeOpenStandardMiningChannelSuccess(b)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestSubmitSharesRoundTrip(t *testing.T) {
	in := SubmitSharesStandard{ChannelID: 0, SeqNum: 1, JobID: 0, Nonce: 42, NTime: 123, Version: 1}
	b, err := in.Encode()
	require.NoError(t, err)
	out, err := DecodeSubmitSharesStandard(b)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestNewMiningJobRoundTripFutureAndCurrent(t *testing.T) {
	in1 := NewMiningJob{ChannelID: 0, JobID: 0, FutureJob: true, Version: 1, MerkleRoot: [32]byte{1, 2, 3}}
	b1, err := in1.Encode()
	require.NoError(t, err)
	out1, err := DecodeNewMiningJob(b1)
	require.NoError(t, err)
	assert.Equal(t, in1, out1)

	in2 := NewMiningJob{ChannelID: 0, JobID: 1, FutureJob: false, Version: 1, MerkleRoot: [32]byte{9}}
	b2, err := in2.Encode()
	require.NoError(t, err)
	out2, err := DecodeNewMiningJob(b2)
	require.NoError(t, err)
	assert.Equal(t, in2, out2)
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	in := SetupConnectionSuccess{UsedProtocolVersion: 2, Flags: 0}
	b, err := in.Encode()
	require.NoError(t, err)

	_, err = DecodeSetupConnectionSuccess(append(b, 0xff))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTrailingBytes)
}

func TestBoundedStringOverlong(t *testing.T) {
	w := NewWriter()
	err := w.WriteBoundedString8(string(make([]byte, 300)), shortMin0, shortMax)
	require.Error(t, err)
	var overlong *OverlongError
	assert.ErrorAs(t, err, &overlong)
}

func TestBoundedBytesTooShort(t *testing.T) {
	w := NewWriter()
	w.WriteU8(0) // declares a zero-length field
	r := NewReader(w.Bytes())
	_, err := r.ReadBoundedBytes8(1, 32)
	require.Error(t, err)
	var tooShort *TooShortError
	assert.ErrorAs(t, err, &tooShort)
}

func TestFrameRoundTrip(t *testing.T) {
	payload := []byte{1, 2, 3, 4}
	encoded := EncodeFrame(ChannelMessageBit, MsgTypeSubmitSharesStandard, payload)

	f, err := DecodeFrame(encoded)
	require.NoError(t, err)
	assert.True(t, f.IsChannelMessage())
	assert.Equal(t, MsgTypeSubmitSharesStandard, f.MsgType)
	assert.Equal(t, payload, f.Payload)
}

func TestDecodeFrameRejectsTruncatedPayload(t *testing.T) {
	full := EncodeFrame(0, MsgTypeCloseChannel, []byte{1, 2, 3, 4})
	_, err := DecodeFrame(full[:len(full)-1])
	require.Error(t, err)
}
