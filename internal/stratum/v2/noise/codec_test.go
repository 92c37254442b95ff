package noise

import (
	"bytes"
	"testing"

	noiselib "github.com/flynn/noise"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandshakeCodecPassesThroughPlaintext(t *testing.T) {
	c := NewHandshakeCodec()
	var buf bytes.Buffer
	require.NoError(t, c.WriteFrame(&buf, []byte("hello")))

	got, err := c.ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
}

func TestCodecRejectsOversizedHandshakeFrame(t *testing.T) {
	c := NewHandshakeCodec()
	var buf bytes.Buffer
	err := c.WriteFrame(&buf, make([]byte, MaxFramePayload+1))
	require.ErrorIs(t, err, ErrFrameTooLarge)
}

func pairedCipherStates(t *testing.T) (initSend, initRecv, respSend, respRecv *noiselib.CipherState) {
	t.Helper()
	suite := noiselib.NewCipherSuite(noiselib.DH25519, noiselib.CipherChaChaPoly, noiselib.HashBLAKE2s)
	responderKey, err := suite.GenerateKeypair(nil)
	require.NoError(t, err)

	initHS, err := noiselib.NewHandshakeState(noiselib.Config{CipherSuite: suite, Pattern: noiselib.HandshakeNX, Initiator: true})
	require.NoError(t, err)
	respHS, err := noiselib.NewHandshakeState(noiselib.Config{CipherSuite: suite, Pattern: noiselib.HandshakeNX, Initiator: false, StaticKeypair: responderKey})
	require.NoError(t, err)

	msg0, _, _, err := initHS.WriteMessage(nil, nil)
	require.NoError(t, err)
	_, _, _, err = respHS.ReadMessage(nil, msg0)
	require.NoError(t, err)

	msg1, cs2, cs1, err := respHS.WriteMessage(nil, nil)
	require.NoError(t, err)
	require.NotNil(t, cs2)
	_, ics1, ics2, err := initHS.ReadMessage(nil, msg1)
	require.NoError(t, err)
	require.NotNil(t, ics1)

	return ics1, ics2, cs1, cs2
}

func TestTransportCodecRoundTrip(t *testing.T) {
	initSend, initRecv, respSend, respRecv := pairedCipherStates(t)

	initCodec := NewHandshakeCodec()
	require.NoError(t, initCodec.SetTransportMode(initSend, initRecv))
	respCodec := NewHandshakeCodec()
	require.NoError(t, respCodec.SetTransportMode(respSend, respRecv))

	var buf bytes.Buffer
	require.NoError(t, initCodec.WriteFrame(&buf, []byte("share submission")))
	got, err := respCodec.ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("share submission"), got)

	buf.Reset()
	require.NoError(t, respCodec.WriteFrame(&buf, []byte("job notification")))
	got, err = initCodec.ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("job notification"), got)
}

func TestSetTransportModeTwiceIsABug(t *testing.T) {
	c := NewHandshakeCodec()
	cipherState := &noiselib.CipherState{}
	require.NoError(t, c.SetTransportMode(cipherState, cipherState))
	require.ErrorIs(t, c.SetTransportMode(cipherState, cipherState), ErrAlreadyTransport)
}
