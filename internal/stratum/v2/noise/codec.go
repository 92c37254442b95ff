package noise

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	noiselib "github.com/flynn/noise"
)

// LengthPrefixSize is the width of the codec's frame length prefix.
const LengthPrefixSize = 2

// MaxFramePayload is the largest payload (handshake message or transport
// ciphertext) a single frame may carry.
const MaxFramePayload = 65535

// AEADTagSize is the Poly1305/GCM tag width flynn/noise's ChaChaPoly and
// AESGCM suites both append to a transport ciphertext.
const AEADTagSize = 16

// MaxTransportPlaintext is the largest plaintext payload that still fits a
// transport-mode frame once the AEAD tag is accounted for.
const MaxTransportPlaintext = MaxFramePayload - AEADTagSize

var (
	// ErrFrameTooLarge is returned when an outbound payload exceeds
	// MaxFramePayload (handshake) or MaxTransportPlaintext (transport).
	ErrFrameTooLarge = errors.New("noise: frame payload exceeds limit")
	// ErrAlreadyTransport is the double-promotion programming bug
	// described in spec §4.D.
	ErrAlreadyTransport = errors.New("noise: codec already in transport mode")
)

// Codec frames a byte stream with a 2-byte little-endian length prefix and
// carries either raw handshake bytes or Noise transport ciphertext,
// depending on its current state.
type Codec struct {
	send *noiselib.CipherState
	recv *noiselib.CipherState
}

// NewHandshakeCodec returns a codec in the Handshake state: frames pass
// through unencrypted.
func NewHandshakeCodec() *Codec {
	return &Codec{}
}

// InTransportMode reports whether SetTransportMode has been called.
func (c *Codec) InTransportMode() bool {
	return c.send != nil
}

// SetTransportMode promotes the codec from Handshake to Transport, wiring
// in the two directional cipher states the handshake driver produced.
// Calling it twice is a programming bug (ErrAlreadyTransport).
func (c *Codec) SetTransportMode(send, recv *noiselib.CipherState) error {
	if c.InTransportMode() {
		return ErrAlreadyTransport
	}
	c.send = send
	c.recv = recv
	return nil
}

// WriteFrame encodes plaintext as one length-prefixed frame, encrypting it
// first if the codec is in transport mode.
func (c *Codec) WriteFrame(w io.Writer, plaintext []byte) error {
	var payload []byte
	if c.InTransportMode() {
		if len(plaintext) > MaxTransportPlaintext {
			return fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(plaintext), MaxTransportPlaintext)
		}
		payload = c.send.Encrypt(nil, nil, plaintext)
	} else {
		if len(plaintext) > MaxFramePayload {
			return fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(plaintext), MaxFramePayload)
		}
		payload = plaintext
	}

	var prefix [LengthPrefixSize]byte
	binary.LittleEndian.PutUint16(prefix[:], uint16(len(payload)))
	if _, err := w.Write(prefix[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadFrame reads one length-prefixed frame and returns the plaintext,
// decrypting it first if the codec is in transport mode.
func (c *Codec) ReadFrame(r io.Reader) ([]byte, error) {
	var prefix [LengthPrefixSize]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint16(prefix[:])

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}

	if !c.InTransportMode() {
		return payload, nil
	}
	return c.recv.Decrypt(nil, nil, payload)
}
