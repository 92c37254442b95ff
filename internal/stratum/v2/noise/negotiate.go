package noise

import (
	"errors"
	"fmt"
	"io"

	noiselib "github.com/flynn/noise"
)

// NegotiationMagic is the fixed 4-byte tag that opens every
// NegotiationMessage frame (spec §6).
const NegotiationMagic = "STR2"

// EncryptionAlgorithm is one of the two cipher suites this proxy can
// negotiate for the Noise transport.
type EncryptionAlgorithm uint8

const (
	AlgorithmChaChaPoly EncryptionAlgorithm = iota
	AlgorithmAESGCM
)

var algorithmTags = map[EncryptionAlgorithm]string{
	AlgorithmChaChaPoly: "CHCH",
	AlgorithmAESGCM:     "AESG",
}

var tagAlgorithms = map[string]EncryptionAlgorithm{
	"CHCH": AlgorithmChaChaPoly,
	"AESG": AlgorithmAESGCM,
}

// ErrUnknownAlgorithmTag is returned when a NegotiationMessage names a
// 4-byte tag this proxy does not recognize.
var ErrUnknownAlgorithmTag = errors.New("noise: unknown algorithm tag")

// ErrBadMagic is returned when a NegotiationMessage's magic does not match
// NegotiationMagic.
var ErrBadMagic = errors.New("noise: bad negotiation magic")

// CipherSuite returns the flynn/noise CipherSuite backing this algorithm,
// always paired with DH25519/BLAKE2s per the Noise_NX_25519_<cipher>_BLAKE2s
// pattern name (spec §4.E).
func (a EncryptionAlgorithm) CipherSuite() (noiselib.CipherSuite, error) {
	switch a {
	case AlgorithmChaChaPoly:
		return noiselib.NewCipherSuite(noiselib.DH25519, noiselib.CipherChaChaPoly, noiselib.HashBLAKE2s), nil
	case AlgorithmAESGCM:
		return noiselib.NewCipherSuite(noiselib.DH25519, noiselib.CipherAESGCM, noiselib.HashBLAKE2s), nil
	default:
		return noiselib.CipherSuite{}, fmt.Errorf("noise: unsupported algorithm %d", a)
	}
}

// NegotiationMessage is the pre-handshake frame each side sends to agree on
// a cipher: the Initiator offers a list, the Responder echoes back exactly
// one (spec §4.E steps 1-2).
type NegotiationMessage struct {
	Algorithms []EncryptionAlgorithm
}

// Encode serializes the message as "STR2" | count:u8 | algos[count*4].
func (m NegotiationMessage) Encode() ([]byte, error) {
	if len(m.Algorithms) > 255 {
		return nil, fmt.Errorf("noise: too many algorithms: %d", len(m.Algorithms))
	}
	buf := make([]byte, 0, 4+1+4*len(m.Algorithms))
	buf = append(buf, NegotiationMagic...)
	buf = append(buf, byte(len(m.Algorithms)))
	for _, a := range m.Algorithms {
		tag, ok := algorithmTags[a]
		if !ok {
			return nil, fmt.Errorf("noise: unknown algorithm %d", a)
		}
		buf = append(buf, tag...)
	}
	return buf, nil
}

// DecodeNegotiationMessage parses a NegotiationMessage payload (already
// stripped of the Noise codec's length prefix).
func DecodeNegotiationMessage(data []byte) (NegotiationMessage, error) {
	if len(data) < 5 {
		return NegotiationMessage{}, fmt.Errorf("noise: negotiation message too short: %d bytes", len(data))
	}
	if string(data[:4]) != NegotiationMagic {
		return NegotiationMessage{}, ErrBadMagic
	}
	count := int(data[4])
	want := 5 + 4*count
	if len(data) != want {
		return NegotiationMessage{}, fmt.Errorf("noise: negotiation message length mismatch: want %d, got %d", want, len(data))
	}
	algos := make([]EncryptionAlgorithm, count)
	for i := 0; i < count; i++ {
		tag := string(data[5+4*i : 5+4*i+4])
		a, ok := tagAlgorithms[tag]
		if !ok {
			return NegotiationMessage{}, fmt.Errorf("%w: %q", ErrUnknownAlgorithmTag, tag)
		}
		algos[i] = a
	}
	return NegotiationMessage{Algorithms: algos}, nil
}

// NegotiateInitiator sends the Initiator's offer and reads back the
// Responder's single chosen algorithm, returning both raw messages (for
// the prologue, spec §4.E step 3) and the chosen cipher suite.
func NegotiateInitiator(rw io.ReadWriter, codec *Codec, offered []EncryptionAlgorithm) (chosen EncryptionAlgorithm, prologue []byte, err error) {
	initMsg, err := NegotiationMessage{Algorithms: offered}.Encode()
	if err != nil {
		return 0, nil, err
	}
	if err := codec.WriteFrame(rw, initMsg); err != nil {
		return 0, nil, err
	}

	respRaw, err := codec.ReadFrame(rw)
	if err != nil {
		return 0, nil, err
	}
	resp, err := DecodeNegotiationMessage(respRaw)
	if err != nil {
		return 0, nil, err
	}
	if len(resp.Algorithms) != 1 {
		return 0, nil, fmt.Errorf("noise: responder offered %d algorithms, want 1", len(resp.Algorithms))
	}
	return resp.Algorithms[0], append(append([]byte{}, initMsg...), respRaw...), nil
}

// NegotiateResponder reads the Initiator's offer, picks the first mutually
// supported algorithm (in the Responder's preference order), and replies.
func NegotiateResponder(rw io.ReadWriter, codec *Codec, preference []EncryptionAlgorithm) (chosen EncryptionAlgorithm, prologue []byte, err error) {
	initRaw, err := codec.ReadFrame(rw)
	if err != nil {
		return 0, nil, err
	}
	offer, err := DecodeNegotiationMessage(initRaw)
	if err != nil {
		return 0, nil, err
	}

	offered := make(map[EncryptionAlgorithm]bool, len(offer.Algorithms))
	for _, a := range offer.Algorithms {
		offered[a] = true
	}
	var picked EncryptionAlgorithm
	found := false
	for _, a := range preference {
		if offered[a] {
			picked, found = a, true
			break
		}
	}
	if !found {
		return 0, nil, errors.New("noise: no mutually supported algorithm")
	}

	respMsg, err := NegotiationMessage{Algorithms: []EncryptionAlgorithm{picked}}.Encode()
	if err != nil {
		return 0, nil, err
	}
	if err := codec.WriteFrame(rw, respMsg); err != nil {
		return 0, nil, err
	}
	return picked, append(append([]byte{}, initRaw...), respMsg...), nil
}
