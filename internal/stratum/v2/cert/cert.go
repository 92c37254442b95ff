// Package cert implements the Stratum V2 Noise certificate model: the
// signed static-key certificate a Responder presents during the handshake
// (spec §3, §4.F) and the on-disk ServerSecurityBundle format.
package cert

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/chimera-pool/stratum-noise-proxy/internal/stratum/v2/binary"
)

// StaticKeySize is the width of an X25519 static public key.
const StaticKeySize = 32

// SignedPartHeader carries the certificate's validity window. Version 0 is
// the only version this proxy emits or accepts.
type SignedPartHeader struct {
	Version       uint16
	ValidFrom     uint32
	NotValidAfter uint32
}

// ErrNotYetValid and ErrExpired are the two distinct validity-window
// failures spec §3 calls out by name.
var (
	ErrNotYetValid = errors.New("cert: certificate not yet valid")
	ErrExpired     = errors.New("cert: certificate expired")
)

// VerifyExpiration checks now against the header's validity window.
func (h SignedPartHeader) VerifyExpiration(now time.Time) error {
	ts := uint32(now.Unix())
	if ts < h.ValidFrom {
		return fmt.Errorf("%w: valid_from=%d now=%d", ErrNotYetValid, h.ValidFrom, ts)
	}
	if ts > h.NotValidAfter {
		return fmt.Errorf("%w: not_valid_after=%d now=%d", ErrExpired, h.NotValidAfter, ts)
	}
	return nil
}

// SignedPart is the bytes an authority key actually signs: the header plus
// the two public keys the certificate binds together.
type SignedPart struct {
	Header          SignedPartHeader
	StaticPubkey    [StaticKeySize]byte
	AuthorityPubkey ed25519.PublicKey
}

// serialize re-creates the exact V2-binary-serialized bytes the signature
// covers (spec §4.F step 1). Field order matches the Rust original's
// SignedPart struct.
func (s SignedPart) serialize() ([]byte, error) {
	if len(s.AuthorityPubkey) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("cert: authority pubkey must be %d bytes, got %d", ed25519.PublicKeySize, len(s.AuthorityPubkey))
	}
	w := binary.NewWriter()
	w.WriteU16(s.Header.Version)
	w.WriteU32(s.Header.ValidFrom)
	w.WriteU32(s.Header.NotValidAfter)
	if err := w.WriteBoundedBytes16(s.StaticPubkey[:], StaticKeySize, StaticKeySize); err != nil {
		return nil, err
	}
	if err := w.WriteBoundedBytes16(s.AuthorityPubkey, ed25519.PublicKeySize, ed25519.PublicKeySize); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// SignWith produces the Ed25519 signature over SignedPart's serialized
// bytes. Callers must pass the authority keypair that owns s.AuthorityPubkey;
// a mismatch is a configuration bug and is rejected rather than silently
// signing with the wrong identity.
func (s SignedPart) SignWith(authorityPriv ed25519.PrivateKey) (Signature, error) {
	pub, ok := authorityPriv.Public().(ed25519.PublicKey)
	if !ok || !pub.Equal(s.AuthorityPubkey) {
		return nil, errors.New("cert: signing key's public half does not match SignedPart.AuthorityPubkey")
	}
	buf, err := s.serialize()
	if err != nil {
		return nil, err
	}
	return ed25519.Sign(authorityPriv, buf), nil
}

// Verify checks sig against the SignedPart's re-serialized bytes. Go's
// crypto/ed25519.Verify uses the cofactorless verification equation and
// rejects non-canonical signature encodings (an S value that is not
// reduced), matching spec §3's "verifies ... using strict verification".
func (s SignedPart) Verify(sig Signature) error {
	buf, err := s.serialize()
	if err != nil {
		return err
	}
	if len(sig) != ed25519.SignatureSize || !ed25519.Verify(s.AuthorityPubkey, buf, sig) {
		return fmt.Errorf("cert: signature verification failed")
	}
	return nil
}

// Signature is a raw Ed25519 signature.
type Signature = []byte

// Certificate is the Responder's signed identity: a static Noise public
// key bound to a validity window and signed by an authority key the
// Initiator trusts out-of-band.
type Certificate struct {
	Header          SignedPartHeader
	StaticPubkey    [StaticKeySize]byte
	AuthorityPubkey ed25519.PublicKey
	Signature       Signature
}

func (c Certificate) signedPart() SignedPart {
	return SignedPart{Header: c.Header, StaticPubkey: c.StaticPubkey, AuthorityPubkey: c.AuthorityPubkey}
}

// Validate re-serializes the certificate's SignedPart, verifies the
// signature, then checks the validity window against now (spec §4.F).
func (c Certificate) Validate(now time.Time) error {
	if c.Header.Version != 0 {
		return fmt.Errorf("cert: unsupported certificate version %d", c.Header.Version)
	}
	if err := c.signedPart().Verify(c.Signature); err != nil {
		return err
	}
	return c.Header.VerifyExpiration(now)
}

// BuildNoiseMessage produces the SignatureNoiseMessage a Responder embeds
// in handshake step 1 (spec §4.E step 1).
func (c Certificate) BuildNoiseMessage() SignatureNoiseMessage {
	return SignatureNoiseMessage{Header: c.Header, Signature: c.Signature}
}

// FromNoiseMessage reconstructs a Certificate from the Responder's
// SignatureNoiseMessage plus the remote static key and authority public
// key the Initiator already knows out-of-band (spec §4.E step 2).
func FromNoiseMessage(msg SignatureNoiseMessage, staticPubkey [StaticKeySize]byte, authorityPubkey ed25519.PublicKey) Certificate {
	return Certificate{
		Header:          msg.Header,
		StaticPubkey:    staticPubkey,
		AuthorityPubkey: authorityPubkey,
		Signature:       msg.Signature,
	}
}

// SignatureNoiseMessage is what the Responder sends in handshake step 1:
// the certificate's header and signature, without the keys (both keys are
// already known to the Initiator from the handshake/out-of-band config).
type SignatureNoiseMessage struct {
	Header    SignedPartHeader
	Signature Signature
}

// Encode serializes the message using the V2 binary wire format.
func (m SignatureNoiseMessage) Encode() ([]byte, error) {
	w := binary.NewWriter()
	w.WriteU16(m.Header.Version)
	w.WriteU32(m.Header.ValidFrom)
	w.WriteU32(m.Header.NotValidAfter)
	if err := w.WriteBoundedBytes16(m.Signature, ed25519.SignatureSize, ed25519.SignatureSize); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// DecodeSignatureNoiseMessage parses the wire form Encode produces.
func DecodeSignatureNoiseMessage(data []byte) (SignatureNoiseMessage, error) {
	r := binary.NewReader(data)
	version, err := r.ReadU16()
	if err != nil {
		return SignatureNoiseMessage{}, err
	}
	validFrom, err := r.ReadU32()
	if err != nil {
		return SignatureNoiseMessage{}, err
	}
	notValidAfter, err := r.ReadU32()
	if err != nil {
		return SignatureNoiseMessage{}, err
	}
	sig, err := r.ReadBoundedBytes16(ed25519.SignatureSize, ed25519.SignatureSize)
	if err != nil {
		return SignatureNoiseMessage{}, err
	}
	if err := r.Finish(); err != nil {
		return SignatureNoiseMessage{}, err
	}
	return SignatureNoiseMessage{
		Header:    SignedPartHeader{Version: version, ValidFrom: validFrom, NotValidAfter: notValidAfter},
		Signature: sig,
	}, nil
}
