package cert

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/base58"
)

// On-disk JSON shape: Base58Check-encoded keys/signatures nested under
// named subobjects, following the original implementation's certificate
// file format (noise_public_key / ed25519_public_key / ed25519_signature).

type staticPublicKeyJSON struct {
	NoisePublicKey string `json:"noise_public_key"`
}

type staticSecretKeyJSON struct {
	NoiseSecretKey string `json:"noise_secret_key"`
}

type ed25519PublicKeyJSON struct {
	Ed25519PublicKey string `json:"ed25519_public_key"`
}

type ed25519SignatureJSON struct {
	Ed25519Signature string `json:"ed25519_signature"`
}

type signedPartHeaderJSON struct {
	Version       uint16 `json:"version"`
	ValidFrom     uint32 `json:"valid_from"`
	NotValidAfter uint32 `json:"not_valid_after"`
}

type certificateJSON struct {
	SignedPartHeader   signedPartHeaderJSON `json:"signed_part_header"`
	PublicKey          staticPublicKeyJSON  `json:"public_key"`
	AuthorityPublicKey ed25519PublicKeyJSON `json:"authority_public_key"`
	Signature          ed25519SignatureJSON `json:"signature"`
}

type serverSecurityBundleJSON struct {
	Certificate certificateJSON     `json:"certificate"`
	SecretKey   staticSecretKeyJSON `json:"secret_key"`
}

// MarshalJSON renders the certificate in the on-disk Base58Check format.
func (c Certificate) MarshalJSON() ([]byte, error) {
	return json.MarshalIndent(certificateJSON{
		SignedPartHeader: signedPartHeaderJSON{
			Version:       c.Header.Version,
			ValidFrom:     c.Header.ValidFrom,
			NotValidAfter: c.Header.NotValidAfter,
		},
		PublicKey:          staticPublicKeyJSON{NoisePublicKey: base58.CheckEncode(c.StaticPubkey[:], 0)},
		AuthorityPublicKey: ed25519PublicKeyJSON{Ed25519PublicKey: base58.CheckEncode(c.AuthorityPubkey, 0)},
		Signature:          ed25519SignatureJSON{Ed25519Signature: base58.CheckEncode(c.Signature, 0)},
	}, "", "  ")
}

// UnmarshalJSON parses the on-disk Base58Check format back into a Certificate.
func (c *Certificate) UnmarshalJSON(data []byte) error {
	var j certificateJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return fmt.Errorf("cert: %w", err)
	}

	staticPub, _, err := base58.CheckDecode(j.PublicKey.NoisePublicKey)
	if err != nil {
		return fmt.Errorf("cert: decoding public_key.noise_public_key: %w", err)
	}
	if len(staticPub) != StaticKeySize {
		return fmt.Errorf("cert: noise_public_key must decode to %d bytes, got %d", StaticKeySize, len(staticPub))
	}
	authorityPub, _, err := base58.CheckDecode(j.AuthorityPublicKey.Ed25519PublicKey)
	if err != nil {
		return fmt.Errorf("cert: decoding authority_public_key.ed25519_public_key: %w", err)
	}
	if len(authorityPub) != ed25519.PublicKeySize {
		return fmt.Errorf("cert: ed25519_public_key must decode to %d bytes, got %d", ed25519.PublicKeySize, len(authorityPub))
	}
	sig, _, err := base58.CheckDecode(j.Signature.Ed25519Signature)
	if err != nil {
		return fmt.Errorf("cert: decoding signature.ed25519_signature: %w", err)
	}

	c.Header = SignedPartHeader{
		Version:       j.SignedPartHeader.Version,
		ValidFrom:     j.SignedPartHeader.ValidFrom,
		NotValidAfter: j.SignedPartHeader.NotValidAfter,
	}
	copy(c.StaticPubkey[:], staticPub)
	c.AuthorityPubkey = ed25519.PublicKey(authorityPub)
	c.Signature = sig
	return nil
}

// ServerSecurityBundle is the Responder's persistent state: its
// certificate plus the matching secret key, loaded from disk at startup.
// Its Debug/log-facing string representation must never expose secretKey.
type ServerSecurityBundle struct {
	Certificate Certificate
	secretKey   [StaticKeySize]byte
}

// ErrInconsistentBundle is returned when the secret key's public
// derivation doesn't match the certificate's static public key (spec §3
// "self-consistency check").
var ErrInconsistentBundle = errors.New("cert: secret key and certificate public key are inconsistent")

// NewServerSecurityBundle validates the bundle's self-consistency before
// returning it.
func NewServerSecurityBundle(certificate Certificate, secretKey [StaticKeySize]byte, derivePublic func([StaticKeySize]byte) ([StaticKeySize]byte, error)) (*ServerSecurityBundle, error) {
	b := &ServerSecurityBundle{Certificate: certificate, secretKey: secretKey}
	if err := b.validateSecretKey(derivePublic); err != nil {
		return nil, err
	}
	return b, nil
}

// SecretKey returns the bundle's static private key, used to construct the
// Noise Responder's static keypair.
func (b *ServerSecurityBundle) SecretKey() [StaticKeySize]byte { return b.secretKey }

func (b *ServerSecurityBundle) validateSecretKey(derivePublic func([StaticKeySize]byte) ([StaticKeySize]byte, error)) error {
	derived, err := derivePublic(b.secretKey)
	if err != nil {
		return fmt.Errorf("cert: deriving public key from secret key: %w", err)
	}
	if derived != b.Certificate.StaticPubkey {
		return ErrInconsistentBundle
	}
	return nil
}

// String never includes the secret key, only the authority public key and
// the certificate's expiry, matching the original implementation's
// leak-conscious Debug format.
func (b *ServerSecurityBundle) String() string {
	return fmt.Sprintf("ServerSecurityBundle{authority=%s, not_valid_after=%d}",
		base58.CheckEncode(b.Certificate.AuthorityPubkey, 0), b.Certificate.Header.NotValidAfter)
}

// MarshalBundleJSON renders the bundle (certificate + secret key) for disk
// storage.
func MarshalBundleJSON(b *ServerSecurityBundle) ([]byte, error) {
	certJSON, err := b.Certificate.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var cj certificateJSON
	if err := json.Unmarshal(certJSON, &cj); err != nil {
		return nil, err
	}
	return json.MarshalIndent(serverSecurityBundleJSON{
		Certificate: cj,
		SecretKey:   staticSecretKeyJSON{NoiseSecretKey: base58.CheckEncode(b.secretKey[:], 0)},
	}, "", "  ")
}

// UnmarshalBundleJSON parses a bundle file and re-validates self-consistency.
func UnmarshalBundleJSON(data []byte, derivePublic func([StaticKeySize]byte) ([StaticKeySize]byte, error)) (*ServerSecurityBundle, error) {
	var j serverSecurityBundleJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("cert: %w", err)
	}
	certData, err := json.Marshal(j.Certificate)
	if err != nil {
		return nil, err
	}
	var certificate Certificate
	if err := certificate.UnmarshalJSON(certData); err != nil {
		return nil, err
	}
	secretBytes, _, err := base58.CheckDecode(j.SecretKey.NoiseSecretKey)
	if err != nil {
		return nil, fmt.Errorf("cert: decoding secret_key.noise_secret_key: %w", err)
	}
	if len(secretBytes) != StaticKeySize {
		return nil, fmt.Errorf("cert: noise_secret_key must decode to %d bytes, got %d", StaticKeySize, len(secretBytes))
	}
	var secretKey [StaticKeySize]byte
	copy(secretKey[:], secretBytes)
	return NewServerSecurityBundle(certificate, secretKey, derivePublic)
}
