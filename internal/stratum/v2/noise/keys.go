// Package noise implements the Stratum V2 Noise transport: the
// length-delimited wire codec (codec.go), the pre-handshake cipher
// negotiation exchange (negotiate.go), and the NX handshake driver
// (handshake.go) built on github.com/flynn/noise.
package noise

import (
	"crypto/rand"

	noiselib "github.com/flynn/noise"
	"golang.org/x/crypto/curve25519"
)

// StaticKeySize is the width of an X25519 public or private key.
const StaticKeySize = 32

// GenerateStaticKeypair produces a new X25519 keypair suitable for use as
// a Responder's static key or an Initiator's ephemeral key.
func GenerateStaticKeypair() (noiselib.DHKey, error) {
	return noiselib.DH25519.GenerateKeypair(rand.Reader)
}

// DerivePublicKey computes the X25519 public key for a private key, used by
// ServerSecurityBundle's self-consistency check (§3, §9 Open Question 1).
func DerivePublicKey(private [StaticKeySize]byte) ([StaticKeySize]byte, error) {
	var public [StaticKeySize]byte
	if err := curve25519ScalarBaseMult(&public, &private); err != nil {
		return public, err
	}
	return public, nil
}

func curve25519ScalarBaseMult(dst, scalar *[StaticKeySize]byte) error {
	out, err := curve25519.X25519(scalar[:], curve25519.Basepoint)
	if err != nil {
		return err
	}
	copy(dst[:], out)
	return nil
}
