package cert

import (
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSignedPart(t *testing.T) (SignedPart, ed25519.PrivateKey) {
	t.Helper()
	authorityPub, authorityPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	var staticPub [StaticKeySize]byte
	for i := range staticPub {
		staticPub[i] = byte(i)
	}

	sp := SignedPart{
		Header:          SignedPartHeader{Version: 0, ValidFrom: 1000, NotValidAfter: 2000},
		StaticPubkey:    staticPub,
		AuthorityPubkey: authorityPub,
	}
	return sp, authorityPriv
}

func TestSignedPartSignAndVerify(t *testing.T) {
	sp, priv := testSignedPart(t)
	sig, err := sp.SignWith(priv)
	require.NoError(t, err)
	require.NoError(t, sp.Verify(sig))
}

func TestSignedPartVerifyRejectsTamperedSignature(t *testing.T) {
	sp, priv := testSignedPart(t)
	sig, err := sp.SignWith(priv)
	require.NoError(t, err)
	sig[0] ^= 0xff
	require.Error(t, sp.Verify(sig))
}

func TestCertificateValidateWindow(t *testing.T) {
	sp, priv := testSignedPart(t)
	sig, err := sp.SignWith(priv)
	require.NoError(t, err)

	c := Certificate{Header: sp.Header, StaticPubkey: sp.StaticPubkey, AuthorityPubkey: sp.AuthorityPubkey, Signature: sig}

	require.NoError(t, c.Validate(time.Unix(1500, 0)))

	err = c.Validate(time.Unix(500, 0))
	require.ErrorIs(t, err, ErrNotYetValid)

	err = c.Validate(time.Unix(2500, 0))
	require.ErrorIs(t, err, ErrExpired)
}

func TestSignatureNoiseMessageRoundTrip(t *testing.T) {
	sp, priv := testSignedPart(t)
	sig, err := sp.SignWith(priv)
	require.NoError(t, err)

	c := Certificate{Header: sp.Header, StaticPubkey: sp.StaticPubkey, AuthorityPubkey: sp.AuthorityPubkey, Signature: sig}
	msg := c.BuildNoiseMessage()

	encoded, err := msg.Encode()
	require.NoError(t, err)
	decoded, err := DecodeSignatureNoiseMessage(encoded)
	require.NoError(t, err)
	assert.Equal(t, msg.Header, decoded.Header)
	assert.Equal(t, []byte(msg.Signature), []byte(decoded.Signature))

	reconstructed := FromNoiseMessage(decoded, sp.StaticPubkey, sp.AuthorityPubkey)
	require.NoError(t, reconstructed.Validate(time.Unix(1500, 0)))
}

func TestCertificateJSONRoundTrip(t *testing.T) {
	sp, priv := testSignedPart(t)
	sig, err := sp.SignWith(priv)
	require.NoError(t, err)
	c := Certificate{Header: sp.Header, StaticPubkey: sp.StaticPubkey, AuthorityPubkey: sp.AuthorityPubkey, Signature: sig}

	data, err := c.MarshalJSON()
	require.NoError(t, err)

	var out Certificate
	require.NoError(t, out.UnmarshalJSON(data))
	assert.Equal(t, c.Header, out.Header)
	assert.Equal(t, c.StaticPubkey, out.StaticPubkey)
	assert.Equal(t, []byte(c.AuthorityPubkey), []byte(out.AuthorityPubkey))
	assert.Equal(t, []byte(c.Signature), []byte(out.Signature))
}

func TestServerSecurityBundleSelfConsistency(t *testing.T) {
	sp, priv := testSignedPart(t)
	sig, err := sp.SignWith(priv)
	require.NoError(t, err)
	c := Certificate{Header: sp.Header, StaticPubkey: sp.StaticPubkey, AuthorityPubkey: sp.AuthorityPubkey, Signature: sig}

	var secretKey [StaticKeySize]byte
	copy(secretKey[:], []byte("0123456789abcdef0123456789abcdef"))

	matching := func([StaticKeySize]byte) ([StaticKeySize]byte, error) { return sp.StaticPubkey, nil }
	_, err = NewServerSecurityBundle(c, secretKey, matching)
	require.NoError(t, err)

	var other [StaticKeySize]byte
	mismatching := func([StaticKeySize]byte) ([StaticKeySize]byte, error) { return other, nil }
	_, err = NewServerSecurityBundle(c, secretKey, mismatching)
	require.ErrorIs(t, err, ErrInconsistentBundle)
}

func TestServerSecurityBundleJSONRoundTrip(t *testing.T) {
	sp, priv := testSignedPart(t)
	sig, err := sp.SignWith(priv)
	require.NoError(t, err)
	c := Certificate{Header: sp.Header, StaticPubkey: sp.StaticPubkey, AuthorityPubkey: sp.AuthorityPubkey, Signature: sig}

	var secretKey [StaticKeySize]byte
	copy(secretKey[:], []byte("0123456789abcdef0123456789abcdef"))
	derive := func([StaticKeySize]byte) ([StaticKeySize]byte, error) { return sp.StaticPubkey, nil }

	bundle, err := NewServerSecurityBundle(c, secretKey, derive)
	require.NoError(t, err)

	data, err := MarshalBundleJSON(bundle)
	require.NoError(t, err)

	out, err := UnmarshalBundleJSON(data, derive)
	require.NoError(t, err)
	assert.Equal(t, bundle.Certificate.StaticPubkey, out.Certificate.StaticPubkey)
	assert.Equal(t, bundle.SecretKey(), out.SecretKey())
}
