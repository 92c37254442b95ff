package supervisor

import (
	"fmt"
	"os"
	"strings"

	"github.com/btcsuite/btcd/btcutil/base58"

	"github.com/chimera-pool/stratum-noise-proxy/internal/stratum/v2/cert"
	"github.com/chimera-pool/stratum-noise-proxy/internal/stratum/v2/noise"
)

// LoadSecurityBundle reads the Responder's certificate and its matching
// secret key from the two files the configuration names separately
// (certificate_file holds only the Certificate's on-disk JSON form;
// secret_key_file holds the Base58Check-encoded X25519 private key on its
// own line), then re-validates the bundle's self-consistency.
func LoadSecurityBundle(certificateFile, secretKeyFile string) (*cert.ServerSecurityBundle, error) {
	certData, err := os.ReadFile(certificateFile)
	if err != nil {
		return nil, fmt.Errorf("supervisor: reading certificate file: %w", err)
	}
	var certificate cert.Certificate
	if err := certificate.UnmarshalJSON(certData); err != nil {
		return nil, fmt.Errorf("supervisor: parsing certificate file: %w", err)
	}

	keyData, err := os.ReadFile(secretKeyFile)
	if err != nil {
		return nil, fmt.Errorf("supervisor: reading secret key file: %w", err)
	}
	secretBytes, _, err := base58.CheckDecode(strings.TrimSpace(string(keyData)))
	if err != nil {
		return nil, fmt.Errorf("supervisor: decoding secret key file: %w", err)
	}
	if len(secretBytes) != cert.StaticKeySize {
		return nil, fmt.Errorf("supervisor: secret key must decode to %d bytes, got %d", cert.StaticKeySize, len(secretBytes))
	}
	var secretKey [cert.StaticKeySize]byte
	copy(secretKey[:], secretBytes)

	bundle, err := cert.NewServerSecurityBundle(certificate, secretKey, noise.DerivePublicKey)
	if err != nil {
		return nil, fmt.Errorf("supervisor: %w", err)
	}
	return bundle, nil
}
