package noise

import (
	"crypto/ed25519"
	"fmt"
	"net"
	"time"

	noiselib "github.com/flynn/noise"

	"github.com/chimera-pool/stratum-noise-proxy/internal/stratum/v2/cert"
)

// DefaultStepTimeout bounds every handshake read/write step (spec §4.E,
// §5: "each Noise handshake step has a read/write timeout (default 2 s)").
const DefaultStepTimeout = 2 * time.Second

// InitiatorConfig configures the client (Initiator) role of the Noise
// handshake: the side that dials, receives the Responder's certificate and
// validates it against AuthorityPubkey.
type InitiatorConfig struct {
	OfferedAlgorithms []EncryptionAlgorithm
	AuthorityPubkey   ed25519.PublicKey
	StepTimeout       time.Duration
}

// ResponderConfig configures the server role.
type ResponderConfig struct {
	Bundle           *cert.ServerSecurityBundle
	PreferAlgorithms []EncryptionAlgorithm
	StepTimeout      time.Duration
}

func withDeadline(conn net.Conn, timeout time.Duration, fn func() error) error {
	if timeout <= 0 {
		timeout = DefaultStepTimeout
	}
	deadline := time.Now().Add(timeout)
	if err := conn.SetReadDeadline(deadline); err != nil {
		return err
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	defer func() {
		_ = conn.SetReadDeadline(time.Time{})
		_ = conn.SetWriteDeadline(time.Time{})
	}()
	return fn()
}

// RunInitiatorHandshake drives the Initiator side of the NX handshake over
// conn: the negotiation exchange, the two cryptographic handshake
// messages, certificate validation, and finally promoting codec to
// transport mode. It returns the Responder's validated certificate.
func RunInitiatorHandshake(conn net.Conn, codec *Codec, cfg InitiatorConfig) (*cert.Certificate, error) {
	var algorithm EncryptionAlgorithm
	var prologue []byte
	err := withDeadline(conn, cfg.StepTimeout, func() error {
		var err error
		algorithm, prologue, err = NegotiateInitiator(conn, codec, cfg.OfferedAlgorithms)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("noise: negotiation: %w", err)
	}

	suite, err := algorithm.CipherSuite()
	if err != nil {
		return nil, err
	}

	hs, err := noiselib.NewHandshakeState(noiselib.Config{
		CipherSuite: suite,
		Pattern:     noiselib.HandshakeNX,
		Initiator:   true,
		Prologue:    prologue,
	})
	if err != nil {
		return nil, fmt.Errorf("noise: initializing handshake state: %w", err)
	}

	// Step 0: -> e
	err = withDeadline(conn, cfg.StepTimeout, func() error {
		msg, _, _, err := hs.WriteMessage(nil, nil)
		if err != nil {
			return err
		}
		return codec.WriteFrame(conn, msg)
	})
	if err != nil {
		return nil, fmt.Errorf("noise: writing step 0 (-> e): %w", err)
	}

	// Step 1: <- e, ee, s, es (payload = encrypted SignatureNoiseMessage)
	var payload []byte
	var send, recv *noiselib.CipherState
	err = withDeadline(conn, cfg.StepTimeout, func() error {
		msg, err := codec.ReadFrame(conn)
		if err != nil {
			return err
		}
		payload, send, recv, err = hs.ReadMessage(nil, msg)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("noise: reading step 1 (<- e, ee, s, es): %w", err)
	}
	if send == nil || recv == nil {
		return nil, fmt.Errorf("noise: handshake did not complete after step 1")
	}

	sigMsg, err := cert.DecodeSignatureNoiseMessage(payload)
	if err != nil {
		return nil, fmt.Errorf("noise: decoding SignatureNoiseMessage: %w", err)
	}

	var remoteStatic [cert.StaticKeySize]byte
	peerStatic := hs.PeerStatic()
	if len(peerStatic) != cert.StaticKeySize {
		return nil, fmt.Errorf("noise: unexpected remote static key length %d", len(peerStatic))
	}
	copy(remoteStatic[:], peerStatic)

	responderCert := cert.FromNoiseMessage(sigMsg, remoteStatic, cfg.AuthorityPubkey)
	if err := responderCert.Validate(time.Now()); err != nil {
		return nil, fmt.Errorf("noise: certificate validation failed: %w", err)
	}

	// Initiator encrypts with cs1 (send), decrypts with cs2 (recv).
	if err := codec.SetTransportMode(send, recv); err != nil {
		return nil, err
	}
	return &responderCert, nil
}

// RunResponderHandshake drives the Responder side of the NX handshake:
// negotiation, the two cryptographic handshake messages (sending its own
// certificate embedded as a SignatureNoiseMessage), and promoting codec to
// transport mode.
func RunResponderHandshake(conn net.Conn, codec *Codec, cfg ResponderConfig) error {
	var algorithm EncryptionAlgorithm
	var prologue []byte
	err := withDeadline(conn, cfg.StepTimeout, func() error {
		var err error
		algorithm, prologue, err = NegotiateResponder(conn, codec, cfg.PreferAlgorithms)
		return err
	})
	if err != nil {
		return fmt.Errorf("noise: negotiation: %w", err)
	}

	suite, err := algorithm.CipherSuite()
	if err != nil {
		return err
	}

	secret := cfg.Bundle.SecretKey()
	staticKeypair := noiselib.DHKey{
		Private: secret[:],
		Public:  cfg.Bundle.Certificate.StaticPubkey[:],
	}

	hs, err := noiselib.NewHandshakeState(noiselib.Config{
		CipherSuite:   suite,
		Pattern:       noiselib.HandshakeNX,
		Initiator:     false,
		Prologue:      prologue,
		StaticKeypair: staticKeypair,
	})
	if err != nil {
		return fmt.Errorf("noise: initializing handshake state: %w", err)
	}

	// Step 0: read -> e
	err = withDeadline(conn, cfg.StepTimeout, func() error {
		msg, err := codec.ReadFrame(conn)
		if err != nil {
			return err
		}
		_, _, _, err = hs.ReadMessage(nil, msg)
		return err
	})
	if err != nil {
		return fmt.Errorf("noise: reading step 0 (-> e): %w", err)
	}

	sigMsg, err := cfg.Bundle.Certificate.BuildNoiseMessage().Encode()
	if err != nil {
		return fmt.Errorf("noise: encoding SignatureNoiseMessage: %w", err)
	}

	// Step 1: write <- e, ee, s, es
	var send, recv *noiselib.CipherState
	err = withDeadline(conn, cfg.StepTimeout, func() error {
		msg, cs1, cs2, err := hs.WriteMessage(nil, sigMsg)
		if err != nil {
			return err
		}
		if cs1 == nil || cs2 == nil {
			return fmt.Errorf("noise: handshake did not complete after step 1")
		}
		send, recv = cs2, cs1
		return codec.WriteFrame(conn, msg)
	})
	if err != nil {
		return fmt.Errorf("noise: writing step 1 (<- e, ee, s, es): %w", err)
	}

	// Responder encrypts with cs2 (send), decrypts with cs1 (recv) — the
	// mirror image of the Initiator's assignment, per flynn/noise's
	// Split() convention for odd-length message patterns.
	return codec.SetTransportMode(send, recv)
}
