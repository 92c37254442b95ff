// Package supervisor implements the per-connection proxy task (spec §4.I,
// Component I): PROXY protocol detection, the downstream Noise responder
// handshake, dialing the upstream pool, and running the two I/O pumps that
// feed a translator.Translator for the lifetime of the session.
package supervisor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/chimera-pool/stratum-noise-proxy/internal/metrics"
	"github.com/chimera-pool/stratum-noise-proxy/internal/proxyproto"
	"github.com/chimera-pool/stratum-noise-proxy/internal/stratum/v2/cert"
	"github.com/chimera-pool/stratum-noise-proxy/internal/stratum/v2/noise"
)

const defaultDialTimeout = 10 * time.Second

// Config configures a Supervisor (spec §4.I, §6).
type Config struct {
	ListenAddress   string
	UpstreamAddress string

	// Insecure runs the downstream leg as plain TCP with no Noise
	// handshake; Bundle is then unused. The upstream leg to the V1 pool is
	// always plain TCP (spec §2's data-flow: Noise applies only to the
	// downstream V2 leg).
	Insecure bool
	Bundle   *cert.ServerSecurityBundle

	RequireProxyHeader   bool
	AllowedProxyVersions []proxyproto.Version

	DialTimeout time.Duration

	Logger  zerolog.Logger
	Metrics *metrics.Metrics
}

// Supervisor accepts downstream connections and runs one session per
// connection until told to stop.
type Supervisor struct {
	cfg        Config
	listener   net.Listener
	controller *Controller
}

// New binds the supervisor's listener.
func New(cfg Config) (*Supervisor, error) {
	if !cfg.Insecure && cfg.Bundle == nil {
		return nil, errors.New("supervisor: a security bundle is required unless Insecure is set")
	}
	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		return nil, fmt.Errorf("supervisor: listening on %s: %w", cfg.ListenAddress, err)
	}
	return &Supervisor{cfg: cfg, listener: listener, controller: NewController()}, nil
}

// Addr returns the supervisor's bound listen address.
func (s *Supervisor) Addr() net.Addr { return s.listener.Addr() }

// Controller exposes the live-session tracker used for graceful shutdown.
func (s *Supervisor) Controller() *Controller { return s.controller }

// Run accepts connections until ctx is canceled or the listener fails.
// Each accepted connection runs in its own goroutine; Run itself returns
// once the listener stops, without waiting for in-flight sessions (callers
// drain those through Controller).
func (s *Supervisor) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("supervisor: accept: %w", err)
		}
		s.cfg.Metrics.SessionStarted()
		s.controller.SessionStarted()
		go s.handleConnection(ctx, conn)
	}
}

func (s *Supervisor) handleConnection(ctx context.Context, conn net.Conn) {
	id := uuid.New().String()
	logger := s.cfg.Logger.With().
		Str("session_id", id).
		Str("remote_addr", conn.RemoteAddr().String()).
		Logger()

	reason := "ok"
	defer func() {
		conn.Close()
		s.cfg.Metrics.SessionEnded(reason)
		s.controller.SessionEnded()
	}()

	if err := s.negotiateAndRun(ctx, conn, id, logger); err != nil {
		reason = classifyReason(err)
		logger.Warn().Err(err).Str("reason", reason).Msg("supervisor: session ended")
	}
}

func (s *Supervisor) negotiateAndRun(ctx context.Context, conn net.Conn, id string, logger zerolog.Logger) error {
	r := bufio.NewReaderSize(conn, 4096)

	proxyInfo, err := s.readProxyHeader(r)
	if err != nil {
		s.cfg.Metrics.RecordError(metrics.ErrorKindProxyProtocol)
		return fmt.Errorf("proxy protocol: %w", err)
	}
	if proxyInfo != nil && !proxyInfo.Unknown {
		logger = logger.With().Str("original_source", proxyInfo.SourceAddr.String()).Logger()
	}

	downstream := &readerConn{Conn: conn, r: r}

	codec := noise.NewHandshakeCodec()
	if !s.cfg.Insecure {
		start := time.Now()
		err := noise.RunResponderHandshake(downstream, codec, noise.ResponderConfig{
			Bundle:           s.cfg.Bundle,
			PreferAlgorithms: []noise.EncryptionAlgorithm{noise.AlgorithmChaChaPoly, noise.AlgorithmAESGCM},
			StepTimeout:      noise.DefaultStepTimeout,
		})
		s.cfg.Metrics.HandshakeDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			s.cfg.Metrics.HandshakeFailures.Inc()
			s.cfg.Metrics.RecordError(metrics.ErrorKindNoiseHandshake)
			return fmt.Errorf("noise responder handshake: %w", err)
		}
	}

	dialTimeout := s.cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}
	upstream, err := net.DialTimeout("tcp", s.cfg.UpstreamAddress, dialTimeout)
	if err != nil {
		s.cfg.Metrics.RecordError(metrics.ErrorKindTransport)
		return fmt.Errorf("dialing upstream: %w", err)
	}

	sess := newSession(id, downstream, codec, upstream, logger, s.cfg.Metrics, true)
	return sess.run(ctx)
}

func (s *Supervisor) readProxyHeader(r *bufio.Reader) (*proxyproto.Info, error) {
	version, err := proxyproto.Detect(r)
	if err != nil {
		return nil, err
	}
	if version == proxyproto.VersionUnknown {
		if s.cfg.RequireProxyHeader {
			return nil, proxyproto.ErrNoHeader
		}
		return nil, nil
	}
	if !s.proxyVersionAllowed(version) {
		return nil, fmt.Errorf("proxyproto: version %s not permitted by configuration", version)
	}
	return proxyproto.ReadHeader(r)
}

func (s *Supervisor) proxyVersionAllowed(v proxyproto.Version) bool {
	if len(s.cfg.AllowedProxyVersions) == 0 {
		return true
	}
	for _, allowed := range s.cfg.AllowedProxyVersions {
		if allowed == v {
			return true
		}
	}
	return false
}

// readerConn lets the bufio.Reader used to peek the PROXY protocol header
// keep serving reads for the rest of the connection's lifetime (the Noise
// codec reads through it; in insecure mode the codec stays in its
// unencrypted handshake state), while
// every other net.Conn method still goes straight to the socket.
type readerConn struct {
	net.Conn
	r *bufio.Reader
}

func (c *readerConn) Read(p []byte) (int, error) { return c.r.Read(p) }

func classifyReason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled):
		return "shutdown"
	case errors.Is(err, io.EOF):
		return "eof"
	default:
		return "error"
	}
}
