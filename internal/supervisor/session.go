package supervisor

import (
	"bufio"
	"context"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"github.com/chimera-pool/stratum-noise-proxy/internal/metrics"
	"github.com/chimera-pool/stratum-noise-proxy/internal/stratum/translator"
	"github.com/chimera-pool/stratum-noise-proxy/internal/stratum/v2/binary"
	"github.com/chimera-pool/stratum-noise-proxy/internal/stratum/v2/noise"
)

// session binds one accepted downstream connection to its dialed upstream
// connection and the translator instance that mediates between them (spec
// §4.I, §5 "the translator's state is exclusively owned by its session").
// The translator itself keeps no lock of its own; mu is the "single-owner
// mutex" spec §5 allows as the shared-access mechanism between the two I/O
// pump goroutines.
type session struct {
	id string

	downstream net.Conn
	codec      *noise.Codec

	upstream net.Conn
	upstreamR *bufio.Reader

	translator *translator.Translator
	mu         sync.Mutex

	logger  zerolog.Logger
	metrics *metrics.Metrics
}

func newSession(id string, downstream net.Conn, codec *noise.Codec, upstream net.Conn, logger zerolog.Logger, m *metrics.Metrics, allowClientReconnect bool) *session {
	s := &session{
		id:         id,
		downstream: downstream,
		codec:      codec,
		upstream:   upstream,
		upstreamR:  bufio.NewReader(upstream),
		logger:     logger,
		metrics:    m,
	}
	s.translator = translator.New(translator.Config{
		EmitV1: s.emitV1,
		EmitV2: s.emitV2,
		Logger: logger,
		AllowClientReconnect: allowClientReconnect,
	})
	return s
}

func (s *session) emitV1(line []byte) error {
	_, err := s.upstream.Write(line)
	return err
}

func (s *session) emitV2(channelMessage bool, msgType uint8, payload []byte) error {
	var extensionID uint16
	if channelMessage {
		extensionID = binary.ChannelMessageBit
	}
	frame := binary.EncodeFrame(extensionID, msgType, payload)
	return s.codec.WriteFrame(s.downstream, frame)
}

func (s *session) handleV2Frame(frame binary.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.translator.HandleV2Frame(frame)
}

func (s *session) handleV1Line(line []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.translator.HandleV1Line(line)
}

// run drives both I/O pumps until ctx is canceled or either leg fails, then
// tears down the session (spec §5's session-scoped cancellation: "fires
// when either leg closes or errors, terminating the sibling pump").
func (s *session) run(ctx context.Context) error {
	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- downstreamPump(sessionCtx, s.downstream, s.codec, s.handleV2Frame)
	}()
	go func() {
		errCh <- upstreamPump(sessionCtx, s.upstreamR, s.handleV1Line)
	}()

	first := <-errCh
	cancel()
	s.downstream.Close()
	s.upstream.Close()
	<-errCh

	return first
}
