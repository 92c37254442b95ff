package supervisor

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"

	"github.com/chimera-pool/stratum-noise-proxy/internal/stratum/v2/binary"
	"github.com/chimera-pool/stratum-noise-proxy/internal/stratum/v2/noise"
)

// downstreamPump reads V2 frames off the Noise-framed downstream connection
// and passes each to handle until ctx is canceled or a fatal error occurs
// (spec §4.I step 4, §5 "downstream -> translator -> upstream").
func downstreamPump(ctx context.Context, conn net.Conn, codec *noise.Codec, handle func(binary.Frame) error) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		raw, err := codec.ReadFrame(conn)
		if err != nil {
			return fmt.Errorf("supervisor: reading downstream frame: %w", err)
		}
		frame, err := binary.DecodeFrame(raw)
		if err != nil {
			return fmt.Errorf("supervisor: decoding downstream frame: %w", err)
		}
		if err := handle(frame); err != nil {
			return fmt.Errorf("supervisor: handling downstream frame: %w", err)
		}
	}
}

// upstreamPump reads newline-delimited V1 JSON lines from the upstream pool
// connection and passes each (without its terminator) to handle.
func upstreamPump(ctx context.Context, r *bufio.Reader, handle func([]byte) error) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, readErr := r.ReadBytes('\n')
		trimmed := bytes.TrimRight(line, "\r\n")
		if len(trimmed) > 0 {
			if err := handle(trimmed); err != nil {
				return fmt.Errorf("supervisor: handling upstream line: %w", err)
			}
		}
		if readErr != nil {
			return fmt.Errorf("supervisor: reading upstream line: %w", readErr)
		}
	}
}
