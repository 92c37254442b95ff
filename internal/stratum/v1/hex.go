// Package v1 implements Stratum V1's line-delimited JSON-RPC framing: the
// request/response/notification envelope, the handful of special hex
// encodings the protocol uses in the wild, and the mining.* message
// payloads the translator produces and consumes.
package v1

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// HexBytes is a lowercase-hex-encoded byte string. Odd-length input is
// left-padded with a zero nibble on decode, matching behavior observed
// from real miner firmware that occasionally drops a leading zero nibble.
type HexBytes []byte

func (h HexBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(h))
}

func (h *HexBytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if len(s)%2 != 0 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("v1: invalid hex string %q: %w", s, err)
	}
	*h = b
	return nil
}

// ExtraNonce1 is HexBytes under another name, for the specific field miners
// send/receive as their assigned extranonce1.
type ExtraNonce1 = HexBytes

// HexU32Be is a 4-byte value encoded as an 8-character big-endian hex
// string — the common "version"/"nbits"/"ntime" encoding.
type HexU32Be uint32

func (v HexU32Be) MarshalJSON() ([]byte, error) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	return json.Marshal(hex.EncodeToString(b[:]))
}

func (v *HexU32Be) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	b, err := decodeFixed4(s)
	if err != nil {
		return err
	}
	*v = HexU32Be(binary.BigEndian.Uint32(b[:]))
	return nil
}

// HexU32Le is the little-endian counterpart of HexU32Be.
type HexU32Le uint32

func (v HexU32Le) MarshalJSON() ([]byte, error) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	return json.Marshal(hex.EncodeToString(b[:]))
}

func (v *HexU32Le) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	b, err := decodeFixed4(s)
	if err != nil {
		return err
	}
	*v = HexU32Le(binary.LittleEndian.Uint32(b[:]))
	return nil
}

func decodeFixed4(s string) ([4]byte, error) {
	var out [4]byte
	if len(s)%2 != 0 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("v1: invalid hex u32 %q: %w", s, err)
	}
	if len(b) != 4 {
		return out, fmt.Errorf("v1: hex u32 %q is not 4 bytes", s)
	}
	copy(out[:], b)
	return out, nil
}

// PrevHash is a 32-byte hash encoded as 64 hex characters with each
// aligned 4-byte word byte-reversed relative to its natural byte order —
// the historical Stratum V1 "prevhash" wire quirk.
type PrevHash [32]byte

func (p PrevHash) MarshalJSON() ([]byte, error) {
	reversed := reverseWords(p[:])
	return json.Marshal(hex.EncodeToString(reversed))
}

func (p *PrevHash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("v1: invalid prevhash hex: %w", err)
	}
	if len(b) != 32 {
		return fmt.Errorf("v1: prevhash must decode to 32 bytes, got %d", len(b))
	}
	copy(p[:], reverseWords(b))
	return nil
}

// reverseWords byte-swaps each aligned 4-byte word of b, returning a new
// slice. Applying it twice is the identity, so the same function both
// encodes and decodes the transform.
func reverseWords(b []byte) []byte {
	out := make([]byte, len(b))
	for i := 0; i+4 <= len(b); i += 4 {
		out[i] = b[i+3]
		out[i+1] = b[i+2]
		out[i+2] = b[i+1]
		out[i+3] = b[i]
	}
	return out
}
