package v1

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// MaxLineLength is the largest line this framer accepts, matching real
// pool/miner behavior of capping Stratum V1 JSON lines well below any
// pathological size.
const MaxLineLength = 16 * 1024

// ErrLineTooLong is returned by the LineScanner when a line exceeds
// MaxLineLength.
var ErrLineTooLong = errors.New("v1: line exceeds maximum length")

// FrameKind discriminates the three shapes a decoded line can take.
type FrameKind int

const (
	FrameRequest FrameKind = iota
	FrameResponse
	FrameUnknown
)

// Frame is the V1 line decoded into one of Request, Response, or a raw
// Unknown payload — mirroring the single top-level sum type the data model
// calls for.
type Frame struct {
	Kind     FrameKind
	Request  *RequestFrame
	Response *ResponseFrame
	Raw      json.RawMessage
}

// RequestFrame is a JSON-RPC request or notification (ID == nil).
type RequestFrame struct {
	ID     *uint32
	Method string
	Params json.RawMessage
}

// ResponseFrame is a JSON-RPC response, successful or not.
type ResponseFrame struct {
	ID     uint32
	Result json.RawMessage
	Error  *StratumError
}

// StratumError is the generic `[code, message, traceback?]` error shape
// used throughout V1.
type StratumError struct {
	Code      int32
	Message   string
	Traceback *string
}

func (e *StratumError) Error() string {
	return fmt.Sprintf("stratum error %d: %s", e.Code, e.Message)
}

func (e *StratumError) UnmarshalJSON(data []byte) error {
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err != nil {
		return fmt.Errorf("v1: stratum error is not an array: %w", err)
	}
	if len(arr) < 2 {
		return fmt.Errorf("v1: stratum error array needs at least 2 elements, got %d", len(arr))
	}
	if err := json.Unmarshal(arr[0], &e.Code); err != nil {
		return fmt.Errorf("v1: stratum error code: %w", err)
	}
	if err := json.Unmarshal(arr[1], &e.Message); err != nil {
		return fmt.Errorf("v1: stratum error message: %w", err)
	}
	if len(arr) >= 3 {
		var tb string
		if err := json.Unmarshal(arr[2], &tb); err == nil {
			e.Traceback = &tb
		}
	}
	return nil
}

func (e StratumError) MarshalJSON() ([]byte, error) {
	arr := []any{e.Code, e.Message}
	if e.Traceback != nil {
		arr = append(arr, *e.Traceback)
	} else {
		arr = append(arr, nil)
	}
	return json.Marshal(arr)
}

// ParseFrame decodes a single JSON line into a Frame. The presence of a
// "method" key selects Request; "result" or "error" selects Response;
// anything else decodes to FrameUnknown with the raw line preserved.
func ParseFrame(line []byte) (Frame, error) {
	var generic map[string]json.RawMessage
	if err := json.Unmarshal(line, &generic); err != nil {
		return Frame{}, fmt.Errorf("v1: invalid json line: %w", err)
	}

	if _, ok := generic["method"]; ok {
		var req struct {
			ID     *uint32         `json:"id"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		if err := json.Unmarshal(line, &req); err != nil {
			return Frame{}, fmt.Errorf("v1: invalid request: %w", err)
		}
		return Frame{Kind: FrameRequest, Request: &RequestFrame{ID: req.ID, Method: req.Method, Params: req.Params}}, nil
	}

	_, hasResult := generic["result"]
	_, hasError := generic["error"]
	if hasResult || hasError {
		var resp struct {
			ID     uint32          `json:"id"`
			Result json.RawMessage `json:"result"`
			Error  json.RawMessage `json:"error"`
		}
		if err := json.Unmarshal(line, &resp); err != nil {
			return Frame{}, fmt.Errorf("v1: invalid response: %w", err)
		}
		var stratumErr *StratumError
		if len(resp.Error) > 0 && string(resp.Error) != "null" {
			stratumErr = &StratumError{}
			if err := json.Unmarshal(resp.Error, stratumErr); err != nil {
				return Frame{}, err
			}
		}
		return Frame{Kind: FrameResponse, Response: &ResponseFrame{ID: resp.ID, Result: resp.Result, Error: stratumErr}}, nil
	}

	return Frame{Kind: FrameUnknown, Raw: json.RawMessage(append([]byte(nil), line...))}, nil
}

// EncodeRequest serializes method/params as a line-delimited JSON-RPC
// request. id == nil produces a notification.
func EncodeRequest(id *uint32, method string, params any) ([]byte, error) {
	type wire struct {
		ID     *uint32 `json:"id"`
		Method string  `json:"method"`
		Params any     `json:"params"`
	}
	b, err := json.Marshal(wire{ID: id, Method: method, Params: params})
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// EncodeResponse serializes a JSON-RPC response line.
func EncodeResponse(id uint32, result any, stratumErr *StratumError) ([]byte, error) {
	type wire struct {
		ID     uint32 `json:"id"`
		Result any    `json:"result"`
		Error  any    `json:"error"`
	}
	var errField any
	if stratumErr != nil {
		errField = stratumErr
	}
	b, err := json.Marshal(wire{ID: id, Result: result, Error: errField})
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// LineScanner reads newline-delimited frames from a stream, rejecting
// lines over MaxLineLength.
type LineScanner struct {
	scanner *bufio.Scanner
}

// NewLineScanner wraps r for line-delimited reading.
func NewLineScanner(r io.Reader) *LineScanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 4096), MaxLineLength+1)
	s.Split(bufio.ScanLines)
	return &LineScanner{scanner: s}
}

// Next returns the next line's bytes (terminator stripped), or an error —
// io.EOF on clean stream end, ErrLineTooLong if a line exceeded the limit.
func (s *LineScanner) Next() ([]byte, error) {
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			if errors.Is(err, bufio.ErrTooLong) {
				return nil, ErrLineTooLong
			}
			return nil, err
		}
		return nil, io.EOF
	}
	line := s.scanner.Bytes()
	if len(line) > MaxLineLength {
		return nil, ErrLineTooLong
	}
	out := make([]byte, len(line))
	copy(out, line)
	return out, nil
}
