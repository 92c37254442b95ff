package binary

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// =============================================================================
// STRATUM V2 BINARY PROTOCOL CODEC
// Little-endian wire format shared by every V2 message.
// =============================================================================

// Sentinel/category errors for the codec's failure taxonomy.
var (
	ErrTruncatedMessage      = errors.New("binary: truncated message")
	ErrTrailingBytes         = errors.New("binary: trailing bytes after decode")
	ErrBadBool               = errors.New("binary: invalid bool byte")
	ErrInvalidDiscriminant   = errors.New("binary: invalid enum discriminant")
	ErrStreamingNotSupported = errors.New("binary: cannot encode a sequence of unknown length")
)

// TooShortError is returned when a bounded string/byte sequence is shorter
// than its declared minimum length.
type TooShortError struct {
	Min, Got int
}

func (e *TooShortError) Error() string {
	return fmt.Sprintf("binary: value too short: got %d bytes, minimum %d", e.Got, e.Min)
}

// OverlongError is returned when a bounded string/byte sequence exceeds its
// declared maximum length.
type OverlongError struct {
	Max, Got int
}

func (e *OverlongError) Error() string {
	return fmt.Sprintf("binary: value too long: got %d bytes, maximum %d", e.Got, e.Max)
}

// Writer accumulates a V2 message body in its wire encoding.
type Writer struct {
	buf *bytes.Buffer
}

// NewWriter creates a Writer with a pre-sized buffer.
func NewWriter() *Writer {
	return &Writer{buf: bytes.NewBuffer(make([]byte, 0, 256))}
}

// Bytes returns the accumulated bytes.
func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

// Len reports the number of bytes written so far.
func (w *Writer) Len() int { return w.buf.Len() }

// -----------------------------------------------------------------------------
// Primitive writers
// -----------------------------------------------------------------------------

func (w *Writer) WriteU8(v uint8)   { w.buf.WriteByte(v) }
func (w *Writer) WriteI8(v int8)    { w.buf.WriteByte(byte(v)) }

func (w *Writer) WriteU16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

func (w *Writer) WriteI16(v int16) { w.WriteU16(uint16(v)) }

// WriteU24 writes the low 24 bits of v in little-endian order, used by the
// frame header's msg_length field.
func (w *Writer) WriteU24(v uint32) {
	w.buf.WriteByte(byte(v))
	w.buf.WriteByte(byte(v >> 8))
	w.buf.WriteByte(byte(v >> 16))
}

func (w *Writer) WriteU32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w *Writer) WriteI32(v int32) { w.WriteU32(uint32(v)) }

func (w *Writer) WriteU64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

func (w *Writer) WriteI64(v int64) { w.WriteU64(uint64(v)) }

func (w *Writer) WriteF32(v float32) { w.WriteU32(math.Float32bits(v)) }
func (w *Writer) WriteF64(v float64) { w.WriteU64(math.Float64bits(v)) }

func (w *Writer) WriteBool(v bool) {
	if v {
		w.buf.WriteByte(1)
	} else {
		w.buf.WriteByte(0)
	}
}

// WriteChar writes a rune as a 32-bit codepoint.
func (w *Writer) WriteChar(r rune) { w.WriteU32(uint32(r)) }

// WriteRawBytes writes exactly len(b) bytes with no length prefix, for
// fixed-size fields like Uint256Bytes.
func (w *Writer) WriteRawBytes(b []byte) { w.buf.Write(b) }

// -----------------------------------------------------------------------------
// Bounded strings and byte sequences
// -----------------------------------------------------------------------------

// WriteBoundedBytes8 writes b with a 1-byte length prefix, failing if b
// falls outside [min, max]. max must be <= 255.
func (w *Writer) WriteBoundedBytes8(b []byte, min, max int) error {
	if len(b) < min {
		return &TooShortError{Min: min, Got: len(b)}
	}
	if len(b) > max {
		return &OverlongError{Max: max, Got: len(b)}
	}
	w.buf.WriteByte(byte(len(b)))
	w.buf.Write(b)
	return nil
}

// WriteBoundedBytes16 writes b with a 2-byte little-endian length prefix,
// failing if b falls outside [min, max]. max must be <= 65535.
func (w *Writer) WriteBoundedBytes16(b []byte, min, max int) error {
	if len(b) < min {
		return &TooShortError{Min: min, Got: len(b)}
	}
	if len(b) > max {
		return &OverlongError{Max: max, Got: len(b)}
	}
	w.WriteU16(uint16(len(b)))
	w.buf.Write(b)
	return nil
}

// WriteBoundedString8 is WriteBoundedBytes8 for strings.
func (w *Writer) WriteBoundedString8(s string, min, max int) error {
	return w.WriteBoundedBytes8([]byte(s), min, max)
}

// WriteBoundedString16 is WriteBoundedBytes16 for strings.
func (w *Writer) WriteBoundedString16(s string, min, max int) error {
	return w.WriteBoundedBytes16([]byte(s), min, max)
}

// WriteOption writes the presence tag and, if present, delegates to enc.
func (w *Writer) WriteOption(present bool, enc func(*Writer)) {
	if !present {
		w.buf.WriteByte(0x00)
		return
	}
	w.buf.WriteByte(0x01)
	enc(w)
}

// WriteDiscriminant writes an enum's 32-bit discriminant ahead of its
// variant payload.
func (w *Writer) WriteDiscriminant(d uint32) { w.WriteU32(d) }

// Reader decodes a V2 message body from a fixed byte slice, consuming it
// left to right. A Reader is meant to be used once per message.
type Reader struct {
	data []byte
	pos  int
}

// NewReader wraps data for sequential decoding.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Remaining returns the number of unconsumed bytes.
func (r *Reader) Remaining() int { return len(r.data) - r.pos }

// Finish returns ErrTrailingBytes if the reader has not consumed all of its
// input — callers invoke this after decoding a complete message.
func (r *Reader) Finish() error {
	if r.Remaining() != 0 {
		return fmt.Errorf("%w: %d bytes left", ErrTrailingBytes, r.Remaining())
	}
	return nil
}

func (r *Reader) need(n int) error {
	if r.Remaining() < n {
		return ErrTruncatedMessage
	}
	return nil
}

func (r *Reader) ReadU8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.data[r.pos]
	r.pos++
	return v, nil
}

func (r *Reader) ReadI8() (int8, error) {
	v, err := r.ReadU8()
	return int8(v), err
}

func (r *Reader) ReadU16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.data[r.pos : r.pos+2])
	r.pos += 2
	return v, nil
}

func (r *Reader) ReadI16() (int16, error) {
	v, err := r.ReadU16()
	return int16(v), err
}

// ReadU24 reads a 24-bit little-endian value into the low bits of a uint32.
func (r *Reader) ReadU24() (uint32, error) {
	if err := r.need(3); err != nil {
		return 0, err
	}
	v := uint32(r.data[r.pos]) | uint32(r.data[r.pos+1])<<8 | uint32(r.data[r.pos+2])<<16
	r.pos += 3
	return v, nil
}

func (r *Reader) ReadU32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}

func (r *Reader) ReadI32() (int32, error) {
	v, err := r.ReadU32()
	return int32(v), err
}

func (r *Reader) ReadU64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.data[r.pos : r.pos+8])
	r.pos += 8
	return v, nil
}

func (r *Reader) ReadI64() (int64, error) {
	v, err := r.ReadU64()
	return int64(v), err
}

func (r *Reader) ReadF32() (float32, error) {
	v, err := r.ReadU32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

func (r *Reader) ReadF64() (float64, error) {
	v, err := r.ReadU64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

func (r *Reader) ReadBool() (bool, error) {
	v, err := r.ReadU8()
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, ErrBadBool
	}
}

// ReadChar reads a 32-bit Unicode codepoint.
func (r *Reader) ReadChar() (rune, error) {
	v, err := r.ReadU32()
	return rune(v), err
}

// ReadRawBytes reads exactly n unprefixed bytes.
func (r *Reader) ReadRawBytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	copy(b, r.data[r.pos:r.pos+n])
	r.pos += n
	return b, nil
}

// ReadBoundedBytes8 reads a 1-byte-length-prefixed byte sequence, failing
// with TooShortError/OverlongError if its decoded length falls outside
// [min, max].
func (r *Reader) ReadBoundedBytes8(min, max int) ([]byte, error) {
	n, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	length := int(n)
	if length < min {
		return nil, &TooShortError{Min: min, Got: length}
	}
	if length > max {
		return nil, &OverlongError{Max: max, Got: length}
	}
	return r.ReadRawBytes(length)
}

// ReadBoundedBytes16 reads a 2-byte-length-prefixed byte sequence.
func (r *Reader) ReadBoundedBytes16(min, max int) ([]byte, error) {
	n, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	length := int(n)
	if length < min {
		return nil, &TooShortError{Min: min, Got: length}
	}
	if length > max {
		return nil, &OverlongError{Max: max, Got: length}
	}
	return r.ReadRawBytes(length)
}

// ReadBoundedString8 is ReadBoundedBytes8 for strings.
func (r *Reader) ReadBoundedString8(min, max int) (string, error) {
	b, err := r.ReadBoundedBytes8(min, max)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadBoundedString16 is ReadBoundedBytes16 for strings.
func (r *Reader) ReadBoundedString16(min, max int) (string, error) {
	b, err := r.ReadBoundedBytes16(min, max)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadOption reads the presence tag and invokes dec when present.
func (r *Reader) ReadOption(dec func(*Reader) error) (bool, error) {
	tag, err := r.ReadU8()
	if err != nil {
		return false, err
	}
	switch tag {
	case 0x00:
		return false, nil
	case 0x01:
		return true, dec(r)
	default:
		return false, fmt.Errorf("binary: invalid option tag 0x%02x", tag)
	}
}

// ReadDiscriminant reads an enum's 32-bit discriminant.
func (r *Reader) ReadDiscriminant() (uint32, error) { return r.ReadU32() }
