package proxyproto

import (
	"bufio"
	"bytes"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadHeader_V1TCP4(t *testing.T) {
	raw := "PROXY TCP4 192.168.0.1 192.168.0.11 56324 443\r\nHello"
	r := bufio.NewReader(bytes.NewBufferString(raw))

	version, err := Detect(r)
	require.NoError(t, err)
	assert.Equal(t, Version1, version)

	info, err := ReadHeader(r)
	require.NoError(t, err)
	assert.Equal(t, Version1, info.Version)
	assert.False(t, info.Unknown)
	assert.Equal(t, netip.MustParseAddrPort("192.168.0.1:56324"), info.SourceAddr)
	assert.Equal(t, netip.MustParseAddrPort("192.168.0.11:443"), info.DestAddr)

	rest, err := drainRest(r)
	require.NoError(t, err)
	assert.Equal(t, "Hello", rest)
}

func TestReadHeader_V1Unknown(t *testing.T) {
	r := bufio.NewReader(bytes.NewBufferString("PROXY UNKNOWN\r\nrest"))
	info, err := ReadHeader(r)
	require.NoError(t, err)
	assert.True(t, info.Unknown)
}

func TestReadHeader_V1MalformedMissingEOL(t *testing.T) {
	data := append([]byte("PROXY "), bytes.Repeat([]byte("a"), 600)...)
	r := bufio.NewReader(bytes.NewReader(data))
	_, err := ReadHeader(r)
	require.Error(t, err)
}

func TestReadHeader_V2TCP4(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(Signature)
	buf.WriteByte(0x21) // version 2, command PROXY
	buf.WriteByte(v2ProtoTCPIPv4)
	buf.Write([]byte{0, 12})
	buf.Write([]byte{127, 0, 0, 1})
	buf.Write([]byte{127, 0, 0, 2})
	buf.Write([]byte{0, 80})
	buf.Write([]byte{1, 187})
	buf.WriteString("Hello")

	r := bufio.NewReader(&buf)
	version, err := Detect(r)
	require.NoError(t, err)
	assert.Equal(t, Version2, version)

	info, err := ReadHeader(r)
	require.NoError(t, err)
	assert.Equal(t, Version2, info.Version)
	assert.Equal(t, netip.MustParseAddrPort("127.0.0.1:80"), info.SourceAddr)
	assert.Equal(t, netip.MustParseAddrPort("127.0.0.2:443"), info.DestAddr)

	rest, err := drainRest(r)
	require.NoError(t, err)
	assert.Equal(t, "Hello", rest)
}

func TestReadHeader_V2Local(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(Signature)
	buf.WriteByte(0x20) // version 2, command LOCAL
	buf.WriteByte(v2ProtoUnspec)
	buf.Write([]byte{0, 0})

	r := bufio.NewReader(&buf)
	info, err := ReadHeader(r)
	require.NoError(t, err)
	assert.True(t, info.Unknown)
}

func TestReadHeader_V2RejectsBadVersion(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(Signature)
	buf.WriteByte(0x11)
	buf.WriteByte(v2ProtoTCPIPv4)
	buf.Write([]byte{0, 12})
	buf.Write(make([]byte, 12))

	r := bufio.NewReader(&buf)
	_, err := ReadHeader(r)
	require.Error(t, err)
}

func TestReadHeader_NoHeaderPresent(t *testing.T) {
	r := bufio.NewReader(bytes.NewBufferString("{\"id\":1,\"method\":\"mining.subscribe\"}\n"))
	_, err := ReadHeader(r)
	require.ErrorIs(t, err, ErrNoHeader)
}

// drainRest reads whatever remains in r as a string.
func drainRest(r *bufio.Reader) (string, error) {
	var out []byte
	buf := make([]byte, 64)
	for {
		n, err := r.Read(buf)
		out = append(out, buf[:n]...)
		if err != nil {
			break
		}
	}
	return string(out), nil
}
