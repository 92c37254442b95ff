package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "proxy.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoad_SecureDefaults(t *testing.T) {
	path := writeTempConfig(t, `
listen_address = "0.0.0.0:34000"
upstream_address = "pool.example.com:34001"
certificate_file = "cert.json"
secret_key_file = "secret.key"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:34000", cfg.ListenAddress)
	assert.Equal(t, "pool.example.com:34001", cfg.UpstreamAddress)
	assert.False(t, cfg.Insecure)
	assert.Equal(t, []int{1, 2}, cfg.ProxyProtocol.Versions)
	assert.False(t, cfg.ProxyProtocol.RequireProxyHeader)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 30, cfg.ShutdownGraceSeconds)
}

func TestLoad_InsecureSkipsCertificateRequirement(t *testing.T) {
	path := writeTempConfig(t, `
listen_address = "127.0.0.1:34000"
upstream_address = "127.0.0.1:34001"
insecure = true
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Insecure)
}

func TestLoad_MissingCertificateIsRejectedWhenSecure(t *testing.T) {
	path := writeTempConfig(t, `
listen_address = "127.0.0.1:34000"
upstream_address = "127.0.0.1:34001"
`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_RejectsUnknownProxyProtocolVersion(t *testing.T) {
	path := writeTempConfig(t, `
listen_address = "127.0.0.1:34000"
upstream_address = "127.0.0.1:34001"
insecure = true

[proxy_protocol_config]
versions = [3]
`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.Error(t, err)
}
