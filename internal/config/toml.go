package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// ProxyProtocolConfig controls whether and how the supervisor accepts
// HAProxy PROXY protocol headers ahead of a downstream Stratum session.
type ProxyProtocolConfig struct {
	RequireProxyHeader bool  `mapstructure:"require_proxy_header"`
	Versions           []int `mapstructure:"versions"`
}

// ProxyConfig is the proxy's full TOML configuration, loaded by Load from
// the path given to --conf.
type ProxyConfig struct {
	ListenAddress   string `mapstructure:"listen_address"`
	UpstreamAddress string `mapstructure:"upstream_address"`

	// Insecure runs the downstream leg as plain TCP with no Noise handshake.
	// The upstream leg is plain TCP whether or not this is set.
	Insecure bool `mapstructure:"insecure"`

	CertificateFile string `mapstructure:"certificate_file"`
	SecretKeyFile   string `mapstructure:"secret_key_file"`

	ProxyProtocol ProxyProtocolConfig `mapstructure:"proxy_protocol_config"`

	LogLevel  string `mapstructure:"log_level"`
	LogPretty bool   `mapstructure:"log_pretty"`

	MetricsAddress       string `mapstructure:"metrics_address"`
	ShutdownGraceSeconds int    `mapstructure:"shutdown_grace_seconds"`
}

// Load reads and validates a ProxyConfig from a TOML file at path.
func Load(path string) (*ProxyConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	v.SetDefault("insecure", false)
	v.SetDefault("proxy_protocol_config.require_proxy_header", false)
	v.SetDefault("proxy_protocol_config.versions", []int{1, 2})
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", false)
	v.SetDefault("metrics_address", "")
	v.SetDefault("shutdown_grace_seconds", 30)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var cfg ProxyConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports whether cfg describes a startable proxy.
func (c *ProxyConfig) Validate() error {
	if c.ListenAddress == "" {
		return fmt.Errorf("config: listen_address is required")
	}
	if c.UpstreamAddress == "" {
		return fmt.Errorf("config: upstream_address is required")
	}
	if !c.Insecure {
		if c.CertificateFile == "" {
			return fmt.Errorf("config: certificate_file is required unless insecure is set")
		}
		if c.SecretKeyFile == "" {
			return fmt.Errorf("config: secret_key_file is required unless insecure is set")
		}
	}
	for _, version := range c.ProxyProtocol.Versions {
		if version != 1 && version != 2 {
			return fmt.Errorf("config: proxy_protocol_config.versions must contain only 1 or 2, got %d", version)
		}
	}
	if c.ShutdownGraceSeconds < 0 {
		return fmt.Errorf("config: shutdown_grace_seconds must be non-negative")
	}
	return nil
}
