package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/chimera-pool/stratum-noise-proxy/internal/config"
	"github.com/chimera-pool/stratum-noise-proxy/internal/logging"
	"github.com/chimera-pool/stratum-noise-proxy/internal/metrics"
	"github.com/chimera-pool/stratum-noise-proxy/internal/proxyproto"
	"github.com/chimera-pool/stratum-noise-proxy/internal/stratum/v2/cert"
	"github.com/chimera-pool/stratum-noise-proxy/internal/supervisor"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

// run wires configuration, logging, metrics and the supervisor together and
// blocks until shutdown completes, returning the process exit code (spec
// §6: 0 on a clean shutdown, 1 on a configuration/startup failure, 2 on a
// runtime fatal error).
func run() int {
	var confPath string

	root := &cobra.Command{
		Use:     "stratum-proxy",
		Short:   "Stratum V1<->V2 Noise translation proxy",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(confPath)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.Flags().StringVar(&confPath, "conf", "stratum-proxy.toml", "path to the TOML configuration file")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if isStartupError(err) {
			return 1
		}
		return 2
	}
	return 0
}

type startupError struct{ err error }

func (e *startupError) Error() string { return e.err.Error() }
func (e *startupError) Unwrap() error { return e.err }

func isStartupError(err error) bool {
	_, ok := err.(*startupError)
	return ok
}

func serve(confPath string) error {
	cfg, err := config.Load(confPath)
	if err != nil {
		return &startupError{fmt.Errorf("loading configuration: %w", err)}
	}

	// spec §6 Environment: "a conventional log-level variable ... controls
	// logging verbosity" — STRATUM_PROXY_LOG_LEVEL overrides whatever
	// log_level the TOML config set, the same env-overrides-file precedence
	// the teacher's own config.GetEnv callers use.
	logLevel := config.GetEnv("STRATUM_PROXY_LOG_LEVEL", cfg.LogLevel)
	logger := logging.New("stratum-proxy", logging.Config{Level: logLevel, Pretty: cfg.LogPretty})

	registry := prometheus.NewRegistry()
	m := metrics.New("stratum_noise_proxy", registry)

	loadedBundle, err := loadBundleIfSecure(cfg)
	if err != nil {
		return &startupError{err}
	}

	allowedVersions, err := parseProxyVersions(cfg.ProxyProtocol.Versions)
	if err != nil {
		return &startupError{err}
	}

	sup, err := supervisor.New(supervisor.Config{
		ListenAddress:        cfg.ListenAddress,
		UpstreamAddress:      cfg.UpstreamAddress,
		Insecure:             cfg.Insecure,
		Bundle:               loadedBundle,
		RequireProxyHeader:   cfg.ProxyProtocol.RequireProxyHeader,
		AllowedProxyVersions: allowedVersions,
		DialTimeout:          10 * time.Second,
		Logger:               logger,
		Metrics:              m,
	})
	if err != nil {
		return &startupError{fmt.Errorf("starting supervisor: %w", err)}
	}

	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddress,
		Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn().Err(err).Msg("metrics server stopped")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info().
		Str("listen_address", cfg.ListenAddress).
		Str("upstream_address", cfg.UpstreamAddress).
		Bool("insecure", cfg.Insecure).
		Str("version", version).
		Msg("stratum-proxy starting")

	runErr := make(chan error, 1)
	go func() { runErr <- sup.Run(ctx) }()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received, draining sessions")
	case err := <-runErr:
		if err != nil {
			logger.Error().Err(err).Msg("supervisor stopped unexpectedly")
			return fmt.Errorf("supervisor: %w", err)
		}
	}

	grace := time.Duration(cfg.ShutdownGraceSeconds) * time.Second
	sup.Controller().Drain(grace)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)

	logger.Info().Msg("stratum-proxy stopped")
	return nil
}

func loadBundleIfSecure(cfg *config.ProxyConfig) (*cert.ServerSecurityBundle, error) {
	if cfg.Insecure {
		return nil, nil
	}
	bundle, err := supervisor.LoadSecurityBundle(cfg.CertificateFile, cfg.SecretKeyFile)
	if err != nil {
		return nil, fmt.Errorf("loading security bundle: %w", err)
	}
	return bundle, nil
}

func parseProxyVersions(versions []int) ([]proxyproto.Version, error) {
	out := make([]proxyproto.Version, 0, len(versions))
	for _, v := range versions {
		switch v {
		case 1:
			out = append(out, proxyproto.Version1)
		case 2:
			out = append(out, proxyproto.Version2)
		default:
			return nil, fmt.Errorf("unsupported proxy protocol version %d", v)
		}
	}
	return out, nil
}
