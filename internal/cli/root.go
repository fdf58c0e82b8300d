// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jeranaias/docchat/internal/cloud"
	"github.com/jeranaias/docchat/internal/config"
	"github.com/jeranaias/docchat/internal/delivery"
	"github.com/jeranaias/docchat/internal/format"
	"github.com/jeranaias/docchat/internal/history"
	"github.com/jeranaias/docchat/internal/instructions"
	"github.com/jeranaias/docchat/internal/logger"
	"github.com/jeranaias/docchat/internal/metrics"
	"github.com/jeranaias/docchat/internal/provision"
	"github.com/jeranaias/docchat/internal/session"
)

// Version information (set at build time)
var (
	Version   = "dev"
	GitCommit = "unknown"
)

// =============================================================================
// APPLICATION WIRING
// =============================================================================

// app holds what every command needs once flags are parsed.
type app struct {
	out    io.Writer
	errOut io.Writer

	configPath  string
	verbose     bool
	metricsAddr string

	cfg      *config.Config
	log      zerolog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	client   *cloud.Client

	metricsSrv *http.Server
}

// setup loads configuration and builds the client. It runs before every
// command except those that only touch the config file.
func (a *app) setup() error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}

	var err error
	if a.configPath != "" {
		a.cfg, err = config.LoadFromPath(a.configPath)
	} else {
		a.cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	level := a.cfg.Log.Level
	if a.verbose {
		level = "debug"
	}
	a.log = logger.New(logger.Config{
		Level:  level,
		Pretty: a.cfg.Log.Pretty || isTerminalWriter(a.errOut),
		Output: a.errOut,
	})

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.New(a.registry)

	a.client = cloud.NewClient(a.cfg.API.BaseURL, a.cfg.API.Token).
		WithDocumentsURL(a.cfg.API.DocumentsURL).
		WithTimeout(a.cfg.API.Timeout.Duration).
		WithRateLimit(a.cfg.API.RateLimit).
		WithLogger(a.log).
		WithMetrics(a.metrics).
		WithOnUnauthorized(func() {
			// SECURITY: The rejected token is never echoed.
			a.log.Warn().Msg("the service rejected the API token; update api.token or DOCCHAT_TOKEN")
		})

	if a.metricsAddr != "" {
		return a.serveMetrics()
	}
	return nil
}

// serveMetrics exposes the registry on /metrics until shutdown.
func (a *app) serveMetrics() error {
	ln, err := net.Listen("tcp", a.metricsAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.metricsAddr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry}))
	a.metricsSrv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := a.metricsSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error().Err(err).Msg("metrics server stopped")
		}
	}()
	a.log.Info().Str("addr", ln.Addr().String()).Msg("serving metrics")
	return nil
}

func (a *app) shutdown() {
	if a.metricsSrv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = a.metricsSrv.Shutdown(ctx)
	a.metricsSrv = nil
}

// catalog returns the built-in instructions with config overrides applied.
func (a *app) catalog() *instructions.Catalog {
	return instructions.Default().WithOverrides(a.cfg.Instructions).WithLogger(a.log)
}

// newSession wires a chat session from the loaded configuration.
func (a *app) newSession() *session.Session {
	cfg := a.cfg
	catalog := a.catalog()
	validator := format.NewValidator(cfg.Validator.Markers...)

	hist := history.NewReconciler(a.client).WithLogger(a.log).WithMetrics(a.metrics)
	prov := provision.New(a.client, provision.Options{
		SettleDelay:   cfg.Provision.SettleDelay.Duration,
		ListRefreshes: cfg.Provision.ListRefreshes,
	}).WithLogger(a.log).WithMetrics(a.metrics)

	return session.New(session.Deps{
		Directory:   a.client,
		Dispatcher:  a.client,
		History:     hist,
		Provisioner: prov,
		Catalog:     catalog,
		Validator:   validator,
	}, session.Config{
		Delivery: delivery.Options{
			MaxRetries:        cfg.Delivery.MaxRetries,
			SettleDelay:       cfg.Delivery.SettleDelay.Duration,
			InterAttemptDelay: cfg.Delivery.InterAttemptDelay.Duration,
		},
		ReconcileDelay: cfg.Delivery.ReconcileDelay.Duration,
		DefaultFormat:  cfg.DefaultFormat(),
	}).WithLogger(a.log).WithMetrics(a.metrics)
}

// =============================================================================
// ROOT COMMAND
// =============================================================================

// NewRootCommand builds the docchat command tree writing to out and errOut.
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut, log: logger.Nop()}

	root := &cobra.Command{
		Use:   "docchat",
		Short: "Chat with a document assistant from the terminal",
		Long: `docchat sends prompts to a document-chat service, attaches uploaded files
and templates, and makes sure answers that should be generated documents
really are, retrying when the service replies in plain text.`,
		Version:       fmt.Sprintf("%s (commit: %s)", Version, GitCommit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations["skipSetup"] == "true" {
				return nil
			}
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.shutdown()
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)
	root.CompletionOptions.DisableDefaultCmd = true

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file path (default is $HOME/.docchat/config.toml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVar(&a.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while the command runs")

	root.AddCommand(
		newAskCommand(a),
		newChatCommand(a),
		newConversationsCommand(a),
		newTemplatesCommand(a),
		newDownloadCommand(a),
		newConfigCommand(a),
	)
	return root
}

// Execute runs the CLI and exits non-zero on failure. This is called by
// main.main().
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand(os.Stdout, os.Stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: ")+err.Error())
		stop()
		os.Exit(1)
	}
}
