package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/sdk/trace"

	"github.com/weegigs/wee-counter-go/support"
	"github.com/weegigs/wee-counter-go/we"
)

var (
	configPath string
	verbose    bool
	cfg        support.Config
	shutdown   = func(context.Context) error { return nil }
)

func tracing(ctx context.Context, cfg support.TracingConfig) (func(context.Context) error, error) {
	var exporter trace.SpanExporter
	var err error

	switch cfg.Exporter {
	case support.ConsoleTracing:
		exporter, err = we.ConsoleExporter()
	case support.HoneycombTracing:
		exporter, err = we.HoneycombExporter(ctx, cfg.Team, cfg.Dataset)
	case support.JaegerTracing:
		exporter, err = we.JaegerExporter(cfg.Endpoint)
	default:
		return func(context.Context) error { return nil }, nil
	}
	if err != nil {
		return nil, err
	}

	return we.InstallTracing(exporter), nil
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "counter",
		Short:         "Event sourced counter service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}

			loaded, err := support.LoadConfig(configPath)
			if err != nil {
				return err
			}
			cfg = loaded

			shutdown, err = tracing(cmd.Context(), cfg.Tracing)
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			return shutdown(ctx)
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "yaml configuration file")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(serveCmd(), lambdaCmd(), runCmd())
	return root
}

func serveCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve counters over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen != "" {
				cfg.Listen = listen
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, cleanup, err := Initialize(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			server := &http.Server{Addr: cfg.Listen, Handler: app.Handler()}

			go func() {
				<-ctx.Done()

				sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := server.Shutdown(sctx); err != nil {
					log.Error().Err(err).Msg("shutdown failed")
				}
			}()

			log.Info().Str("listen", cfg.Listen).Str("journal", string(cfg.Journal)).Msg("serving counters")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "listen address (default "+support.DefaultListenAddress+")")
	return cmd
}

func lambdaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lambda",
		Short: "Serve counters as an API Gateway v2 lambda",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := Initialize(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			lambda.Start(app.Gateway())
			return nil
		},
	}
}

func main() {
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		log.Error().Err(err).Msg("counter failed")
		os.Exit(1)
	}
}
