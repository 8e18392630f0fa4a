package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"embedview/internal/logging"
	"embedview/internal/metrics"
	"embedview/internal/sample"
	"embedview/internal/source"
	"embedview/internal/viewer"
)

// staleSessionAge is how old a leftover session directory must be before
// serve removes it at startup.
const staleSessionAge = 24 * time.Hour

var (
	serveFake       bool
	serveEmbeddings string
	serveHost       string
	servePort       int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve an embeddings archive as an interactive chart",
	Long: `Extract an embeddings archive into a private scratch directory and serve
it over HTTP. Exactly one of --fake or --embeddings is required.`,
	Example: `  embedview serve --fake
  embedview serve --embeddings run-42.tar.gz --port 8080
  embedview serve --embeddings s3://experiments/run-42.tar.gz`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return validateServeMode(serveFake, serveEmbeddings)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.log.Sync()

		if cmd.Flags().Changed("host") {
			e.cfg.Server.Host = serveHost
		}
		if cmd.Flags().Changed("port") {
			e.cfg.Server.Port = servePort
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, e, serveFake, serveEmbeddings)
	},
}

// validateServeMode enforces that exactly one archive source is given.
func validateServeMode(fake bool, embeddings string) error {
	switch {
	case fake && embeddings != "":
		return errors.New("--fake and --embeddings are mutually exclusive")
	case !fake && embeddings == "":
		return errors.New("one of --fake or --embeddings is required")
	}
	return nil
}

func runServe(ctx context.Context, e *env, fake bool, location string) error {
	if err := e.dd.EnsureDirs(); err != nil {
		return err
	}
	if removed, err := e.dd.PruneSessions(staleSessionAge); err != nil {
		e.log.Warn("failed to prune stale sessions", err, nil)
	} else if len(removed) > 0 {
		e.log.Info("pruned stale sessions", nil, map[string]interface{}{"count": len(removed)})
	}

	var m *metrics.Metrics
	if e.cfg.Metrics.Enabled {
		m = metrics.New(metrics.Config{
			Namespace:               e.cfg.Metrics.Namespace,
			ServiceName:             logging.ServiceName,
			EnableDefaultCollectors: e.cfg.Metrics.EnableDefaultCollectors,
		})
	}

	r, err := openArchive(ctx, e, fake, location)
	if err != nil {
		return err
	}
	session, err := viewer.OpenSession(r, e.dd, m, e.log)
	r.Close()
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			e.log.Warn("failed to remove session directory", err, map[string]interface{}{"dir": session.Dir})
		}
	}()

	chartOpts, err := e.cfg.Chart.Options(e.cfg.Server.LinkPrefix)
	if err != nil {
		return err
	}

	srv := viewer.NewServer(session, viewer.Options{
		Chart:             chartOpts,
		Metrics:           m,
		MountMetrics:      m != nil && e.cfg.Metrics.Address == "",
		Logger:            e.log,
		ReadHeaderTimeout: e.cfg.Server.ReadHeaderTimeout(),
		ShutdownTimeout:   e.cfg.Server.ShutdownTimeout(),
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(ctx, e.cfg.Server.Addr())
	})
	if m != nil && e.cfg.Metrics.Address != "" {
		g.Go(func() error {
			return serveMetrics(ctx, e, m)
		})
	}

	e.log.Info("viewer ready", nil, map[string]interface{}{
		"url":    fmt.Sprintf("http://%s/", e.cfg.Server.Addr()),
		"groups": session.Groups,
		"points": session.Points,
	})
	return g.Wait()
}

// openArchive returns the archive stream for serve: either a freshly
// generated sample or the configured location.
func openArchive(ctx context.Context, e *env, fake bool, location string) (io.ReadCloser, error) {
	if fake {
		var buf bytes.Buffer
		if _, err := sample.Write(&buf, sample.Options{Seed: time.Now().UnixNano()}); err != nil {
			return nil, fmt.Errorf("failed to build sample archive: %w", err)
		}
		return io.NopCloser(&buf), nil
	}
	return source.Open(ctx, location, e.cfg.Storage)
}

func serveMetrics(ctx context.Context, e *env, m *metrics.Metrics) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{
		Addr:              e.cfg.Metrics.Address,
		Handler:           mux,
		ReadHeaderTimeout: e.cfg.Server.ReadHeaderTimeout(),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	e.log.Info("metrics listening", nil, map[string]interface{}{"addr": e.cfg.Metrics.Address})

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), e.cfg.Server.ShutdownTimeout())
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func init() {
	serveCmd.Flags().BoolVar(&serveFake, "fake", false, "serve a generated sample archive")
	serveCmd.Flags().StringVar(&serveEmbeddings, "embeddings", "", "archive to serve (path or s3://bucket/key)")
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "listen host (overrides config)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 5000, "listen port (overrides config)")
	serveCmd.MarkFlagsMutuallyExclusive("fake", "embeddings")
	serveCmd.MarkFlagsOneRequired("fake", "embeddings")

	rootCmd.AddCommand(serveCmd)
}
