package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/matzehuels/mvnresolve/pkg/observability"
	"github.com/matzehuels/mvnresolve/pkg/repository"
)

// shutdownTimeout bounds the graceful shutdown of the server.
const shutdownTimeout = 10 * time.Second

type serveOpts struct {
	addr     string
	readOnly bool
}

// serveCommand creates the serve command, which exposes a repository
// directory over HTTP.
func (c *CLI) serveCommand() *cobra.Command {
	var opts serveOpts

	cmd := &cobra.Command{
		Use:   "serve [dir]",
		Short: "Serve a repository directory over HTTP",
		Long: `Serve a repository directory in the Maven layout over HTTP. GET and HEAD
read files, PUT stores them so the directory can be a deploy target.
Prometheus metrics are exposed at /metrics.

The local repository is served when no directory is given.

Example:
  mvnresolve serve ./repo --addr :8081`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := c.settings.LocalRepository
			if len(args) == 1 {
				dir = args[0]
			}
			return c.runServe(cmd.Context(), dir, &opts)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", ":8081", "listen address")
	cmd.Flags().BoolVar(&opts.readOnly, "read-only", false, "reject uploads")
	return cmd
}

func (c *CLI) runServe(ctx context.Context, dir string, opts *serveOpts) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)
	observability.SetCacheHooks(metrics)
	observability.SetHTTPHooks(metrics)
	observability.SetPipelineHooks(metrics)
	defer observability.Reset()

	srv := &http.Server{
		Addr: opts.addr,
		Handler: repository.NewServer(repository.NewLocalTransport(dir), repository.ServerOptions{
			ReadOnly: opts.readOnly,
			Gatherer: reg,
			Logger:   c.Logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		c.Logger.Info("serving repository", "dir", dir, "addr", opts.addr, "read-only", opts.readOnly)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	c.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
