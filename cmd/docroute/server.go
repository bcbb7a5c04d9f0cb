package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/docroute/docroute/internal/api"
	"github.com/docroute/docroute/internal/config"
	"github.com/docroute/docroute/internal/engine"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the MCP stdio server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		noMCP, _ := cmd.Flags().GetBool("no-mcp")
		return runServer(cmd.Context(), addr, !noMCP)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default 127.0.0.1:<server.port>)")
	serveCmd.Flags().Bool("no-mcp", false, "do not serve MCP over stdin/stdout")
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func runServer(ctx context.Context, addr string, withMCP bool) error {
	fmt.Fprintf(stderr, "docroute version %s\n", version)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Server.APIToken == "" {
		printWarning("server.api_token is not set; authenticated endpoints will reject every request")
	}

	reg := newRegistry()
	a, err := newApp(ctx, cfg, reg, stderr)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Warn("closing thread store", "error", err)
		}
	}()

	// newApp already prepared a local engine; a hosted one is only probed.
	if cfg.LLM.Provider != config.ProviderOllama {
		printStep("Checking %s engine at %s", a.engine.Name(), cfg.LLM.BaseURL)
		if err := engine.EnsureReady(ctx, a.engine, a.model, stderr); err != nil {
			return err
		}
	}

	handler := api.NewAppHandler(api.AppDeps{
		Dispatcher: a.dispatcher,
		Threads:    a.threads,
		Token:      cfg.Server.APIToken,
		Gatherer:   reg,
	})

	if addr == "" {
		addr = fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	if withMCP {
		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Dispatcher: a.dispatcher,
			Threads:    a.threads,
			Version:    version,
		})
		stdioSrv := server.NewStdioServer(mcpSrv)
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("docroute listening", "addr", addr, "engine", a.engine.Name(), "model", a.model, "store", cfg.Store.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return errors.Wrap(err, "server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
