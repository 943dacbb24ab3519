package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/testforge/cardforge/internal/api"
	"github.com/testforge/cardforge/internal/mcpserver"
	"github.com/testforge/cardforge/internal/services/suite"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the operations over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			server := a.httpServer(ctx, addr)
			return a.listen(ctx, server)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from server.host and server.port)")
	return cmd
}

// httpServer builds the API server. Redis is connected when the registry or
// the rate limiter needs it.
func (a *app) httpServer(ctx context.Context, addr string) *http.Server {
	var client *redis.Client
	if a.cfg.Registry.UseRedis || a.cfg.Server.RateLimit > 0 {
		client = a.redisClient(ctx)
	}
	svc := a.service(ctx, client)

	rc := api.RouterConfig{
		Service:        svc,
		Logger:         a.logger,
		CORSOrigins:    a.cfg.Server.CORSOrigins,
		APIKey:         a.cfg.Server.APIKey,
		RateLimit:      a.cfg.Server.RateLimit,
		RequestTimeout: a.cfg.Server.WriteTimeout,
		EnableMetrics:  a.cfg.Metrics.Enabled,
	}
	if client != nil {
		rc.Redis = client
	}

	if addr == "" {
		addr = a.cfg.Server.Addr()
	}
	return &http.Server{
		Addr:         addr,
		Handler:      api.NewRouter(rc),
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}
}

// listen serves until a signal arrives, then shuts down gracefully
func (a *app) listen(ctx context.Context, server *http.Server) error {
	serverErrors := make(chan error, 1)
	go func() {
		a.logger.Info("API server listening", zap.String("addr", server.Addr), zap.String("version", Version))
		serverErrors <- server.ListenAndServe()
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err

	case <-ctx.Done():
		a.logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("Graceful shutdown failed, forcing close", zap.Error(err))
			_ = server.Close()
			return err
		}
		a.logger.Info("Server stopped gracefully")
		return nil
	}
}

func newMCPCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the operations as MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := mcpserver.NewServer(a.localService(ctx), Version, a.logger.Named("mcp"))
			a.logger.Info("MCP server ready on stdio", zap.Int("tools", len(suite.Operations)))
			if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}
