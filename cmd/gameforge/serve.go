package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"gameforge/pkg/api"
	"gameforge/pkg/logx"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat API",
		Long: `Serve POST /api/chat, GET /api/sessions, GET /api/sessions/:id,
/health and /metrics. Callers identify themselves with the X-Owner-ID header.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openPipeline()
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			server, err := api.NewServer(a.store, a.controller, a.registry, logx.Zap("api"), api.Config{
				Addr:       addr,
				GuestOwner: a.cfg.Server.GuestOwner,
			})
			if err != nil {
				return err //nolint:wrapcheck
			}

			errCh := make(chan error, 1)
			go func() { errCh <- server.Start() }()

			select {
			case err := <-errCh:
				return err
			case <-cmd.Context().Done():
			}

			ctx, cancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
				return err //nolint:wrapcheck
			}
			return <-errCh
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default server.addr)")
	return cmd
}
