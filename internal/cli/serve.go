package cli

import (
	"context"
	"errors"

	transport "bigbrain-client/internal/transport/http"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd() *cobra.Command {
	var (
		flags     playFlags
		addr      string
		watchSess string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the player machine and expose it over HTTP and WebSocket",
		Long: "Run the player machine and expose its snapshots on /state and /ws. " +
			"With --watch, the admin session monitor is exposed under /admin as well.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if addr == "" {
				addr = cfg.Server.Addr
			}
			return withDeps(ctx, func(d *deps) error {
				var player transport.Player
				machine, err := flags.machine(ctx, d)
				if err != nil {
					if watchSess == "" {
						return err
					}
					log.Warn().Err(err).Msg("no player to follow, serving the session monitor only")
				} else {
					player = machine
				}

				var monitor transport.Monitor
				var sessionMonitor interface{ Run(context.Context) error }
				if watchSess != "" {
					m, err := d.admin.Monitor(ctx, watchSess)
					if err != nil {
						return err
					}
					monitor, sessionMonitor = m, m
				}

				server := transport.NewServer(addr, transport.NewRouter(player, monitor))
				g, gctx := errgroup.WithContext(ctx)
				g.Go(func() error { return server.Run(gctx) })
				g.Go(func() error {
					<-gctx.Done()
					return server.Shutdown(context.Background())
				})
				if machine != nil {
					g.Go(func() error { return ignoreCanceled(machine.Run(gctx)) })
				}
				if sessionMonitor != nil {
					g.Go(func() error { return ignoreCanceled(sessionMonitor.Run(gctx)) })
				}
				return g.Wait()
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to server.addr)")
	cmd.Flags().StringVar(&watchSess, "watch", "", "also expose the admin monitor for this session id")
	return cmd
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
