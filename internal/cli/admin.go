package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"bigbrain-client/internal/app"
	"bigbrain-client/internal/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage games and run sessions",
	}
	cmd.AddCommand(
		newAdminLoginCmd(),
		newAdminRegisterCmd(),
		newAdminLogoutCmd(),
		newAdminGamesCmd(),
		newAdminStartCmd(),
		newAdminAdvanceCmd(),
		newAdminEndCmd(),
		newAdminWatchCmd(),
		newAdminResultsCmd(),
	)
	return cmd
}

// adminRun builds deps and hands the admin service to fn.
func adminRun(fn func(ctx context.Context, admin *app.AdminService, out io.Writer, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return withDeps(cmd.Context(), func(d *deps) error {
			return fn(cmd.Context(), d.admin, cmd.OutOrStdout(), args)
		})
	}
}

func warnVolatileLogin() {
	if cfg.Store.Backend == config.BackendMemory {
		log.Warn().Msg("memory store in use: the login only lasts for this command, configure redis or postgres to keep it")
	}
}

func newAdminLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login <email> <password>",
		Short: "Log in and store the token",
		Args:  cobra.ExactArgs(2),
		RunE: adminRun(func(ctx context.Context, admin *app.AdminService, out io.Writer, args []string) error {
			if err := admin.Login(ctx, args[0], args[1]); err != nil {
				return err
			}
			warnVolatileLogin()
			fmt.Fprintf(out, "Logged in as %s\n", args[0])
			return nil
		}),
	}
}

func newAdminRegisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register <email> <password> <name>",
		Short: "Create an admin account and log in",
		Args:  cobra.ExactArgs(3),
		RunE: adminRun(func(ctx context.Context, admin *app.AdminService, out io.Writer, args []string) error {
			if err := admin.Register(ctx, args[0], args[1], args[2]); err != nil {
				return err
			}
			warnVolatileLogin()
			fmt.Fprintf(out, "Registered %s\n", args[0])
			return nil
		}),
	}
}

func newAdminLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and forget the token",
		Args:  cobra.NoArgs,
		RunE: adminRun(func(ctx context.Context, admin *app.AdminService, out io.Writer, _ []string) error {
			if err := admin.Logout(ctx); err != nil {
				return err
			}
			fmt.Fprintln(out, "Logged out")
			return nil
		}),
	}
}

func newAdminGamesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "games",
		Short: "List your games",
		Args:  cobra.NoArgs,
		RunE: adminRun(func(ctx context.Context, admin *app.AdminService, out io.Writer, _ []string) error {
			games, err := admin.ListGames(ctx)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tQUESTIONS\tACTIVE SESSION")
			for _, g := range games {
				active := g.Active
				if active == "" {
					active = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", g.ID, g.Name, len(g.Questions), active)
			}
			return tw.Flush()
		}),
	}
}

func newAdminStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start <game-id>",
		Short: "Start a session for a game",
		Args:  cobra.ExactArgs(1),
		RunE: adminRun(func(ctx context.Context, admin *app.AdminService, out io.Writer, args []string) error {
			sessionID, err := admin.StartGame(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Session %s started. Players join with: bigbrain play join %s <name>\n", sessionID, sessionID)
			return nil
		}),
	}
}

func newAdminAdvanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "advance <session-id>",
		Short: "Move a session to its next question",
		Args:  cobra.ExactArgs(1),
		RunE: adminRun(func(ctx context.Context, admin *app.AdminService, out io.Writer, args []string) error {
			status, err := admin.Advance(ctx, args[0])
			if err != nil {
				return err
			}
			if !status.Active {
				fmt.Fprintln(out, "Session finished")
				return nil
			}
			if q, ok := status.CurrentQuestion(); ok {
				fmt.Fprintf(out, "Question %d/%d: %s\n", status.Position+1, len(status.Questions), q.Text)
			}
			return nil
		}),
	}
}

func newAdminEndCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "end <game-id>",
		Short: "Stop a game's active session",
		Args:  cobra.ExactArgs(1),
		RunE: adminRun(func(ctx context.Context, admin *app.AdminService, out io.Writer, args []string) error {
			sessionID, err := admin.EndGame(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Session %s stopped. Results: bigbrain admin results %s\n", sessionID, sessionID)
			return nil
		}),
	}
}

func newAdminResultsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "results <session-id>",
		Short: "Show the leaderboard of a session",
		Args:  cobra.ExactArgs(1),
		RunE: adminRun(func(ctx context.Context, admin *app.AdminService, out io.Writer, args []string) error {
			rankings, err := admin.SessionResults(ctx, args[0])
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RANK\tPLAYER\tSCORE")
			for i, r := range rankings {
				fmt.Fprintf(tw, "%d\t%s\t%d\n", i+1, r.Name, r.Score)
			}
			return tw.Flush()
		}),
	}
}

func newAdminWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <session-id>",
		Short: "Follow a session live; type 'next' to advance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), func(d *deps) error {
				monitor, err := d.admin.Monitor(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return watchInTerminal(cmd.Context(), monitor, cmd.InOrStdin(), cmd.OutOrStdout())
			})
		},
	}
}

func watchInTerminal(ctx context.Context, monitor *app.SessionMonitor, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates, unsubscribe := monitor.Subscribe()
	defer unsubscribe()
	rendered := make(chan struct{})
	go func() {
		defer close(rendered)
		var prev app.SessionSnapshot
		first := true
		for s := range updates {
			printSession(out, prev, s, first)
			prev, first = s, false
		}
	}()

	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
			case "next", "n":
				if err := monitor.Advance(ctx); err != nil {
					fmt.Fprintf(out, "! %v\n", err)
				}
			case "":
			default:
				fmt.Fprintln(out, "Commands: next")
			}
		}
	}()

	err := monitor.Run(ctx)
	if monitor.Finished() {
		<-rendered
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
