package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"bigbrain-client/internal/app"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newPlayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Join and play a session",
	}
	cmd.AddCommand(newPlayJoinCmd(), newPlayRunCmd(), newPlayResultsCmd())
	return cmd
}

func newPlayJoinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "join <session-id> <name>",
		Short: "Join a session and remember the player id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), func(d *deps) error {
				session, err := d.players.Join(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Joined session %s as %s (player %s)\n", session.SessionID, session.Name, session.PlayerID)
				return nil
			})
		},
	}
}

type playFlags struct {
	playerID  string
	sessionID string
	name      string
}

func (f *playFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.playerID, "player", "", "player id (defaults to the last joined player)")
	cmd.Flags().StringVar(&f.sessionID, "session", "", "join this session first")
	cmd.Flags().StringVar(&f.name, "name", "", "player name used with --session")
}

// machine joins when --session is set, then restores the player's machine.
func (f *playFlags) machine(ctx context.Context, d *deps) (*app.PlayerMachine, error) {
	playerID := f.playerID
	if f.sessionID != "" {
		session, err := d.players.Join(ctx, f.sessionID, f.name)
		if err != nil {
			return nil, err
		}
		playerID = session.PlayerID
	}
	return d.players.Machine(ctx, playerID)
}

func newPlayRunCmd() *cobra.Command {
	var flags playFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Follow the game in the terminal and answer questions",
		Long: "Follow the game in the terminal. Type an answer number or text to select it; " +
			"multiple-choice answers toggle until you type 'submit'.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withDeps(ctx, func(d *deps) error {
				machine, err := flags.machine(ctx, d)
				if err != nil {
					return err
				}
				return playInTerminal(ctx, machine, cmd.InOrStdin(), cmd.OutOrStdout())
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func playInTerminal(ctx context.Context, machine *app.PlayerMachine, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates, unsubscribe := machine.Subscribe()
	defer unsubscribe()
	rendered := make(chan struct{})
	go func() {
		defer close(rendered)
		view := &playerView{out: out}
		for s := range updates {
			view.render(s)
		}
	}()

	if in != nil {
		go readAnswers(ctx, machine, in, out)
	}

	err := machine.Run(ctx)
	if machine.Finished() {
		<-rendered
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func readAnswers(ctx context.Context, machine *app.PlayerMachine, in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var err error
		switch strings.ToLower(line) {
		case "submit", "s":
			err = machine.Submit(ctx)
		default:
			snap := machine.Snapshot()
			if snap.Question == nil {
				fmt.Fprintln(out, "No question to answer yet.")
				continue
			}
			err = machine.Select(ctx, parseAnswerInput(*snap.Question, line))
		}
		if err != nil {
			fmt.Fprintf(out, "! %v\n", err)
		}
	}
	if err := scanner.Err(); err != nil {
		log.Debug().Err(err).Msg("stdin closed")
	}
}

func newPlayResultsCmd() *cobra.Command {
	var playerID string
	cmd := &cobra.Command{
		Use:   "results",
		Short: "Show the statistics of a finished game",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), func(d *deps) error {
				stats, err := d.players.Results(cmd.Context(), playerID)
				if err != nil {
					return err
				}
				printStats(cmd.OutOrStdout(), stats)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&playerID, "player", "", "player id (defaults to the last joined player)")
	return cmd
}
