// Command livescore watches or fetches a single match from the terminal.
//
// Usage:
//
//	livescore watch hltv-2371
//	livescore fetch hltv-2371 --json
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/DoyleJ11/esports-livescore/internal/app"
	"github.com/DoyleJ11/esports-livescore/internal/config"
	"github.com/DoyleJ11/esports-livescore/internal/livescore"
	"github.com/DoyleJ11/esports-livescore/internal/logging"
)

var errNoData = errors.New("no score available")

func main() {
	_ = config.LoadDotEnv(".env")

	root := &cobra.Command{
		Use:           "livescore",
		Short:         "Live esports scores from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(watchCmd())
	root.AddCommand(fetchCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func watchCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "watch <matchID>",
		Short: "Print score updates until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStack(func(ctx context.Context, stack *app.Stack) error {
				out := cmd.OutOrStdout()
				finished := make(chan struct{}, 1)
				unsubscribe := stack.Service.Subscribe(args[0], func(ev livescore.Event) {
					printEvent(out, ev, asJSON)
					if ev.Status == livescore.StatusFinished {
						select {
						case finished <- struct{}{}:
						default:
						}
					}
				})
				defer unsubscribe()

				select {
				case <-ctx.Done():
				case <-finished:
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print events as JSON lines")
	return cmd
}

func fetchCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "fetch <matchID>",
		Short: "Print the current score once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStack(func(ctx context.Context, stack *app.Stack) error {
				ev, ok := stack.Service.FetchOnce(ctx, args[0])
				if !ok {
					return fmt.Errorf("%s: %w", args[0], errNoData)
				}
				printEvent(cmd.OutOrStdout(), ev, asJSON)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the event as JSON")
	return cmd
}

func withStack(fn func(ctx context.Context, stack *app.Stack) error) error {
	cfg := config.Load()
	logger, err := logging.New(cfg.LogLevel, cfg.Dev)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stack, err := app.Build(ctx, cfg, logger.With(zap.String("cmd", "livescore")))
	if err != nil {
		return err
	}
	defer stack.Close()
	return fn(ctx, stack)
}

func printEvent(w io.Writer, ev livescore.Event, asJSON bool) {
	if asJSON {
		_ = json.NewEncoder(w).Encode(ev)
		return
	}
	fmt.Fprintf(w, "%s  %s  map %d %s  %d-%d (round %d)  series %d-%d\n",
		ev.LastUpdate.Format("15:04:05"), ev.Status,
		ev.MapNumber, ev.CurrentMap,
		ev.Team1RoundsWon, ev.Team2RoundsWon, ev.CurrentRound,
		ev.Team1Score, ev.Team2Score)
}
