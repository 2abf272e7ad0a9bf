// Command board shows the live answer board of a class session in the
// terminal. It resyncs on its own after every disconnect.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"live-class-backend/internal/board"
	"live-class-backend/internal/client"
	"live-class-backend/internal/live"
	"live-class-backend/internal/logger"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	sessionID string
	token     string
	showIDs   bool
	logLevel  string
)

var rootCmd = &cobra.Command{
	Use:           "board",
	Short:         "Terminal answer board for live classes",
	SilenceErrors: true,
	SilenceUsage:  true,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the answers of a session as they come in",
	RunE:  runWatch,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "server base URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("BOARD_TOKEN"), "optional JWT")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level")

	watchCmd.Flags().StringVar(&sessionID, "session", "", "session id")
	watchCmd.Flags().BoolVar(&showIDs, "show-ids", false, "show student ids on the cards")
	watchCmd.MarkFlagRequired("session")

	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	// stdout belongs to the board.
	slog.SetDefault(logger.New(os.Stderr, logLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := client.New(serverURL, token)
	session, err := c.Session(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	opts := board.Options{Code: session.Code, ShowIDs: showIDs}

	out := cmd.OutOrStdout()
	viewer := live.NewViewer(c, sessionID, func(v live.View) {
		fmt.Fprint(out, "\033[H\033[2J")
		fmt.Fprint(out, board.Render(v, opts))
	})
	if err := viewer.Run(ctx); err != nil {
		if errors.Is(err, live.ErrSessionNotFound) {
			return fmt.Errorf("session %s not found", sessionID)
		}
		return err
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
