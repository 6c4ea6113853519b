package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"notify-realtime/internal/config"
	"notify-realtime/pkg/logger"
)

var (
	cfg  *config.Config
	logr *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "notify-client",
	Short:         "Realtime chat and notification client",
	Long:          "Connects to the push channel for chat rooms and polls the notification API.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.LoadConfig()
		if err != nil {
			return err
		}
		cfg = loaded
		logr = logger.New(cfg.Log.Level, cfg.Log.Format)
		slog.SetDefault(logr)
		return nil
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
