package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/alecgard/pasteagent/internal/config"
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "pasteagent",
	Short:         "pasteagent: rate-limited Pastebin API agent",
	Long:          "pasteagent talks to the Pastebin API under a client-side rate limiter (none, burst or pace), either from the command line or as a local HTTP gateway shared by other programs.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: built-in defaults and PASTEAGENT_* env vars)")
}

func main() {
	// Interrupt cancels a pending rate-limit delay instead of waiting it out.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and installs the JSON slog handler at the
// configured level.
func loadConfig(logOut io.Writer) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{Level: cfg.LogLevel()}))
	slog.SetDefault(logger)
	return cfg, nil
}
