package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/classwire/livesession/internal/app"
	"github.com/classwire/livesession/internal/config"
	"github.com/classwire/livesession/internal/log"
)

var (
	cfgFile  string
	addr     string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "sessiond",
	Short: "Live training session coordinator",
	Long: `sessiond hosts live training sessions: it fans chat, typing,
reactions and presence out to every connected participant and keeps a
per-session attendance tally.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		bootLog := log.New(logLevel)

		cfg, cfgPath, err := config.Load(bootLog, cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if addr != "" {
			cfg.Addr = addr
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}

		logger := log.New(cfg.LogLevel)
		logger.Info().Str("config", cfgPath).Str("addr", cfg.Addr).Msg("starting sessiond")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		application := app.New(cfg, logger)
		if err := application.Run(ctx); err != nil {
			return fmt.Errorf("server exited: %w", err)
		}

		logger.Info().Msg("server stopped")
		return nil
	},
}

func init() {
	rootCmd.Flags().StringVar(&cfgFile, "config", "", "path to config file (default: platform config dir)")
	rootCmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address override")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
