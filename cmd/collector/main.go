package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cartridge/expbuffer/internal/config"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "collector",
	Short: "Multi-environment experience collector",
	Long: `Collector steps a set of cart-pole environments with a random policy,
stores every timestep in a circular experience buffer and samples training
batches from it.

Each iteration rolls out --steps environment steps, then either samples a
rollout window per environment (--mode=rollout) or uniform transition
batches (--mode=uniform).`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runCollector,
}

func init() {
	rootCmd.Flags().StringVar(&configFile, "config", "", "Config file (yaml, json or toml)")
	config.RegisterFlags(rootCmd.Flags(), config.Default())
}

func runCollector(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(viper.New(), cmd.Flags(), configFile)
	if err != nil {
		return err
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := newCollector(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create collector: %w", err)
	}

	logger.Info().
		Int("num_envs", cfg.NumEnvs).
		Int("capacity", cfg.Capacity).
		Str("mode", cfg.Mode).
		Msg("collector starting")

	if _, err := c.run(ctx); err != nil {
		if ctx.Err() != nil {
			logger.Info().Msg("shutdown signal received")
			return nil
		}
		return err
	}

	logger.Info().Msg("collector stopped")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
