package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/eyalcarmi01-ux/trading-bot/internal/config"
	"github.com/eyalcarmi01-ux/trading-bot/internal/engine"
	"github.com/eyalcarmi01-ux/trading-bot/internal/logger"
	"github.com/eyalcarmi01-ux/trading-bot/internal/version"
)

var configFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to the trader configuration file",
		Value:   "config/trader.yaml",
	},
	&cli.StringSliceFlag{
		Name:  "env-file",
		Usage: "Environment files loaded before the configuration (existing variables win)",
		Value: []string{".env"},
	},
}

func loadConfig(cmd *cli.Command) (*config.Config, error) {
	if err := config.LoadEnv(cmd.StringSlice("env-file")...); err != nil {
		return nil, err
	}

	return config.Load(cmd.String("config"))
}

// runAction starts every configured instance and blocks until the daily shutdown or a signal.
func runAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	l, err := logger.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	defer func() { _ = l.Sync() }()

	l.Info("Trader starting",
		zap.String("version", version.GetVersion()),
		zap.String("config", cmd.String("config")),
		zap.String("provider", cfg.Gateway.Provider),
		zap.Int("instances", len(cfg.Instances)),
	)

	process, err := engine.Build(cfg, l)
	if err != nil {
		l.Error("Failed to build instances", zap.Error(err))

		return err
	}

	return process.Run(ctx)
}

func validateAction(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	fmt.Printf("Configuration OK: %d instance(s), provider %s, timezone %s\n", len(cfg.Instances), cfg.Gateway.Provider, cfg.Timezone)

	for _, in := range cfg.Instances {
		fmt.Printf("  %-20s %s\n", in.Name, in.Summary())
	}

	return nil
}

func schemaAction(_ context.Context, cmd *cli.Command) error {
	schema, err := config.Schema()
	if err != nil {
		return err
	}

	output := cmd.String("output")
	if output == "" {
		fmt.Println(schema)

		return nil
	}

	if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(output, []byte(schema), 0644); err != nil {
		return fmt.Errorf("failed to write schema: %w", err)
	}

	log.Printf("Schema successfully generated at %s", output)

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:    "trader",
		Usage:   "Run bracket-order futures strategies against a trading gateway",
		Version: version.GetVersion(),
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Run every configured strategy instance",
				Flags:  configFlags,
				Action: runAction,
			},
			{
				Name:   "validate",
				Usage:  "Load and validate the configuration without connecting",
				Flags:  configFlags,
				Action: validateAction,
			},
			{
				Name:  "schema",
				Usage: "Print the JSON schema of the configuration file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write the schema to this file instead of stdout",
					},
				},
				Action: schemaAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
