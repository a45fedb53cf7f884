package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/textbot/internal/config"
	"github.com/textbot/internal/logging"
)

// ConfigCommand returns the config command
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage configuration",
		Subcommands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Initialize a new configuration file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path",
						Value:   "textbot.toml",
					},
				},
				Action: runConfigInit,
			},
			{
				Name:   "validate",
				Usage:  "Validate the configuration file",
				Action: runConfigValidate,
			},
		},
	}
}

func runConfigInit(c *cli.Context) error {
	outputPath := c.String("output")

	if err := config.InitConfig(outputPath); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Created configuration file at %s\n", outputPath)
	return nil
}

func runConfigValidate(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	fmt.Println("Configuration is valid")
	fmt.Printf("  ai:          %s (%s), api key %s\n", cfg.AI.Provider, cfg.AI.Model, logging.MaskSecret(cfg.AI.APIKey))
	fmt.Printf("  credentials: %s backend\n", cfg.Credentials.Backend)
	fmt.Printf("  queue:       enabled=%v\n", cfg.Queue.Enabled)
	fmt.Printf("  replies to:  %s\n", cfg.ReplyWebhookURL())
	return nil
}
