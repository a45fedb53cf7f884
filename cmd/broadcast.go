package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/textbot/internal/actions"
)

// BroadcastCommand returns the broadcast command
func BroadcastCommand() *cli.Command {
	return &cli.Command{
		Name:  "broadcast",
		Usage: "Text every user a conversation opener based on their interests",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "only",
				Usage: "Send only to this phone number",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			app, err := newApplication(c.Context, cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.broadcaster.Run(c.Context, actions.UserID(c.String("only")))
			if err != nil {
				return fmt.Errorf("broadcast failed: %w", err)
			}
			fmt.Printf("Sent %d, failed %d\n", res.Sent, res.Failed)
			return nil
		},
	}
}
