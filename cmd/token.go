package cmd

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/textbot/internal/api/auth"
)

// TokenCommand returns the token command
func TokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Manage admin API tokens",
		Subcommands: []*cli.Command{
			{
				Name:  "issue",
				Usage: "Mint a bearer token for the admin routes",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "subject", Aliases: []string{"s"}, Usage: "Who the token is for", Value: "admin"},
					&cli.DurationFlag{Name: "ttl", Usage: "Token lifetime", Value: 30 * 24 * time.Hour},
				},
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					tok, expiresAt, err := auth.NewTokenService(cfg.Auth.JWTSecret).IssueAdminToken(c.String("subject"), c.Duration("ttl"))
					if err != nil {
						return err
					}
					fmt.Println(tok)
					fmt.Printf("# expires %s\n", expiresAt.Format(time.RFC3339))
					return nil
				},
			},
		},
	}
}
