package cmd

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/textbot/internal/actions"
	"github.com/textbot/internal/credentials"
)

// CredentialsCommand returns the credentials command
func CredentialsCommand() *cli.Command {
	return &cli.Command{
		Name:  "credentials",
		Usage: "Manage per-user service credentials",
		Subcommands: []*cli.Command{
			{
				Name:  "register",
				Usage: "Register a credential for a user and action kind",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "User phone number (E.164)", Required: true},
					&cli.StringFlag{Name: "kind", Aliases: []string{"k"}, Usage: "NOTE, CALENDAR or HABIT", Required: true},
					&cli.StringFlag{Name: "token", Aliases: []string{"t"}, Usage: "Access token or API key"},
					&cli.StringFlag{Name: "account", Usage: "Account identifier the service needs alongside the token"},
					&cli.StringFlag{Name: "refresh-token", Usage: "Refresh token; makes the credential renewable"},
					&cli.DurationFlag{Name: "expires-in", Usage: "Lifetime of the access token of a renewable credential"},
				},
				Action: runCredentialsRegister,
			},
		},
	}
}

func runCredentialsRegister(c *cli.Context) error {
	kind := actions.ParseKind(c.String("kind"))
	if kind == actions.KindUnknown {
		return fmt.Errorf("unknown kind %q", c.String("kind"))
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	app, err := newApplication(c.Context, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	cred := credentials.Static(c.String("token"), c.String("account"))
	if refresh := c.String("refresh-token"); refresh != "" {
		var expiry time.Time
		if d := c.Duration("expires-in"); d > 0 {
			expiry = time.Now().Add(d)
		}
		cred = credentials.Renewable(c.String("token"), refresh, cfg.Calendar.TokenURL, expiry)
		cred.Account = c.String("account")
	}

	user := actions.UserID(c.String("user"))
	if err := app.store.Register(c.Context, user, kind, cred); err != nil {
		return fmt.Errorf("failed to register credential: %w", err)
	}

	fmt.Printf("Registered %s %s credential for %s\n", cred.Type, kind, user)
	return nil
}
