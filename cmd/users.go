package cmd

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/textbot/internal/actions"
	"github.com/textbot/internal/users"
)

// UsersCommand returns the users command
func UsersCommand() *cli.Command {
	return &cli.Command{
		Name:  "users",
		Usage: "Manage the user directory",
		Subcommands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Add or update a user",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "phone", Usage: "Phone number (E.164)", Required: true},
					&cli.StringSliceFlag{Name: "interest", Usage: "An interest; repeat for several"},
					&cli.StringFlag{Name: "persona", Usage: "Persona for openers (rude_coach, uncle_iroh, schmidt, normal_person)"},
				},
				Action: runUsersAdd,
			},
			{
				Name:   "list",
				Usage:  "List users",
				Action: runUsersList,
			},
		},
	}
}

func runUsersAdd(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	app, err := newApplication(c.Context, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	u := users.User{
		ID:        actions.UserID(c.String("phone")),
		Interests: c.StringSlice("interest"),
		Persona:   c.String("persona"),
	}
	if err := app.users.Upsert(c.Context, u); err != nil {
		return fmt.Errorf("failed to store user: %w", err)
	}
	fmt.Printf("Stored %s\n", u.ID)
	return nil
}

func runUsersList(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	app, err := newApplication(c.Context, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	list, err := app.users.List(c.Context)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}
	for _, u := range list {
		fmt.Printf("%s\t%s\t%s\n", u.ID, u.Persona, strings.Join(u.Interests, ", "))
	}
	return nil
}
