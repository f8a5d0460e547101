// Package cli implements the oceangatectl maintenance commands.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/oceangate/oceangate/internal/auth"
	"github.com/oceangate/oceangate/internal/shared"
)

// Deps carries the backends a command needs.
type Deps struct {
	Migrate func() error
	Users   UserAdmin
	Data    *DataCLI
	Jobs    *JobsCLI
	Close   func()
}

// Opener builds Deps on first use so that help output needs no database.
type Opener func(c *cli.Context) (*Deps, error)

// NewApp assembles the command tree.
func NewApp(open Opener, out io.Writer) *cli.App {
	var deps *Deps
	with := func(fn func(c *cli.Context, d *Deps) error) cli.ActionFunc {
		return func(c *cli.Context) error {
			if deps == nil {
				d, err := open(c)
				if err != nil {
					return err
				}
				deps = d
			}
			return fn(c, deps)
		}
	}

	return &cli.App{
		Name:            "oceangatectl",
		Usage:           "Oceangate maintenance commands",
		Writer:          out,
		ErrWriter:       out,
		HideHelpCommand: true,
		After: func(c *cli.Context) error {
			if deps != nil && deps.Close != nil {
				deps.Close()
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "apply pending database migrations",
				Action: with(func(c *cli.Context, d *Deps) error {
					if d.Migrate == nil {
						return errors.New("migrations not configured")
					}
					if err := d.Migrate(); err != nil {
						return err
					}
					fmt.Fprintln(out, "migrations applied")
					return nil
				}),
			},
			{
				Name:  "user",
				Usage: "manage accounts",
				Subcommands: []*cli.Command{
					{
						Name:      "add",
						Usage:     "create an account",
						ArgsUsage: "<username> <email> <password> [role]",
						Action: with(func(c *cli.Context, d *Deps) error {
							if c.NArg() < 3 {
								return cli.Exit("usage: user add <username> <email> <password> [role]", 2)
							}
							role := shared.RoleUser
							if c.NArg() > 3 {
								role = c.Args().Get(3)
							}
							user, err := d.Users.CreateUser(c.Context, auth.NewUser{
								Username: c.Args().Get(0),
								Email:    c.Args().Get(1),
								Password: c.Args().Get(2),
								Role:     role,
							})
							if err != nil {
								return fmt.Errorf("create user: %s", shared.UserSafeMessage(err))
							}
							fmt.Fprintf(out, "user %s created (%s, %s)\n", user.Email, user.ID, user.Role)
							return nil
						}),
					},
					{
						Name:      "remove",
						Usage:     "delete an account",
						ArgsUsage: "<email>",
						Action: with(func(c *cli.Context, d *Deps) error {
							if c.NArg() != 1 {
								return cli.Exit("usage: user remove <email>", 2)
							}
							if err := d.Users.RemoveUser(c.Context, c.Args().First()); err != nil {
								return fmt.Errorf("remove user: %s", shared.UserSafeMessage(err))
							}
							fmt.Fprintf(out, "user %s removed\n", c.Args().First())
							return nil
						}),
					},
				},
			},
			{
				Name:  "data",
				Usage: "wipe business data",
				Subcommands: []*cli.Command{
					{
						Name:  "clear",
						Usage: "truncate categories, stock, doa records and invoices",
						Action: with(func(c *cli.Context, d *Deps) error {
							if err := d.Data.Clear(c.Context); err != nil {
								return err
							}
							fmt.Fprintln(out, "business data cleared")
							return nil
						}),
					},
					{
						Name:      "reset-production",
						Usage:     "clear data and reset the admin password",
						ArgsUsage: "<new-admin-password>",
						Action: with(func(c *cli.Context, d *Deps) error {
							if c.NArg() != 1 {
								return cli.Exit("usage: data reset-production <new-admin-password>", 2)
							}
							if err := d.Data.ResetProduction(c.Context, c.Args().First()); err != nil {
								return err
							}
							fmt.Fprintf(out, "production reset, admin is %s\n", auth.AdminEmail)
							return nil
						}),
					},
				},
			},
			{
				Name:  "jobs",
				Usage: "inspect and trigger background jobs",
				Subcommands: []*cli.Command{
					{
						Name:      "trigger",
						Usage:     "enqueue a job",
						ArgsUsage: "<dashboard-warmup>",
						Action: with(func(c *cli.Context, d *Deps) error {
							if c.NArg() != 1 {
								return cli.Exit("usage: jobs trigger <dashboard-warmup>", 2)
							}
							info, err := d.Jobs.Trigger(c.Context, c.Args().First())
							if err != nil {
								return err
							}
							if info == nil {
								fmt.Fprintln(out, "already queued")
								return nil
							}
							fmt.Fprintf(out, "enqueued %s (%s)\n", info.Type, info.ID)
							return nil
						}),
					},
					{
						Name:  "stats",
						Usage: "print default queue statistics as JSON",
						Action: with(func(c *cli.Context, d *Deps) error {
							stats, err := d.Jobs.InspectQueue()
							if err != nil {
								return err
							}
							enc := json.NewEncoder(out)
							enc.SetIndent("", "  ")
							return enc.Encode(stats)
						}),
					},
				},
			},
		},
	}
}
