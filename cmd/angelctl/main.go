package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/ukuvago/angelmatch/internal/client"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "angelctl",
		Usage: "AngelMatch marketplace from the command line",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "profile", Aliases: []string{"p"}, Usage: "profile file (default $HOME/.angelctl.yaml)"},
			&cli.StringFlag{Name: "base-url", Usage: "API base URL", EnvVars: []string{"ANGELCTL_BASE_URL"}},
		},
		Commands: []*cli.Command{
			loginCommand(),
			logoutCommand(),
			whoamiCommand(),
			projectsCommand(),
			ndaCommand(),
			paymentsCommand(),
			dashboardCommand(),
			offersCommand(),
			meetingsCommand(),
			commissionsCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", client.UserMessage(err))
		os.Exit(1)
	}
}

// newClient builds a client over the profile. A 401 anywhere clears the stored token.
func newClient(c *cli.Context) (*client.Client, error) {
	p, err := loadProfile(c.String("profile"))
	if err != nil {
		return nil, err
	}
	base := p.BaseURL()
	if c.IsSet("base-url") {
		base = c.String("base-url")
	}
	return client.New(base, p, client.WithUnauthorized(func() {
		fmt.Fprintln(os.Stderr, "session expired; run `angelctl login`")
	})), nil
}

func withClient(fn func(ctx context.Context, c *cli.Context, api *client.Client) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		api, err := newClient(c)
		if err != nil {
			return err
		}
		return fn(c.Context, c, api)
	}
}

func argID(c *cli.Context, name string) (uuid.UUID, error) {
	return parseID(c.Args().First(), name)
}

func parseID(raw, name string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, fmt.Errorf("%s is required", name)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}

func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
