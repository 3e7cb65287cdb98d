package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ukuvago/angelmatch/internal/client"
	"github.com/ukuvago/angelmatch/internal/models"
	"github.com/urfave/cli/v2"
)

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "log in and store the token in the profile",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Required: true},
			&cli.StringFlag{Name: "password", Required: true, EnvVars: []string{"ANGELCTL_PASSWORD"}},
		},
		Action: withClient(func(ctx context.Context, c *cli.Context, api *client.Client) error {
			res, err := api.Login(ctx, c.String("email"), c.String("password"))
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "logged in as %s (%s)\n", res.User.Email, res.User.Role)
			return nil
		}),
	}
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "forget the stored token",
		Action: withClient(func(_ context.Context, _ *cli.Context, api *client.Client) error {
			return api.Logout()
		}),
	}
}

func whoamiCommand() *cli.Command {
	return &cli.Command{
		Name: "whoami",
		Action: withClient(func(ctx context.Context, c *cli.Context, api *client.Client) error {
			u, err := api.Me(ctx)
			if err != nil {
				return err
			}
			return printJSON(c, u)
		}),
	}
}

func projectsCommand() *cli.Command {
	return &cli.Command{
		Name: "projects",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Flags: []cli.Flag{&cli.StringFlag{Name: "search"}},
				Action: withClient(func(ctx context.Context, c *cli.Context, api *client.Client) error {
					projects, err := api.ListProjects(ctx, c.String("search"))
					if err != nil {
						return err
					}
					return printJSON(c, projects)
				}),
			},
			{
				Name:      "access",
				ArgsUsage: "<project-id>",
				Action: withClient(func(ctx context.Context, c *cli.Context, api *client.Client) error {
					id, err := argID(c, "project id")
					if err != nil {
						return err
					}
					pe, err := api.Entitlements().Evaluate(ctx, id)
					if err != nil {
						return err
					}
					return printJSON(c, pe.Decision)
				}),
			},
			{
				Name:      "unlock",
				ArgsUsage: "<project-id>",
				Usage:     "spend one view credit on a project",
				Action: withClient(func(ctx context.Context, c *cli.Context, api *client.Client) error {
					id, err := argID(c, "project id")
					if err != nil {
						return err
					}
					pe, err := api.Entitlements().Unlock(ctx, id)
					if err != nil {
						var ne *client.NotEligibleError
						if errors.As(err, &ne) {
							return fmt.Errorf("%s: next step %s %s", ne.State, ne.Next.Method, ne.Next.Route)
						}
						return err
					}
					fmt.Fprintf(c.App.Writer, "unlocked; %d views remaining\n", pe.Snapshot.ViewsRemaining)
					return nil
				}),
			},
		},
	}
}

func ndaCommand() *cli.Command {
	return &cli.Command{
		Name: "nda",
		Subcommands: []*cli.Command{
			{
				Name: "status",
				Action: withClient(func(ctx context.Context, c *cli.Context, api *client.Client) error {
					st, err := api.NDAStatus(ctx)
					if err != nil {
						return err
					}
					return printJSON(c, st)
				}),
			},
			{
				Name: "sign",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true, Usage: "full legal name"},
					&cli.StringFlag{Name: "signature", Usage: "signature data", Value: "typed"},
					&cli.BoolFlag{Name: "agree", Usage: "confirm you accept the agreement"},
					&cli.StringFlag{Name: "project", Usage: "sign this project's addendum instead"},
				},
				Action: withClient(func(ctx context.Context, c *cli.Context, api *client.Client) error {
					form := client.SignForm{
						SignedName:    c.String("name"),
						SignatureData: c.String("signature"),
						Agreed:        c.Bool("agree"),
					}
					if raw := c.String("project"); raw != "" {
						id, err := parseID(raw, "project id")
						if err != nil {
							return err
						}
						return api.SignAddendum(ctx, id, form)
					}
					return api.SignNDA(ctx, form)
				}),
			},
		},
	}
}

func paymentsCommand() *cli.Command {
	return &cli.Command{
		Name: "payments",
		Subcommands: []*cli.Command{
			{
				Name:  "buy",
				Usage: "start a view package checkout",
				Flags: []cli.Flag{&cli.BoolFlag{Name: "confirm", Usage: "confirm immediately (demo mode)"}},
				Action: withClient(func(ctx context.Context, c *cli.Context, api *client.Client) error {
					co, err := api.Checkout(ctx)
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "payment %s: %d views for %s\n", co.PaymentID, co.Views, models.FormatCurrency(co.Amount, co.Currency))
					if !c.Bool("confirm") {
						fmt.Fprintln(c.App.Writer, "complete checkout at", co.CheckoutURL)
						return nil
					}
					pkg, err := api.ConfirmPayment(ctx, co.PaymentID, "")
					if err != nil {
						return err
					}
					return printJSON(c, pkg)
				}),
			},
		},
	}
}

func dashboardCommand() *cli.Command {
	return &cli.Command{
		Name: "dashboard",
		Action: withClient(func(ctx context.Context, c *cli.Context, api *client.Client) error {
			d, err := api.Dashboard(ctx)
			if err != nil {
				return err
			}
			return printJSON(c, d)
		}),
	}
}

func offersCommand() *cli.Command {
	return &cli.Command{
		Name: "offers",
		Subcommands: []*cli.Command{
			{
				Name: "create",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "project", Required: true},
					&cli.Float64Flag{Name: "amount", Required: true},
					&cli.Float64Flag{Name: "cap"},
					&cli.Float64Flag{Name: "discount"},
					&cli.BoolFlag{Name: "mfn"},
					&cli.BoolFlag{Name: "pro-rata"},
					&cli.StringFlag{Name: "notes"},
				},
				Action: withClient(func(ctx context.Context, c *cli.Context, api *client.Client) error {
					id, err := parseID(c.String("project"), "project id")
					if err != nil {
						return err
					}
					terms := models.SAFETerms{
						InvestmentAmount: c.Float64("amount"),
						ProRataRights:    c.Bool("pro-rata"),
					}
					if c.IsSet("cap") {
						v := c.Float64("cap")
						terms.ValuationCap = &v
					}
					if c.IsSet("discount") {
						v := c.Float64("discount")
						terms.DiscountRate = &v
					}
					if c.Bool("mfn") {
						terms = terms.WithMFN(true)
					}
					note, err := api.CreateOffer(ctx, client.OfferInput{ProjectID: id, Terms: terms, Notes: c.String("notes")})
					if err != nil {
						return err
					}
					return printJSON(c, note)
				}),
			},
			noteCommand("send", "", func(ctx context.Context, api *client.Client, c *cli.Context) (*models.SAFENote, error) {
				id, err := argID(c, "note id")
				if err != nil {
					return nil, err
				}
				return api.SendOffer(ctx, id)
			}),
			noteCommand("sign", "signature", func(ctx context.Context, api *client.Client, c *cli.Context) (*models.SAFENote, error) {
				id, err := argID(c, "note id")
				if err != nil {
					return nil, err
				}
				return api.SignOffer(ctx, id, c.String("signature"))
			}),
			noteCommand("cancel", "reason", func(ctx context.Context, api *client.Client, c *cli.Context) (*models.SAFENote, error) {
				id, err := argID(c, "note id")
				if err != nil {
					return nil, err
				}
				return api.CancelOffer(ctx, id, c.String("reason"))
			}),
			{
				Name:  "list",
				Flags: []cli.Flag{&cli.StringFlag{Name: "status"}},
				Action: withClient(func(ctx context.Context, c *cli.Context, api *client.Client) error {
					notes, err := api.ListOffers(ctx, models.SAFENoteStatus(c.String("status")))
					if err != nil {
						return err
					}
					return printJSON(c, notes)
				}),
			},
		},
	}
}

func noteCommand(name, flag string, fn func(context.Context, *client.Client, *cli.Context) (*models.SAFENote, error)) *cli.Command {
	cmd := &cli.Command{
		Name:      name,
		ArgsUsage: "<note-id>",
		Action: withClient(func(ctx context.Context, c *cli.Context, api *client.Client) error {
			note, err := fn(ctx, api, c)
			if err != nil {
				return err
			}
			return printJSON(c, note)
		}),
	}
	if flag != "" {
		cmd.Flags = []cli.Flag{&cli.StringFlag{Name: flag}}
	}
	return cmd
}

func meetingsCommand() *cli.Command {
	return &cli.Command{
		Name: "meetings",
		Subcommands: []*cli.Command{
			{
				Name: "request",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "project", Required: true},
					&cli.StringFlag{Name: "subject", Required: true},
					&cli.StringFlag{Name: "agenda"},
					&cli.StringFlag{Name: "times", Usage: "proposed times"},
				},
				Action: withClient(func(ctx context.Context, c *cli.Context, api *client.Client) error {
					m, err := api.RequestMeeting(ctx, client.MeetingForm{
						ProjectID:     c.String("project"),
						Subject:       c.String("subject"),
						Agenda:        c.String("agenda"),
						ProposedTimes: c.String("times"),
					})
					if err != nil {
						return err
					}
					return printJSON(c, m)
				}),
			},
			{
				Name:      "accept",
				ArgsUsage: "<meeting-id>",
				Flags: []cli.Flag{
					&cli.TimestampFlag{Name: "at", Layout: time.RFC3339, Required: true},
					&cli.StringFlag{Name: "link"},
				},
				Action: withClient(func(ctx context.Context, c *cli.Context, api *client.Client) error {
					id, err := argID(c, "meeting id")
					if err != nil {
						return err
					}
					form := client.AcceptForm{MeetingLink: c.String("link")}
					if at := c.Timestamp("at"); at != nil {
						form.ScheduledAt = *at
					}
					m, err := api.AcceptMeeting(ctx, id, form)
					if err != nil {
						return err
					}
					return printJSON(c, m)
				}),
			},
			{
				Name:      "decline",
				ArgsUsage: "<meeting-id>",
				Flags:     []cli.Flag{&cli.StringFlag{Name: "reason"}},
				Action: withClient(func(ctx context.Context, c *cli.Context, api *client.Client) error {
					id, err := argID(c, "meeting id")
					if err != nil {
						return err
					}
					m, err := api.DeclineMeeting(ctx, id, c.String("reason"))
					if err != nil {
						return err
					}
					return printJSON(c, m)
				}),
			},
			{
				Name:  "list",
				Flags: []cli.Flag{&cli.StringFlag{Name: "status"}},
				Action: withClient(func(ctx context.Context, c *cli.Context, api *client.Client) error {
					ms, err := api.ListMeetings(ctx, models.MeetingStatus(c.String("status")))
					if err != nil {
						return err
					}
					return printJSON(c, ms)
				}),
			},
			{
				Name:      "thread",
				ArgsUsage: "<meeting-id>",
				Action: withClient(func(ctx context.Context, c *cli.Context, api *client.Client) error {
					id, err := argID(c, "meeting id")
					if err != nil {
						return err
					}
					msgs, err := api.Thread(ctx, id)
					if err != nil {
						return err
					}
					for _, m := range msgs {
						fmt.Fprintf(c.App.Writer, "[%s] %s: %s\n", m.CreatedAt.Format(time.RFC3339), m.SenderID, m.Content)
					}
					return nil
				}),
			},
			{
				Name:      "send",
				ArgsUsage: "<meeting-id> <message>",
				Action: withClient(func(ctx context.Context, c *cli.Context, api *client.Client) error {
					id, err := argID(c, "meeting id")
					if err != nil {
						return err
					}
					msg, err := api.SendMessage(ctx, id, c.Args().Get(1))
					if err != nil {
						return err
					}
					return printJSON(c, msg)
				}),
			},
		},
	}
}

func commissionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "commissions",
		Usage: "admin commission ledger",
		Subcommands: []*cli.Command{
			{
				Name: "list",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "status"},
					&cli.IntFlag{Name: "page", Value: 1},
					&cli.IntFlag{Name: "limit", Value: 20},
				},
				Action: withClient(func(ctx context.Context, c *cli.Context, api *client.Client) error {
					pg, err := api.Commissions(ctx, models.CommissionStatus(c.String("status")), c.Int("page"), c.Int("limit"))
					if err != nil {
						return err
					}
					if err := printJSON(c, pg.Items); err != nil {
						return err
					}
					s := pg.Summary
					fmt.Fprintf(c.App.Writer, "this page (%d of %d): earned %.2f, pending %.2f, avg rate %.4f\n",
						s.Count, pg.Total, s.TotalEarned, s.PendingAmount, s.AverageRate)
					return nil
				}),
			},
			{
				Name:  "summary",
				Usage: "totals across all commissions",
				Action: withClient(func(ctx context.Context, c *cli.Context, api *client.Client) error {
					s, err := api.CommissionTotals(ctx)
					if err != nil {
						return err
					}
					return printJSON(c, s)
				}),
			},
			{
				Name:      "mark-paid",
				ArgsUsage: "<commission-id>",
				Action: withClient(func(ctx context.Context, c *cli.Context, api *client.Client) error {
					id, err := argID(c, "commission id")
					if err != nil {
						return err
					}
					cm, err := api.MarkCommissionPaid(ctx, id)
					if err != nil {
						return err
					}
					return printJSON(c, cm)
				}),
			},
		},
	}
}
