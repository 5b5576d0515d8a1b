package main

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/painvault/internal/capture"
	"github.com/hpungsan/painvault/internal/classify"
	"github.com/hpungsan/painvault/internal/config"
	"github.com/hpungsan/painvault/internal/errors"
	"github.com/hpungsan/painvault/internal/hud"
	"github.com/hpungsan/painvault/internal/log"
	"github.com/hpungsan/painvault/internal/ops"
	"github.com/hpungsan/painvault/internal/router"
	"github.com/hpungsan/painvault/internal/store"
	"github.com/hpungsan/painvault/internal/web"
	"github.com/hpungsan/painvault/internal/webhook"
)

// services wires the stores and pipeline shared by every command.
type services struct {
	db       *sql.DB
	cfg      *config.Config
	pipeline *ops.Pipeline
	hub      *router.Hub
	now      func() time.Time
}

// newServices builds the capture pipeline over database.
func newServices(database *sql.DB, cfg *config.Config, sender webhook.Sender, now func() time.Time) *services {
	if now == nil {
		now = time.Now
	}
	if sender == nil {
		sender = webhook.NewClient(cfg.DeliveryTimeout())
	}
	hub := router.NewHub()
	pipeline := ops.NewPipeline(database,
		store.NewConfigStore(database),
		store.NewStatsStore(database, now),
		sender,
		ops.WithNotifier(hub),
		ops.WithLogger(log.L()),
		ops.WithClock(now),
	)
	return &services{db: database, cfg: cfg, pipeline: pipeline, hub: hub, now: now}
}

// newCLIApp creates the CLI application with all commands.
// svc may be nil when only help or version output is needed.
func newCLIApp(svc *services) *cli.App {
	app := &cli.App{
		Name:    "painvault",
		Usage:   "Capture pain-point selections and deliver them to an n8n webhook",
		Version: Version,
		Commands: []*cli.Command{
			sendCmd(svc),
			statsCmd(svc),
			campaignsCmd(svc),
			settingsCmd(svc),
			hudCmd(svc),
			testCmd(svc),
			menuCmd(svc),
			deliveriesCmd(svc),
			purgeCmd(svc),
			exportCmd(svc),
			serveCmd(svc),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// sendCmd creates the send command.
func sendCmd(svc *services) *cli.Command {
	return &cli.Command{
		Name:      "send",
		Usage:     "Send a selection to the webhook (text from args or stdin)",
		ArgsUsage: "[text]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Aliases: []string{"u"}, Usage: "Page URL the text came from"},
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Page title"},
			&cli.StringFlag{Name: "source", Aliases: []string{"s"}, Usage: "Source label (derived from URL when omitted)"},
			&cli.StringFlag{Name: "campaign", Aliases: []string{"c"}, Usage: "Campaign id"},
		},
		Action: func(c *cli.Context) error {
			text := strings.Join(c.Args().Slice(), " ")
			if text == "" && stdinHasData() {
				var err error
				text, err = readStdin()
				if err != nil {
					return outputError(errors.NewInternal(err))
				}
			}

			output, err := svc.pipeline.Capture(c.Context, capture.Request{
				SelectedText: text,
				PageURL:      c.String("url"),
				PageTitle:    c.String("title"),
				Source:       c.String("source"),
				CampaignID:   c.String("campaign"),
				CreatedAt:    svc.now(),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// statsOutput is a domain's counters with goal progress for one campaign.
type statsOutput struct {
	*ops.GetStatsOutput
	Campaign string       `json:"campaign"`
	Progress hud.Progress `json:"progress"`
	Line     string       `json:"line"`
}

// statsCmd creates the stats command.
func statsCmd(svc *services) *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show capture counters (one domain with --url, else every domain for a day)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Aliases: []string{"u"}, Usage: "Page URL whose domain to report"},
			&cli.StringFlag{Name: "campaign", Aliases: []string{"c"}, Usage: "Campaign for goal progress (with --url)"},
			&cli.StringFlag{Name: "date", Aliases: []string{"d"}, Usage: "Day (YYYY-MM-DD) or 'all'; default today"},
		},
		Action: func(c *cli.Context) error {
			if pageURL := c.String("url"); pageURL != "" {
				output, err := ops.GetStats(c.Context, svc.pipeline.Stats(), pageURL)
				if err != nil {
					return outputError(err)
				}
				if id := c.String("campaign"); id != "" {
					return outputJSON(statsOutput{
						GetStatsOutput: output,
						Campaign:       id,
						Progress:       hud.ProgressFor(output.Stats, id),
						Line:           hud.StatsLine(output.Stats, id),
					})
				}
				return outputJSON(output)
			}

			output, err := ops.ListStats(c.Context, svc.pipeline.Stats(), ops.ListStatsInput{Date: c.String("date")})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// campaignsCmd creates the campaigns command with list and set subcommands.
func campaignsCmd(svc *services) *cli.Command {
	return &cli.Command{
		Name:  "campaigns",
		Usage: "List or replace the campaign list",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List campaigns (defaults when none are stored)",
				Action: func(c *cli.Context) error {
					output, err := ops.ListCampaigns(c.Context, svc.pipeline.Configs())
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "set",
				Usage:     "Replace campaigns (id=label args, or a JSON array on stdin)",
				ArgsUsage: "[id=label ...]",
				Action: func(c *cli.Context) error {
					var list []capture.Campaign
					switch {
					case c.NArg() > 0:
						list = parseCampaigns(c.Args().Slice())
					case stdinHasData():
						data, err := readStdin()
						if err != nil {
							return outputError(errors.NewInternal(err))
						}
						if err := json.Unmarshal([]byte(data), &list); err != nil {
							return outputError(errors.NewInvalidRequest("stdin must be a JSON array of {id, label}"))
						}
					}

					output, err := ops.SetCampaigns(c.Context, svc.pipeline.Configs(), list)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

// settingsCmd creates the settings command with show and set subcommands.
func settingsCmd(svc *services) *cli.Command {
	return &cli.Command{
		Name:  "settings",
		Usage: "Show or update webhook delivery settings",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show settings (token masked unless --reveal)",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "reveal", Usage: "Print the auth token"},
				},
				Action: func(c *cli.Context) error {
					output, err := ops.GetSettings(c.Context, svc.pipeline.Configs(), ops.GetSettingsInput{Reveal: c.Bool("reveal")})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "set",
				Usage: "Replace delivery settings",
				Flags: deliveryFlags(),
				Action: func(c *cli.Context) error {
					output, err := ops.SaveSettings(c.Context, svc.pipeline.Configs(), ops.SaveSettingsInput{
						WebhookURL:       c.String("webhook-url"),
						AuthMode:         c.String("auth-mode"),
						AuthToken:        c.String("auth-token"),
						CustomHeaderName: c.String("header-name"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

// hudCmd creates the hud command.
func hudCmd(svc *services) *cli.Command {
	return &cli.Command{
		Name:      "hud",
		Usage:     "Show or switch the on-page widget for a site",
		ArgsUsage: "<url|domain>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "enable", Usage: "Enable the widget for this site"},
			&cli.BoolFlag{Name: "disable", Usage: "Disable the widget for this site"},
			&cli.StringFlag{Name: "campaign", Aliases: []string{"c"}, Usage: "Campaign to show progress for"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return outputError(errors.NewInvalidRequest("a url or domain is required"))
			}
			domain := siteDomain(c.Args().First())

			if c.Bool("enable") && c.Bool("disable") {
				return outputError(errors.NewInvalidRequest("--enable and --disable are mutually exclusive"))
			}
			if c.Bool("enable") || c.Bool("disable") {
				if _, err := ops.SetHud(c.Context, svc.pipeline.Configs(), ops.SetHudInput{
					Domain:  domain,
					Enabled: c.Bool("enable"),
				}); err != nil {
					return outputError(err)
				}
			}

			state, err := hud.Load(c.Context, svc.pipeline.Configs(), domain)
			if err != nil {
				return outputError(err)
			}
			if id := c.String("campaign"); id != "" && !state.SelectCampaign(id) {
				return outputError(errors.NewNotFound(id))
			}
			stats, err := svc.pipeline.Stats().Today(c.Context, domain)
			if err != nil {
				return outputError(err)
			}
			state.ApplyStats(domain, stats)

			return outputJSON(map[string]any{
				"domain":             state.Domain,
				"enabled":            state.Enabled,
				"selectedCampaignId": state.SelectedCampaignID,
				"stats":              state.Stats,
				"progress":           state.Progress(),
				"statsLine":          state.StatsLine(),
			})
		},
	}
}

// testCmd creates the test command.
func testCmd(svc *services) *cli.Command {
	return &cli.Command{
		Name:  "test",
		Usage: "Send a test ping to the webhook (stored settings unless --webhook-url)",
		Flags: deliveryFlags(),
		Action: func(c *cli.Context) error {
			var input ops.TestWebhookInput
			if c.String("webhook-url") != "" {
				cfg, err := ops.ValidateDeliveryConfig(c.String("webhook-url"), c.String("auth-mode"), c.String("auth-token"), c.String("header-name"))
				if err != nil {
					return outputError(err)
				}
				input.Config = &cfg
			}
			output, err := svc.pipeline.TestWebhook(c.Context, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// menuCmd creates the menu command.
func menuCmd(svc *services) *cli.Command {
	return &cli.Command{
		Name:  "menu",
		Usage: "Print the context menu built from the stored campaigns",
		Action: func(c *cli.Context) error {
			rt := router.New(svc.pipeline)
			if err := rt.Start(c.Context); err != nil {
				return outputError(err)
			}
			defer rt.Stop()
			return outputJSON(rt.Menu())
		},
	}
}

// deliveriesCmd creates the deliveries command.
func deliveriesCmd(svc *services) *cli.Command {
	return &cli.Command{
		Name:      "deliveries",
		Usage:     "List the delivery log, or show one row by id",
		ArgsUsage: "[id]",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Max rows"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Rows to skip"},
			&cli.BoolFlag{Name: "failed", Usage: "Only failed attempts"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() > 0 {
				output, err := ops.GetDelivery(c.Context, svc.db, c.Args().First())
				if err != nil {
					return outputError(err)
				}
				return outputJSON(output)
			}

			output, err := ops.ListDeliveries(c.Context, svc.db, ops.ListDeliveriesInput{
				Limit:      c.Int("limit"),
				Offset:     c.Int("offset"),
				FailedOnly: c.Bool("failed"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// purgeCmd creates the purge command.
func purgeCmd(svc *services) *cli.Command {
	return &cli.Command{
		Name:  "purge",
		Usage: "Apply retention to stats days and the delivery log",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "keep-days", Usage: "Stats days to keep (default from config)"},
			&cli.StringFlag{Name: "older-than", Usage: "Drop delivery log rows older than duration (e.g., 7d)"},
		},
		Action: func(c *cli.Context) error {
			var input ops.PurgeInput
			if c.IsSet("keep-days") {
				days := c.Int("keep-days")
				if days < 0 {
					return outputError(errors.NewInvalidRequest("keep-days must be non-negative"))
				}
				input.StatsKeepDays = &days
			}
			if olderThan := c.String("older-than"); olderThan != "" {
				days, err := parseDuration(olderThan)
				if err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
				input.DeliveryOlderThanDays = &days
			}

			output, err := ops.Purge(c.Context, svc.db, svc.pipeline.Stats(), svc.cfg, svc.now(), input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// exportCmd creates the export command.
func exportCmd(svc *services) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export stats buckets to JSONL",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Output file (default ~/.painvault/exports/...)"},
			&cli.StringFlag{Name: "date", Aliases: []string{"d"}, Usage: "Only this day (YYYY-MM-DD)"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.ExportStats(c.Context, svc.db, svc.cfg, svc.now(), ops.ExportInput{
				Path: c.String("path"),
				Date: c.String("date"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(svc *services) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the extension bridge and dashboard",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Interface to listen on (default from config)"},
			&cli.IntFlag{Name: "port", Usage: "Port to listen on (default from config)"},
		},
		Action: func(c *cli.Context) error {
			bind := svc.cfg.Bind
			if c.String("bind") != "" {
				bind = c.String("bind")
			}
			port := svc.cfg.Port
			if c.Int("port") != 0 {
				port = c.Int("port")
			}

			rt := router.New(svc.pipeline, router.WithClock(svc.now))
			srv := web.NewServer(web.Deps{
				DB:       svc.db,
				Config:   svc.cfg,
				Pipeline: svc.pipeline,
				Router:   rt,
				Hub:      svc.hub,
				Logger:   log.L(),
				Now:      svc.now,
			}, Version, bind, port)

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := web.Run(ctx, srv, rt, log.L()); err != nil && !stderrors.Is(err, context.Canceled) {
				return cli.Exit(err.Error(), 1)
			}
			return nil
		},
	}
}

// deliveryFlags are the webhook settings accepted by settings set and test.
func deliveryFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "webhook-url", Usage: "n8n webhook URL"},
		&cli.StringFlag{Name: "auth-mode", Value: string(capture.AuthNone), Usage: "none|bearer|custom_header"},
		&cli.StringFlag{Name: "auth-token", Usage: "Bearer token or custom header value"},
		&cli.StringFlag{Name: "header-name", Usage: "Header name for custom_header auth"},
	}
}

// outputJSON writes v as indented JSON to stdout.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var vErr *errors.VaultError
	if stderrors.As(err, &vErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", vErr.Code, vErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all content from stdin.
func readStdin() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// parseCampaigns turns id=label pairs into campaigns. A bare id gets the id as label.
func parseCampaigns(args []string) []capture.Campaign {
	out := make([]capture.Campaign, 0, len(args))
	for _, arg := range args {
		id, label, _ := strings.Cut(arg, "=")
		out = append(out, capture.Campaign{ID: id, Label: label})
	}
	return capture.NormalizeCampaigns(out)
}

// siteDomain accepts a page URL or a bare domain.
func siteDomain(arg string) string {
	arg = strings.TrimSpace(arg)
	if strings.Contains(arg, "://") {
		return classify.Domain(arg)
	}
	return strings.ToLower(arg)
}

// parseDuration parses "7d" format to days.
func parseDuration(s string) (int, error) {
	if numStr, ok := strings.CutSuffix(s, "d"); ok {
		days, err := strconv.Atoi(numStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		if days < 0 {
			return 0, fmt.Errorf("duration must be non-negative")
		}
		return days, nil
	}
	return 0, fmt.Errorf("duration must end with 'd' (days), e.g., 7d")
}
