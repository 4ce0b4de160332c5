package main

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/urfave/cli/v2"

	"github.com/deskforge/deskcfg/internal/articles"
	"github.com/deskforge/deskcfg/internal/db"
	"github.com/deskforge/deskcfg/internal/errors"
	"github.com/deskforge/deskcfg/internal/layers"
	"github.com/deskforge/deskcfg/internal/ops"
	"github.com/deskforge/deskcfg/internal/preview"
	"github.com/deskforge/deskcfg/internal/web"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(env *appEnv) *cli.App {
	app := &cli.App{
		Name:    "deskcfg",
		Usage:   "AST31 desk configurator",
		Version: Version,
		Commands: []*cli.Command{
			configureCmd(env),
			editCmd(env),
			encodeCmd(env),
			decodeCmd(env),
			layersCmd(env),
			articlesCmd(env),
			renderCmd(env),
			quoteCmd(env),
			cartCmd(env),
			schemaCmd(env),
			catalogCmd(env),
			serveCmd(env),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

func setFlag() cli.Flag {
	return &cli.StringSliceFlag{Name: "set", Aliases: []string{"s"}, Usage: "Field value as field=value (repeatable)"}
}

func qtyFlag() cli.Flag {
	return &cli.IntFlag{Name: "qty", Aliases: []string{"q"}, Usage: "Number of tables (1-99)"}
}

// configureCmd creates the configure command.
func configureCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "configure",
		Usage:     "Show the full configuration of a share token",
		ArgsUsage: "[token]",
		Flags:     []cli.Flag{setFlag(), qtyFlag()},
		Action: func(c *cli.Context) error {
			cfg, err := configure(c, env)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, cfg)
		},
	}
}

// configure runs Configure with the token argument and the --set/--qty flags.
func configure(c *cli.Context, env *appEnv) (*ops.ConfigureOutput, error) {
	values, err := parseSet(c.StringSlice("set"))
	if err != nil {
		return nil, err
	}
	p, err := env.Pipeline(c.Context)
	if err != nil {
		return nil, err
	}
	return ops.Configure(c.Context, p, ops.ConfigureInput{
		Token:         c.Args().First(),
		Values:        values,
		TableQuantity: c.Int("qty"),
	})
}

// editCmd creates the edit command.
func editCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "edit",
		Usage:     "Change one field of a configuration",
		ArgsUsage: "[token]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "field", Aliases: []string{"f"}, Required: true, Usage: "Field id"},
			&cli.StringFlag{Name: "value", Required: true, Usage: "Option id"},
			&cli.BoolFlag{Name: "confirm", Aliases: []string{"y"}, Usage: "Commit even if other fields change"},
			qtyFlag(),
		},
		Action: func(c *cli.Context) error {
			p, err := env.Pipeline(c.Context)
			if err != nil {
				return outputError(err)
			}
			output, err := ops.Edit(c.Context, p, ops.EditInput{
				Token:         c.Args().First(),
				Field:         c.String("field"),
				Value:         c.String("value"),
				Confirm:       c.Bool("confirm"),
				TableQuantity: c.Int("qty"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// encodeCmd creates the encode command.
func encodeCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "encode",
		Usage: "Render the share token of field values",
		Flags: []cli.Flag{
			setFlag(),
			qtyFlag(),
			&cli.BoolFlag{Name: "legacy", Usage: "Write the old compressed format"},
		},
		Action: func(c *cli.Context) error {
			values, err := parseSet(c.StringSlice("set"))
			if err != nil {
				return outputError(err)
			}
			p, err := env.Pipeline(c.Context)
			if err != nil {
				return outputError(err)
			}
			output, err := ops.Encode(c.Context, p, ops.EncodeInput{
				Values:        values,
				TableQuantity: c.Int("qty"),
				Legacy:        c.Bool("legacy"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// decodeCmd creates the decode command.
func decodeCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "decode",
		Usage:     "Read a share token in the current or legacy format",
		ArgsUsage: "<token>",
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return outputError(errors.NewInvalidRequest("token argument is required"))
			}
			p, err := env.Pipeline(c.Context)
			if err != nil {
				return outputError(err)
			}
			output, err := ops.Decode(c.Context, p, ops.DecodeInput{Token: c.Args().First()})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// layersCmd creates the layers command.
func layersCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "layers",
		Usage:     "List the preview layers of a configuration",
		ArgsUsage: "[token]",
		Flags: []cli.Flag{
			setFlag(),
			&cli.BoolFlag{Name: "all", Aliases: []string{"a"}, Usage: "Include hidden layers"},
			&cli.BoolFlag{Name: "json", Usage: "Output JSON"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := configure(c, env)
			if err != nil {
				return outputError(err)
			}
			results := cfg.Layers
			if !c.Bool("all") {
				results = layers.Visible(results)
			}
			if c.Bool("json") {
				return outputJSON(c.App.Writer, results)
			}
			return layerTable(c.App.Writer, results)
		},
	}
}

// articlesCmd creates the articles command.
func articlesCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "articles",
		Usage:     "List the orderable articles of a configuration",
		ArgsUsage: "[token]",
		Flags: []cli.Flag{
			setFlag(),
			qtyFlag(),
			&cli.BoolFlag{Name: "json", Usage: "Output JSON"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := configure(c, env)
			if err != nil {
				return outputError(err)
			}
			if c.Bool("json") {
				return outputJSON(c.App.Writer, cfg.Summary)
			}
			return articleTable(c.App.Writer, cfg.Summary)
		},
	}
}

// renderCmd creates the render command.
func renderCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "render",
		Usage:     "Write the composite SVG preview",
		ArgsUsage: "[token]",
		Flags: []cli.Flag{
			setFlag(),
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output file (default: stdout)"},
			&cli.StringFlag{Name: "image-prefix", Value: "/", Usage: "Prefix for layer image paths"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := configure(c, env)
			if err != nil {
				return outputError(err)
			}
			p, _ := env.Pipeline(c.Context)
			data := preview.Bytes(p.Schema.Stage, cfg.Layers, preview.Options{ImagePrefix: c.String("image-prefix")})

			if out := c.String("out"); out != "" {
				if err := os.WriteFile(out, data, 0644); err != nil {
					return outputError(errors.NewInternal(err))
				}
				env.logger.Info("preview written", "path", out, "bytes", len(data))
				return nil
			}
			_, err = c.App.Writer.Write(data)
			return err
		},
	}
}

// quoteCmd creates the quote command.
func quoteCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "quote",
		Usage:     "Prepare a quote request (nothing is sent)",
		ArgsUsage: "[token]",
		Flags: []cli.Flag{
			qtyFlag(),
			&cli.StringFlag{Name: "name", Usage: "Contact name"},
			&cli.StringFlag{Name: "email", Usage: "Reply address"},
			&cli.StringFlag{Name: "company", Usage: "Company"},
			&cli.StringFlag{Name: "message", Aliases: []string{"m"}, Usage: "Free text"},
			&cli.StringFlag{Name: "format", Value: "text", Usage: "Output format: text|markdown|html|mailto|json"},
		},
		Action: func(c *cli.Context) error {
			p, err := env.Pipeline(c.Context)
			if err != nil {
				return outputError(err)
			}
			output, err := ops.Quote(c.Context, p, ops.QuoteInput{
				Token:         c.Args().First(),
				TableQuantity: c.Int("qty"),
				Name:          c.String("name"),
				Email:         c.String("email"),
				Company:       c.String("company"),
				Message:       c.String("message"),
			})
			if err != nil {
				return outputError(err)
			}

			w := c.App.Writer
			switch c.String("format") {
			case "text":
				fmt.Fprintf(w, "An: %s\nBetreff: %s\n\n%s", output.Recipient, output.Subject, output.PlainText)
			case "markdown":
				fmt.Fprint(w, output.Markdown)
			case "html":
				fmt.Fprint(w, output.HTML)
			case "mailto":
				fmt.Fprintln(w, output.MailTo)
			case "json":
				return outputJSON(w, output)
			default:
				return outputError(errors.NewInvalidRequest("unknown format: " + c.String("format")))
			}
			return nil
		},
	}
}

// cartCmd creates the cart command.
func cartCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "cart",
		Usage:     "Show the order cart form of a configuration",
		ArgsUsage: "[token]",
		Flags:     []cli.Flag{qtyFlag()},
		Action: func(c *cli.Context) error {
			p, err := env.Pipeline(c.Context)
			if err != nil {
				return outputError(err)
			}
			output, err := ops.Cart(c.Context, p, ops.CartInput{
				Token:         c.Args().First(),
				TableQuantity: c.Int("qty"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// schemaCmd creates the schema command.
func schemaCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "schema",
		Usage: "Describe the configurable fields and options",
		Action: func(c *cli.Context) error {
			p, err := env.Pipeline(c.Context)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, ops.Describe(p))
		},
	}
}

// catalogCmd creates the catalog command group.
func catalogCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "catalog",
		Usage: "Manage the article table",
		Subcommands: []*cli.Command{
			{
				Name:      "import",
				Usage:     "Replace the stored article table with an XML export",
				ArgsUsage: "<path>",
				Action: func(c *cli.Context) error {
					output, err := ops.ImportCatalog(c.Context, env.db, env.logger, ops.ImportCatalogInput{
						Path: c.Args().First(),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, output)
				},
			},
			{
				Name:  "status",
				Usage: "Show where articles are loaded from",
				Action: func(c *cli.Context) error {
					_, source, err := ops.LoadCatalog(c.Context, env.db, env.cfg, env.logger)
					if err != nil {
						return outputError(err)
					}
					status := map[string]any{"source": source}
					if n, err := db.CountArticles(c.Context, env.db); err == nil {
						status["stored_articles"] = n
					}
					if last, err := db.LastImport(c.Context, env.db); err == nil {
						status["last_import"] = last
					} else if !errors.Is(err, errors.ErrNotFound) {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, status)
				},
			},
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the configurator web page",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Address to bind (default from config)"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Port (default from config)"},
		},
		Action: func(c *cli.Context) error {
			cfg := *env.cfg
			if bind := c.String("bind"); bind != "" {
				cfg.Bind = bind
			}
			if port := c.Int("port"); port != 0 {
				cfg.Port = port
			}

			p, err := env.Pipeline(c.Context)
			if err != nil {
				return outputError(err)
			}
			srv, err := web.NewServer(p, &cfg, Version, env.logger)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			return web.Run(srv, env.logger)
		},
	}
}

// Helper functions

// outputJSON marshals v to w as indented JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var dErr *errors.DeskError
	if stderrors.As(err, &dErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", dErr.Code, dErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// parseSet splits field=value pairs. Later pairs win.
func parseSet(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	values := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		field, value, ok := strings.Cut(pair, "=")
		field = strings.TrimSpace(field)
		if !ok || field == "" {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("expected field=value, got %q", pair))
		}
		values[field] = strings.TrimSpace(value)
	}
	return values, nil
}

// articleTable prints the article list with its total.
func articleTable(w io.Writer, s articles.Summary) error {
	r := lipgloss.NewRenderer(w)
	header := r.NewStyle().Bold(true).Padding(0, 1)
	cell := r.NewStyle().Padding(0, 1)
	right := cell.Align(lipgloss.Right)

	rows := make([][]string, 0, len(s.Items))
	for _, it := range s.Items {
		rows = append(rows, []string{it.Code, it.Label, strconv.Itoa(it.Quantity), articles.PriceLabel(it.UnitPrice)})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(r.NewStyle().Foreground(lipgloss.Color("8"))).
		Headers("Artikel", "Bezeichnung", "Menge", "Einzelpreis").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return header
			case col >= 2:
				return right
			default:
				return cell
			}
		})

	if _, err := fmt.Fprintln(w, t.Render()); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Anzahl Tische: %d\nGesamt: %s\n", s.TableQuantity, s.TotalLabel())
	return err
}

// layerTable prints layer images and placements.
func layerTable(w io.Writer, results []layers.Result) error {
	r := lipgloss.NewRenderer(w)
	header := r.NewStyle().Bold(true).Padding(0, 1)
	cell := r.NewStyle().Padding(0, 1)
	hidden := cell.Foreground(lipgloss.Color("8"))

	rows := make([][]string, 0, len(results))
	for _, res := range results {
		placement := "-"
		if res.Placement != nil {
			placement = preview.Transform(*res.Placement)
		}
		image := res.Image
		if res.Missing != "" {
			image = "(" + res.Missing + ")"
		}
		rows = append(rows, []string{res.ID, image, placement})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(r.NewStyle().Foreground(lipgloss.Color("8"))).
		Headers("Ebene", "Bild", "Platzierung").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			if row >= 0 && row < len(results) && !results[row].Visible {
				return hidden
			}
			return cell
		})

	_, err := fmt.Fprintln(w, t.Render())
	return err
}
