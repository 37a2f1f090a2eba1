package main

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/Ayash-Bera/deathstroke/internal/app"
	"github.com/Ayash-Bera/deathstroke/internal/config"
	"github.com/Ayash-Bera/deathstroke/internal/models"
	"github.com/Ayash-Bera/deathstroke/pkg/utils"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	_ = godotenv.Load()

	if err := newCLI().Run(os.Args); err != nil {
		utils.GetLogger().WithError(err).Fatal("Command failed")
	}
}

var errFeedbackInMemory = errors.New("feedback is only kept in postgres; drop --memory")

func newCLI() *cli.App {
	return &cli.App{
		Name:  "deathstroke",
		Usage: "Search the web with cached, LLM-reranked results",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
				Value:   "warn",
			},
			&cli.BoolFlag{
				Name:  "memory",
				Usage: "Keep results in memory instead of postgres and redis",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "search",
				Usage:     "Run a search and print the ranked results",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "locale",
						Usage: "Two-letter country code to restrict results to",
					},
					&cli.StringFlag{
						Name:  "format",
						Usage: "Output format (table, json, csv)",
						Value: "table",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of results to print, 0 for all",
						Value: 10,
					},
				},
			},
			{
				Name:      "feedback",
				Usage:     "Mark a result as relevant for a query",
				ArgsUsage: "<query> <link>",
				Action:    feedbackCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "locale",
						Usage: "Locale the query was searched with",
					},
				},
			},
			{
				Name:   "migrate",
				Usage:  "Create or update the database schema",
				Action: migrateCommand,
			},
		},
	}
}

func setupLogger(c *cli.Context) error {
	utils.InitLogger(c.String("log-level"))
	utils.Logger.SetOutput(c.App.ErrWriter)
	return nil
}

func withApp(c *cli.Context, fn func(*app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	a, err := app.New(cfg, utils.GetLogger(), app.Options{Memory: c.Bool("memory")})
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(a)
}

func searchCommand(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return errors.New("a search query is required")
	}

	format := c.String("format")
	switch format {
	case "table", "json", "csv":
	default:
		return fmt.Errorf("unknown format %q", format)
	}

	return withApp(c, func(a *app.App) error {
		if err := a.Config.ValidateSearch(); err != nil {
			return err
		}

		results := a.Search.Search(c.Context, query, c.String("locale"))
		if limit := c.Int("limit"); limit > 0 && len(results) > limit {
			results = results[:limit]
		}

		switch format {
		case "json":
			return writeJSON(c.App.Writer, results)
		case "csv":
			return writeCSV(c.App.Writer, results)
		}
		return writeTable(c.App.Writer, results)
	})
}

func feedbackCommand(c *cli.Context) error {
	if c.NArg() != 2 {
		return errors.New("feedback needs a query and a link")
	}
	if c.Bool("memory") {
		return errFeedbackInMemory
	}
	query, link := c.Args().Get(0), c.Args().Get(1)
	locale := c.String("locale")

	return withApp(c, func(a *app.App) error {
		if err := a.Search.MarkRelevant(c.Context, query, locale, link); err != nil {
			return err
		}
		totals, err := a.Search.RelevanceTotals(c.Context, query, locale)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "Recorded relevance feedback for %s (total %.0f)\n", link, totals[link])
		return nil
	})
}

func migrateCommand(c *cli.Context) error {
	return withApp(c, func(a *app.App) error {
		if err := a.Migrate(); err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, "Migrations applied")
		return nil
	})
}

func writeJSON(w io.Writer, results []models.SearchResult) error {
	for i := range results {
		results[i].HTML = ""
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

// writeCSV exports results with a ResultColumns header row.
func writeCSV(w io.Writer, results []models.SearchResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(models.ResultColumns); err != nil {
		return err
	}
	for _, r := range results {
		if err := cw.Write(models.NewResultRow(r).Record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeTable(w io.Writer, results []models.SearchResult) error {
	if len(results) == 0 {
		_, err := fmt.Fprintln(w, "No results found")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tSCORE\tTITLE\tLINK")
	for _, r := range results {
		score := "-"
		if r.Enhanced() {
			score = fmt.Sprintf("%.1f", r.Score())
		}
		fmt.Fprintf(tw, "%.2f\t%s\t%s\t%s\n", r.Rank, score, shorten(r.Title, 60), r.Link)
	}
	return tw.Flush()
}

func shorten(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}
