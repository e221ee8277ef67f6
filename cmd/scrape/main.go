// Command scrape runs one cross-store search from the terminal.
//
// Usage:
//
//	scrape [--threshold 75] [--json] [--save] [query]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hunter-compare/pkg/config"
	"hunter-compare/pkg/jobs"
	"hunter-compare/pkg/logger"
	"hunter-compare/pkg/models"
	"hunter-compare/pkg/search"
	"hunter-compare/pkg/storage"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

const defaultQuery = "молоко"

type searcher interface {
	Search(ctx context.Context, query string) (*models.MatchResult, error)
}

// newSearcher is replaced in tests.
var newSearcher = func(cfg *config.Config) (searcher, error) {
	return search.FromConfig(cfg)
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCLI(os.Stdout).RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newCLI(out io.Writer) *cli.App {
	return &cli.App{
		Name:      "scrape",
		Usage:     "Compare Pyaterochka and Magnit prices for a search query",
		ArgsUsage: "[query]",
		Writer:    out,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "threshold",
				Aliases: []string{"t"},
				Usage:   "Minimum name similarity (0-100) for a pair, defaults to MATCH_THRESHOLD",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the full match result as JSON",
			},
			&cli.BoolFlag{
				Name:  "save",
				Usage: "Store the result in the configured database",
			},
		},
		Action: scrapeAction,
	}
}

func scrapeAction(c *cli.Context) error {
	query := defaultQuery
	if c.Args().Present() {
		query = c.Args().First()
	}
	if !jobs.QueryAllowed(query) {
		return fmt.Errorf("%q: %w", query, models.ErrQueryTooShort)
	}

	cfg := config.Load()
	if c.IsSet("threshold") {
		cfg.MatchThreshold = c.Int("threshold")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger.Init(cfg.LogLevel, cfg.Environment)

	s, err := newSearcher(cfg)
	if err != nil {
		return err
	}
	result, err := s.Search(c.Context, query)
	if err != nil {
		return err
	}

	if c.Bool("save") {
		if err := save(c.Context, cfg, jobs.NormalizeQuery(query), result, c.App.Writer); err != nil {
			return err
		}
	}

	if c.Bool("json") {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	printResult(c.App.Writer, result)
	return nil
}

func printResult(w io.Writer, result *models.MatchResult) {
	for _, p := range result.Pairs {
		fmt.Fprintf(w, "%3d%%  %s (%s) <-> %s (%s)  cheaper: %s\n",
			p.Similarity,
			p.A.Name, models.FormatPrice(p.A.Price),
			p.B.Name, models.FormatPrice(p.B.Price),
			p.Cheaper())
	}
	fmt.Fprintf(w, "Found %d pairs (%d only in %s, %d only in %s)\n",
		len(result.Pairs),
		len(result.SinglesA), models.SourcePyaterochka,
		len(result.SinglesB), models.SourceMagnit)
}

// save writes the result like a scheduled job would, holding the category
// claim for the duration.
func save(ctx context.Context, cfg *config.Config, name string, result *models.MatchResult, w io.Writer) error {
	store, err := storage.Open(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer store.Close()

	category, _, err := store.GetOrCreateCategory(ctx, name)
	if err != nil {
		return err
	}
	claimed, err := store.ClaimCategory(ctx, category.ID)
	if err != nil {
		return err
	}
	if !claimed {
		return fmt.Errorf("category %q is being scraped by another process", name)
	}

	stats, saveErr := store.SaveResult(ctx, category.ID, result)
	var finished *time.Time
	if saveErr == nil {
		now := time.Now().UTC()
		finished = &now
	}
	if err := store.SetCategoryStatus(context.WithoutCancel(ctx), category.ID, false, finished); err != nil {
		return errors.Join(saveErr, err)
	}
	if saveErr != nil {
		return saveErr
	}

	fmt.Fprintf(w, "Saved %q: %d created, %d price changes, %d unchanged, %d failed\n",
		name, stats.Created, stats.PriceChanged, stats.Unchanged, stats.Failed)
	return nil
}
