// Command catalog-ingest bulk-loads gzipped NDJSON product feeds into the
// catalog. Feed files are parsed concurrently; a Bloom filter screens
// duplicate SKUs across files so only the first occurrence wins, without
// holding every seen SKU in memory.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/merchkit/storefront/internal/domain/product"
	"github.com/merchkit/storefront/internal/storage/postgres"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	progressEvery = 100_000
)

type feedRow struct {
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Stock       int             `json:"stock"`
	Description string          `json:"description"`
	Features    []string        `json:"features"`
	Image       string          `json:"image"`
}

func main() {
	var (
		feedDir     string
		databaseURL string
	)

	flag.StringVar(&feedDir, "feed-dir", "data", "directory containing *.ndjson.gz product feeds")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, feedDir, databaseURL); err != nil {
		slog.Error("catalog ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog ingest completed successfully")
}

func run(ctx context.Context, feedDir, databaseURL string) error {
	files, err := filepath.Glob(filepath.Join(feedDir, "*.ndjson.gz"))
	if err != nil {
		return errors.Wrap(err, "glob feed files")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.ndjson.gz files in %s", feedDir)
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}
	repo := postgres.NewProductRepository(pool)

	// The Bloom filter and its guard are shared across file workers. A
	// positive TestAndAdd may be a false positive, so a duplicate hit only
	// skips the row, never fails the ingest.
	var (
		mu   sync.Mutex
		seen = bloom.NewWithEstimates(bloomCapacity, bloomFPR)
	)

	var (
		total   int64
		skipped int64
	)

	g, ctx := errgroup.WithContext(ctx)
	for _, file := range files {
		g.Go(func() error {
			n, s, err := ingestFile(ctx, repo, file, func(sku string) bool {
				mu.Lock()
				defer mu.Unlock()
				return seen.TestAndAddString(sku)
			})
			if err != nil {
				return errors.Wrapf(err, "ingest %s", file)
			}

			mu.Lock()
			total += n
			skipped += s
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("ingest finished",
		slog.Int64("loaded", total),
		slog.Int64("skipped", skipped),
	)
	return nil
}

// ingestFile streams one gzipped NDJSON feed, skipping rows that fail
// validation or whose SKU was already seen. seenSKU reports whether the SKU
// was seen before while recording it.
func ingestFile(ctx context.Context, repo *postgres.ProductRepository, path string, seenSKU func(string) bool) (loaded, skipped int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, errors.Wrap(err, "open")
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return 0, 0, errors.Wrap(err, "gzip reader")
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<20)

	var line int64
	for scanner.Scan() {
		line++
		if line%progressEvery == 0 {
			slog.Info("progress", slog.String("file", filepath.Base(path)), slog.Int64("lines", line))
		}
		if err := ctx.Err(); err != nil {
			return loaded, skipped, err
		}

		var row feedRow
		if err := json.Unmarshal(scanner.Bytes(), &row); err != nil {
			slog.Warn("malformed feed row", slog.String("file", filepath.Base(path)), slog.Int64("line", line))
			skipped++
			continue
		}

		if !validRow(row) || seenSKU(row.SKU) {
			skipped++
			continue
		}

		p := product.Product{
			ID:          row.SKU,
			Name:        row.Name,
			Price:       row.Price,
			Category:    row.Category,
			Stock:       row.Stock,
			Description: row.Description,
			Features:    row.Features,
			ImageURL:    row.Image,
		}
		if err := repo.Upsert(ctx, &p); err != nil {
			return loaded, skipped, err
		}
		loaded++
	}
	if err := scanner.Err(); err != nil {
		return loaded, skipped, errors.Wrap(err, "scan")
	}

	return loaded, skipped, nil
}

func validRow(row feedRow) bool {
	return row.SKU != "" &&
		row.Name != "" &&
		row.Category != "" &&
		!row.Price.IsNegative() &&
		row.Stock >= 0
}
