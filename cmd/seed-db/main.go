// Command seed-db loads demo products and users from JSON files and stores
// a peppered admin API key, creating the schema first when needed.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/merchkit/storefront/internal/domain/auth"
	"github.com/merchkit/storefront/internal/domain/product"
	"github.com/merchkit/storefront/internal/domain/user"
	"github.com/merchkit/storefront/internal/handler"
	"github.com/merchkit/storefront/internal/storage/postgres"
)

type productJSON struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Stock       int             `json:"stock"`
	Description string          `json:"description"`
	Features    []string        `json:"features"`
	Image       string          `json:"image"`
}

type userJSON struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

func main() {
	var (
		databaseURL  string
		productsFile string
		usersFile    string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&usersFile, "users-file", "db/seed/users.json", "path to users JSON file")
	flag.StringVar(&apiKey, "api-key", "", "admin API key to seed (or SHOP_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or SHOP_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("SHOP_SEED_API_KEY")
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("SHOP_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, usersFile, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, usersFile, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, postgres.NewProductRepository(pool), productsFile); err != nil {
		return err
	}
	if err := seedUsers(ctx, postgres.NewUserRepository(pool), usersFile); err != nil {
		return err
	}
	if apiKey != "" {
		if err := seedAPIKey(ctx, postgres.NewAPIKeyRepository(pool), apiKey, pepper); err != nil {
			return err
		}
	}
	return nil
}

func seedProducts(ctx context.Context, repo *postgres.ProductRepository, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read %s", path)
	}

	var rows []productJSON
	if err := json.Unmarshal(raw, &rows); err != nil {
		return errors.Wrap(err, "parse products")
	}

	for _, row := range rows {
		p := product.Product{
			ID:          row.ID,
			Name:        row.Name,
			Price:       row.Price,
			Category:    row.Category,
			Stock:       row.Stock,
			Description: row.Description,
			Features:    row.Features,
			ImageURL:    row.Image,
		}
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		if err := repo.Upsert(ctx, &p); err != nil {
			return err
		}
	}

	slog.Info("seeded products", slog.Int("count", len(rows)))
	return nil
}

func seedUsers(ctx context.Context, repo *postgres.UserRepository, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("no users file, skipping", slog.String("path", path))
			return nil
		}
		return errors.Wrapf(err, "read %s", path)
	}

	var rows []userJSON
	if err := json.Unmarshal(raw, &rows); err != nil {
		return errors.Wrap(err, "parse users")
	}

	for _, row := range rows {
		u := user.User{
			ID:        row.ID,
			FullName:  row.FullName,
			Email:     row.Email,
			Status:    "active",
			CreatedAt: time.Now().UTC(),
		}
		if u.ID == "" {
			u.ID = uuid.New().String()
		}
		if err := repo.Insert(ctx, &u); err != nil {
			return err
		}
	}

	slog.Info("seeded users", slog.Int("count", len(rows)))
	return nil
}

func seedAPIKey(ctx context.Context, repo *postgres.APIKeyRepository, apiKey, pepper string) error {
	k := auth.APIKey{
		ID:      uuid.New().String(),
		KeyHash: handler.HashAPIKey(apiKey, []byte(pepper)),
		Name:    "admin",
		Scopes:  []string{"admin"},
	}
	if err := repo.Upsert(ctx, &k); err != nil {
		return err
	}

	slog.Info("seeded admin api key")
	return nil
}
