package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/regaloshop/internal/pkg/config"
	"github.com/jcmexdev/regaloshop/internal/pkg/telemetry"
	"github.com/jcmexdev/regaloshop/internal/storefront/core/domain/entity"
	"github.com/jcmexdev/regaloshop/internal/storefront/infra/adapters/storage"
)

// seedProduct is the JSON shape of one catalog entry in the seed file.
type seedProduct struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Image       string          `json:"image"`
	Tags        []string        `json:"tags"`
}

func main() {
	file := flag.String("file", "data/products.json", "JSON array of products to upsert")
	flag.Parse()

	cfg, err := config.Load(os.Getenv("STOREFRONT_CONFIG"))
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	telemetry.InitLogger(cfg.Telemetry.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := seed(ctx, cfg.Store, *file)
	if err != nil {
		slog.Error("seed failed", "file", *file, "error", err)
		os.Exit(1)
	}
	slog.Info("catalog seeded", "products", n, "driver", cfg.Store.Driver)
}

func seed(ctx context.Context, storeCfg config.StoreConfig, path string) (int, error) {
	products, err := readProducts(path)
	if err != nil {
		return 0, err
	}

	store, err := storage.Open(ctx, storeCfg)
	if err != nil {
		return 0, err
	}
	defer store.Close()

	if err := store.UpsertProducts(ctx, products); err != nil {
		return 0, err
	}
	return len(products), nil
}

func readProducts(path string) ([]entity.Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var raw []seedProduct
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	products := make([]entity.Product, 0, len(raw))
	for i, p := range raw {
		if p.ID == "" || p.Name == "" {
			return nil, fmt.Errorf("product #%d: id and name are required", i)
		}
		if p.Stock < 0 || p.Price.IsNegative() {
			return nil, fmt.Errorf("product %s: price and stock must not be negative", p.ID)
		}
		products = append(products, entity.Product{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Category:    p.Category,
			Price:       p.Price,
			Stock:       p.Stock,
			Image:       p.Image,
			Tags:        p.Tags,
		})
	}
	return products, nil
}
