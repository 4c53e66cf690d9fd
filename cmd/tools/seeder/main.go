package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-parfum/internal/auth"
	"github.com/noah-isme/backend-parfum/internal/config"
	"github.com/noah-isme/backend-parfum/internal/db"
	"github.com/noah-isme/backend-parfum/internal/obs"
	"github.com/noah-isme/backend-parfum/internal/settings"
)

type seedProduct struct {
	Category      string
	Name          string
	Slug          string
	Brand         string
	Description   string
	Price         float64
	OriginalPrice float64
	SizeML        int32
	Concentration string
	Stock         int32
}

var categories = []db.CreateCategoryParams{
	{Name: "Eau de Parfum", Slug: "eau-de-parfum", SortOrder: 1},
	{Name: "Eau de Toilette", Slug: "eau-de-toilette", SortOrder: 2},
	{Name: "Attar", Slug: "attar", SortOrder: 3},
	{Name: "Gift Sets", Slug: "gift-sets", SortOrder: 4},
}

var products = []seedProduct{
	{"eau-de-parfum", "Oud Noir", "oud-noir", "Maison Parfum", "Smoky oud over leather and saffron.", 2499, 2999, 100, "EDP", 40},
	{"eau-de-parfum", "Rose Absolue", "rose-absolue", "Maison Parfum", "Damask rose with pink pepper.", 1899, 0, 50, "EDP", 60},
	{"eau-de-parfum", "Amber Dusk", "amber-dusk", "Atelier Nine", "Warm amber, vanilla and tonka.", 2199, 2499, 100, "EDP", 25},
	{"eau-de-toilette", "Citrus Monsoon", "citrus-monsoon", "Atelier Nine", "Bergamot and vetiver after rain.", 1299, 0, 100, "EDT", 80},
	{"eau-de-toilette", "Marine Drift", "marine-drift", "Coastline", "Sea salt, sage and driftwood.", 999, 1199, 75, "EDT", 120},
	{"attar", "Mitti Attar", "mitti-attar", "Kannauj House", "Petrichor distilled over sandalwood.", 799, 0, 12, "Attar", 50},
	{"attar", "Shamama", "shamama", "Kannauj House", "Herbal resinous blend aged in leather.", 1499, 0, 12, "Attar", 15},
	{"gift-sets", "Discovery Set", "discovery-set", "Maison Parfum", "Five 10 ml vials of the house line.", 1799, 1999, 50, "EDP", 30},
}

func main() {
	adminEmail := flag.String("admin-email", envOr("SEED_ADMIN_EMAIL", "admin@parfum.local"), "admin account email")
	adminPassword := flag.String("admin-password", envOr("SEED_ADMIN_PASSWORD", "ChangeMe123!"), "admin account password")
	migrate := flag.Bool("migrate", true, "apply migrations before seeding")
	flag.Parse()

	logger := obs.NewLogger("console", "info").With().Str("component", "seeder").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	if *migrate {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("apply migrations")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()
	queries := db.New(pool)

	if err := seedAdmin(ctx, queries, *adminEmail, *adminPassword, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed admin")
	}
	categoryIDs, err := seedCategories(ctx, queries, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed categories")
	}
	if err := seedProducts(ctx, queries, categoryIDs, cfg.DefaultGSTPercentage, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed products")
	}
	if err := seedSettings(ctx, queries); err != nil {
		logger.Fatal().Err(err).Msg("seed settings")
	}
	logger.Info().Msg("seeding completed")
}

func seedAdmin(ctx context.Context, q *db.Queries, email, password string, logger zerolog.Logger) error {
	if _, err := q.GetUserByEmail(ctx, email); err == nil {
		logger.Info().Str("email", email).Msg("admin exists")
		return nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	if _, err := q.CreateUser(ctx, db.CreateUserParams{
		Name:         "Store Admin",
		Email:        email,
		PasswordHash: hash,
		Roles:        []string{auth.RoleCustomer, auth.RoleAdmin},
	}); err != nil {
		return err
	}
	logger.Info().Str("email", email).Msg("admin created")
	return nil
}

func seedCategories(ctx context.Context, q *db.Queries, logger zerolog.Logger) (map[string]pgtype.UUID, error) {
	ids := make(map[string]pgtype.UUID, len(categories))
	for _, c := range categories {
		existing, err := q.GetCategoryBySlug(ctx, c.Slug)
		switch {
		case err == nil:
			ids[c.Slug] = existing.ID
			continue
		case !errors.Is(err, pgx.ErrNoRows):
			return nil, err
		}
		created, err := q.CreateCategory(ctx, c)
		if err != nil {
			return nil, err
		}
		ids[c.Slug] = created.ID
		logger.Info().Str("slug", c.Slug).Msg("category created")
	}
	return ids, nil
}

func seedProducts(ctx context.Context, q *db.Queries, categoryIDs map[string]pgtype.UUID, gst float64, logger zerolog.Logger) error {
	for _, p := range products {
		if _, err := q.GetProductBySlug(ctx, p.Slug); err == nil {
			continue
		} else if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		params := db.CreateProductParams{
			CategoryID:          categoryIDs[p.Category],
			Name:                p.Name,
			Slug:                p.Slug,
			Brand:               p.Brand,
			Description:         pgtype.Text{String: p.Description, Valid: true},
			Price:               p.Price,
			GstPercentage:       pgtype.Float8{Float64: gst, Valid: true},
			PriceInclusiveOfTax: pgtype.Bool{Bool: true, Valid: true},
			HsnCode:             pgtype.Text{String: "33030010", Valid: true},
			Stock:               p.Stock,
			SizeMl:              pgtype.Int4{Int32: p.SizeML, Valid: true},
			Concentration:       pgtype.Text{String: p.Concentration, Valid: true},
			Images:              []string{"/images/" + p.Slug + ".jpg"},
			IsActive:            true,
		}
		if p.OriginalPrice > 0 {
			params.OriginalPrice = pgtype.Float8{Float64: p.OriginalPrice, Valid: true}
		}
		if _, err := q.CreateProduct(ctx, params); err != nil {
			return err
		}
		logger.Info().Str("slug", p.Slug).Msg("product created")
	}
	return nil
}

func seedSettings(ctx context.Context, q *db.Queries) error {
	svc := &settings.Service{Queries: q}
	site, err := svc.Get(ctx)
	if err != nil {
		return err
	}
	if site.Business.Address == "" {
		site.Business.Address = "12 Perfume Lane, Mumbai"
	}
	_, err = svc.Update(ctx, site)
	return err
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
