// Package reports aggregates paid orders into admin sales summaries.
package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-parfum/internal/common"
	"github.com/noah-isme/backend-parfum/internal/db"
)

// Querier defines the database access required for reports.
type Querier interface {
	SalesSummary(ctx context.Context, arg db.SalesSummaryParams) (db.SalesSummaryRow, error)
	TopProducts(ctx context.Context, arg db.TopProductsParams) ([]db.TopProductsRow, error)
}

// TopProduct is a best seller within the range.
type TopProduct struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Units     int64   `json:"units"`
	Revenue   float64 `json:"revenue"`
}

// Sales is the summary for [From, To). Cancelled orders are excluded.
type Sales struct {
	From              time.Time    `json:"from"`
	To                time.Time    `json:"to"`
	Orders            int64        `json:"orders"`
	Revenue           float64      `json:"revenue"`
	TaxableValue      float64      `json:"taxableValue"`
	TotalTax          float64      `json:"totalTax"`
	CGST              float64      `json:"cgst"`
	SGST              float64      `json:"sgst"`
	IGST              float64      `json:"igst"`
	Shipping          float64      `json:"shipping"`
	Discount          float64      `json:"discount"`
	AverageOrderValue float64      `json:"averageOrderValue"`
	TopProducts       []TopProduct `json:"topProducts"`
}

// Service provides cached sales reports.
type Service struct {
	Q            Querier
	R            *redis.Client
	TTL          time.Duration
	DefaultRange int
	TopLimit     int
	Now          func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) topLimit() int32 {
	if s.TopLimit <= 0 {
		return 5
	}
	return int32(s.TopLimit)
}

func cacheKey(parts ...any) string {
	formatted := make([]string, 0, len(parts))
	for _, part := range parts {
		formatted = append(formatted, fmt.Sprint(part))
	}
	return strings.Join(formatted, ":")
}

func round2(v float64) float64 {
	return money(decimal.NewFromFloat(v))
}

func money(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}

// SalesRange summarizes orders created in [from, to).
func (s *Service) SalesRange(ctx context.Context, from, to time.Time) (Sales, error) {
	if s == nil || s.Q == nil {
		return Sales{}, fmt.Errorf("reports service not configured")
	}
	if !from.Before(to) {
		return Sales{}, fmt.Errorf("from must be before to: %w", common.ErrInvalidInput)
	}
	key := cacheKey("rp", "sales", from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339), s.topLimit())
	if cached, ok := s.fromCache(ctx, key); ok {
		return cached, nil
	}
	bounds := db.SalesSummaryParams{
		From: pgtype.Timestamptz{Time: from, Valid: true},
		To:   pgtype.Timestamptz{Time: to, Valid: true},
	}
	row, err := s.Q.SalesSummary(ctx, bounds)
	if err != nil {
		return Sales{}, fmt.Errorf("sales summary: %w", err)
	}
	top, err := s.Q.TopProducts(ctx, db.TopProductsParams{From: bounds.From, To: bounds.To, Limit: s.topLimit()})
	if err != nil {
		return Sales{}, fmt.Errorf("top products: %w", err)
	}

	out := Sales{
		From:         from,
		To:           to,
		Orders:       row.Orders,
		Revenue:      round2(row.Revenue),
		TaxableValue: round2(row.Taxable),
		TotalTax:     round2(row.TotalTax),
		CGST:         round2(row.Cgst),
		SGST:         round2(row.Sgst),
		IGST:         round2(row.Igst),
		Shipping:     round2(row.Shipping),
		Discount:     round2(row.Discount),
		TopProducts:  make([]TopProduct, 0, len(top)),
	}
	if row.Orders > 0 {
		out.AverageOrderValue = money(decimal.NewFromFloat(row.Revenue).Div(decimal.NewFromInt(row.Orders)))
	}
	for _, p := range top {
		out.TopProducts = append(out.TopProducts, TopProduct{
			ProductID: common.UUIDString(p.ProductID),
			Name:      p.ProductName,
			Units:     p.Units,
			Revenue:   round2(p.Revenue),
		})
	}
	s.store(ctx, key, out)
	return out, nil
}

func (s *Service) fromCache(ctx context.Context, key string) (Sales, bool) {
	if s.R == nil || s.TTL <= 0 {
		return Sales{}, false
	}
	data, err := s.R.Get(ctx, key).Bytes()
	if err != nil {
		return Sales{}, false
	}
	var out Sales
	if err := json.Unmarshal(data, &out); err != nil {
		return Sales{}, false
	}
	return out, true
}

func (s *Service) store(ctx context.Context, key string, value any) {
	if s.R == nil || s.TTL <= 0 {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = s.R.Set(ctx, key, data, s.TTL).Err()
}
