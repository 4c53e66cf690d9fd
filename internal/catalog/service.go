package catalog

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-parfum/internal/common"
	"github.com/noah-isme/backend-parfum/internal/db"
)

type queryProvider interface {
	ListCategories(ctx context.Context) ([]db.Category, error)
	GetCategoryBySlug(ctx context.Context, slug string) (db.Category, error)
	CountProducts(ctx context.Context, arg db.CountProductsParams) (int64, error)
	ListProducts(ctx context.Context, arg db.ListProductsParams) ([]db.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (db.Product, error)
	GetProductByID(ctx context.Context, id pgtype.UUID) (db.Product, error)
	CreateCategory(ctx context.Context, arg db.CreateCategoryParams) (db.Category, error)
	UpdateCategory(ctx context.Context, arg db.UpdateCategoryParams) (db.Category, error)
	DeleteCategory(ctx context.Context, id pgtype.UUID) (int64, error)
	CreateProduct(ctx context.Context, arg db.CreateProductParams) (db.Product, error)
	UpdateProduct(ctx context.Context, arg db.UpdateProductParams) (db.Product, error)
	DeleteProduct(ctx context.Context, id pgtype.UUID) (int64, error)
}

// Service orchestrates catalog queries, DTO assembly, and caching.
type Service struct {
	queries      queryProvider
	cache        *Cache
	defaultPage  int
	defaultLimit int
	maxLimit     int
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Queries      queryProvider
	Cache        *Cache
	DefaultPage  int
	DefaultLimit int
	MaxLimit     int
}

// ListParams captures filters for product listing.
type ListParams struct {
	Query           string
	Category        string
	Sort            string
	Page            int
	Limit           int
	IncludeInactive bool
}

// Product is the public product payload.
type Product struct {
	ID                  string    `json:"id"`
	CategoryID          string    `json:"categoryId,omitempty"`
	Name                string    `json:"name"`
	Slug                string    `json:"slug"`
	Brand               string    `json:"brand"`
	Description         string    `json:"description,omitempty"`
	Price               float64   `json:"price"`
	OriginalPrice       *float64  `json:"originalPrice,omitempty"`
	DiscountPercent     int       `json:"discountPercent,omitempty"`
	GSTPercentage       *float64  `json:"gstPercentage,omitempty"`
	PriceInclusiveOfTax *bool     `json:"priceInclusiveOfTax,omitempty"`
	HSNCode             string    `json:"hsnCode,omitempty"`
	Stock               int       `json:"stock"`
	InStock             bool      `json:"inStock"`
	SizeML              *int      `json:"sizeMl,omitempty"`
	Concentration       string    `json:"concentration,omitempty"`
	Images              []string  `json:"images"`
	IsActive            bool      `json:"isActive"`
	CreatedAt           time.Time `json:"createdAt"`
}

// Category represents the public category payload.
type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
	SortOrder   int    `json:"sortOrder"`
}

// ProductListResult contains list data and pagination metadata.
type ProductListResult struct {
	Items []Product `json:"items"`
	Total int64     `json:"total"`
	Page  int       `json:"page"`
	Limit int       `json:"limit"`
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Queries == nil {
		return nil, errors.New("catalog: queries provider is required")
	}
	defaultPage := cfg.DefaultPage
	if defaultPage < 1 {
		defaultPage = 1
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit < 1 {
		defaultLimit = 20
	}
	maxLimit := cfg.MaxLimit
	if maxLimit < 1 {
		maxLimit = 100
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	return &Service{
		queries:      cfg.Queries,
		cache:        cfg.Cache,
		defaultPage:  defaultPage,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}, nil
}

// ParseListParams normalises raw query values into strongly typed filters.
func (s *Service) ParseListParams(values url.Values) (ListParams, error) {
	params := ListParams{
		Page:  s.defaultPage,
		Limit: s.defaultLimit,
	}
	params.Query = strings.TrimSpace(values.Get("q"))
	params.Category = strings.TrimSpace(values.Get("category"))

	if v := strings.TrimSpace(values.Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return params, badRequest("page", "page must be a positive integer", err)
		}
		params.Page = page
	}
	if v := strings.TrimSpace(values.Get("limit")); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l < 1 {
			return params, badRequest("limit", "limit must be a positive integer", err)
		}
		params.Limit = l
	}
	if params.Limit > s.maxLimit {
		params.Limit = s.maxLimit
	}
	sort, err := normalizeSort(values.Get("sort"))
	if err != nil {
		return params, badRequest("sort", "sort must be one of newest, price_asc, price_desc, name", err)
	}
	params.Sort = sort
	return params, nil
}

// ListCategories returns all categories in display order.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	const key = cachePrefix + "categories"
	var cached []Category
	if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}
	rows, err := s.queries.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	result := make([]Category, 0, len(rows))
	for _, row := range rows {
		result = append(result, toCategory(row))
	}
	_ = s.cache.SetJSON(ctx, key, result)
	return result, nil
}

// ListProducts returns the filtered product page. Public listings are cached
// per distinct filter set; admin listings that include inactive products are not.
func (s *Service) ListProducts(ctx context.Context, params ListParams) (ProductListResult, error) {
	key := ""
	if !params.IncludeInactive {
		key = listCacheKey(params)
		var cached ProductListResult
		if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
			return cached, nil
		}
	}

	total, err := s.queries.CountProducts(ctx, db.CountProductsParams{
		IncludeInactive: params.IncludeInactive,
		Query:           params.Query,
		CategorySlug:    params.Category,
	})
	if err != nil {
		return ProductListResult{}, fmt.Errorf("count products: %w", err)
	}
	rows, err := s.queries.ListProducts(ctx, db.ListProductsParams{
		IncludeInactive: params.IncludeInactive,
		Query:           params.Query,
		CategorySlug:    params.Category,
		Sort:            params.Sort,
		Limit:           int32(params.Limit),
		Offset:          common.Offset(params.Page, params.Limit),
	})
	if err != nil {
		return ProductListResult{}, fmt.Errorf("list products: %w", err)
	}
	items := make([]Product, 0, len(rows))
	for _, row := range rows {
		items = append(items, toProduct(row))
	}
	result := ProductListResult{Items: items, Total: total, Page: params.Page, Limit: params.Limit}
	if key != "" {
		_ = s.cache.SetJSON(ctx, key, result)
	}
	return result, nil
}

// GetProductDetail returns an active product by slug.
func (s *Service) GetProductDetail(ctx context.Context, slug string) (Product, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return Product{}, badRequest("slug", "slug is required", nil)
	}
	key := cachePrefix + "product:" + slug
	var cached Product
	if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}
	row, err := s.queries.GetProductBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, notFound("product not found", err)
		}
		return Product{}, fmt.Errorf("get product by slug: %w", err)
	}
	product := toProduct(row)
	_ = s.cache.SetJSON(ctx, key, product)
	return product, nil
}

func toCategory(row db.Category) Category {
	return Category{
		ID:          common.UUIDString(row.ID),
		Name:        row.Name,
		Slug:        row.Slug,
		Description: row.Description.String,
		SortOrder:   int(row.SortOrder),
	}
}

func toProduct(row db.Product) Product {
	p := Product{
		ID:            common.UUIDString(row.ID),
		CategoryID:    common.UUIDString(row.CategoryID),
		Name:          row.Name,
		Slug:          row.Slug,
		Brand:         row.Brand,
		Description:   row.Description.String,
		Price:         row.Price,
		OriginalPrice: common.NullableFloat(row.OriginalPrice),
		GSTPercentage: common.NullableFloat(row.GstPercentage),
		HSNCode:       row.HsnCode.String,
		Stock:         int(row.Stock),
		InStock:       row.Stock > 0,
		Concentration: row.Concentration.String,
		Images:        row.Images,
		IsActive:      row.IsActive,
		CreatedAt:     row.CreatedAt.Time,
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	if row.PriceInclusiveOfTax.Valid {
		v := row.PriceInclusiveOfTax.Bool
		p.PriceInclusiveOfTax = &v
	}
	if row.SizeMl.Valid {
		v := int(row.SizeMl.Int32)
		p.SizeML = &v
	}
	if p.OriginalPrice != nil && *p.OriginalPrice > p.Price && *p.OriginalPrice > 0 {
		p.DiscountPercent = int(math.Round((*p.OriginalPrice - p.Price) / *p.OriginalPrice * 100))
	}
	return p
}

func listCacheKey(params ListParams) string {
	raw := strings.Join([]string{
		strings.ToLower(params.Query),
		params.Category,
		params.Sort,
		strconv.Itoa(params.Page),
		strconv.Itoa(params.Limit),
	}, "|")
	sum := sha1.Sum([]byte(raw))
	return cachePrefix + "products:" + hex.EncodeToString(sum[:8])
}

func normalizeSort(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "newest":
		return "", nil
	case "price_asc", "price_desc", "name":
		return s, nil
	default:
		return "", fmt.Errorf("invalid sort %q", s)
	}
}

func badRequest(field, message string, err error) *common.AppError {
	return &common.AppError{
		Code:       "BAD_REQUEST",
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
		Details: map[string]any{
			"field": field,
		},
	}
}

func notFound(message string, err error) *common.AppError {
	return &common.AppError{Code: "NOT_FOUND", Message: message, HTTPStatus: http.StatusNotFound, Err: err}
}
