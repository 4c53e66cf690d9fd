package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-parfum/internal/common"
	"github.com/noah-isme/backend-parfum/internal/db"
)

// ProductInput is the admin create/update payload.
type ProductInput struct {
	CategoryID          string   `json:"categoryId" validate:"omitempty,uuid"`
	Name                string   `json:"name" validate:"required,max=200"`
	Slug                string   `json:"slug" validate:"omitempty,max=200"`
	Brand               string   `json:"brand" validate:"max=120"`
	Description         string   `json:"description"`
	Price               float64  `json:"price" validate:"gte=0"`
	OriginalPrice       *float64 `json:"originalPrice" validate:"omitempty,gte=0"`
	GSTPercentage       *float64 `json:"gstPercentage" validate:"omitempty,gte=0,lte=28"`
	PriceInclusiveOfTax *bool    `json:"priceInclusiveOfTax"`
	HSNCode             string   `json:"hsnCode" validate:"omitempty,numeric,min=4,max=8"`
	Stock               int      `json:"stock" validate:"gte=0"`
	SizeML              *int     `json:"sizeMl" validate:"omitempty,gt=0"`
	Concentration       string   `json:"concentration" validate:"omitempty,oneof=parfum EDP EDT EDC attar"`
	Images              []string `json:"images" validate:"dive,url"`
	IsActive            *bool    `json:"isActive"`
}

// CategoryInput is the admin create/update payload for categories.
type CategoryInput struct {
	Name        string `json:"name" validate:"required,max=120"`
	Slug        string `json:"slug" validate:"omitempty,max=120"`
	Description string `json:"description"`
	SortOrder   int    `json:"sortOrder"`
}

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lower-cases s and joins its alphanumeric runs with dashes.
func Slugify(s string) string {
	return strings.Trim(slugStrip.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

func (in ProductInput) params() (db.CreateProductParams, error) {
	p := db.CreateProductParams{
		Name:                strings.TrimSpace(in.Name),
		Slug:                Slugify(in.Slug),
		Brand:               strings.TrimSpace(in.Brand),
		Description:         common.Text(strings.TrimSpace(in.Description)),
		Price:               in.Price,
		HsnCode:             common.Text(in.HSNCode),
		Stock:               int32(in.Stock),
		Concentration:       common.Text(in.Concentration),
		Images:              in.Images,
		IsActive:            true,
	}
	if p.Slug == "" {
		p.Slug = Slugify(in.Name)
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	if in.CategoryID != "" {
		id, err := common.ToUUID(in.CategoryID)
		if err != nil {
			return p, badRequest("categoryId", "invalid category id", err)
		}
		p.CategoryID = id
	}
	if in.OriginalPrice != nil {
		p.OriginalPrice = pgtype.Float8{Float64: *in.OriginalPrice, Valid: true}
	}
	if in.GSTPercentage != nil {
		p.GstPercentage = pgtype.Float8{Float64: *in.GSTPercentage, Valid: true}
	}
	if in.PriceInclusiveOfTax != nil {
		p.PriceInclusiveOfTax = pgtype.Bool{Bool: *in.PriceInclusiveOfTax, Valid: true}
	}
	if in.SizeML != nil {
		p.SizeMl = pgtype.Int4{Int32: int32(*in.SizeML), Valid: true}
	}
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	return p, nil
}

func conflictOr(err error, what string) error {
	switch {
	case common.IsUniqueViolation(err):
		return common.NewAppError("CONFLICT", what+" slug already exists", http.StatusConflict, err)
	case common.IsForeignKeyViolation(err):
		return common.NewAppError("CONFLICT", what+" references a missing record or is still in use", http.StatusConflict, err)
	case errors.Is(err, pgx.ErrNoRows):
		return notFound(what+" not found", err)
	}
	return err
}

func parseID(id string) (pgtype.UUID, error) {
	uid, err := common.ToUUID(id)
	if err != nil {
		return pgtype.UUID{}, badRequest("id", "invalid id", err)
	}
	return uid, nil
}

func (s *Service) invalidate(ctx context.Context) {
	_ = s.cache.Invalidate(ctx)
}

// GetProduct returns a product by id, including inactive ones.
func (s *Service) GetProduct(ctx context.Context, id string) (Product, error) {
	uid, err := parseID(id)
	if err != nil {
		return Product{}, err
	}
	row, err := s.queries.GetProductByID(ctx, uid)
	if err != nil {
		return Product{}, conflictOr(err, "product")
	}
	return toProduct(row), nil
}

// CreateProduct validates in and inserts a product.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (Product, error) {
	if err := common.ValidateStruct(in); err != nil {
		return Product{}, err
	}
	params, err := in.params()
	if err != nil {
		return Product{}, err
	}
	row, err := s.queries.CreateProduct(ctx, params)
	if err != nil {
		return Product{}, fmt.Errorf("create product: %w", conflictOr(err, "product"))
	}
	s.invalidate(ctx)
	return toProduct(row), nil
}

// UpdateProduct replaces every field of product id.
func (s *Service) UpdateProduct(ctx context.Context, id string, in ProductInput) (Product, error) {
	uid, err := parseID(id)
	if err != nil {
		return Product{}, err
	}
	if err := common.ValidateStruct(in); err != nil {
		return Product{}, err
	}
	params, err := in.params()
	if err != nil {
		return Product{}, err
	}
	row, err := s.queries.UpdateProduct(ctx, db.UpdateProductParams{ID: uid, CreateProductParams: params})
	if err != nil {
		return Product{}, fmt.Errorf("update product: %w", conflictOr(err, "product"))
	}
	s.invalidate(ctx)
	return toProduct(row), nil
}

// DeleteProduct removes product id.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	uid, err := parseID(id)
	if err != nil {
		return err
	}
	n, err := s.queries.DeleteProduct(ctx, uid)
	if err != nil {
		return fmt.Errorf("delete product: %w", conflictOr(err, "product"))
	}
	if n == 0 {
		return notFound("product not found", nil)
	}
	s.invalidate(ctx)
	return nil
}

// CreateCategory validates in and inserts a category.
func (s *Service) CreateCategory(ctx context.Context, in CategoryInput) (Category, error) {
	if err := common.ValidateStruct(in); err != nil {
		return Category{}, err
	}
	row, err := s.queries.CreateCategory(ctx, db.CreateCategoryParams{
		Name:        strings.TrimSpace(in.Name),
		Slug:        categorySlug(in),
		Description: common.Text(strings.TrimSpace(in.Description)),
		SortOrder:   int32(in.SortOrder),
	})
	if err != nil {
		return Category{}, fmt.Errorf("create category: %w", conflictOr(err, "category"))
	}
	s.invalidate(ctx)
	return toCategory(row), nil
}

// UpdateCategory replaces category id.
func (s *Service) UpdateCategory(ctx context.Context, id string, in CategoryInput) (Category, error) {
	uid, err := parseID(id)
	if err != nil {
		return Category{}, err
	}
	if err := common.ValidateStruct(in); err != nil {
		return Category{}, err
	}
	row, err := s.queries.UpdateCategory(ctx, db.UpdateCategoryParams{
		ID:          uid,
		Name:        strings.TrimSpace(in.Name),
		Slug:        categorySlug(in),
		Description: common.Text(strings.TrimSpace(in.Description)),
		SortOrder:   int32(in.SortOrder),
	})
	if err != nil {
		return Category{}, fmt.Errorf("update category: %w", conflictOr(err, "category"))
	}
	s.invalidate(ctx)
	return toCategory(row), nil
}

// DeleteCategory removes category id; its products become uncategorised.
func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	uid, err := parseID(id)
	if err != nil {
		return err
	}
	n, err := s.queries.DeleteCategory(ctx, uid)
	if err != nil {
		return fmt.Errorf("delete category: %w", conflictOr(err, "category"))
	}
	if n == 0 {
		return notFound("category not found", nil)
	}
	s.invalidate(ctx)
	return nil
}

func categorySlug(in CategoryInput) string {
	if slug := Slugify(in.Slug); slug != "" {
		return slug
	}
	return Slugify(in.Name)
}
