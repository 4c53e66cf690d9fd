package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const categoryColumns = `id, name, slug, description, sort_order, created_at, updated_at`

func scanCategory(row interface{ Scan(...any) error }) (Category, error) {
	var i Category
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Slug,
		&i.Description,
		&i.SortOrder,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listCategories = `-- name: ListCategories :many
SELECT ` + categoryColumns + ` FROM categories ORDER BY sort_order, name`

func (q *Queries) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := q.db.Query(ctx, listCategories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Category
	for rows.Next() {
		i, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const getCategoryBySlug = `-- name: GetCategoryBySlug :one
SELECT ` + categoryColumns + ` FROM categories WHERE slug = $1`

func (q *Queries) GetCategoryBySlug(ctx context.Context, slug string) (Category, error) {
	return scanCategory(q.db.QueryRow(ctx, getCategoryBySlug, slug))
}

const createCategory = `-- name: CreateCategory :one
INSERT INTO categories (name, slug, description, sort_order)
VALUES ($1, $2, $3, $4)
RETURNING ` + categoryColumns

type CreateCategoryParams struct {
	Name        string
	Slug        string
	Description pgtype.Text
	SortOrder   int32
}

func (q *Queries) CreateCategory(ctx context.Context, arg CreateCategoryParams) (Category, error) {
	row := q.db.QueryRow(ctx, createCategory, arg.Name, arg.Slug, arg.Description, arg.SortOrder)
	return scanCategory(row)
}

const updateCategory = `-- name: UpdateCategory :one
UPDATE categories SET name = $2, slug = $3, description = $4, sort_order = $5, updated_at = now()
WHERE id = $1
RETURNING ` + categoryColumns

type UpdateCategoryParams struct {
	ID          pgtype.UUID
	Name        string
	Slug        string
	Description pgtype.Text
	SortOrder   int32
}

func (q *Queries) UpdateCategory(ctx context.Context, arg UpdateCategoryParams) (Category, error) {
	row := q.db.QueryRow(ctx, updateCategory, arg.ID, arg.Name, arg.Slug, arg.Description, arg.SortOrder)
	return scanCategory(row)
}

const deleteCategory = `-- name: DeleteCategory :execrows
DELETE FROM categories WHERE id = $1`

func (q *Queries) DeleteCategory(ctx context.Context, id pgtype.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteCategory, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const productColumns = `p.id, p.category_id, p.name, p.slug, p.brand, p.description, p.price, p.original_price,
p.gst_percentage, p.price_inclusive_of_tax, p.hsn_code, p.stock, p.size_ml, p.concentration, p.images,
p.is_active, p.created_at, p.updated_at`

func scanProduct(row interface{ Scan(...any) error }) (Product, error) {
	var i Product
	err := row.Scan(
		&i.ID,
		&i.CategoryID,
		&i.Name,
		&i.Slug,
		&i.Brand,
		&i.Description,
		&i.Price,
		&i.OriginalPrice,
		&i.GstPercentage,
		&i.PriceInclusiveOfTax,
		&i.HsnCode,
		&i.Stock,
		&i.SizeMl,
		&i.Concentration,
		&i.Images,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func collectProducts(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
	Close()
}) ([]Product, error) {
	defer rows.Close()
	var items []Product
	for rows.Next() {
		i, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const productFilter = `
WHERE ($1::bool OR p.is_active)
  AND ($2::text = '' OR lower(p.name) LIKE '%' || lower($2) || '%' OR lower(p.brand) LIKE '%' || lower($2) || '%')
  AND ($3::text = '' OR c.slug = $3)`

const listProducts = `-- name: ListProducts :many
SELECT ` + productColumns + `
FROM products p
LEFT JOIN categories c ON c.id = p.category_id` + productFilter + `
ORDER BY
  CASE WHEN $4::text = 'price_asc' THEN p.price END ASC,
  CASE WHEN $4::text = 'price_desc' THEN p.price END DESC,
  CASE WHEN $4::text = 'name' THEN p.name END ASC,
  p.created_at DESC
LIMIT $5 OFFSET $6`

type ListProductsParams struct {
	IncludeInactive bool
	Query           string
	CategorySlug    string
	Sort            string
	Limit           int32
	Offset          int32
}

func (q *Queries) ListProducts(ctx context.Context, arg ListProductsParams) ([]Product, error) {
	rows, err := q.db.Query(ctx, listProducts,
		arg.IncludeInactive,
		arg.Query,
		arg.CategorySlug,
		arg.Sort,
		arg.Limit,
		arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	return collectProducts(rows)
}

const countProducts = `-- name: CountProducts :one
SELECT count(*)
FROM products p
LEFT JOIN categories c ON c.id = p.category_id` + productFilter

type CountProductsParams struct {
	IncludeInactive bool
	Query           string
	CategorySlug    string
}

func (q *Queries) CountProducts(ctx context.Context, arg CountProductsParams) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countProducts, arg.IncludeInactive, arg.Query, arg.CategorySlug).Scan(&count)
	return count, err
}

const getProductBySlug = `-- name: GetProductBySlug :one
SELECT ` + productColumns + ` FROM products p WHERE p.slug = $1 AND p.is_active`

func (q *Queries) GetProductBySlug(ctx context.Context, slug string) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, getProductBySlug, slug))
}

const getProductByID = `-- name: GetProductByID :one
SELECT ` + productColumns + ` FROM products p WHERE p.id = $1`

func (q *Queries) GetProductByID(ctx context.Context, id pgtype.UUID) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, getProductByID, id))
}

const getProductsByIDs = `-- name: GetProductsByIDs :many
SELECT ` + productColumns + ` FROM products p WHERE p.id = ANY($1::uuid[])`

func (q *Queries) GetProductsByIDs(ctx context.Context, ids []pgtype.UUID) ([]Product, error) {
	rows, err := q.db.Query(ctx, getProductsByIDs, ids)
	if err != nil {
		return nil, err
	}
	return collectProducts(rows)
}

const createProduct = `-- name: CreateProduct :one
INSERT INTO products AS p (category_id, name, slug, brand, description, price, original_price, gst_percentage,
  price_inclusive_of_tax, hsn_code, stock, size_ml, concentration, images, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
RETURNING ` + productColumns

type CreateProductParams struct {
	CategoryID          pgtype.UUID
	Name                string
	Slug                string
	Brand               string
	Description         pgtype.Text
	Price               float64
	OriginalPrice       pgtype.Float8
	GstPercentage       pgtype.Float8
	PriceInclusiveOfTax pgtype.Bool
	HsnCode             pgtype.Text
	Stock               int32
	SizeMl              pgtype.Int4
	Concentration       pgtype.Text
	Images              []string
	IsActive            bool
}

func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, createProduct,
		arg.CategoryID,
		arg.Name,
		arg.Slug,
		arg.Brand,
		arg.Description,
		arg.Price,
		arg.OriginalPrice,
		arg.GstPercentage,
		arg.PriceInclusiveOfTax,
		arg.HsnCode,
		arg.Stock,
		arg.SizeMl,
		arg.Concentration,
		arg.Images,
		arg.IsActive,
	)
	return scanProduct(row)
}

const updateProduct = `-- name: UpdateProduct :one
UPDATE products AS p SET category_id = $2, name = $3, slug = $4, brand = $5, description = $6, price = $7,
  original_price = $8, gst_percentage = $9, price_inclusive_of_tax = $10, hsn_code = $11, stock = $12,
  size_ml = $13, concentration = $14, images = $15, is_active = $16, updated_at = now()
WHERE p.id = $1
RETURNING ` + productColumns

type UpdateProductParams struct {
	ID pgtype.UUID
	CreateProductParams
}

func (q *Queries) UpdateProduct(ctx context.Context, arg UpdateProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, updateProduct,
		arg.ID,
		arg.CategoryID,
		arg.Name,
		arg.Slug,
		arg.Brand,
		arg.Description,
		arg.Price,
		arg.OriginalPrice,
		arg.GstPercentage,
		arg.PriceInclusiveOfTax,
		arg.HsnCode,
		arg.Stock,
		arg.SizeMl,
		arg.Concentration,
		arg.Images,
		arg.IsActive,
	)
	return scanProduct(row)
}

const deleteProduct = `-- name: DeleteProduct :execrows
DELETE FROM products WHERE id = $1`

func (q *Queries) DeleteProduct(ctx context.Context, id pgtype.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteProduct, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
