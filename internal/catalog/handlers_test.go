package catalog_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-parfum/internal/catalog"
	"github.com/noah-isme/backend-parfum/internal/db"
)

type productsResponse struct {
	Data       []catalog.Product `json:"data"`
	Pagination struct {
		Page       int `json:"page"`
		PerPage    int `json:"per_page"`
		TotalItems int `json:"total_items"`
		TotalPages int `json:"total_pages"`
	} `json:"pagination"`
}

type errorResponse struct {
	Error struct {
		Code    string         `json:"code"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func newCatalog(t *testing.T) (*catalog.Handler, *fakeCatalogQueries, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	queries := newFakeCatalogQueries()
	svc, err := catalog.NewService(catalog.ServiceConfig{
		Queries:      queries,
		Cache:        catalog.NewCache(client, time.Minute),
		DefaultPage:  1,
		DefaultLimit: 20,
		MaxLimit:     100,
	})
	require.NoError(t, err)
	return catalog.NewHandler(catalog.HandlerConfig{Service: svc}), queries, mr
}

func router(h *catalog.Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/categories", h.Categories)
	r.Get("/products", h.Products)
	r.Get("/products/{slug}", h.ProductDetail)
	r.Route("/admin", func(r chi.Router) {
		r.Get("/products", h.AdminProducts)
		r.Post("/products", h.CreateProduct)
		r.Get("/products/{id}", h.AdminProduct)
		r.Put("/products/{id}", h.UpdateProduct)
		r.Delete("/products/{id}", h.DeleteProduct)
		r.Post("/categories", h.CreateCategory)
		r.Delete("/categories/{id}", h.DeleteCategory)
	})
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPublicListing(t *testing.T) {
	h, _, _ := newCatalog(t)
	srv := router(h)

	rec := do(t, srv, http.MethodGet, "/products?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "2", rec.Header().Get("X-Total-Count"))

	var resp productsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	require.Equal(t, 1, resp.Pagination.PerPage)
	require.Equal(t, 2, resp.Pagination.TotalItems)
	require.Equal(t, 2, resp.Pagination.TotalPages)

	rec = do(t, srv, http.MethodGet, "/products?category=attar", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	require.Equal(t, "rose-attar", resp.Data[0].Slug)

	rec = do(t, srv, http.MethodGet, "/products?sort=popular", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var errResp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	require.Equal(t, "sort", errResp.Error.Details["field"])
}

func TestAdminListingIncludesInactive(t *testing.T) {
	h, _, _ := newCatalog(t)
	rec := do(t, router(h), http.MethodGet, "/admin/products", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "3", rec.Header().Get("X-Total-Count"))
}

func TestProductDetail(t *testing.T) {
	h, _, _ := newCatalog(t)
	srv := router(h)

	rec := do(t, srv, http.MethodGet, "/products/oud-noir", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data catalog.Product `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "Oud Noir", resp.Data.Name)
	require.Equal(t, 20, resp.Data.DiscountPercent)
	require.True(t, resp.Data.InStock)
	require.NotNil(t, resp.Data.GSTPercentage)
	require.Equal(t, 18.0, *resp.Data.GSTPercentage)

	rec = do(t, srv, http.MethodGet, "/products/retired-musk", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCategoriesAreCached(t *testing.T) {
	h, queries, mr := newCatalog(t)
	srv := router(h)

	rec := do(t, srv, http.MethodGet, "/categories", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, mr.Exists("catalog:categories"))

	queries.mu.Lock()
	queries.categories = nil
	queries.mu.Unlock()

	rec = do(t, srv, http.MethodGet, "/categories", "")
	var resp struct {
		Data []catalog.Category `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
}

func TestCreateProductInvalidatesCache(t *testing.T) {
	h, _, mr := newCatalog(t)
	srv := router(h)

	require.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/products", "").Code)
	require.NotEmpty(t, mr.Keys())

	rec := do(t, srv, http.MethodPost, "/admin/products",
		`{"name":"Vetiver Dusk","brand":"Maison","price":2499,"gstPercentage":18,"stock":5,"concentration":"EDP","images":["https://cdn.example.com/v.jpg"]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Data catalog.Product `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, "vetiver-dusk", created.Data.Slug)
	require.True(t, created.Data.IsActive)
	require.Empty(t, mr.Keys())

	rec = do(t, srv, http.MethodGet, "/products", "")
	require.Equal(t, "3", rec.Header().Get("X-Total-Count"))

	rec = do(t, srv, http.MethodPost, "/admin/products", `{"name":"Vetiver Dusk","price":10}`)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateProductValidation(t *testing.T) {
	h, _, _ := newCatalog(t)
	rec := do(t, router(h), http.MethodPost, "/admin/products",
		`{"name":"","price":-1,"concentration":"cologne"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	require.Contains(t, resp.Error.Details, "name")
	require.Contains(t, resp.Error.Details, "price")
	require.Contains(t, resp.Error.Details, "concentration")

	rec = do(t, router(h), http.MethodPost, "/admin/products", `{"name":"x","unknown":1}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateAndDeleteProduct(t *testing.T) {
	h, queries, _ := newCatalog(t)
	srv := router(h)
	id := queries.productID("oud-noir")

	rec := do(t, srv, http.MethodPut, "/admin/products/"+id,
		`{"name":"Oud Noir Intense","slug":"oud-noir","price":3999,"stock":0,"isActive":false}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated struct {
		Data catalog.Product `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	require.Equal(t, "Oud Noir Intense", updated.Data.Name)
	require.False(t, updated.Data.InStock)
	require.False(t, updated.Data.IsActive)

	require.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/products/oud-noir", "").Code)
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/admin/products/"+id, "").Code)

	require.Equal(t, http.StatusNoContent, do(t, srv, http.MethodDelete, "/admin/products/"+id, "").Code)
	require.Equal(t, http.StatusNotFound, do(t, srv, http.MethodDelete, "/admin/products/"+id, "").Code)
	require.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodDelete, "/admin/products/not-a-uuid", "").Code)
}

func TestCategoryAdmin(t *testing.T) {
	h, _, _ := newCatalog(t)
	srv := router(h)

	rec := do(t, srv, http.MethodPost, "/admin/categories", `{"name":"Eau de Cologne","sortOrder":3}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Data catalog.Category `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, "eau-de-cologne", created.Data.Slug)

	rec = do(t, srv, http.MethodPost, "/admin/categories", `{"name":"Attar"}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	require.Equal(t, http.StatusNoContent, do(t, srv, http.MethodDelete, "/admin/categories/"+created.Data.ID, "").Code)
}

func TestSlugify(t *testing.T) {
	require.Equal(t, "oud-noir-100ml", catalog.Slugify("  Oud Noir (100ml) "))
	require.Equal(t, "", catalog.Slugify("!!!"))
}

type fakeCatalogQueries struct {
	mu         sync.Mutex
	categories []db.Category
	products   []db.Product
}

func newUUID() pgtype.UUID {
	return pgtype.UUID{Bytes: uuid.New(), Valid: true}
}

func newFakeCatalogQueries() *fakeCatalogQueries {
	now := time.Now()
	ts := func(d time.Duration) pgtype.Timestamptz {
		return pgtype.Timestamptz{Time: now.Add(-d), Valid: true}
	}
	perfume := db.Category{ID: newUUID(), Name: "Perfume", Slug: "perfume", SortOrder: 1}
	attar := db.Category{ID: newUUID(), Name: "Attar", Slug: "attar", SortOrder: 2}
	return &fakeCatalogQueries{
		categories: []db.Category{perfume, attar},
		products: []db.Product{
			{
				ID: newUUID(), CategoryID: perfume.ID, Name: "Oud Noir", Slug: "oud-noir", Brand: "Maison",
				Price: 3999, OriginalPrice: pgtype.Float8{Float64: 4999, Valid: true},
				GstPercentage: pgtype.Float8{Float64: 18, Valid: true}, Stock: 12, IsActive: true,
				Images: []string{"https://cdn.example.com/oud.jpg"}, CreatedAt: ts(time.Hour),
			},
			{
				ID: newUUID(), CategoryID: attar.ID, Name: "Rose Attar", Slug: "rose-attar", Brand: "Kannauj",
				Price: 899, Stock: 4, IsActive: true, CreatedAt: ts(2 * time.Hour),
			},
			{
				ID: newUUID(), CategoryID: perfume.ID, Name: "Retired Musk", Slug: "retired-musk", Brand: "Maison",
				Price: 1299, IsActive: false, CreatedAt: ts(3 * time.Hour),
			},
		},
	}
}

func (f *fakeCatalogQueries) productID(slug string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.products {
		if p.Slug == slug {
			return uuid.UUID(p.ID.Bytes).String()
		}
	}
	return ""
}

func (f *fakeCatalogQueries) categorySlug(id pgtype.UUID) string {
	for _, c := range f.categories {
		if c.ID == id {
			return c.Slug
		}
	}
	return ""
}

func (f *fakeCatalogQueries) filter(includeInactive bool, query, category string) []db.Product {
	var out []db.Product
	q := strings.ToLower(query)
	for _, p := range f.products {
		if !includeInactive && !p.IsActive {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(p.Name), q) && !strings.Contains(strings.ToLower(p.Brand), q) {
			continue
		}
		if category != "" && f.categorySlug(p.CategoryID) != category {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (f *fakeCatalogQueries) ListCategories(context.Context) ([]db.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]db.Category(nil), f.categories...), nil
}

func (f *fakeCatalogQueries) GetCategoryBySlug(_ context.Context, slug string) (db.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.categories {
		if c.Slug == slug {
			return c, nil
		}
	}
	return db.Category{}, pgx.ErrNoRows
}

func (f *fakeCatalogQueries) CountProducts(_ context.Context, arg db.CountProductsParams) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.filter(arg.IncludeInactive, arg.Query, arg.CategorySlug))), nil
}

func (f *fakeCatalogQueries) ListProducts(_ context.Context, arg db.ListProductsParams) ([]db.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rows := f.filter(arg.IncludeInactive, arg.Query, arg.CategorySlug)
	sort.SliceStable(rows, func(i, j int) bool {
		switch arg.Sort {
		case "price_asc":
			return rows[i].Price < rows[j].Price
		case "price_desc":
			return rows[i].Price > rows[j].Price
		case "name":
			return rows[i].Name < rows[j].Name
		}
		return rows[i].CreatedAt.Time.After(rows[j].CreatedAt.Time)
	})
	start := int(arg.Offset)
	if start > len(rows) {
		return nil, nil
	}
	end := start + int(arg.Limit)
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end], nil
}

func (f *fakeCatalogQueries) GetProductBySlug(_ context.Context, slug string) (db.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.products {
		if p.Slug == slug && p.IsActive {
			return p, nil
		}
	}
	return db.Product{}, pgx.ErrNoRows
}

func (f *fakeCatalogQueries) GetProductByID(_ context.Context, id pgtype.UUID) (db.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.products {
		if p.ID == id {
			return p, nil
		}
	}
	return db.Product{}, pgx.ErrNoRows
}

func uniqueViolation() error {
	return &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}
}

func (f *fakeCatalogQueries) CreateCategory(_ context.Context, arg db.CreateCategoryParams) (db.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.categories {
		if c.Slug == arg.Slug {
			return db.Category{}, uniqueViolation()
		}
	}
	c := db.Category{ID: newUUID(), Name: arg.Name, Slug: arg.Slug, Description: arg.Description, SortOrder: arg.SortOrder}
	f.categories = append(f.categories, c)
	return c, nil
}

func (f *fakeCatalogQueries) UpdateCategory(_ context.Context, arg db.UpdateCategoryParams) (db.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.categories {
		if c.ID == arg.ID {
			c.Name, c.Slug, c.Description, c.SortOrder = arg.Name, arg.Slug, arg.Description, arg.SortOrder
			f.categories[i] = c
			return c, nil
		}
	}
	return db.Category{}, pgx.ErrNoRows
}

func (f *fakeCatalogQueries) DeleteCategory(_ context.Context, id pgtype.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.categories {
		if c.ID == id {
			f.categories = append(f.categories[:i], f.categories[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func applyProduct(p db.Product, arg db.CreateProductParams) db.Product {
	p.CategoryID = arg.CategoryID
	p.Name = arg.Name
	p.Slug = arg.Slug
	p.Brand = arg.Brand
	p.Description = arg.Description
	p.Price = arg.Price
	p.OriginalPrice = arg.OriginalPrice
	p.GstPercentage = arg.GstPercentage
	p.PriceInclusiveOfTax = arg.PriceInclusiveOfTax
	p.HsnCode = arg.HsnCode
	p.Stock = arg.Stock
	p.SizeMl = arg.SizeMl
	p.Concentration = arg.Concentration
	p.Images = arg.Images
	p.IsActive = arg.IsActive
	return p
}

func (f *fakeCatalogQueries) CreateProduct(_ context.Context, arg db.CreateProductParams) (db.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.products {
		if p.Slug == arg.Slug {
			return db.Product{}, uniqueViolation()
		}
	}
	p := applyProduct(db.Product{ID: newUUID(), CreatedAt: pgtype.Timestamptz{Time: time.Now(), Valid: true}}, arg)
	f.products = append(f.products, p)
	return p, nil
}

func (f *fakeCatalogQueries) UpdateProduct(_ context.Context, arg db.UpdateProductParams) (db.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, p := range f.products {
		if p.ID == arg.ID {
			f.products[i] = applyProduct(p, arg.CreateProductParams)
			return f.products[i], nil
		}
	}
	return db.Product{}, pgx.ErrNoRows
}

func (f *fakeCatalogQueries) DeleteProduct(_ context.Context, id pgtype.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, p := range f.products {
		if p.ID == id {
			f.products = append(f.products[:i], f.products[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}
