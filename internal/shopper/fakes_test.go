package shopper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-parfum/internal/cart"
	"github.com/noah-isme/backend-parfum/internal/common"
	"github.com/noah-isme/backend-parfum/internal/db"
	"github.com/noah-isme/backend-parfum/internal/events"
	"github.com/noah-isme/backend-parfum/internal/guest"
	"github.com/noah-isme/backend-parfum/internal/lock"
	"github.com/noah-isme/backend-parfum/internal/wishlist"
)

type fakeProducts struct {
	byID map[string]db.Product
}

func (f *fakeProducts) add(name string, price float64, stock int32) string {
	id := uuid.New()
	f.byID[id.String()] = db.Product{
		ID:       pgtype.UUID{Bytes: id, Valid: true},
		Name:     name,
		Slug:     name,
		Price:    price,
		Stock:    stock,
		IsActive: true,
	}
	return id.String()
}

func (f *fakeProducts) GetProductsByIDs(_ context.Context, ids []pgtype.UUID) ([]db.Product, error) {
	var out []db.Product
	for _, id := range ids {
		if p, ok := f.byID[common.UUIDString(id)]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeCart struct {
	mu       sync.Mutex
	lines    map[string][]cart.Line
	products *fakeProducts
	failOn   map[string]bool
}

func (f *fakeCart) Lines(_ context.Context, userID string) ([]cart.Line, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]cart.Line(nil), f.lines[userID]...), nil
}

func (f *fakeCart) Add(ctx context.Context, userID, productID string, qty int) error {
	qty0, found, _ := f.Find(ctx, userID, productID)
	if found {
		return f.SetQuantity(ctx, userID, productID, qty0+qty)
	}
	return f.Create(ctx, userID, productID, qty)
}

func (f *fakeCart) UpdateQuantity(ctx context.Context, userID, productID string, qty int) error {
	if qty <= 0 {
		return f.Remove(ctx, userID, productID)
	}
	if _, found, _ := f.Find(ctx, userID, productID); !found {
		return cart.ErrNotFound
	}
	return f.SetQuantity(ctx, userID, productID, qty)
}

func (f *fakeCart) Remove(_ context.Context, userID, productID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []cart.Line
	for _, l := range f.lines[userID] {
		if l.ProductID != productID {
			out = append(out, l)
		}
	}
	f.lines[userID] = out
	return nil
}

func (f *fakeCart) Clear(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.lines, userID)
	return nil
}

func (f *fakeCart) Find(_ context.Context, userID, productID string) (int, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.lines[userID] {
		if l.ProductID == productID {
			return l.Quantity, true, nil
		}
	}
	return 0, false, nil
}

func (f *fakeCart) Create(_ context.Context, userID, productID string, qty int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn[productID] {
		return errors.New("insert failed")
	}
	p := f.products.byID[productID]
	f.lines[userID] = append(f.lines[userID], cart.Line{ProductID: productID, Name: p.Name, Slug: p.Slug, Quantity: qty, Price: p.Price, Stock: int(p.Stock)})
	return nil
}

func (f *fakeCart) SetQuantity(_ context.Context, userID, productID string, qty int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.lines[userID] {
		if f.lines[userID][i].ProductID == productID {
			f.lines[userID][i].Quantity = qty
		}
	}
	return nil
}

type fakeWishlist struct {
	mu       sync.Mutex
	lines    map[string][]wishlist.Line
	products *fakeProducts
}

func (f *fakeWishlist) Lines(_ context.Context, userID string) ([]wishlist.Line, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]wishlist.Line(nil), f.lines[userID]...), nil
}

func (f *fakeWishlist) Add(_ context.Context, userID, productID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.lines[userID] {
		if l.ProductID == productID {
			return wishlist.ErrDuplicate
		}
	}
	p := f.products.byID[productID]
	f.lines[userID] = append(f.lines[userID], wishlist.Line{ProductID: productID, Name: p.Name, Price: p.Price, AddedAt: time.Now()})
	return nil
}

func (f *fakeWishlist) Remove(_ context.Context, userID, productID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []wishlist.Line
	for _, l := range f.lines[userID] {
		if l.ProductID != productID {
			out = append(out, l)
		}
	}
	f.lines[userID] = out
	return nil
}

func (f *fakeWishlist) Clear(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.lines, userID)
	return nil
}

func (f *fakeWishlist) Find(_ context.Context, userID, productID string) (int, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.lines[userID] {
		if l.ProductID == productID {
			return 1, true, nil
		}
	}
	return 0, false, nil
}

func (f *fakeWishlist) Create(ctx context.Context, userID, productID string, _ int) error {
	if err := f.Add(ctx, userID, productID); err != nil && !errors.Is(err, wishlist.ErrDuplicate) {
		return err
	}
	return nil
}

func (f *fakeWishlist) SetQuantity(context.Context, string, string, int) error { return nil }

type fixture struct {
	svc      *Service
	products *fakeProducts
	cart     *fakeCart
	wishlist *fakeWishlist
	hub      *events.Hub
	mr       *miniredis.Miniredis
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	products := &fakeProducts{byID: map[string]db.Product{}}
	hub := events.NewHub()
	c := &fakeCart{lines: map[string][]cart.Line{}, products: products, failOn: map[string]bool{}}
	w := &fakeWishlist{lines: map[string][]wishlist.Line{}, products: products}
	svc := &Service{
		Guests:   &guest.Store{R: client, TTL: time.Hour, Events: hub, Logger: zerolog.Nop()},
		Cart:     c,
		Wishlist: w,
		Products: products,
		Locker:   lock.Locker{R: client, RetryBackoff: 5 * time.Millisecond},
		Logger:   zerolog.Nop(),
	}
	return &fixture{svc: svc, products: products, cart: c, wishlist: w, hub: hub, mr: mr}
}
