package cart

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-parfum/internal/common"
	"github.com/noah-isme/backend-parfum/internal/db"
	"github.com/noah-isme/backend-parfum/internal/events"
)

type fakeQueries struct {
	mu       sync.Mutex
	items    map[[16]byte]int32
	order    [][16]byte
	products map[[16]byte]db.Product
}

func newFakeQueries() *fakeQueries {
	return &fakeQueries{items: map[[16]byte]int32{}, products: map[[16]byte]db.Product{}}
}

func (f *fakeQueries) addProduct(name string, price float64, stock int32) string {
	id := uuid.New()
	f.products[id] = db.Product{
		ID:       pgtype.UUID{Bytes: id, Valid: true},
		Name:     name,
		Slug:     name,
		Price:    price,
		Stock:    stock,
		IsActive: true,
		Images:   []string{"https://cdn.example/" + name + ".jpg"},
	}
	return id.String()
}

func (f *fakeQueries) GetCartItem(_ context.Context, arg db.GetCartItemParams) (db.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	qty, ok := f.items[arg.ProductID.Bytes]
	if !ok {
		return db.CartItem{}, pgx.ErrNoRows
	}
	return db.CartItem{UserID: arg.UserID, ProductID: arg.ProductID, Quantity: qty}, nil
}

func (f *fakeQueries) ListCartLines(_ context.Context, _ pgtype.UUID) ([]db.CartLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []db.CartLine
	for _, id := range f.order {
		qty, ok := f.items[id]
		if !ok {
			continue
		}
		p := f.products[id]
		out = append(out, db.CartLine{
			ProductID:   p.ID,
			Quantity:    qty,
			ProductName: p.Name,
			ProductSlug: p.Slug,
			Price:       p.Price,
			Stock:       p.Stock,
			Images:      p.Images,
		})
	}
	return out, nil
}

func (f *fakeQueries) InsertCartItem(_ context.Context, arg db.InsertCartItemParams) (db.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[arg.ProductID.Bytes] = arg.Quantity
	f.order = append(f.order, arg.ProductID.Bytes)
	return db.CartItem{ProductID: arg.ProductID, Quantity: arg.Quantity}, nil
}

func (f *fakeQueries) IncrementCartItem(_ context.Context, arg db.IncrementCartItemParams) (db.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[arg.ProductID.Bytes]; !ok {
		f.order = append(f.order, arg.ProductID.Bytes)
	}
	f.items[arg.ProductID.Bytes] += arg.Quantity
	return db.CartItem{ProductID: arg.ProductID, Quantity: f.items[arg.ProductID.Bytes]}, nil
}

func (f *fakeQueries) SetCartItemQuantity(_ context.Context, arg db.SetCartItemQuantityParams) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[arg.ProductID.Bytes]; !ok {
		return 0, nil
	}
	f.items[arg.ProductID.Bytes] = arg.Quantity
	return 1, nil
}

func (f *fakeQueries) DeleteCartItem(_ context.Context, arg db.DeleteCartItemParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, arg.ProductID.Bytes)
	return nil
}

func (f *fakeQueries) ClearCart(context.Context, pgtype.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = map[[16]byte]int32{}
	return nil
}

func (f *fakeQueries) GetProductByID(_ context.Context, id pgtype.UUID) (db.Product, error) {
	p, ok := f.products[id.Bytes]
	if !ok {
		return db.Product{}, pgx.ErrNoRows
	}
	return p, nil
}

type capturePublisher struct {
	changes []events.ListChange
}

func (c *capturePublisher) Publish(_ context.Context, change events.ListChange) {
	c.changes = append(c.changes, change)
}

func TestAddIncrementsAndPublishes(t *testing.T) {
	q := newFakeQueries()
	pub := &capturePublisher{}
	svc := &Service{Q: q, Events: pub}
	user := uuid.NewString()
	product := q.addProduct("oud-noir", 2499, 10)
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, user, product, 2))
	require.NoError(t, svc.Add(ctx, user, product, 3))

	lines, err := svc.Lines(ctx, user)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Equal(t, 5, lines[0].Quantity)
	require.Equal(t, "https://cdn.example/oud-noir.jpg", lines[0].Image)

	require.Len(t, pub.changes, 2)
	require.Equal(t, events.TopicCartUpdated, pub.changes[1].Topic)
	require.Equal(t, events.UserOwner(user), pub.changes[1].Owner)
}

func TestAddRejectsBeyondStock(t *testing.T) {
	q := newFakeQueries()
	svc := &Service{Q: q}
	user := uuid.NewString()
	product := q.addProduct("amber", 999, 2)

	err := svc.Add(context.Background(), user, product, 3)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "OUT_OF_STOCK", appErr.Code)
}

func TestAddUnknownProduct(t *testing.T) {
	svc := &Service{Q: newFakeQueries()}
	err := svc.Add(context.Background(), uuid.NewString(), uuid.NewString(), 1)
	require.ErrorIs(t, err, common.ErrNotFound)

	err = svc.Add(context.Background(), uuid.NewString(), "not-a-uuid", 1)
	require.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestUpdateQuantityZeroRemoves(t *testing.T) {
	q := newFakeQueries()
	svc := &Service{Q: q}
	user := uuid.NewString()
	product := q.addProduct("vetiver", 1500, 5)
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, user, product, 1))
	require.NoError(t, svc.UpdateQuantity(ctx, user, product, 0))
	lines, err := svc.Lines(ctx, user)
	require.NoError(t, err)
	require.Empty(t, lines)

	err = svc.UpdateQuantity(ctx, user, product, 2)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRemoteMergesQuantities(t *testing.T) {
	q := newFakeQueries()
	svc := &Service{Q: q}
	user := uuid.NewString()
	product := q.addProduct("iris", 1800, 1)
	ctx := context.Background()

	qty, found, err := svc.Find(ctx, user, product)
	require.NoError(t, err)
	require.False(t, found)
	require.Zero(t, qty)

	require.NoError(t, svc.Create(ctx, user, product, 2))
	qty, found, err = svc.Find(ctx, user, product)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 2, qty)

	require.NoError(t, svc.SetQuantity(ctx, user, product, qty+3))
	lines, err := svc.Lines(ctx, user)
	require.NoError(t, err)
	require.Equal(t, 5, lines[0].Quantity)
}

func TestPricingLineCarriesTaxFields(t *testing.T) {
	rate := 12.0
	inclusive := false
	l := Line{ProductID: "p", Quantity: 2, Price: 100, GSTPercentage: &rate, PriceInclusiveOfTax: &inclusive}
	pl := l.PricingLine()
	require.Equal(t, 2, pl.Quantity)
	require.Equal(t, 100.0, pl.UnitPrice)
	require.Equal(t, &rate, pl.GSTPercentage)
	require.Equal(t, &inclusive, pl.PriceInclusiveOfTax)
}

func TestQuantityLimit(t *testing.T) {
	q := newFakeQueries()
	svc := &Service{Q: q}
	user := uuid.NewString()
	product := q.addProduct("oud", 4000, 500)
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, user, product, DefaultMaxQuantity))
	err := svc.Add(ctx, user, product, 1)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "QUANTITY_LIMIT", appErr.Code)
	require.ErrorIs(t, err, common.ErrInvalidInput)

	svc.MaxQuantity = 10
	err = svc.UpdateQuantity(ctx, user, product, 11)
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "QUANTITY_LIMIT", appErr.Code)
	require.NoError(t, svc.UpdateQuantity(ctx, user, product, 10))

	require.Equal(t, DefaultMaxQuantity, LineLimit(0))
	require.Equal(t, 7, LineLimit(7))
}

func TestRemoteClampsMigratedQuantity(t *testing.T) {
	q := newFakeQueries()
	svc := &Service{Q: q, MaxQuantity: 10}
	user := uuid.NewString()
	product := q.addProduct("saffron", 2200, 1)
	ctx := context.Background()

	require.NoError(t, svc.Create(ctx, user, product, 12))
	qty, _, err := svc.Find(ctx, user, product)
	require.NoError(t, err)
	require.Equal(t, 10, qty)

	require.NoError(t, svc.SetQuantity(ctx, user, product, qty+4))
	qty, _, err = svc.Find(ctx, user, product)
	require.NoError(t, err)
	require.Equal(t, 10, qty)
}
