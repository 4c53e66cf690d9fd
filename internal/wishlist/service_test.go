package wishlist

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-parfum/internal/common"
	"github.com/noah-isme/backend-parfum/internal/db"
	"github.com/noah-isme/backend-parfum/internal/events"
	"github.com/noah-isme/backend-parfum/internal/guest"
)

var _ guest.Remote = (*Service)(nil)

type fakeQueries struct {
	saved    map[[16]byte]time.Time
	products map[[16]byte]db.Product
}

func newFakeQueries() *fakeQueries {
	return &fakeQueries{saved: map[[16]byte]time.Time{}, products: map[[16]byte]db.Product{}}
}

func (f *fakeQueries) product(name string, active bool) string {
	id := uuid.New()
	f.products[id] = db.Product{ID: pgtype.UUID{Bytes: id, Valid: true}, Name: name, Slug: name, Price: 1200, IsActive: active}
	return id.String()
}

func (f *fakeQueries) GetWishlistItem(_ context.Context, arg db.GetWishlistItemParams) (db.WishlistItem, error) {
	if _, ok := f.saved[arg.ProductID.Bytes]; !ok {
		return db.WishlistItem{}, pgx.ErrNoRows
	}
	return db.WishlistItem{UserID: arg.UserID, ProductID: arg.ProductID}, nil
}

func (f *fakeQueries) ListWishlistLines(context.Context, pgtype.UUID) ([]db.WishlistLine, error) {
	var out []db.WishlistLine
	for id, at := range f.saved {
		p := f.products[id]
		out = append(out, db.WishlistLine{
			ProductID:   p.ID,
			ProductName: p.Name,
			ProductSlug: p.Slug,
			Price:       p.Price,
			CreatedAt:   pgtype.Timestamptz{Time: at, Valid: true},
		})
	}
	return out, nil
}

func (f *fakeQueries) InsertWishlistItem(_ context.Context, arg db.InsertWishlistItemParams) (int64, error) {
	if _, ok := f.saved[arg.ProductID.Bytes]; ok {
		return 0, nil
	}
	f.saved[arg.ProductID.Bytes] = time.Now()
	return 1, nil
}

func (f *fakeQueries) DeleteWishlistItem(_ context.Context, arg db.DeleteWishlistItemParams) error {
	delete(f.saved, arg.ProductID.Bytes)
	return nil
}

func (f *fakeQueries) ClearWishlist(context.Context, pgtype.UUID) error {
	f.saved = map[[16]byte]time.Time{}
	return nil
}

func (f *fakeQueries) GetProductByID(_ context.Context, id pgtype.UUID) (db.Product, error) {
	p, ok := f.products[id.Bytes]
	if !ok {
		return db.Product{}, pgx.ErrNoRows
	}
	return p, nil
}

type recorder struct{ changes []events.ListChange }

func (r *recorder) Publish(_ context.Context, c events.ListChange) { r.changes = append(r.changes, c) }

func TestAddDuplicateLeavesListUnchanged(t *testing.T) {
	q := newFakeQueries()
	rec := &recorder{}
	svc := &Service{Q: q, Events: rec}
	user := uuid.NewString()
	product := q.product("santal", true)
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, user, product))
	require.ErrorIs(t, svc.Add(ctx, user, product), ErrDuplicate)

	lines, err := svc.Lines(ctx, user)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Equal(t, "santal", lines[0].Name)
	require.Len(t, rec.changes, 1)
	require.Equal(t, events.TopicWishlistUpdated, rec.changes[0].Topic)
}

func TestAddInactiveProduct(t *testing.T) {
	q := newFakeQueries()
	svc := &Service{Q: q}
	product := q.product("retired", false)
	err := svc.Add(context.Background(), uuid.NewString(), product)
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestRemoteIgnoresDuplicates(t *testing.T) {
	q := newFakeQueries()
	svc := &Service{Q: q}
	user := uuid.NewString()
	product := q.product("neroli", true)
	ctx := context.Background()

	_, found, err := svc.Find(ctx, user, product)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, svc.Create(ctx, user, product, 4))
	require.NoError(t, svc.Create(ctx, user, product, 1))

	qty, found, err := svc.Find(ctx, user, product)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 1, qty)
}

func TestRemoveAndClear(t *testing.T) {
	q := newFakeQueries()
	svc := &Service{Q: q}
	user := uuid.NewString()
	a := q.product("a", true)
	b := q.product("b", true)
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, user, a))
	require.NoError(t, svc.Add(ctx, user, b))
	require.NoError(t, svc.Remove(ctx, user, a))
	lines, err := svc.Lines(ctx, user)
	require.NoError(t, err)
	require.Len(t, lines, 1)

	require.NoError(t, svc.Clear(ctx, user))
	lines, err = svc.Lines(ctx, user)
	require.NoError(t, err)
	require.Empty(t, lines)
}
