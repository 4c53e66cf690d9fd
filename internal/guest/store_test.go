package guest_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-parfum/internal/events"
	"github.com/noah-isme/backend-parfum/internal/guest"
)

type recordingPublisher struct {
	mu      sync.Mutex
	changes []events.ListChange
}

func (p *recordingPublisher) Publish(_ context.Context, change events.ListChange) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, change)
}

func (p *recordingPublisher) last() events.ListChange {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.changes[len(p.changes)-1]
}

func newStore(t *testing.T) (*guest.Store, *miniredis.Miniredis, *recordingPublisher) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	pub := &recordingPublisher{}
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return &guest.Store{R: client, TTL: time.Hour, Events: pub, Now: func() time.Time { return now }}, mr, pub
}

func TestCartAddIncrementsExistingEntry(t *testing.T) {
	store, mr, pub := newStore(t)
	cart := store.List("g1", guest.KindCart)
	ctx := context.Background()

	_, err := cart.Add(ctx, "A", 2)
	require.NoError(t, err)
	items, err := cart.Add(ctx, "A", 3)
	require.NoError(t, err)

	require.Len(t, items, 1)
	require.Equal(t, "A", items[0].ProductID)
	require.Equal(t, 5, items[0].Quantity)

	stored, err := mr.Get("guest_cart:g1")
	require.NoError(t, err)
	var entries []guest.Entry
	require.NoError(t, json.Unmarshal([]byte(stored), &entries))
	require.Len(t, entries, 1)
	require.Equal(t, 5, entries[0].Quantity)
	require.Equal(t, time.Hour, mr.TTL("guest_cart:g1"))

	change := pub.last()
	require.Equal(t, events.TopicGuestCartUpdated, change.Topic)
	require.Equal(t, events.GuestOwner("g1"), change.Owner)
	require.JSONEq(t, stored, string(change.Items))
}

func TestCartUpdateQuantityZeroEqualsRemove(t *testing.T) {
	store, _, _ := newStore(t)
	ctx := context.Background()

	viaUpdate := store.List("g1", guest.KindCart)
	viaRemove := store.List("g2", guest.KindCart)
	for _, l := range []*guest.List{viaUpdate, viaRemove} {
		_, err := l.Add(ctx, "A", 1)
		require.NoError(t, err)
		_, err = l.Add(ctx, "B", 2)
		require.NoError(t, err)
	}

	_, err := viaUpdate.UpdateQuantity(ctx, "A", 0)
	require.NoError(t, err)
	_, err = viaRemove.Remove(ctx, "A")
	require.NoError(t, err)

	a, err := viaUpdate.Items(ctx)
	require.NoError(t, err)
	b, err := viaRemove.Items(ctx)
	require.NoError(t, err)
	require.Equal(t, b, a)
	require.Len(t, a, 1)
	require.Equal(t, "B", a[0].ProductID)
}

func TestCartUpdateQuantitySetsValue(t *testing.T) {
	store, _, _ := newStore(t)
	ctx := context.Background()
	cart := store.List("g1", guest.KindCart)
	_, err := cart.Add(ctx, "A", 1)
	require.NoError(t, err)
	items, err := cart.UpdateQuantity(ctx, "A", 7)
	require.NoError(t, err)
	require.Equal(t, 7, items[0].Quantity)

	count, err := cart.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 7, count)
}

func TestCartUpdateQuantityAbsentProduct(t *testing.T) {
	store, mr, _ := newStore(t)
	ctx := context.Background()
	cart := store.List("g1", guest.KindCart)

	_, err := cart.UpdateQuantity(ctx, "A", 3)
	require.ErrorIs(t, err, guest.ErrNotFound)
	require.False(t, mr.Exists(guest.Key("g1", guest.KindCart)))

	_, err = cart.Add(ctx, "B", 1)
	require.NoError(t, err)
	_, err = cart.UpdateQuantity(ctx, "A", 3)
	require.ErrorIs(t, err, guest.ErrNotFound)
	items, err := cart.Items(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "B", items[0].ProductID)
}

func TestWishlistRejectsDuplicates(t *testing.T) {
	store, _, _ := newStore(t)
	ctx := context.Background()
	wl := store.List("g1", guest.KindWishlist)

	_, err := wl.Add(ctx, "A", 1)
	require.NoError(t, err)
	_, err = wl.Add(ctx, "A", 1)
	require.ErrorIs(t, err, guest.ErrDuplicate)
	_, err = wl.Add(ctx, "B", 1)
	require.NoError(t, err)

	count, err := wl.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	_, err = wl.UpdateQuantity(ctx, "A", 3)
	require.ErrorIs(t, err, guest.ErrUnsupported)
}

func TestCorruptStorageIsTreatedAsEmpty(t *testing.T) {
	store, mr, _ := newStore(t)
	ctx := context.Background()
	require.NoError(t, mr.Set("guest_cart:g1", "{not json"))

	cart := store.List("g1", guest.KindCart)
	items, err := cart.Items(ctx)
	require.NoError(t, err)
	require.Empty(t, items)

	items, err = cart.Add(ctx, "A", 1)
	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestAddValidatesInput(t *testing.T) {
	store, _, _ := newStore(t)
	ctx := context.Background()
	_, err := store.List("g1", guest.KindCart).Add(ctx, "A", 0)
	require.ErrorIs(t, err, guest.ErrInvalidInput)
	_, err = store.List("", guest.KindCart).Add(ctx, "A", 1)
	require.ErrorIs(t, err, guest.ErrInvalidInput)
	_, err = store.List("g1", guest.Kind("basket")).Add(ctx, "A", 1)
	require.ErrorIs(t, err, guest.ErrInvalidInput)
}

func TestClearRemovesKeyAndNotifies(t *testing.T) {
	store, mr, pub := newStore(t)
	ctx := context.Background()
	cart := store.List("g1", guest.KindCart)
	_, err := cart.Add(ctx, "A", 1)
	require.NoError(t, err)

	require.NoError(t, cart.Clear(ctx))
	require.False(t, mr.Exists("guest_cart:g1"))
	require.JSONEq(t, `[]`, string(pub.last().Items))
}

func TestConcurrentAddsAreNotLost(t *testing.T) {
	store, _, _ := newStore(t)
	ctx := context.Background()
	cart := store.List("g1", guest.KindCart)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var conflicts int
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cart.Add(ctx, "A", 1); err != nil {
				mu.Lock()
				defer mu.Unlock()
				if errors.Is(err, guest.ErrConflict) {
					conflicts++
					return
				}
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	count, err := cart.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 4-conflicts, count)
}
