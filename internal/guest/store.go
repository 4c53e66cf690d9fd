package guest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-parfum/internal/events"
)

// Kind selects one of the two guest lists.
type Kind string

const (
	KindCart     Kind = "cart"
	KindWishlist Kind = "wishlist"
)

// Valid reports whether k names a known list.
func (k Kind) Valid() bool {
	return k == KindCart || k == KindWishlist
}

var (
	// ErrDuplicate is returned when a product is already in the wishlist.
	ErrDuplicate = errors.New("guest: product already in list")
	// ErrInvalidInput is returned for empty product ids or non-positive quantities.
	ErrInvalidInput = errors.New("guest: invalid input")
	// ErrUnsupported is returned for quantity updates on the wishlist.
	ErrUnsupported = errors.New("guest: operation not supported for this list")
	// ErrNotFound is returned when updating a product that is not in the cart.
	ErrNotFound = errors.New("guest: product not in list")
	// ErrConflict is returned when concurrent writers keep invalidating an update.
	ErrConflict = errors.New("guest: concurrent modification")
)

// Entry is one stored guest list row.
type Entry struct {
	ProductID string    `json:"productId"`
	Quantity  int       `json:"quantity,omitempty"`
	AddedAt   time.Time `json:"addedAt"`
}

const maxWriteAttempts = 5

// Store keeps guest carts and wishlists in Redis, one JSON array per list,
// read whole and written whole.
type Store struct {
	R      *redis.Client
	TTL    time.Duration
	Now    func() time.Time
	Events events.Publisher
	Logger zerolog.Logger
}

func (s *Store) ttl() time.Duration {
	if s == nil || s.TTL <= 0 {
		return 30 * 24 * time.Hour
	}
	return s.TTL
}

func (s *Store) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Key returns the Redis key holding the list.
func Key(guestID string, kind Kind) string {
	return "guest_" + string(kind) + ":" + guestID
}

// List returns a handle on one guest list.
func (s *Store) List(guestID string, kind Kind) *List {
	return &List{store: s, guestID: strings.TrimSpace(guestID), kind: kind}
}

// List is the guest cart or wishlist of a single visitor.
type List struct {
	store   *Store
	guestID string
	kind    Kind
}

// Kind reports which list this handle addresses.
func (l *List) Kind() Kind { return l.kind }

func (l *List) check() error {
	if l == nil || l.store == nil || l.store.R == nil {
		return errors.New("guest store not configured")
	}
	if l.guestID == "" {
		return fmt.Errorf("guest id required: %w", ErrInvalidInput)
	}
	if !l.kind.Valid() {
		return fmt.Errorf("unknown list %q: %w", l.kind, ErrInvalidInput)
	}
	return nil
}

func (l *List) key() string { return Key(l.guestID, l.kind) }

// decode parses the stored JSON. Corrupt data is logged and treated as empty.
func (l *List) decode(raw []byte) []Entry {
	if len(raw) == 0 {
		return nil
	}
	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		l.store.Logger.Warn().Err(err).Str("guest_id", l.guestID).Str("list", string(l.kind)).Msg("discard corrupt guest list")
		return nil
	}
	out := entries[:0]
	for _, e := range entries {
		if strings.TrimSpace(e.ProductID) == "" {
			continue
		}
		if l.kind == KindCart && e.Quantity <= 0 {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Items returns the current entries, empty when nothing or corrupt data is stored.
func (l *List) Items(ctx context.Context) ([]Entry, error) {
	if err := l.check(); err != nil {
		return nil, err
	}
	raw, err := l.store.R.Get(ctx, l.key()).Bytes()
	if errors.Is(err, redis.Nil) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load guest list: %w", err)
	}
	entries := l.decode(raw)
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}

// Count returns the quantity sum for carts and the entry count for wishlists.
func (l *List) Count(ctx context.Context) (int, error) {
	items, err := l.Items(ctx)
	if err != nil {
		return 0, err
	}
	return count(l.kind, items), nil
}

func count(kind Kind, items []Entry) int {
	if kind == KindWishlist {
		return len(items)
	}
	total := 0
	for _, e := range items {
		total += e.Quantity
	}
	return total
}

// Add appends productID or, for carts, increments its quantity. Adding a
// product already on the wishlist returns ErrDuplicate and leaves it unchanged.
func (l *List) Add(ctx context.Context, productID string, qty int) ([]Entry, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, fmt.Errorf("product id required: %w", ErrInvalidInput)
	}
	if l.kind == KindCart && qty <= 0 {
		return nil, fmt.Errorf("quantity must be positive: %w", ErrInvalidInput)
	}
	return l.mutate(ctx, func(items []Entry) ([]Entry, error) {
		for i := range items {
			if items[i].ProductID != productID {
				continue
			}
			if l.kind == KindWishlist {
				return nil, ErrDuplicate
			}
			items[i].Quantity += qty
			return items, nil
		}
		entry := Entry{ProductID: productID, AddedAt: l.store.now()}
		if l.kind == KindCart {
			entry.Quantity = qty
		}
		return append(items, entry), nil
	})
}

// UpdateQuantity sets the cart quantity of productID; qty <= 0 removes it.
func (l *List) UpdateQuantity(ctx context.Context, productID string, qty int) ([]Entry, error) {
	if l.kind != KindCart {
		return nil, ErrUnsupported
	}
	if qty <= 0 {
		return l.Remove(ctx, productID)
	}
	productID = strings.TrimSpace(productID)
	return l.mutate(ctx, func(items []Entry) ([]Entry, error) {
		for i := range items {
			if items[i].ProductID == productID {
				items[i].Quantity = qty
				return items, nil
			}
		}
		return nil, ErrNotFound
	})
}

// Remove drops productID from the list.
func (l *List) Remove(ctx context.Context, productID string) ([]Entry, error) {
	productID = strings.TrimSpace(productID)
	return l.mutate(ctx, func(items []Entry) ([]Entry, error) {
		out := items[:0]
		for _, e := range items {
			if e.ProductID != productID {
				out = append(out, e)
			}
		}
		return out, nil
	})
}

// Clear empties the list.
func (l *List) Clear(ctx context.Context) error {
	if err := l.check(); err != nil {
		return err
	}
	if err := l.store.R.Del(ctx, l.key()).Err(); err != nil {
		return fmt.Errorf("clear guest list: %w", err)
	}
	l.publish(ctx, []Entry{})
	return nil
}

// mutate applies fn under WATCH so concurrent writers for the same visitor
// never silently overwrite each other. The full list is written back and a
// change is published.
func (l *List) mutate(ctx context.Context, fn func([]Entry) ([]Entry, error)) ([]Entry, error) {
	if err := l.check(); err != nil {
		return nil, err
	}
	key := l.key()
	var result []Entry
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		items, err := fn(l.decode(raw))
		if err != nil {
			return err
		}
		if items == nil {
			items = []Entry{}
		}
		data, err := json.Marshal(items)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if len(items) == 0 {
				pipe.Del(ctx, key)
				return nil
			}
			pipe.Set(ctx, key, data, l.store.ttl())
			return nil
		})
		if err == nil {
			result = items
		}
		return err
	}

	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		err := l.store.R.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			if errors.Is(err, ErrDuplicate) || errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("update guest list: %w", err)
		}
		l.publish(ctx, result)
		return result, nil
	}
	return nil, ErrConflict
}

func (l *List) publish(ctx context.Context, items []Entry) {
	if l.store.Events == nil {
		return
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return
	}
	l.store.Events.Publish(ctx, events.ListChange{
		Topic: events.ListTopic(string(l.kind), true),
		Owner: events.GuestOwner(l.guestID),
		List:  string(l.kind),
		Items: payload,
		At:    l.store.now(),
	})
}
