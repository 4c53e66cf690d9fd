package shopper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-parfum/internal/cart"
	"github.com/noah-isme/backend-parfum/internal/common"
	"github.com/noah-isme/backend-parfum/internal/db"
	"github.com/noah-isme/backend-parfum/internal/guest"
	"github.com/noah-isme/backend-parfum/internal/pricing"
	"github.com/noah-isme/backend-parfum/internal/wishlist"
)

var (
	// ErrDuplicate is returned when a product is already on the wishlist.
	ErrDuplicate = errors.New("product already in wishlist")
	// ErrNoIdentity is returned when the request carries neither a session nor a guest id.
	ErrNoIdentity = fmt.Errorf("guest id or session required: %w", common.ErrUnauthorized)
	// ErrUnknownList is returned for list kinds other than cart and wishlist.
	ErrUnknownList = fmt.Errorf("unknown list: %w", common.ErrInvalidInput)
)

// CartStore is the account-side cart.
type CartStore interface {
	guest.Remote
	Lines(ctx context.Context, userID string) ([]cart.Line, error)
	Add(ctx context.Context, userID, productID string, qty int) error
	UpdateQuantity(ctx context.Context, userID, productID string, qty int) error
	Remove(ctx context.Context, userID, productID string) error
	Clear(ctx context.Context, userID string) error
}

// WishlistStore is the account-side wishlist.
type WishlistStore interface {
	guest.Remote
	Lines(ctx context.Context, userID string) ([]wishlist.Line, error)
	Add(ctx context.Context, userID, productID string) error
	Remove(ctx context.Context, userID, productID string) error
	Clear(ctx context.Context, userID string) error
}

// ProductReader resolves guest entries to catalog products.
type ProductReader interface {
	GetProductsByIDs(ctx context.Context, ids []pgtype.UUID) ([]db.Product, error)
}

// Locker serialises migrations of one guest id across API instances.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Item is one cart or wishlist row. Guest and account lists share the shape.
type Item struct {
	ProductID           string     `json:"productId"`
	Name                string     `json:"name"`
	Slug                string     `json:"slug"`
	Quantity            int        `json:"quantity"`
	Price               float64    `json:"price"`
	OriginalPrice       *float64   `json:"originalPrice,omitempty"`
	GSTPercentage       *float64   `json:"gstPercentage,omitempty"`
	PriceInclusiveOfTax *bool      `json:"priceInclusiveOfTax,omitempty"`
	HSNCode             string     `json:"hsnCode,omitempty"`
	Stock               int        `json:"stock"`
	Image               string     `json:"image,omitempty"`
	AddedAt             *time.Time `json:"addedAt,omitempty"`
}

// PricingLine converts the item for tax computation.
func (i Item) PricingLine() pricing.Line {
	return pricing.Line{
		ProductID:           i.ProductID,
		Quantity:            i.Quantity,
		UnitPrice:           i.Price,
		OriginalPrice:       i.OriginalPrice,
		GSTPercentage:       i.GSTPercentage,
		PriceInclusiveOfTax: i.PriceInclusiveOfTax,
	}
}

// Snapshot is a list together with its summary figures.
type Snapshot struct {
	Kind  guest.Kind `json:"kind"`
	Items []Item     `json:"items"`
	Count int        `json:"count"`
	Total float64    `json:"total"`
	Guest bool       `json:"guest"`
}

// Summarize builds a Snapshot. Count sums cart quantities and counts
// wishlist entries; Total is the sum of listed prices times quantity.
func Summarize(kind guest.Kind, items []Item, guestMode bool) Snapshot {
	if items == nil {
		items = []Item{}
	}
	snap := Snapshot{Kind: kind, Items: items, Guest: guestMode}
	for _, it := range items {
		if kind == guest.KindWishlist {
			snap.Count++
			snap.Total += it.Price
			continue
		}
		snap.Count += it.Quantity
		snap.Total += it.Price * float64(it.Quantity)
	}
	return snap
}

// MergeResult reports what a guest-to-account migration did.
type MergeResult struct {
	Cart     guest.MigrationReport `json:"cart"`
	Wishlist guest.MigrationReport `json:"wishlist"`
}

// Service is the single cart and wishlist entry point. It routes each call
// to the guest store or the account store depending on the identity, and
// folds the guest lists into the account the first time both are known.
type Service struct {
	Guests   *guest.Store
	Cart     CartStore
	Wishlist WishlistStore
	Products ProductReader
	Locker   Locker
	LockTTL  time.Duration
	Logger   zerolog.Logger
	// MaxQuantity caps a guest cart line, 0 means cart.DefaultMaxQuantity.
	MaxQuantity int
}

func (s *Service) ready() error {
	if s == nil || s.Guests == nil || s.Cart == nil || s.Wishlist == nil || s.Products == nil {
		return errors.New("shopper service not configured")
	}
	return nil
}

func (s *Service) lockTTL() time.Duration {
	if s.LockTTL <= 0 {
		return 10 * time.Second
	}
	return s.LockTTL
}

func (s *Service) begin(ctx context.Context, id Identity, kind guest.Kind) error {
	if err := s.ready(); err != nil {
		return err
	}
	if !kind.Valid() {
		return ErrUnknownList
	}
	if id.Anonymous() {
		return ErrNoIdentity
	}
	if id.Authenticated() && id.GuestID != "" {
		if _, err := s.Merge(ctx, id); err != nil {
			s.Logger.Warn().Err(err).Str("guest_id", id.GuestID).Msg("guest list merge deferred")
		}
	}
	return nil
}

// List returns the current list for id.
func (s *Service) List(ctx context.Context, id Identity, kind guest.Kind) (Snapshot, error) {
	if err := s.begin(ctx, id, kind); err != nil {
		return Snapshot{}, err
	}
	items, err := s.items(ctx, id, kind)
	if err != nil {
		return Snapshot{}, err
	}
	return Summarize(kind, items, !id.Authenticated()), nil
}

func (s *Service) items(ctx context.Context, id Identity, kind guest.Kind) ([]Item, error) {
	if !id.Authenticated() {
		entries, err := s.Guests.List(id.GuestID, kind).Items(ctx)
		if err != nil {
			return nil, err
		}
		return s.resolveGuest(ctx, entries)
	}
	if kind == guest.KindWishlist {
		lines, err := s.Wishlist.Lines(ctx, id.UserID)
		if err != nil {
			return nil, err
		}
		return fromWishlist(lines), nil
	}
	lines, err := s.Cart.Lines(ctx, id.UserID)
	if err != nil {
		return nil, err
	}
	return fromCart(lines), nil
}

// Add puts productID on the list. Wishlist duplicates return ErrDuplicate.
func (s *Service) Add(ctx context.Context, id Identity, kind guest.Kind, productID string, qty int) (Snapshot, error) {
	if err := s.begin(ctx, id, kind); err != nil {
		return Snapshot{}, err
	}
	if kind == guest.KindWishlist {
		qty = 1
	}
	if qty <= 0 {
		return Snapshot{}, fmt.Errorf("quantity must be positive: %w", common.ErrInvalidInput)
	}
	var err error
	switch {
	case !id.Authenticated():
		err = s.addGuest(ctx, id.GuestID, kind, productID, qty)
	case kind == guest.KindWishlist:
		err = s.Wishlist.Add(ctx, id.UserID, productID)
	default:
		err = s.Cart.Add(ctx, id.UserID, productID, qty)
	}
	if errors.Is(err, guest.ErrDuplicate) || errors.Is(err, wishlist.ErrDuplicate) {
		return Snapshot{}, ErrDuplicate
	}
	if err != nil {
		return Snapshot{}, err
	}
	return s.List(ctx, id, kind)
}

func (s *Service) addGuest(ctx context.Context, guestID string, kind guest.Kind, productID string, qty int) error {
	product, err := s.product(ctx, productID)
	if err != nil {
		return err
	}
	list := s.Guests.List(guestID, kind)
	if kind == guest.KindCart {
		entries, err := list.Items(ctx)
		if err != nil {
			return err
		}
		current := 0
		for _, e := range entries {
			if e.ProductID == productID {
				current = e.Quantity
			}
		}
		if err := cart.CheckQuantity(product, current+qty, cart.LineLimit(s.MaxQuantity)); err != nil {
			return err
		}
	}
	_, err = list.Add(ctx, common.UUIDString(product.ID), qty)
	return err
}

func (s *Service) product(ctx context.Context, productID string) (db.Product, error) {
	pid, err := common.ToUUID(productID)
	if err != nil {
		return db.Product{}, fmt.Errorf("parse product id: %w", common.ErrInvalidInput)
	}
	rows, err := s.Products.GetProductsByIDs(ctx, []pgtype.UUID{pid})
	if err != nil {
		return db.Product{}, err
	}
	if len(rows) == 0 || !rows[0].IsActive {
		return db.Product{}, fmt.Errorf("product: %w", common.ErrNotFound)
	}
	return rows[0], nil
}

// UpdateQuantity sets a cart line; qty <= 0 removes it.
func (s *Service) UpdateQuantity(ctx context.Context, id Identity, productID string, qty int) (Snapshot, error) {
	if err := s.begin(ctx, id, guest.KindCart); err != nil {
		return Snapshot{}, err
	}
	var err error
	if id.Authenticated() {
		err = s.Cart.UpdateQuantity(ctx, id.UserID, productID, qty)
	} else {
		err = s.updateGuest(ctx, id.GuestID, productID, qty)
	}
	if err != nil {
		return Snapshot{}, err
	}
	return s.List(ctx, id, guest.KindCart)
}

// updateGuest applies the account cart's rules to a guest line: the same
// quantity cap and stock check, and cart.ErrNotFound for an absent product.
func (s *Service) updateGuest(ctx context.Context, guestID, productID string, qty int) error {
	list := s.Guests.List(guestID, guest.KindCart)
	if qty <= 0 {
		_, err := list.Remove(ctx, canonicalID(productID))
		return err
	}
	product, err := s.product(ctx, productID)
	if err != nil {
		return err
	}
	if err := cart.CheckQuantity(product, qty, cart.LineLimit(s.MaxQuantity)); err != nil {
		return err
	}
	_, err = list.UpdateQuantity(ctx, common.UUIDString(product.ID), qty)
	if errors.Is(err, guest.ErrNotFound) {
		return cart.ErrNotFound
	}
	return err
}

// Remove drops productID from the list.
func (s *Service) Remove(ctx context.Context, id Identity, kind guest.Kind, productID string) (Snapshot, error) {
	if err := s.begin(ctx, id, kind); err != nil {
		return Snapshot{}, err
	}
	var err error
	switch {
	case !id.Authenticated():
		_, err = s.Guests.List(id.GuestID, kind).Remove(ctx, canonicalID(productID))
	case kind == guest.KindWishlist:
		err = s.Wishlist.Remove(ctx, id.UserID, productID)
	default:
		err = s.Cart.Remove(ctx, id.UserID, productID)
	}
	if err != nil {
		return Snapshot{}, err
	}
	return s.List(ctx, id, kind)
}

// Clear empties the list.
func (s *Service) Clear(ctx context.Context, id Identity, kind guest.Kind) error {
	if err := s.begin(ctx, id, kind); err != nil {
		return err
	}
	switch {
	case !id.Authenticated():
		return s.Guests.List(id.GuestID, kind).Clear(ctx)
	case kind == guest.KindWishlist:
		return s.Wishlist.Clear(ctx, id.UserID)
	default:
		return s.Cart.Clear(ctx, id.UserID)
	}
}

// Merge migrates both guest lists of id into its account. It runs under a
// lock on the guest id; since migration clears the guest lists, repeated
// calls for the same identity find nothing to do.
func (s *Service) Merge(ctx context.Context, id Identity) (MergeResult, error) {
	var result MergeResult
	if err := s.ready(); err != nil {
		return result, err
	}
	if !id.Authenticated() {
		return result, fmt.Errorf("merge requires a session: %w", common.ErrUnauthorized)
	}
	if id.GuestID == "" {
		return result, nil
	}
	cartList := s.Guests.List(id.GuestID, guest.KindCart)
	wishList := s.Guests.List(id.GuestID, guest.KindWishlist)
	pending, err := s.pending(ctx, cartList, wishList)
	if err != nil || !pending {
		return result, err
	}

	run := func(ctx context.Context) error {
		result.Cart = cartList.Migrate(ctx, id.UserID, s.Cart)
		result.Wishlist = wishList.Migrate(ctx, id.UserID, s.Wishlist)
		return nil
	}
	if s.Locker == nil {
		return result, run(ctx)
	}
	err = s.Locker.WithLock(ctx, "guest-migrate:"+id.GuestID, s.lockTTL(), run)
	return result, err
}

func (s *Service) pending(ctx context.Context, lists ...*guest.List) (bool, error) {
	for _, l := range lists {
		n, err := l.Count(ctx)
		if err != nil {
			return false, err
		}
		if n > 0 {
			return true, nil
		}
	}
	return false, nil
}

// canonicalID normalises UUID spelling so guest entries match regardless of
// how the client formatted the id.
func canonicalID(productID string) string {
	if pid, err := common.ToUUID(productID); err == nil {
		return common.UUIDString(pid)
	}
	return productID
}

// resolveGuest joins guest entries with catalog data, dropping entries
// whose product no longer exists or is inactive.
func (s *Service) resolveGuest(ctx context.Context, entries []guest.Entry) ([]Item, error) {
	if len(entries) == 0 {
		return []Item{}, nil
	}
	ids := make([]pgtype.UUID, 0, len(entries))
	for _, e := range entries {
		if pid, err := common.ToUUID(e.ProductID); err == nil {
			ids = append(ids, pid)
		}
	}
	products := map[string]db.Product{}
	if len(ids) > 0 {
		rows, err := s.Products.GetProductsByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, p := range rows {
			products[common.UUIDString(p.ID)] = p
		}
	}
	items := make([]Item, 0, len(entries))
	for _, e := range entries {
		p, ok := products[e.ProductID]
		if !ok || !p.IsActive {
			continue
		}
		added := e.AddedAt
		item := Item{
			ProductID:     e.ProductID,
			Name:          p.Name,
			Slug:          p.Slug,
			Quantity:      e.Quantity,
			Price:         p.Price,
			OriginalPrice: common.NullableFloat(p.OriginalPrice),
			GSTPercentage: common.NullableFloat(p.GstPercentage),
			HSNCode:       p.HsnCode.String,
			Stock:         int(p.Stock),
			AddedAt:       &added,
		}
		if item.Quantity <= 0 {
			item.Quantity = 1
		}
		if p.PriceInclusiveOfTax.Valid {
			v := p.PriceInclusiveOfTax.Bool
			item.PriceInclusiveOfTax = &v
		}
		if len(p.Images) > 0 {
			item.Image = p.Images[0]
		}
		items = append(items, item)
	}
	return items, nil
}

func fromCart(lines []cart.Line) []Item {
	items := make([]Item, 0, len(lines))
	for _, l := range lines {
		items = append(items, Item{
			ProductID:           l.ProductID,
			Name:                l.Name,
			Slug:                l.Slug,
			Quantity:            l.Quantity,
			Price:               l.Price,
			OriginalPrice:       l.OriginalPrice,
			GSTPercentage:       l.GSTPercentage,
			PriceInclusiveOfTax: l.PriceInclusiveOfTax,
			HSNCode:             l.HSNCode,
			Stock:               l.Stock,
			Image:               l.Image,
		})
	}
	return items
}

func fromWishlist(lines []wishlist.Line) []Item {
	items := make([]Item, 0, len(lines))
	for _, l := range lines {
		added := l.AddedAt
		items = append(items, Item{
			ProductID:     l.ProductID,
			Name:          l.Name,
			Slug:          l.Slug,
			Quantity:      1,
			Price:         l.Price,
			OriginalPrice: l.OriginalPrice,
			Image:         l.Image,
			AddedAt:       &added,
		})
	}
	return items
}
