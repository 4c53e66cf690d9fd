package guest

import (
	"context"

	"github.com/noah-isme/backend-parfum/internal/obs"
)

// Remote is the account-side list a guest list migrates into.
type Remote interface {
	// Find reports whether accountID already holds productID and its quantity.
	Find(ctx context.Context, accountID, productID string) (qty int, found bool, err error)
	// Create adds productID with qty to the account list.
	Create(ctx context.Context, accountID, productID string, qty int) error
	// SetQuantity overwrites the account quantity; only used for carts.
	SetQuantity(ctx context.Context, accountID, productID string, qty int) error
}

// MigrationReport summarises one migration run.
type MigrationReport struct {
	Created int `json:"created"`
	Merged  int `json:"merged"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Total is the number of entries processed.
func (r MigrationReport) Total() int {
	return r.Created + r.Merged + r.Skipped + r.Failed
}

// Migrate moves every entry into accountID's list on remote. Cart quantities
// are added to existing account quantities; wishlist duplicates are skipped.
// Per-entry failures are logged and counted but never abort the batch, and
// the guest list is cleared afterwards regardless. An empty list is a no-op.
// Failed entries are not retried.
func (l *List) Migrate(ctx context.Context, accountID string, remote Remote) MigrationReport {
	var report MigrationReport
	if err := l.check(); err != nil || remote == nil || accountID == "" {
		return report
	}
	log := l.store.Logger.With().
		Str("guest_id", l.guestID).
		Str("list", string(l.kind)).
		Str("account_id", accountID).
		Logger()

	items, err := l.Items(ctx)
	if err != nil {
		log.Error().Err(err).Msg("load guest list for migration")
		return report
	}
	if len(items) == 0 {
		return report
	}

	for _, entry := range items {
		result := l.migrateEntry(ctx, accountID, entry, remote)
		switch result {
		case "created":
			report.Created++
		case "merged":
			report.Merged++
		case "skipped":
			report.Skipped++
		default:
			report.Failed++
		}
		obs.IncGuestMigration(string(l.kind), result)
	}

	if err := l.Clear(ctx); err != nil {
		log.Error().Err(err).Msg("clear guest list after migration")
	}
	evt := log.Info()
	if report.Failed > 0 {
		evt = log.Warn()
	}
	evt.Int("created", report.Created).
		Int("merged", report.Merged).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Msg("guest list migrated")
	return report
}

func (l *List) migrateEntry(ctx context.Context, accountID string, entry Entry, remote Remote) string {
	log := l.store.Logger.With().Str("guest_id", l.guestID).Str("product_id", entry.ProductID).Logger()
	existing, found, err := remote.Find(ctx, accountID, entry.ProductID)
	if err != nil {
		log.Error().Err(err).Msg("lookup account entry during migration")
		return "failed"
	}
	if found {
		if l.kind == KindWishlist {
			return "skipped"
		}
		if err := remote.SetQuantity(ctx, accountID, entry.ProductID, existing+entry.Quantity); err != nil {
			log.Error().Err(err).Msg("merge cart quantity during migration")
			return "failed"
		}
		return "merged"
	}
	qty := entry.Quantity
	if l.kind == KindWishlist {
		qty = 1
	}
	if err := remote.Create(ctx, accountID, entry.ProductID, qty); err != nil {
		log.Error().Err(err).Msg("create account entry during migration")
		return "failed"
	}
	return "created"
}
