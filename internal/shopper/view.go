package shopper

import (
	"context"
	"sync"

	"github.com/noah-isme/backend-parfum/internal/events"
	"github.com/noah-isme/backend-parfum/internal/guest"
)

// State is the reconciliation phase of a View.
type State int

const (
	// StateIdle means the local projection mirrors the last fetch.
	StateIdle State = iota
	// StateOptimistic means a local mutation is applied but unconfirmed.
	StateOptimistic
	// StateConfirmed means the server accepted the last mutation.
	StateConfirmed
	// StateReverting means the last mutation failed and authoritative
	// state is being re-fetched.
	StateReverting
)

func (s State) String() string {
	switch s {
	case StateOptimistic:
		return "optimistic"
	case StateConfirmed:
		return "confirmed"
	case StateReverting:
		return "reverting"
	default:
		return "idle"
	}
}

// Remote is the list API a View reconciles against.
type Remote interface {
	List(ctx context.Context, kind guest.Kind) (Snapshot, error)
	Add(ctx context.Context, kind guest.Kind, productID string, qty int) (Snapshot, error)
	UpdateQuantity(ctx context.Context, productID string, qty int) (Snapshot, error)
	Remove(ctx context.Context, kind guest.Kind, productID string) (Snapshot, error)
	Clear(ctx context.Context, kind guest.Kind) error
}

// ChangeSource delivers server-pushed list changes.
type ChangeSource interface {
	Changes(ctx context.Context) (<-chan events.ListChange, error)
}

// View is a client-side projection of one list. Mutations are applied
// locally first and then confirmed by the server; a failed mutation moves
// the view to StateReverting and re-fetches before the error is returned.
type View struct {
	// OnChange, when set, is called after every state or content change.
	OnChange func(Snapshot, State)

	remote Remote
	kind   guest.Kind

	mu       sync.Mutex
	snap     Snapshot
	state    State
	loaded   bool
	inFlight bool
	seq      uint64
	fetchSeq uint64
	applied  uint64
	err      error
}

// NewView constructs a View of kind backed by remote.
func NewView(remote Remote, kind guest.Kind) *View {
	return &View{remote: remote, kind: kind, snap: Summarize(kind, nil, false)}
}

// Snapshot returns the current local projection.
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snap
}

// State returns the reconciliation phase.
func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Loading reports whether the first fetch has not completed yet.
func (v *View) Loading() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return !v.loaded
}

// Err returns the error of the last failed fetch or mutation.
func (v *View) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.err
}

// Fetch loads the authoritative list. While another fetch is in flight the
// call returns immediately unless force is set. Responses older than the
// last applied one are discarded. A failed fetch leaves an empty list and
// records the error.
func (v *View) Fetch(ctx context.Context, force bool) error {
	v.mu.Lock()
	if v.inFlight && !force {
		v.mu.Unlock()
		return nil
	}
	v.inFlight = true
	v.seq++
	seq := v.seq
	v.fetchSeq = seq
	v.mu.Unlock()

	snap, err := v.remote.List(ctx, v.kind)

	v.mu.Lock()
	if seq == v.fetchSeq {
		v.inFlight = false
	}
	if seq < v.applied {
		v.mu.Unlock()
		return err
	}
	v.applied = seq
	v.loaded = true
	v.err = err
	if err != nil {
		v.snap = Summarize(v.kind, nil, v.snap.Guest)
	} else {
		v.snap = snap
	}
	v.mu.Unlock()
	v.notify()
	return err
}

// Add puts productID on the list. Adding a product the local wishlist
// already holds returns ErrDuplicate without a round trip.
func (v *View) Add(ctx context.Context, productID string, qty int) error {
	if v.kind == guest.KindWishlist {
		qty = 1
		v.mu.Lock()
		for _, it := range v.snap.Items {
			if it.ProductID == productID {
				v.mu.Unlock()
				return ErrDuplicate
			}
		}
		v.mu.Unlock()
	}
	return v.mutate(ctx, func(items []Item) []Item {
		for i := range items {
			if items[i].ProductID == productID {
				items[i].Quantity += qty
				return items
			}
		}
		return append(items, Item{ProductID: productID, Quantity: qty})
	}, func() (Snapshot, error) {
		return v.remote.Add(ctx, v.kind, productID, qty)
	})
}

// UpdateQuantity sets a cart line; qty <= 0 removes it.
func (v *View) UpdateQuantity(ctx context.Context, productID string, qty int) error {
	if v.kind != guest.KindCart {
		return guest.ErrUnsupported
	}
	if qty <= 0 {
		return v.Remove(ctx, productID)
	}
	return v.mutate(ctx, func(items []Item) []Item {
		for i := range items {
			if items[i].ProductID == productID {
				items[i].Quantity = qty
			}
		}
		return items
	}, func() (Snapshot, error) {
		return v.remote.UpdateQuantity(ctx, productID, qty)
	})
}

// Remove drops productID.
func (v *View) Remove(ctx context.Context, productID string) error {
	return v.mutate(ctx, func(items []Item) []Item {
		out := items[:0]
		for _, it := range items {
			if it.ProductID != productID {
				out = append(out, it)
			}
		}
		return out
	}, func() (Snapshot, error) {
		return v.remote.Remove(ctx, v.kind, productID)
	})
}

// Clear empties the list.
func (v *View) Clear(ctx context.Context) error {
	return v.mutate(ctx, func([]Item) []Item {
		return nil
	}, func() (Snapshot, error) {
		if err := v.remote.Clear(ctx, v.kind); err != nil {
			return Snapshot{}, err
		}
		return v.remote.List(ctx, v.kind)
	})
}

func (v *View) mutate(ctx context.Context, apply func([]Item) []Item, call func() (Snapshot, error)) error {
	v.mu.Lock()
	items := append([]Item(nil), v.snap.Items...)
	v.snap = Summarize(v.kind, apply(items), v.snap.Guest)
	v.state = StateOptimistic
	v.seq++
	v.applied = v.seq
	v.mu.Unlock()
	v.notify()

	snap, err := call()
	if err == nil {
		v.mu.Lock()
		v.seq++
		v.applied = v.seq
		v.snap = snap
		v.state = StateConfirmed
		v.loaded = true
		v.err = nil
		v.mu.Unlock()
		v.notify()
		return nil
	}

	v.mu.Lock()
	v.state = StateReverting
	v.mu.Unlock()
	v.notify()

	_ = v.Fetch(ctx, true)

	v.mu.Lock()
	v.state = StateIdle
	v.err = err
	v.mu.Unlock()
	v.notify()
	return err
}

// Watch re-fetches on every server change for this list until ctx ends or
// the source closes. Overlapping fetches are skipped by the in-flight guard.
func (v *View) Watch(ctx context.Context, src ChangeSource) error {
	changes, err := src.Changes(ctx)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case change, ok := <-changes:
			if !ok {
				return nil
			}
			if change.List != string(v.kind) {
				continue
			}
			_ = v.Fetch(ctx, false)
		}
	}
}

func (v *View) notify() {
	if v.OnChange == nil {
		return
	}
	v.mu.Lock()
	snap, state := v.snap, v.state
	v.mu.Unlock()
	v.OnChange(snap, state)
}
