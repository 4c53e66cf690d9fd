package checkout_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-parfum/internal/checkout"
	"github.com/noah-isme/backend-parfum/internal/common"
	"github.com/noah-isme/backend-parfum/internal/db"
	"github.com/noah-isme/backend-parfum/internal/events"
	"github.com/noah-isme/backend-parfum/internal/guest"
	"github.com/noah-isme/backend-parfum/internal/payment"
	"github.com/noah-isme/backend-parfum/internal/settings"
	"github.com/noah-isme/backend-parfum/internal/shopper"
	"github.com/noah-isme/backend-parfum/internal/user"
)

type fakeLists struct {
	mu      sync.Mutex
	items   map[string][]shopper.Item
	cleared []string
}

func (f *fakeLists) key(id shopper.Identity) string {
	if id.UserID != "" {
		return id.UserID
	}
	return "guest:" + id.GuestID
}

func (f *fakeLists) List(_ context.Context, id shopper.Identity, kind guest.Kind) (shopper.Snapshot, error) {
	if id.Anonymous() {
		return shopper.Snapshot{}, shopper.ErrNoIdentity
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return shopper.Summarize(kind, f.items[f.key(id)], !id.Authenticated()), nil
}

func (f *fakeLists) Clear(_ context.Context, id shopper.Identity, _ guest.Kind) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, f.key(id))
	f.cleared = append(f.cleared, f.key(id))
	return nil
}

type fakeAddresses struct {
	byID map[string]user.Address
}

func (f *fakeAddresses) Get(_ context.Context, userID, addressID string) (user.Address, error) {
	a, ok := f.byID[userID+"/"+addressID]
	if !ok {
		return user.Address{}, common.NewAppError("NOT_FOUND", "address not found", http.StatusNotFound, common.ErrNotFound)
	}
	return a, nil
}

type staticSettings struct{ site settings.Site }

func (s staticSettings) Get(context.Context) (settings.Site, error) { return s.site, nil }

type fakeDB struct {
	mu     sync.Mutex
	seq    int64
	orders []db.Order
	items  map[pgtype.UUID][]db.OrderItem
}

func (f *fakeDB) NextInvoiceSequence(context.Context) (int64, error) {
	f.seq++
	return f.seq, nil
}

func (f *fakeDB) CreateOrder(_ context.Context, arg db.CreateOrderParams) (db.Order, error) {
	for _, o := range f.orders {
		if o.GatewayOrderID == arg.GatewayOrderID {
			return db.Order{}, &pgconn.PgError{Code: "23505"}
		}
	}
	o := db.Order{
		ID: pgtype.UUID{Bytes: uuid.New(), Valid: true}, UserID: arg.UserID, InvoiceNumber: arg.InvoiceNumber,
		Status: arg.Status, Currency: arg.Currency, Subtotal: arg.Subtotal, TotalTax: arg.TotalTax,
		Cgst: arg.Cgst, Sgst: arg.Sgst, Igst: arg.Igst, Shipping: arg.Shipping, Discount: arg.Discount,
		Total: arg.Total, BillingAddress: arg.BillingAddress, GatewayOrderID: arg.GatewayOrderID, PaymentID: arg.PaymentID,
	}
	f.orders = append(f.orders, o)
	return o, nil
}

func (f *fakeDB) CreateOrderItem(_ context.Context, arg db.CreateOrderItemParams) error {
	f.items[arg.OrderID] = append(f.items[arg.OrderID], db.OrderItem{
		OrderID: arg.OrderID, ProductID: arg.ProductID, ProductName: arg.ProductName, HsnCode: arg.HsnCode,
		Quantity: arg.Quantity, UnitPrice: arg.UnitPrice, GstPercentage: arg.GstPercentage,
		TaxableValue: arg.TaxableValue, GstAmount: arg.GstAmount, LineTotal: arg.LineTotal,
	})
	return nil
}

func (f *fakeDB) GetOrderByGatewayOrderID(_ context.Context, id string) (db.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.GatewayOrderID == id {
			return o, nil
		}
	}
	return db.Order{}, pgx.ErrNoRows
}

func (f *fakeDB) ListOrderItems(_ context.Context, id pgtype.UUID) ([]db.OrderItem, error) {
	return f.items[id], nil
}

// tx applies writes only when fn succeeds.
func (f *fakeDB) tx(ctx context.Context, fn func(checkout.Store) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	orders, seq := append([]db.Order(nil), f.orders...), f.seq
	if err := fn(f); err != nil {
		f.orders, f.seq = orders, seq
		return err
	}
	return nil
}

type fakeEmitter struct {
	topics []string
}

func (f *fakeEmitter) Emit(_ context.Context, topic string, id pgtype.UUID, _ any) (db.DomainEvent, error) {
	f.topics = append(f.topics, topic)
	return db.DomainEvent{Topic: topic, AggregateID: id}, nil
}

type env struct {
	svc    *checkout.Service
	lists  *fakeLists
	db     *fakeDB
	events *fakeEmitter
	mock   payment.Mock
	mr     *miniredis.Miniredis
	userID string
	addrID string
}

func ptr[T any](v T) *T { return &v }

func newEnv(t *testing.T) *env {
	t.Helper()
	mr := miniredis.RunT(t)
	userID, addrID := uuid.NewString(), uuid.NewString()
	productID := uuid.NewString()
	verifier := payment.Verifier{Secret: "rzp_secret"}
	e := &env{
		lists: &fakeLists{items: map[string][]shopper.Item{
			userID: {{
				ProductID: productID, Name: "Oud Noir", Quantity: 1, Price: 1180,
				GSTPercentage: ptr(18.0), PriceInclusiveOfTax: ptr(true), HSNCode: "3303",
			}},
		}},
		db:     &fakeDB{items: map[pgtype.UUID][]db.OrderItem{}},
		events: &fakeEmitter{},
		mock:   payment.Mock{Verifier: verifier},
		mr:     mr,
		userID: userID,
		addrID: addrID,
	}
	e.svc = &checkout.Service{
		Lists: e.lists,
		Addresses: &fakeAddresses{byID: map[string]user.Address{
			userID + "/" + addrID: {ID: addrID, ReceiverName: "Asha Rao", Line1: "4 MG Road", City: "Pune", State: "maharashtra ", PostalCode: "411001", Country: "IN"},
		}},
		Settings: staticSettings{site: settings.Defaults()},
		Gateway:  e.mock,
		Verifier: verifier,
		Queries:  e.db,
		Tx:       e.db.tx,
		Redis:    redis.NewClient(&redis.Options{Addr: mr.Addr()}),
		Events:   e.events,
	}
	return e
}

func TestCheckoutVerifyPlacesOrderOnce(t *testing.T) {
	e := newEnv(t)
	ctx := t.Context()

	session, err := e.svc.Create(ctx, e.userID, checkout.CreateInput{AddressID: e.addrID})
	require.NoError(t, err)
	require.Equal(t, int64(118000), session.Payment.Amount)
	require.NotNil(t, session.Quote.CGST)
	require.Nil(t, session.Quote.IGST)
	require.True(t, e.mr.Exists("checkout:"+session.Payment.ID))

	paymentID, sig := e.mock.Pay(session.Payment.ID)
	placed, err := e.svc.Verify(ctx, e.userID, checkout.VerifyInput{
		GatewayOrderID: session.Payment.ID, PaymentID: paymentID, Signature: sig,
	})
	require.NoError(t, err)
	require.Equal(t, "INV-000001", placed.InvoiceNumber)
	require.Equal(t, "paid", placed.Status)
	require.InDelta(t, 1180, placed.Total, 0.001)
	require.InDelta(t, 90, *placed.CGST, 0.001)
	require.Len(t, placed.Items, 1)
	require.Equal(t, "3303", placed.Items[0].HSNCode)
	require.Equal(t, "Pune", placed.BillingAddress.City)
	require.Equal(t, []string{e.userID}, e.lists.cleared)
	require.Equal(t, []string{events.TopicOrderPaid}, e.events.topics)
	require.False(t, e.mr.Exists("checkout:"+session.Payment.ID))

	again, err := e.svc.Verify(ctx, e.userID, checkout.VerifyInput{
		GatewayOrderID: session.Payment.ID, PaymentID: paymentID, Signature: sig,
	})
	require.NoError(t, err)
	require.Equal(t, placed.ID, again.ID)
	require.Len(t, e.db.orders, 1)
	require.Len(t, e.events.topics, 1)
}

func TestVerifyRejectsBadSignature(t *testing.T) {
	e := newEnv(t)
	ctx := t.Context()
	session, err := e.svc.Create(ctx, e.userID, checkout.CreateInput{AddressID: e.addrID})
	require.NoError(t, err)

	_, err = e.svc.Verify(ctx, e.userID, checkout.VerifyInput{
		GatewayOrderID: session.Payment.ID, PaymentID: "pay_forged", Signature: strings.Repeat("0", 64),
	})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "VERIFICATION_FAILED", appErr.Code)
	require.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
	require.ErrorIs(t, err, payment.ErrSignatureMismatch)

	require.Empty(t, e.db.orders)
	require.Empty(t, e.lists.cleared)
	require.Empty(t, e.events.topics)
	require.True(t, e.mr.Exists("checkout:"+session.Payment.ID))
}

func TestVerifyRejectsAlteredSignatureForms(t *testing.T) {
	e := newEnv(t)
	ctx := t.Context()
	session, err := e.svc.Create(ctx, e.userID, checkout.CreateInput{AddressID: e.addrID})
	require.NoError(t, err)
	paymentID, sig := e.mock.Pay(session.Payment.ID)

	for _, in := range []checkout.VerifyInput{
		{GatewayOrderID: session.Payment.ID, PaymentID: paymentID, Signature: strings.ToUpper(sig)},
		{GatewayOrderID: session.Payment.ID, PaymentID: paymentID, Signature: " " + sig + " "},
		{GatewayOrderID: " " + session.Payment.ID, PaymentID: paymentID + " ", Signature: sig},
	} {
		_, err := e.svc.Verify(ctx, e.userID, in)
		require.ErrorIs(t, err, payment.ErrSignatureMismatch)
	}
	require.Empty(t, e.db.orders)
	require.Empty(t, e.lists.cleared)
}

func TestVerifyForeignSessionIsNotFound(t *testing.T) {
	e := newEnv(t)
	ctx := t.Context()
	session, err := e.svc.Create(ctx, e.userID, checkout.CreateInput{AddressID: e.addrID})
	require.NoError(t, err)
	paymentID, sig := e.mock.Pay(session.Payment.ID)

	_, err = e.svc.Verify(ctx, uuid.NewString(), checkout.VerifyInput{
		GatewayOrderID: session.Payment.ID, PaymentID: paymentID, Signature: sig,
	})
	require.ErrorIs(t, err, common.ErrNotFound)
	require.Empty(t, e.db.orders)

	e.mr.FastForward(31 * time.Minute)
	_, err = e.svc.Verify(ctx, e.userID, checkout.VerifyInput{
		GatewayOrderID: session.Payment.ID, PaymentID: paymentID, Signature: sig,
	})
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestCreateRejectsEmptyCart(t *testing.T) {
	e := newEnv(t)
	e.lists.items = map[string][]shopper.Item{}
	_, err := e.svc.Create(t.Context(), e.userID, checkout.CreateInput{AddressID: e.addrID})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "CART_EMPTY", appErr.Code)
}

func TestSettleFromWebhook(t *testing.T) {
	e := newEnv(t)
	ctx := t.Context()
	session, err := e.svc.Create(ctx, e.userID, checkout.CreateInput{AddressID: e.addrID})
	require.NoError(t, err)

	require.NoError(t, e.svc.Settle(ctx, session.Payment.ID, "pay_webhook"))
	require.Len(t, e.db.orders, 1)
	require.Equal(t, "pay_webhook", e.db.orders[0].PaymentID)

	// browser verify arriving after the webhook returns the same order
	sig := e.svc.Verifier.Sign(session.Payment.ID, "pay_webhook")
	placed, err := e.svc.Verify(ctx, e.userID, checkout.VerifyInput{
		GatewayOrderID: session.Payment.ID, PaymentID: "pay_webhook", Signature: sig,
	})
	require.NoError(t, err)
	require.Equal(t, common.UUIDString(e.db.orders[0].ID), placed.ID)
}

func TestQuoteForGuestByState(t *testing.T) {
	e := newEnv(t)
	guestID := uuid.NewString()
	e.lists.items["guest:"+guestID] = e.lists.items[e.userID]

	inter, err := e.svc.Quote(t.Context(), shopper.Identity{GuestID: guestID}, checkout.QuoteInput{State: "Karnataka"})
	require.NoError(t, err)
	require.NotNil(t, inter.IGST)
	require.InDelta(t, 180, *inter.IGST, 0.001)

	_, err = e.svc.Quote(t.Context(), shopper.Identity{GuestID: guestID}, checkout.QuoteInput{})
	require.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = e.svc.Quote(t.Context(), shopper.Identity{GuestID: guestID}, checkout.QuoteInput{AddressID: e.addrID})
	require.ErrorIs(t, err, common.ErrUnauthorized)

	intra, err := e.svc.Quote(t.Context(), shopper.Identity{UserID: e.userID}, checkout.QuoteInput{AddressID: e.addrID})
	require.NoError(t, err)
	require.NotNil(t, intra.CGST)
}

func TestVerifyHandler(t *testing.T) {
	e := newEnv(t)
	h := &checkout.Handler{Svc: e.svc}

	send := func(handler http.HandlerFunc, userID, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if userID != "" {
			req = req.WithContext(common.WithUserID(req.Context(), userID))
		}
		rec := httptest.NewRecorder()
		handler(rec, req)
		return rec
	}

	require.Equal(t, http.StatusUnauthorized, send(h.Checkout, "", `{"addressId":"`+e.addrID+`"}`).Code)

	rec := send(h.Checkout, e.userID, `{"addressId":"`+e.addrID+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		Data checkout.Session `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = send(h.Verify, e.userID, `{"gatewayOrderId":"`+created.Data.Payment.ID+`","paymentId":"pay_1","signature":"bad"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "VERIFICATION_FAILED")

	rec = send(h.Verify, e.userID, `{"gatewayOrderId":"x"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	sig := e.svc.Verifier.Sign(created.Data.Payment.ID, "pay_1")
	rec = send(h.Verify, e.userID, `{"gatewayOrderId":"`+created.Data.Payment.ID+`","paymentId":"pay_1","signature":"`+sig+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "INV-000001")
}
