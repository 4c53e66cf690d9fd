// Package checkout prices carts, opens gateway orders and turns verified
// payments into persisted orders.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-parfum/internal/common"
	"github.com/noah-isme/backend-parfum/internal/db"
	"github.com/noah-isme/backend-parfum/internal/events"
	"github.com/noah-isme/backend-parfum/internal/guest"
	"github.com/noah-isme/backend-parfum/internal/obs"
	"github.com/noah-isme/backend-parfum/internal/order"
	"github.com/noah-isme/backend-parfum/internal/payment"
	"github.com/noah-isme/backend-parfum/internal/pricing"
	"github.com/noah-isme/backend-parfum/internal/settings"
	"github.com/noah-isme/backend-parfum/internal/shopper"
	"github.com/noah-isme/backend-parfum/internal/user"
)

const sessionPrefix = "checkout:"

var (
	errCartEmpty       = common.NewAppError("CART_EMPTY", "cart is empty", http.StatusUnprocessableEntity, common.ErrInvalidInput)
	errSessionNotFound = common.NewAppError("CHECKOUT_NOT_FOUND", "checkout session not found or expired", http.StatusNotFound, common.ErrNotFound)
	errVerification    = common.NewAppError("VERIFICATION_FAILED", "payment signature verification failed", http.StatusBadRequest, payment.ErrSignatureMismatch)
)

// Lists reads and clears the shopper's cart.
type Lists interface {
	List(ctx context.Context, id shopper.Identity, kind guest.Kind) (shopper.Snapshot, error)
	Clear(ctx context.Context, id shopper.Identity, kind guest.Kind) error
}

// Addresses resolves the shipping and billing address.
type Addresses interface {
	Get(ctx context.Context, userID, addressID string) (user.Address, error)
}

// SettingsReader supplies charges, the seller state and the invoice prefix.
type SettingsReader interface {
	Get(ctx context.Context) (settings.Site, error)
}

// Queries reads orders back after settlement.
type Queries interface {
	GetOrderByGatewayOrderID(ctx context.Context, gatewayOrderID string) (db.Order, error)
	ListOrderItems(ctx context.Context, orderID pgtype.UUID) ([]db.OrderItem, error)
}

// Store is the transactional write set for placing an order.
type Store interface {
	NextInvoiceSequence(ctx context.Context) (int64, error)
	CreateOrder(ctx context.Context, arg db.CreateOrderParams) (db.Order, error)
	CreateOrderItem(ctx context.Context, arg db.CreateOrderItemParams) error
}

// TxFunc runs fn inside a database transaction.
type TxFunc func(ctx context.Context, fn func(Store) error) error

// NewTx adapts a pgx pool for Service.Tx.
func NewTx(conn db.TxBeginner) TxFunc {
	return func(ctx context.Context, fn func(Store) error) error {
		return db.InTx(ctx, conn, func(q *db.Queries) error { return fn(q) })
	}
}

// QuoteInput selects the destination used to pick CGST+SGST or IGST.
type QuoteInput struct {
	AddressID string `json:"addressId" validate:"omitempty,uuid"`
	State     string `json:"state" validate:"omitempty,max=100"`
}

// CreateInput starts a checkout for a saved address.
type CreateInput struct {
	AddressID string `json:"addressId" validate:"required,uuid"`
}

// VerifyInput is what the payment widget returns after a successful payment.
type VerifyInput struct {
	GatewayOrderID string `json:"gatewayOrderId" validate:"required"`
	PaymentID      string `json:"paymentId" validate:"required"`
	Signature      string `json:"signature" validate:"required"`
}

// Session is the response to POST /checkout.
type Session struct {
	Payment   payment.Order     `json:"payment"`
	Quote     pricing.Breakdown `json:"quote"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

// snapshot freezes what was priced so verification inserts exactly that.
type snapshot struct {
	UserID        string            `json:"userId"`
	Billing       order.Billing     `json:"billing"`
	Items         []shopper.Item    `json:"items"`
	Quote         pricing.Breakdown `json:"quote"`
	Currency      string            `json:"currency"`
	InvoicePrefix string            `json:"invoicePrefix"`
	Amount        int64             `json:"amount"`
	CreatedAt     time.Time         `json:"createdAt"`
}

// Service coordinates pricing, the payment gateway and order placement.
type Service struct {
	Lists     Lists
	Addresses Addresses
	Settings  SettingsReader
	Gateway   payment.Gateway
	Verifier  payment.Verifier
	Queries   Queries
	Tx        TxFunc
	Redis     *redis.Client
	Events    events.Emitter
	Currency  string
	TTL       time.Duration
	Now       func() time.Time
	Logger    zerolog.Logger
}

func (s *Service) ready() error {
	if s == nil || s.Lists == nil || s.Settings == nil {
		return errors.New("checkout service not configured")
	}
	return nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) ttl() time.Duration {
	if s.TTL <= 0 {
		return 30 * time.Minute
	}
	return s.TTL
}

func (s *Service) currency() string {
	if c := strings.TrimSpace(s.Currency); c != "" {
		return strings.ToUpper(c)
	}
	return "INR"
}

// Quote prices the current cart of id. A saved address wins over a bare state.
func (s *Service) Quote(ctx context.Context, id shopper.Identity, in QuoteInput) (pricing.Breakdown, error) {
	if err := s.ready(); err != nil {
		return pricing.Breakdown{}, err
	}
	if err := common.ValidateStruct(in); err != nil {
		return pricing.Breakdown{}, err
	}
	state := strings.TrimSpace(in.State)
	if in.AddressID != "" {
		if !id.Authenticated() {
			return pricing.Breakdown{}, common.NewAppError("UNAUTHORIZED", "sign in to use a saved address", http.StatusUnauthorized, common.ErrUnauthorized)
		}
		addr, err := s.Addresses.Get(ctx, id.UserID, in.AddressID)
		if err != nil {
			return pricing.Breakdown{}, err
		}
		state = addr.State
	}
	if state == "" {
		return pricing.Breakdown{}, &common.AppError{
			Code:       "VALIDATION_ERROR",
			Message:    "addressId or state is required",
			HTTPStatus: http.StatusUnprocessableEntity,
			Err:        common.ErrInvalidInput,
			Details:    map[string]string{"state": "required_without"},
		}
	}
	snap, err := s.Lists.List(ctx, id, guest.KindCart)
	if err != nil {
		return pricing.Breakdown{}, err
	}
	site, err := s.Settings.Get(ctx)
	if err != nil {
		return pricing.Breakdown{}, err
	}
	return quote(snap.Items, site, state), nil
}

func quote(items []shopper.Item, site settings.Site, state string) pricing.Breakdown {
	lines := make([]pricing.Line, 0, len(items))
	for _, it := range items {
		lines = append(lines, it.PricingLine())
	}
	return pricing.Quote(lines, site.Pricing(), pricing.GSTOptions{
		CustomerState: state,
		BusinessState: site.Business.State,
	})
}

// Create prices the user's cart for the chosen address, opens a gateway
// order and stores the priced snapshot until the payment is verified.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (Session, error) {
	if err := s.ready(); err != nil {
		return Session{}, err
	}
	if s.Gateway == nil || s.Redis == nil || s.Addresses == nil {
		return Session{}, errors.New("checkout payment not configured")
	}
	if err := common.ValidateStruct(in); err != nil {
		return Session{}, err
	}
	addr, err := s.Addresses.Get(ctx, userID, in.AddressID)
	if err != nil {
		return Session{}, err
	}
	id := shopper.Identity{UserID: userID}
	list, err := s.Lists.List(ctx, id, guest.KindCart)
	if err != nil {
		return Session{}, err
	}
	if len(list.Items) == 0 {
		obs.IncCheckout("empty")
		return Session{}, errCartEmpty
	}
	site, err := s.Settings.Get(ctx)
	if err != nil {
		return Session{}, err
	}
	breakdown := quote(list.Items, site, addr.State)
	amount := payment.MinorUnits(breakdown.Total)
	if amount <= 0 {
		return Session{}, common.NewAppError("INVALID_TOTAL", "order total must be positive", http.StatusUnprocessableEntity, common.ErrInvalidInput)
	}

	gw, err := s.Gateway.CreateOrder(ctx, payment.OrderRequest{
		Receipt:  "rcpt_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:20],
		Amount:   amount,
		Currency: s.currency(),
		Notes:    map[string]string{"userId": userID},
	})
	if err != nil {
		obs.IncCheckout("gateway_error")
		s.Logger.Error().Err(err).Str("gateway", s.Gateway.Name()).Msg("create gateway order failed")
		return Session{}, common.NewAppError("PAYMENT_GATEWAY_ERROR", "unable to start payment, try again", http.StatusBadGateway, err)
	}

	now := s.now()
	snap := snapshot{
		UserID:        userID,
		Billing:       billingFrom(addr),
		Items:         list.Items,
		Quote:         breakdown,
		Currency:      s.currency(),
		InvoicePrefix: site.Invoice.Prefix,
		Amount:        amount,
		CreatedAt:     now,
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return Session{}, err
	}
	if err := s.Redis.Set(ctx, sessionPrefix+gw.ID, raw, s.ttl()).Err(); err != nil {
		return Session{}, fmt.Errorf("store checkout session: %w", err)
	}
	obs.IncCheckout("created")
	obs.Annotate(ctx, "gateway_order_id", gw.ID)
	return Session{Payment: gw, Quote: breakdown, ExpiresAt: now.Add(s.ttl())}, nil
}

func billingFrom(a user.Address) order.Billing {
	return order.Billing{
		Name:       a.ReceiverName,
		Phone:      a.Phone,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
		GSTIN:      a.GSTIN,
	}
}

// Verify checks the payment signature and places the order. On mismatch
// nothing is written. Replays for a settled gateway order return that order.
func (s *Service) Verify(ctx context.Context, userID string, in VerifyInput) (order.Order, error) {
	if err := common.ValidateStruct(in); err != nil {
		return order.Order{}, err
	}
	if err := s.Verifier.Verify(in.GatewayOrderID, in.PaymentID, in.Signature); err != nil {
		obs.IncCheckout("verification_failed")
		s.Logger.Warn().Str("gateway_order_id", in.GatewayOrderID).Str("user_id", userID).Msg("payment signature mismatch")
		return order.Order{}, errVerification
	}
	return s.settle(ctx, userID, in.GatewayOrderID, in.PaymentID)
}

// Settle places the order for a payment already authenticated by the
// gateway webhook.
func (s *Service) Settle(ctx context.Context, gatewayOrderID, paymentID string) error {
	_, err := s.settle(ctx, "", gatewayOrderID, paymentID)
	return err
}

func (s *Service) settle(ctx context.Context, userID, gatewayOrderID, paymentID string) (order.Order, error) {
	if s.Queries == nil || s.Tx == nil || s.Redis == nil {
		return order.Order{}, errors.New("checkout persistence not configured")
	}
	if existing, ok, err := s.existing(ctx, userID, gatewayOrderID); err != nil || ok {
		if ok {
			obs.IncCheckout("replayed")
		}
		return existing, err
	}

	raw, err := s.Redis.Get(ctx, sessionPrefix+gatewayOrderID).Bytes()
	if errors.Is(err, redis.Nil) {
		return order.Order{}, errSessionNotFound
	}
	if err != nil {
		return order.Order{}, fmt.Errorf("load checkout session: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return order.Order{}, fmt.Errorf("decode checkout session: %w", err)
	}
	if userID != "" && snap.UserID != userID {
		return order.Order{}, errSessionNotFound
	}
	uid, err := common.ToUUID(snap.UserID)
	if err != nil {
		return order.Order{}, fmt.Errorf("checkout session user: %w", err)
	}
	billing, err := json.Marshal(snap.Billing)
	if err != nil {
		return order.Order{}, err
	}

	var (
		row   db.Order
		items []db.OrderItem
	)
	err = s.Tx(ctx, func(st Store) error {
		seq, err := st.NextInvoiceSequence(ctx)
		if err != nil {
			return fmt.Errorf("next invoice number: %w", err)
		}
		q := snap.Quote
		row, err = st.CreateOrder(ctx, db.CreateOrderParams{
			UserID:         uid,
			InvoiceNumber:  invoiceNumber(snap.InvoicePrefix, seq),
			Status:         db.OrderStatusPaid,
			Currency:       snap.Currency,
			Subtotal:       q.Subtotal,
			TotalTax:       q.TotalTax,
			Cgst:           float8(q.CGST),
			Sgst:           float8(q.SGST),
			Igst:           float8(q.IGST),
			Shipping:       q.Shipping,
			Discount:       q.Discount,
			Total:          q.Total,
			BillingAddress: billing,
			GatewayOrderID: gatewayOrderID,
			PaymentID:      paymentID,
		})
		if err != nil {
			return err
		}
		items, err = createItems(ctx, st, row.ID, snap)
		return err
	})
	if err != nil {
		if common.IsUniqueViolation(err) {
			// a concurrent verify or webhook won the race
			if existing, ok, lookupErr := s.existing(ctx, userID, gatewayOrderID); ok && lookupErr == nil {
				obs.IncCheckout("replayed")
				return existing, nil
			}
		}
		obs.IncCheckout("failed")
		return order.Order{}, fmt.Errorf("place order: %w", err)
	}

	placed := order.FromRows(row, items)
	s.afterPlaced(ctx, snap, placed)
	obs.IncCheckout("paid")
	return placed, nil
}

func (s *Service) existing(ctx context.Context, userID, gatewayOrderID string) (order.Order, bool, error) {
	row, err := s.Queries.GetOrderByGatewayOrderID(ctx, gatewayOrderID)
	if errors.Is(err, pgx.ErrNoRows) {
		return order.Order{}, false, nil
	}
	if err != nil {
		return order.Order{}, false, fmt.Errorf("lookup order: %w", err)
	}
	if userID != "" && common.UUIDString(row.UserID) != userID {
		return order.Order{}, false, errSessionNotFound
	}
	items, err := s.Queries.ListOrderItems(ctx, row.ID)
	if err != nil {
		return order.Order{}, false, fmt.Errorf("list order items: %w", err)
	}
	return order.FromRows(row, items), true, nil
}

func createItems(ctx context.Context, st Store, orderID pgtype.UUID, snap snapshot) ([]db.OrderItem, error) {
	byID := make(map[string]shopper.Item, len(snap.Items))
	for _, it := range snap.Items {
		byID[it.ProductID] = it
	}
	items := make([]db.OrderItem, 0, len(snap.Quote.Lines))
	for _, line := range snap.Quote.Lines {
		it := byID[line.ProductID]
		pid, err := common.ToUUID(line.ProductID)
		if err != nil {
			return nil, fmt.Errorf("order item product: %w", err)
		}
		arg := db.CreateOrderItemParams{
			OrderID:       orderID,
			ProductID:     pid,
			ProductName:   it.Name,
			HsnCode:       common.Text(it.HSNCode),
			Quantity:      int32(line.Quantity),
			UnitPrice:     line.UnitPrice,
			GstPercentage: line.GSTPercentage,
			TaxableValue:  line.TaxableValue,
			GstAmount:     line.GSTAmount,
			LineTotal:     line.LineTotal,
		}
		if err := st.CreateOrderItem(ctx, arg); err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
		items = append(items, db.OrderItem{
			OrderID:       arg.OrderID,
			ProductID:     arg.ProductID,
			ProductName:   arg.ProductName,
			HsnCode:       arg.HsnCode,
			Quantity:      arg.Quantity,
			UnitPrice:     arg.UnitPrice,
			GstPercentage: arg.GstPercentage,
			TaxableValue:  arg.TaxableValue,
			GstAmount:     arg.GstAmount,
			LineTotal:     arg.LineTotal,
		})
	}
	return items, nil
}

// afterPlaced runs the best-effort follow-ups; the order is already committed.
func (s *Service) afterPlaced(ctx context.Context, snap snapshot, placed order.Order) {
	logger := s.Logger.With().Str("order_id", placed.ID).Str("gateway_order_id", placed.GatewayOrderID).Logger()
	if err := s.Lists.Clear(ctx, shopper.Identity{UserID: snap.UserID}, guest.KindCart); err != nil {
		logger.Warn().Err(err).Msg("clear cart after order failed")
	}
	if err := s.Redis.Del(ctx, sessionPrefix+placed.GatewayOrderID).Err(); err != nil {
		logger.Warn().Err(err).Msg("drop checkout session failed")
	}
	if s.Events == nil {
		return
	}
	aggregate, _ := common.ToUUID(placed.ID)
	payload := map[string]any{
		"orderId":        placed.ID,
		"userId":         placed.UserID,
		"invoiceNumber":  placed.InvoiceNumber,
		"total":          placed.Total,
		"currency":       placed.Currency,
		"gatewayOrderId": placed.GatewayOrderID,
		"paymentId":      placed.PaymentID,
	}
	if _, err := s.Events.Emit(ctx, events.TopicOrderPaid, aggregate, payload); err != nil {
		logger.Warn().Err(err).Msg("emit order.paid failed")
	}
}

func invoiceNumber(prefix string, seq int64) string {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = "INV"
	}
	return fmt.Sprintf("%s-%06d", prefix, seq)
}

func float8(v *float64) pgtype.Float8 {
	if v == nil {
		return pgtype.Float8{}
	}
	return pgtype.Float8{Float64: *v, Valid: true}
}
