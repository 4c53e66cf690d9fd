package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, user_id, invoice_number, status, currency, subtotal, total_tax, cgst, sgst, igst,
shipping, discount, total, billing_address, gateway_order_id, payment_id, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.InvoiceNumber,
		&i.Status,
		&i.Currency,
		&i.Subtotal,
		&i.TotalTax,
		&i.Cgst,
		&i.Sgst,
		&i.Igst,
		&i.Shipping,
		&i.Discount,
		&i.Total,
		&i.BillingAddress,
		&i.GatewayOrderID,
		&i.PaymentID,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func collectOrders(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
	Close()
}) ([]Order, error) {
	defer rows.Close()
	var items []Order
	for rows.Next() {
		i, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const nextInvoiceSequence = `-- name: NextInvoiceSequence :one
SELECT nextval('invoice_seq')`

func (q *Queries) NextInvoiceSequence(ctx context.Context) (int64, error) {
	var seq int64
	err := q.db.QueryRow(ctx, nextInvoiceSequence).Scan(&seq)
	return seq, err
}

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (user_id, invoice_number, status, currency, subtotal, total_tax, cgst, sgst, igst,
  shipping, discount, total, billing_address, gateway_order_id, payment_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	UserID         pgtype.UUID
	InvoiceNumber  string
	Status         OrderStatus
	Currency       string
	Subtotal       float64
	TotalTax       float64
	Cgst           pgtype.Float8
	Sgst           pgtype.Float8
	Igst           pgtype.Float8
	Shipping       float64
	Discount       float64
	Total          float64
	BillingAddress []byte
	GatewayOrderID string
	PaymentID      string
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.UserID,
		arg.InvoiceNumber,
		arg.Status,
		arg.Currency,
		arg.Subtotal,
		arg.TotalTax,
		arg.Cgst,
		arg.Sgst,
		arg.Igst,
		arg.Shipping,
		arg.Discount,
		arg.Total,
		arg.BillingAddress,
		arg.GatewayOrderID,
		arg.PaymentID,
	)
	return scanOrder(row)
}

const createOrderItem = `-- name: CreateOrderItem :exec
INSERT INTO order_items (order_id, product_id, product_name, hsn_code, quantity, unit_price, gst_percentage,
  taxable_value, gst_amount, line_total)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

type CreateOrderItemParams struct {
	OrderID       pgtype.UUID
	ProductID     pgtype.UUID
	ProductName   string
	HsnCode       pgtype.Text
	Quantity      int32
	UnitPrice     float64
	GstPercentage float64
	TaxableValue  float64
	GstAmount     float64
	LineTotal     float64
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) error {
	_, err := q.db.Exec(ctx, createOrderItem,
		arg.OrderID,
		arg.ProductID,
		arg.ProductName,
		arg.HsnCode,
		arg.Quantity,
		arg.UnitPrice,
		arg.GstPercentage,
		arg.TaxableValue,
		arg.GstAmount,
		arg.LineTotal,
	)
	return err
}

const getOrderByGatewayOrderID = `-- name: GetOrderByGatewayOrderID :one
SELECT ` + orderColumns + ` FROM orders WHERE gateway_order_id = $1`

func (q *Queries) GetOrderByGatewayOrderID(ctx context.Context, gatewayOrderID string) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderByGatewayOrderID, gatewayOrderID))
}

const getOrderByID = `-- name: GetOrderByID :one
SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

func (q *Queries) GetOrderByID(ctx context.Context, id pgtype.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderByID, id))
}

const getOrderForUser = `-- name: GetOrderForUser :one
SELECT ` + orderColumns + ` FROM orders WHERE id = $1 AND user_id = $2`

type GetOrderForUserParams struct {
	ID     pgtype.UUID
	UserID pgtype.UUID
}

func (q *Queries) GetOrderForUser(ctx context.Context, arg GetOrderForUserParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderForUser, arg.ID, arg.UserID))
}

const listOrdersByUser = `-- name: ListOrdersByUser :many
SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

type ListOrdersByUserParams struct {
	UserID pgtype.UUID
	Limit  int32
	Offset int32
}

func (q *Queries) ListOrdersByUser(ctx context.Context, arg ListOrdersByUserParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrdersByUser, arg.UserID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

const countOrdersByUser = `-- name: CountOrdersByUser :one
SELECT count(*) FROM orders WHERE user_id = $1`

func (q *Queries) CountOrdersByUser(ctx context.Context, userID pgtype.UUID) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countOrdersByUser, userID).Scan(&count)
	return count, err
}

const listOrders = `-- name: ListOrders :many
SELECT ` + orderColumns + ` FROM orders
WHERE ($1::text = '' OR status = $1)
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

type ListOrdersParams struct {
	Status string
	Limit  int32
	Offset int32
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders, arg.Status, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

const countOrders = `-- name: CountOrders :one
SELECT count(*) FROM orders WHERE ($1::text = '' OR status = $1)`

func (q *Queries) CountOrders(ctx context.Context, status string) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countOrders, status).Scan(&count)
	return count, err
}

const updateOrderStatus = `-- name: UpdateOrderStatus :one
UPDATE orders SET status = $2, updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

type UpdateOrderStatusParams struct {
	ID     pgtype.UUID
	Status OrderStatus
}

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.Status))
}

const listOrderItems = `-- name: ListOrderItems :many
SELECT id, order_id, product_id, product_name, hsn_code, quantity, unit_price, gst_percentage, taxable_value,
  gst_amount, line_total
FROM order_items WHERE order_id = $1 ORDER BY product_name`

func (q *Queries) ListOrderItems(ctx context.Context, orderID pgtype.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItems, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		var i OrderItem
		if err := rows.Scan(
			&i.ID,
			&i.OrderID,
			&i.ProductID,
			&i.ProductName,
			&i.HsnCode,
			&i.Quantity,
			&i.UnitPrice,
			&i.GstPercentage,
			&i.TaxableValue,
			&i.GstAmount,
			&i.LineTotal,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
