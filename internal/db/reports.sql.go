package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const salesSummary = `-- name: SalesSummary :one
SELECT count(*)::bigint,
  COALESCE(sum(total), 0)::float8,
  COALESCE(sum(subtotal), 0)::float8,
  COALESCE(sum(total_tax), 0)::float8,
  COALESCE(sum(cgst), 0)::float8,
  COALESCE(sum(sgst), 0)::float8,
  COALESCE(sum(igst), 0)::float8,
  COALESCE(sum(shipping), 0)::float8,
  COALESCE(sum(discount), 0)::float8
FROM orders
WHERE status <> 'cancelled' AND created_at >= $1 AND created_at < $2`

type SalesSummaryParams struct {
	From pgtype.Timestamptz
	To   pgtype.Timestamptz
}

type SalesSummaryRow struct {
	Orders   int64
	Revenue  float64
	Taxable  float64
	TotalTax float64
	Cgst     float64
	Sgst     float64
	Igst     float64
	Shipping float64
	Discount float64
}

func (q *Queries) SalesSummary(ctx context.Context, arg SalesSummaryParams) (SalesSummaryRow, error) {
	var i SalesSummaryRow
	err := q.db.QueryRow(ctx, salesSummary, arg.From, arg.To).Scan(
		&i.Orders,
		&i.Revenue,
		&i.Taxable,
		&i.TotalTax,
		&i.Cgst,
		&i.Sgst,
		&i.Igst,
		&i.Shipping,
		&i.Discount,
	)
	return i, err
}

const topProducts = `-- name: TopProducts :many
SELECT oi.product_id, oi.product_name, sum(oi.quantity)::bigint AS units, sum(oi.line_total)::float8 AS revenue
FROM order_items oi
JOIN orders o ON o.id = oi.order_id
WHERE o.status <> 'cancelled' AND o.created_at >= $1 AND o.created_at < $2
GROUP BY oi.product_id, oi.product_name
ORDER BY units DESC, revenue DESC
LIMIT $3`

type TopProductsParams struct {
	From  pgtype.Timestamptz
	To    pgtype.Timestamptz
	Limit int32
}

type TopProductsRow struct {
	ProductID   pgtype.UUID
	ProductName string
	Units       int64
	Revenue     float64
}

func (q *Queries) TopProducts(ctx context.Context, arg TopProductsParams) ([]TopProductsRow, error) {
	rows, err := q.db.Query(ctx, topProducts, arg.From, arg.To, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TopProductsRow
	for rows.Next() {
		var i TopProductsRow
		if err := rows.Scan(&i.ProductID, &i.ProductName, &i.Units, &i.Revenue); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
