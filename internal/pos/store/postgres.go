package store

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockpile/pos-backend-go/internal/pos/checkout"
	"github.com/stockpile/pos-backend-go/internal/pos/domain"
	"github.com/stockpile/pos-backend-go/pkg/outbox"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx so the read helpers
// can run inside or outside a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres is the storage layer. All writes that belong to one business
// operation go through WithinTx; reads use the pool directly.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (s *Postgres) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Postgres) WithinTx(ctx context.Context, fn func(ctx context.Context, tx checkout.Tx) error) error {
	t, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = t.Rollback(ctx) }()

	if err := fn(ctx, &pgxTx{tx: t}); err != nil {
		return err
	}
	return t.Commit(ctx)
}

// pgxTx implements checkout.Tx on top of a live pgx transaction.
type pgxTx struct {
	tx pgx.Tx
}

func (t *pgxTx) NextInvoiceSeq(ctx context.Context, accountID string, year, month int) (int64, error) {
	// The upsert takes a row lock on the counter, which serializes
	// concurrent checkouts for the same account/month bucket.
	var seq int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO invoice_counters(account_id, year, month, current_number)
		 VALUES($1, $2, $3, 1)
		 ON CONFLICT (account_id, year, month)
		 DO UPDATE SET current_number = invoice_counters.current_number + 1
		 RETURNING current_number`,
		accountID, year, month).Scan(&seq)
	return seq, err
}

func (t *pgxTx) ProductForUpdate(ctx context.Context, accountID, productID string) (*domain.Product, error) {
	var p domain.Product
	err := t.tx.QueryRow(ctx,
		`SELECT product_id, account_id, name, price, rating, stock_quantity
		   FROM products
		  WHERE product_id=$1 AND account_id=$2
		  FOR UPDATE`,
		productID, accountID).Scan(&p.ProductID, &p.AccountID, &p.Name, &p.Price, &p.Rating, &p.StockQuantity)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domain.NotFoundError{Message: "Product " + productID + " not found"}
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *pgxTx) AdjustStock(ctx context.Context, productID string, delta int64) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE products
		    SET stock_quantity = stock_quantity + $2
		  WHERE product_id=$1 AND stock_quantity + $2 >= 0`,
		productID, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStockConflict
	}
	return nil
}

func (t *pgxTx) InsertSaleOrder(ctx context.Context, o *domain.SaleOrder) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO sale_orders(sale_order_id, account_id, customer_id, invoice_number,
		                         subtotal, tax, discount, total_amount, status,
		                         payment_method, notes, created_at)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		o.SaleOrderID, o.AccountID, o.CustomerID, o.InvoiceNumber,
		o.Subtotal, o.Tax, o.Discount, o.TotalAmount, string(o.Status),
		o.PaymentMethod, o.Notes, o.CreatedAt)
	return err
}

func (t *pgxTx) InsertSaleItem(ctx context.Context, it *domain.SaleItem) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO sale_items(sale_item_id, sale_order_id, product_id, quantity, unit_price, total_price)
		 VALUES($1,$2,$3,$4,$5,$6)`,
		it.SaleItemID, it.SaleOrderID, it.ProductID, it.Quantity, it.UnitPrice, it.TotalPrice)
	return err
}

func (t *pgxTx) InsertSale(ctx context.Context, s *domain.Sale) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO sales(sale_id, account_id, product_id, quantity, unit_price, total_amount, ts)
		 VALUES($1,$2,$3,$4,$5,$6,$7)`,
		s.SaleID, s.AccountID, s.ProductID, s.Quantity, s.UnitPrice, s.TotalAmount, s.Timestamp)
	return err
}

func (t *pgxTx) InsertPurchase(ctx context.Context, p *domain.Purchase) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO purchases(purchase_id, account_id, product_id, quantity, unit_cost, total_cost, ts)
		 VALUES($1,$2,$3,$4,$5,$6,$7)`,
		p.PurchaseID, p.AccountID, p.ProductID, p.Quantity, p.UnitCost, p.TotalCost, p.Timestamp)
	return err
}

func (t *pgxTx) InsertIdempotencyKey(ctx context.Context, accountID, key, saleOrderID string) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO sale_order_idempotency(account_id, idempotency_key, sale_order_id)
		 VALUES($1,$2,$3)`,
		accountID, key, saleOrderID)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateIdempotencyKey
	}
	return err
}

func (t *pgxTx) InsertOutboxEvent(ctx context.Context, eventID, topic, key string, payload any) error {
	return outbox.Insert(ctx, t.tx, eventID, topic, key, payload)
}

func (t *pgxTx) SaleOrderByID(ctx context.Context, accountID, saleOrderID string) (*domain.SaleOrder, error) {
	return loadSaleOrder(ctx, t.tx, accountID, saleOrderID)
}

func (s *Postgres) SaleOrderByIdempotencyKey(ctx context.Context, accountID, key string) (*domain.SaleOrder, error) {
	var saleOrderID string
	err := s.pool.QueryRow(ctx,
		`SELECT sale_order_id FROM sale_order_idempotency
		  WHERE account_id=$1 AND idempotency_key=$2`,
		accountID, key).Scan(&saleOrderID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domain.NotFoundError{Message: "Sale order not found"}
	}
	if err != nil {
		return nil, err
	}
	return loadSaleOrder(ctx, s.pool, accountID, saleOrderID)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(strings.ToLower(err.Error()), "duplicate") ||
		strings.Contains(strings.ToLower(err.Error()), "unique")
}
