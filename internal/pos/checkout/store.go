package checkout

import (
	"context"

	"github.com/stockpile/pos-backend-go/internal/pos/domain"
)

// Tx is the slice of the storage layer the engine touches inside one
// transaction. Implementations must make every method atomic with respect
// to the enclosing transaction: nothing written through a Tx is visible
// until Store.WithinTx returns nil.
type Tx interface {
	// NextInvoiceSeq atomically creates-or-increments the counter row for
	// (accountID, year, month) and returns the new value. First call for a
	// bucket returns 1.
	NextInvoiceSeq(ctx context.Context, accountID string, year, month int) (int64, error)

	// ProductForUpdate fetches the product scoped to the account and takes a
	// row lock on it, serializing concurrent stock movements on the same
	// product. Returns *domain.NotFoundError on a miss or account mismatch.
	ProductForUpdate(ctx context.Context, accountID, productID string) (*domain.Product, error)

	// AdjustStock applies delta to the product's stock quantity. The update
	// carries a non-negative guard; a decrement that would go below zero
	// matches no row and returns domain.ErrStockConflict.
	AdjustStock(ctx context.Context, productID string, delta int64) error

	InsertSaleOrder(ctx context.Context, order *domain.SaleOrder) error
	InsertSaleItem(ctx context.Context, item *domain.SaleItem) error
	InsertSale(ctx context.Context, sale *domain.Sale) error
	InsertPurchase(ctx context.Context, purchase *domain.Purchase) error

	// InsertIdempotencyKey returns domain.ErrDuplicateIdempotencyKey when the
	// key was already claimed by another request.
	InsertIdempotencyKey(ctx context.Context, accountID, key, saleOrderID string) error

	InsertOutboxEvent(ctx context.Context, eventID, topic, key string, payload any) error

	// SaleOrderByID re-reads the persisted order with its customer and
	// items+product attached.
	SaleOrderByID(ctx context.Context, accountID, saleOrderID string) (*domain.SaleOrder, error)
}

type Store interface {
	// WithinTx runs fn in one storage transaction. A non-nil error from fn
	// rolls everything back; otherwise the transaction commits before
	// WithinTx returns.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// SaleOrderByIdempotencyKey returns the order a previous request created
	// under this key, or *domain.NotFoundError.
	SaleOrderByIdempotencyKey(ctx context.Context, accountID, key string) (*domain.SaleOrder, error)
}
