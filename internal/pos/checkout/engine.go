package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockpile/pos-backend-go/internal/pos/domain"
	"github.com/stockpile/pos-backend-go/pkg/contracts"
)

// Engine turns a submitted cart into a committed invoice, or fails with no
// partial effects. All cross-request coordination (stock decrements, invoice
// numbering) is delegated to the storage layer's transaction isolation; the
// engine holds no mutable state between requests.
type Engine struct {
	store Store
}

func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// Checkout runs the whole cart in one storage transaction:
// invoice number -> per-line product verification -> totals -> order header,
// items and stock decrements -> outbox event -> re-read for the response.
// Any failure rolls back everything, including the sequencer increment.
//
// idemKey is optional; a key seen before returns the order that request
// created instead of selling the stock twice.
func (e *Engine) Checkout(ctx context.Context, accountID, idemKey string, in domain.CheckoutInput) (*domain.SaleOrder, error) {
	if err := validateCheckout(in); err != nil {
		return nil, err
	}

	if idemKey != "" {
		if existing, err := e.store.SaleOrderByIdempotencyKey(ctx, accountID, idemKey); err == nil {
			return existing, nil
		}
	}

	var order *domain.SaleOrder
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		now := time.Now().UTC()
		year, month := now.Year(), int(now.Month())

		seq, err := tx.NextInvoiceSeq(ctx, accountID, year, month)
		if err != nil {
			return err
		}
		invoiceNumber := FormatInvoiceNumber(year, month, seq)

		// Verify every line before writing anything. ProductForUpdate locks
		// the row, so the stock we see here holds until commit. remaining
		// tracks carts that list the same product more than once.
		products := make(map[string]*domain.Product, len(in.Items))
		remaining := make(map[string]int64, len(in.Items))
		for _, line := range in.Items {
			product, ok := products[line.ProductID]
			if !ok {
				product, err = tx.ProductForUpdate(ctx, accountID, line.ProductID)
				if err != nil {
					return err
				}
				products[line.ProductID] = product
				remaining[line.ProductID] = product.StockQuantity
			}
			if remaining[line.ProductID] < line.Quantity {
				return &domain.InsufficientStockError{
					ProductName: product.Name,
					Available:   remaining[line.ProductID],
					Requested:   line.Quantity,
				}
			}
			remaining[line.ProductID] -= line.Quantity
		}

		subtotal := decimal.Zero
		for _, line := range in.Items {
			subtotal = subtotal.Add(line.UnitPrice.Mul(decimal.NewFromInt(line.Quantity)))
		}
		tax := decimal.Zero
		if in.Tax != nil {
			tax = *in.Tax
		}
		discount := decimal.Zero
		if in.Discount != nil {
			discount = *in.Discount
		}

		paymentMethod := in.PaymentMethod
		if paymentMethod == "" {
			paymentMethod = domain.DefaultPaymentMethod
		}

		header := &domain.SaleOrder{
			SaleOrderID:   uuid.NewString(),
			AccountID:     accountID,
			CustomerID:    in.CustomerID,
			InvoiceNumber: invoiceNumber,
			Subtotal:      subtotal,
			Tax:           tax,
			Discount:      discount,
			TotalAmount:   subtotal.Add(tax).Sub(discount),
			Status:        domain.OrderStatusCompleted,
			PaymentMethod: paymentMethod,
			Notes:         in.Notes,
			CreatedAt:     now,
		}
		if err := tx.InsertSaleOrder(ctx, header); err != nil {
			return err
		}

		for _, line := range in.Items {
			item := &domain.SaleItem{
				SaleItemID:  uuid.NewString(),
				SaleOrderID: header.SaleOrderID,
				ProductID:   line.ProductID,
				Quantity:    line.Quantity,
				UnitPrice:   line.UnitPrice,
				TotalPrice:  line.UnitPrice.Mul(decimal.NewFromInt(line.Quantity)),
			}
			if err := tx.InsertSaleItem(ctx, item); err != nil {
				return err
			}
			if err := tx.AdjustStock(ctx, line.ProductID, -line.Quantity); err != nil {
				if errors.Is(err, domain.ErrStockConflict) {
					product := products[line.ProductID]
					return &domain.InsufficientStockError{
						ProductName: product.Name,
						Available:   product.StockQuantity,
						Requested:   line.Quantity,
					}
				}
				return err
			}
		}

		if idemKey != "" {
			if err := tx.InsertIdempotencyKey(ctx, accountID, idemKey, header.SaleOrderID); err != nil {
				return err
			}
		}

		if err := e.emit(ctx, tx, accountID, contracts.EventSaleOrderCreated, map[string]any{
			"sale_order_id":  header.SaleOrderID,
			"invoice_number": header.InvoiceNumber,
			"total_amount":   header.TotalAmount,
			"item_count":     len(in.Items),
		}); err != nil {
			return err
		}

		order, err = tx.SaleOrderByID(ctx, accountID, header.SaleOrderID)
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateIdempotencyKey) && idemKey != "" {
			if existing, rerr := e.store.SaleOrderByIdempotencyKey(ctx, accountID, idemKey); rerr == nil {
				return existing, nil
			}
		}
		return nil, err
	}
	return order, nil
}

// RecordSale persists a single-line sale and decrements stock in one
// transaction. This is the pre-cart sales path; carts go through Checkout.
func (e *Engine) RecordSale(ctx context.Context, accountID string, in domain.SaleInput) (*domain.Sale, error) {
	if in.ProductID == "" || in.Quantity == 0 || in.UnitPrice.IsZero() {
		return nil, &domain.ValidationError{Message: "Missing required fields: productId, quantity, unitPrice"}
	}
	if in.Quantity < 0 {
		return nil, &domain.ValidationError{Message: "Quantity must be greater than 0"}
	}
	if in.UnitPrice.Sign() < 0 {
		return nil, &domain.ValidationError{Message: "Unit price must not be negative"}
	}

	var sale *domain.Sale
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		product, err := tx.ProductForUpdate(ctx, accountID, in.ProductID)
		if err != nil {
			return err
		}
		if product.StockQuantity < in.Quantity {
			return &domain.InsufficientStockError{
				ProductName: product.Name,
				Available:   product.StockQuantity,
				Requested:   in.Quantity,
			}
		}

		ts := time.Now().UTC()
		if in.Timestamp != nil {
			ts = in.Timestamp.UTC()
		}
		sale = &domain.Sale{
			SaleID:      uuid.NewString(),
			AccountID:   accountID,
			ProductID:   in.ProductID,
			Quantity:    in.Quantity,
			UnitPrice:   in.UnitPrice,
			TotalAmount: in.UnitPrice.Mul(decimal.NewFromInt(in.Quantity)),
			Timestamp:   ts,
		}
		if err := tx.InsertSale(ctx, sale); err != nil {
			return err
		}
		if err := tx.AdjustStock(ctx, in.ProductID, -in.Quantity); err != nil {
			if errors.Is(err, domain.ErrStockConflict) {
				return &domain.InsufficientStockError{
					ProductName: product.Name,
					Available:   product.StockQuantity,
					Requested:   in.Quantity,
				}
			}
			return err
		}

		snapshot := *product
		snapshot.StockQuantity -= in.Quantity
		sale.Product = &snapshot

		return e.emit(ctx, tx, accountID, contracts.EventSaleCreated, map[string]any{
			"sale_id":      sale.SaleID,
			"product_id":   sale.ProductID,
			"quantity":     sale.Quantity,
			"total_amount": sale.TotalAmount,
		})
	})
	if err != nil {
		return nil, err
	}
	return sale, nil
}

// RecordPurchase persists a purchase and increments stock in one
// transaction. Purchases never fail on stock; they only add.
func (e *Engine) RecordPurchase(ctx context.Context, accountID string, in domain.PurchaseInput) (*domain.Purchase, error) {
	if in.ProductID == "" || in.Quantity == 0 || in.UnitCost.IsZero() {
		return nil, &domain.ValidationError{Message: "Missing required fields: productId, quantity, unitCost"}
	}
	if in.Quantity < 0 {
		return nil, &domain.ValidationError{Message: "Quantity must be greater than 0"}
	}
	if in.UnitCost.Sign() < 0 {
		return nil, &domain.ValidationError{Message: "Unit cost must not be negative"}
	}

	var purchase *domain.Purchase
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		product, err := tx.ProductForUpdate(ctx, accountID, in.ProductID)
		if err != nil {
			return err
		}

		ts := time.Now().UTC()
		if in.Timestamp != nil {
			ts = in.Timestamp.UTC()
		}
		purchase = &domain.Purchase{
			PurchaseID: uuid.NewString(),
			AccountID:  accountID,
			ProductID:  in.ProductID,
			Quantity:   in.Quantity,
			UnitCost:   in.UnitCost,
			TotalCost:  in.UnitCost.Mul(decimal.NewFromInt(in.Quantity)),
			Timestamp:  ts,
		}
		if err := tx.InsertPurchase(ctx, purchase); err != nil {
			return err
		}
		if err := tx.AdjustStock(ctx, in.ProductID, in.Quantity); err != nil {
			return err
		}

		snapshot := *product
		snapshot.StockQuantity += in.Quantity
		purchase.Product = &snapshot

		return e.emit(ctx, tx, accountID, contracts.EventPurchaseCreated, map[string]any{
			"purchase_id": purchase.PurchaseID,
			"product_id":  purchase.ProductID,
			"quantity":    purchase.Quantity,
			"total_cost":  purchase.TotalCost,
		})
	})
	if err != nil {
		return nil, err
	}
	return purchase, nil
}

func (e *Engine) emit(ctx context.Context, tx Tx, accountID, eventType string, payload map[string]any) error {
	event := contracts.Event{
		EventID:   uuid.NewString(),
		AccountID: accountID,
		Type:      eventType,
		CreatedAt: time.Now().UTC(),
		Payload:   payload,
	}
	return tx.InsertOutboxEvent(ctx, event.EventID, contracts.TopicSaleEvents, accountID, event)
}

func validateCheckout(in domain.CheckoutInput) error {
	if len(in.Items) == 0 {
		return &domain.ValidationError{Message: "Items array is required and must not be empty"}
	}
	subtotal := decimal.Zero
	for _, line := range in.Items {
		if line.ProductID == "" || line.Quantity == 0 || line.UnitPrice.IsZero() {
			return &domain.ValidationError{Message: "Each item must have productId, quantity, and unitPrice"}
		}
		if line.Quantity < 0 {
			return &domain.ValidationError{Message: "Quantity must be greater than 0"}
		}
		if line.UnitPrice.Sign() < 0 {
			return &domain.ValidationError{Message: "Unit price must not be negative"}
		}
		subtotal = subtotal.Add(line.UnitPrice.Mul(decimal.NewFromInt(line.Quantity)))
	}
	tax := decimal.Zero
	if in.Tax != nil {
		if in.Tax.Sign() < 0 {
			return &domain.ValidationError{Message: "Tax must not be negative"}
		}
		tax = *in.Tax
	}
	if in.Discount != nil {
		if in.Discount.Sign() < 0 {
			return &domain.ValidationError{Message: "Discount must not be negative"}
		}
		// An invoice total below zero is never issued.
		if in.Discount.GreaterThan(subtotal.Add(tax)) {
			return &domain.ValidationError{Message: "Discount cannot exceed subtotal plus tax"}
		}
	}
	return nil
}
