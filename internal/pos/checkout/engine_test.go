package checkout_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockpile/pos-backend-go/internal/pos/checkout"
	"github.com/stockpile/pos-backend-go/internal/pos/domain"
	"github.com/stockpile/pos-backend-go/internal/pos/store"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func newFixture(t *testing.T) (*checkout.Engine, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	return checkout.NewEngine(mem), mem
}

func seedProduct(t *testing.T, mem *store.Memory, accountID, productID, name, price string, stock int64) {
	t.Helper()
	err := mem.CreateProduct(context.Background(), &domain.Product{
		ProductID:     productID,
		AccountID:     accountID,
		Name:          name,
		Price:         dec(price),
		StockQuantity: stock,
	})
	require.NoError(t, err)
}

func invoicePrefix() string {
	now := time.Now().UTC()
	return fmt.Sprintf("INV-%04d%02d-", now.Year(), int(now.Month()))
}

func TestCheckoutSuccess(t *testing.T) {
	engine, mem := newFixture(t)
	seedProduct(t, mem, "acct-a", "prod-1", "Espresso Beans", "10.00", 5)

	order, err := engine.Checkout(context.Background(), "acct-a", "", domain.CheckoutInput{
		Items: []domain.CheckoutLine{{ProductID: "prod-1", Quantity: 3, UnitPrice: dec("10.00")}},
		Tax:   decPtr("1.00"),
	})
	require.NoError(t, err)

	assert.Equal(t, invoicePrefix()+"0001", order.InvoiceNumber)
	assert.True(t, order.Subtotal.Equal(dec("30.00")), "subtotal = %s", order.Subtotal)
	assert.True(t, order.Tax.Equal(dec("1.00")))
	assert.True(t, order.Discount.IsZero())
	assert.True(t, order.TotalAmount.Equal(dec("31.00")), "total = %s", order.TotalAmount)
	assert.Equal(t, domain.OrderStatusCompleted, order.Status)
	assert.Equal(t, "cash", order.PaymentMethod)

	require.Len(t, order.Items, 1)
	item := order.Items[0]
	assert.Equal(t, int64(3), item.Quantity)
	assert.True(t, item.UnitPrice.Equal(dec("10.00")))
	assert.True(t, item.TotalPrice.Equal(dec("30.00")))
	require.NotNil(t, item.Product)
	assert.Equal(t, "Espresso Beans", item.Product.Name)

	p, ok := mem.Product("prod-1")
	require.True(t, ok)
	assert.Equal(t, int64(2), p.StockQuantity)

	events := mem.OutboxEvents()
	require.Len(t, events, 1)
	assert.Contains(t, string(events[0].Payload), order.SaleOrderID)
}

func TestCheckoutTotalsIdentity(t *testing.T) {
	engine, mem := newFixture(t)
	seedProduct(t, mem, "acct-a", "prod-1", "Beans", "3.33", 100)
	seedProduct(t, mem, "acct-a", "prod-2", "Filters", "0.07", 100)

	order, err := engine.Checkout(context.Background(), "acct-a", "", domain.CheckoutInput{
		Items: []domain.CheckoutLine{
			{ProductID: "prod-1", Quantity: 7, UnitPrice: dec("3.33")},
			{ProductID: "prod-2", Quantity: 13, UnitPrice: dec("0.07")},
		},
		Tax:      decPtr("2.15"),
		Discount: decPtr("0.40"),
	})
	require.NoError(t, err)

	wantSubtotal := dec("3.33").Mul(decimal.NewFromInt(7)).Add(dec("0.07").Mul(decimal.NewFromInt(13)))
	assert.True(t, order.Subtotal.Equal(wantSubtotal), "subtotal = %s", order.Subtotal)
	assert.True(t, order.TotalAmount.Equal(order.Subtotal.Add(order.Tax).Sub(order.Discount)))

	sum := decimal.Zero
	for _, it := range order.Items {
		assert.True(t, it.TotalPrice.Equal(it.UnitPrice.Mul(decimal.NewFromInt(it.Quantity))))
		sum = sum.Add(it.TotalPrice)
	}
	assert.True(t, order.Subtotal.Equal(sum))
}

func TestCheckoutInsufficientStock(t *testing.T) {
	engine, mem := newFixture(t)
	seedProduct(t, mem, "acct-a", "prod-1", "Espresso Beans", "10.00", 2)

	_, err := engine.Checkout(context.Background(), "acct-a", "", domain.CheckoutInput{
		Items: []domain.CheckoutLine{{ProductID: "prod-1", Quantity: 5, UnitPrice: dec("10.00")}},
	})
	var stockErr *domain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, int64(2), stockErr.Available)
	assert.Equal(t, int64(5), stockErr.Requested)
	assert.Contains(t, err.Error(), "Espresso Beans")
	assert.Contains(t, err.Error(), "Available: 2, Requested: 5")

	p, _ := mem.Product("prod-1")
	assert.Equal(t, int64(2), p.StockQuantity)
	assert.Equal(t, 0, mem.OrderCount("acct-a"))
	assert.Empty(t, mem.OutboxEvents())
}

func TestCheckoutMultiLineAtomicity(t *testing.T) {
	engine, mem := newFixture(t)
	seedProduct(t, mem, "acct-a", "prod-ok", "Plenty", "5.00", 50)
	seedProduct(t, mem, "acct-a", "prod-short", "Scarce", "5.00", 1)

	_, err := engine.Checkout(context.Background(), "acct-a", "", domain.CheckoutInput{
		Items: []domain.CheckoutLine{
			{ProductID: "prod-ok", Quantity: 10, UnitPrice: dec("5.00")},
			{ProductID: "prod-short", Quantity: 3, UnitPrice: dec("5.00")},
		},
	})
	var stockErr *domain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)

	// The valid line must not have been applied either.
	ok, _ := mem.Product("prod-ok")
	short, _ := mem.Product("prod-short")
	assert.Equal(t, int64(50), ok.StockQuantity)
	assert.Equal(t, int64(1), short.StockQuantity)
	assert.Equal(t, 0, mem.OrderCount("acct-a"))
	assert.Empty(t, mem.OutboxEvents())
}

func TestCheckoutDuplicateLineOverdraw(t *testing.T) {
	engine, mem := newFixture(t)
	seedProduct(t, mem, "acct-a", "prod-1", "Beans", "10.00", 5)

	// Each line fits on its own; together they overdraw the stock.
	_, err := engine.Checkout(context.Background(), "acct-a", "", domain.CheckoutInput{
		Items: []domain.CheckoutLine{
			{ProductID: "prod-1", Quantity: 3, UnitPrice: dec("10.00")},
			{ProductID: "prod-1", Quantity: 3, UnitPrice: dec("10.00")},
		},
	})
	var stockErr *domain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)

	p, _ := mem.Product("prod-1")
	assert.Equal(t, int64(5), p.StockQuantity)
}

func TestCheckoutWrongAccount(t *testing.T) {
	engine, mem := newFixture(t)
	seedProduct(t, mem, "acct-b", "prod-1", "Not Yours", "10.00", 5)

	_, err := engine.Checkout(context.Background(), "acct-a", "", domain.CheckoutInput{
		Items: []domain.CheckoutLine{{ProductID: "prod-1", Quantity: 1, UnitPrice: dec("10.00")}},
	})
	var notFound *domain.NotFoundError
	require.ErrorAs(t, err, &notFound)

	p, _ := mem.Product("prod-1")
	assert.Equal(t, int64(5), p.StockQuantity)
	assert.Equal(t, 0, mem.OrderCount("acct-a"))
	assert.Equal(t, 0, mem.OrderCount("acct-b"))
}

func TestCheckoutValidation(t *testing.T) {
	cases := []struct {
		name  string
		input domain.CheckoutInput
	}{
		{"empty items", domain.CheckoutInput{}},
		{"missing product id", domain.CheckoutInput{
			Items: []domain.CheckoutLine{{Quantity: 1, UnitPrice: dec("10.00")}},
		}},
		{"zero quantity", domain.CheckoutInput{
			Items: []domain.CheckoutLine{{ProductID: "prod-1", UnitPrice: dec("10.00")}},
		}},
		{"negative quantity", domain.CheckoutInput{
			Items: []domain.CheckoutLine{{ProductID: "prod-1", Quantity: -2, UnitPrice: dec("10.00")}},
		}},
		{"zero unit price", domain.CheckoutInput{
			Items: []domain.CheckoutLine{{ProductID: "prod-1", Quantity: 1}},
		}},
		{"negative unit price", domain.CheckoutInput{
			Items: []domain.CheckoutLine{{ProductID: "prod-1", Quantity: 1, UnitPrice: dec("-1.00")}},
		}},
		{"negative tax", domain.CheckoutInput{
			Items: []domain.CheckoutLine{{ProductID: "prod-1", Quantity: 1, UnitPrice: dec("10.00")}},
			Tax:   decPtr("-1.00"),
		}},
		{"negative discount", domain.CheckoutInput{
			Items:    []domain.CheckoutLine{{ProductID: "prod-1", Quantity: 1, UnitPrice: dec("10.00")}},
			Discount: decPtr("-1.00"),
		}},
		{"discount exceeds total", domain.CheckoutInput{
			Items:    []domain.CheckoutLine{{ProductID: "prod-1", Quantity: 1, UnitPrice: dec("10.00")}},
			Tax:      decPtr("1.00"),
			Discount: decPtr("11.01"),
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine, mem := newFixture(t)
			seedProduct(t, mem, "acct-a", "prod-1", "Beans", "10.00", 5)

			_, err := engine.Checkout(context.Background(), "acct-a", "", tc.input)
			var validation *domain.ValidationError
			require.ErrorAs(t, err, &validation)
			assert.Equal(t, 0, mem.OrderCount("acct-a"))
			p, _ := mem.Product("prod-1")
			assert.Equal(t, int64(5), p.StockQuantity)
		})
	}
}

func TestCheckoutInvoiceSequence(t *testing.T) {
	engine, mem := newFixture(t)
	seedProduct(t, mem, "acct-a", "prod-1", "Beans", "10.00", 100)
	seedProduct(t, mem, "acct-b", "prod-2", "Filters", "2.00", 100)

	first, err := engine.Checkout(context.Background(), "acct-a", "", domain.CheckoutInput{
		Items: []domain.CheckoutLine{{ProductID: "prod-1", Quantity: 1, UnitPrice: dec("10.00")}},
	})
	require.NoError(t, err)
	second, err := engine.Checkout(context.Background(), "acct-a", "", domain.CheckoutInput{
		Items: []domain.CheckoutLine{{ProductID: "prod-1", Quantity: 1, UnitPrice: dec("10.00")}},
	})
	require.NoError(t, err)

	assert.Equal(t, invoicePrefix()+"0001", first.InvoiceNumber)
	assert.Equal(t, invoicePrefix()+"0002", second.InvoiceNumber)

	// Counters are per account: a different tenant starts at 1.
	other, err := engine.Checkout(context.Background(), "acct-b", "", domain.CheckoutInput{
		Items: []domain.CheckoutLine{{ProductID: "prod-2", Quantity: 1, UnitPrice: dec("2.00")}},
	})
	require.NoError(t, err)
	assert.Equal(t, invoicePrefix()+"0001", other.InvoiceNumber)
}

func TestCheckoutSequenceSkipsRolledBackAttempts(t *testing.T) {
	engine, mem := newFixture(t)
	seedProduct(t, mem, "acct-a", "prod-1", "Beans", "10.00", 3)

	_, err := engine.Checkout(context.Background(), "acct-a", "", domain.CheckoutInput{
		Items: []domain.CheckoutLine{{ProductID: "prod-1", Quantity: 99, UnitPrice: dec("10.00")}},
	})
	require.Error(t, err)

	// The failed attempt's increment rolled back with the transaction.
	order, err := engine.Checkout(context.Background(), "acct-a", "", domain.CheckoutInput{
		Items: []domain.CheckoutLine{{ProductID: "prod-1", Quantity: 1, UnitPrice: dec("10.00")}},
	})
	require.NoError(t, err)
	assert.Equal(t, invoicePrefix()+"0001", order.InvoiceNumber)
}

func TestCheckoutAttachesCustomer(t *testing.T) {
	engine, mem := newFixture(t)
	seedProduct(t, mem, "acct-a", "prod-1", "Beans", "10.00", 5)
	require.NoError(t, mem.CreateCustomer(context.Background(), &domain.Customer{
		CustomerID: "cust-1",
		AccountID:  "acct-a",
		Name:       "Ada",
		Email:      "ada@example.com",
	}))

	customerID := "cust-1"
	notes := "pickup at noon"
	order, err := engine.Checkout(context.Background(), "acct-a", "", domain.CheckoutInput{
		Items:         []domain.CheckoutLine{{ProductID: "prod-1", Quantity: 1, UnitPrice: dec("10.00")}},
		CustomerID:    &customerID,
		PaymentMethod: "card",
		Notes:         &notes,
	})
	require.NoError(t, err)

	require.NotNil(t, order.Customer)
	assert.Equal(t, "Ada", order.Customer.Name)
	assert.Equal(t, "card", order.PaymentMethod)
	require.NotNil(t, order.Notes)
	assert.Equal(t, "pickup at noon", *order.Notes)
}

func TestCheckoutIdempotentReplay(t *testing.T) {
	engine, mem := newFixture(t)
	seedProduct(t, mem, "acct-a", "prod-1", "Beans", "10.00", 10)

	in := domain.CheckoutInput{
		Items: []domain.CheckoutLine{{ProductID: "prod-1", Quantity: 4, UnitPrice: dec("10.00")}},
	}
	first, err := engine.Checkout(context.Background(), "acct-a", "key-1", in)
	require.NoError(t, err)
	replay, err := engine.Checkout(context.Background(), "acct-a", "key-1", in)
	require.NoError(t, err)

	assert.Equal(t, first.SaleOrderID, replay.SaleOrderID)
	assert.Equal(t, first.InvoiceNumber, replay.InvoiceNumber)

	// Stock was only sold once.
	p, _ := mem.Product("prod-1")
	assert.Equal(t, int64(6), p.StockQuantity)
	assert.Equal(t, 1, mem.OrderCount("acct-a"))
}

func TestCheckoutConcurrentStockRace(t *testing.T) {
	engine, mem := newFixture(t)
	seedProduct(t, mem, "acct-a", "prod-1", "Beans", "10.00", 10)

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	var successes int
	var stockFailures int
	invoices := map[string]bool{}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			order, err := engine.Checkout(context.Background(), "acct-a", "", domain.CheckoutInput{
				Items: []domain.CheckoutLine{{ProductID: "prod-1", Quantity: 2, UnitPrice: dec("10.00")}},
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				var stockErr *domain.InsufficientStockError
				require.ErrorAs(t, err, &stockErr)
				stockFailures++
				return
			}
			successes++
			require.False(t, invoices[order.InvoiceNumber], "duplicate invoice %s", order.InvoiceNumber)
			invoices[order.InvoiceNumber] = true
		}()
	}
	wg.Wait()

	// 10 units at 2 per cart: exactly 5 commits, the rest fail cleanly.
	assert.Equal(t, 5, successes)
	assert.Equal(t, workers-5, stockFailures)
	p, _ := mem.Product("prod-1")
	assert.Equal(t, int64(0), p.StockQuantity)
	assert.Equal(t, 5, mem.OrderCount("acct-a"))
}

func TestRecordSale(t *testing.T) {
	engine, mem := newFixture(t)
	seedProduct(t, mem, "acct-a", "prod-1", "Beans", "10.00", 5)

	sale, err := engine.RecordSale(context.Background(), "acct-a", domain.SaleInput{
		ProductID: "prod-1",
		Quantity:  2,
		UnitPrice: dec("12.50"),
	})
	require.NoError(t, err)
	assert.True(t, sale.TotalAmount.Equal(dec("25.00")))
	require.NotNil(t, sale.Product)
	assert.Equal(t, int64(3), sale.Product.StockQuantity)

	p, _ := mem.Product("prod-1")
	assert.Equal(t, int64(3), p.StockQuantity)
}

func TestRecordSaleInsufficientStock(t *testing.T) {
	engine, mem := newFixture(t)
	seedProduct(t, mem, "acct-a", "prod-1", "Beans", "10.00", 1)

	_, err := engine.RecordSale(context.Background(), "acct-a", domain.SaleInput{
		ProductID: "prod-1",
		Quantity:  2,
		UnitPrice: dec("10.00"),
	})
	var stockErr *domain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)

	p, _ := mem.Product("prod-1")
	assert.Equal(t, int64(1), p.StockQuantity)
	sales, err := mem.ListSales(context.Background(), "acct-a")
	require.NoError(t, err)
	assert.Empty(t, sales)
}

func TestRecordSaleValidation(t *testing.T) {
	engine, _ := newFixture(t)

	_, err := engine.RecordSale(context.Background(), "acct-a", domain.SaleInput{})
	var validation *domain.ValidationError
	require.ErrorAs(t, err, &validation)

	_, err = engine.RecordSale(context.Background(), "acct-a", domain.SaleInput{
		ProductID: "prod-1", Quantity: -1, UnitPrice: dec("10.00"),
	})
	require.ErrorAs(t, err, &validation)
}

func TestRecordPurchase(t *testing.T) {
	engine, mem := newFixture(t)
	seedProduct(t, mem, "acct-a", "prod-1", "Beans", "10.00", 5)

	purchase, err := engine.RecordPurchase(context.Background(), "acct-a", domain.PurchaseInput{
		ProductID: "prod-1",
		Quantity:  20,
		UnitCost:  dec("6.00"),
	})
	require.NoError(t, err)
	assert.True(t, purchase.TotalCost.Equal(dec("120.00")))

	p, _ := mem.Product("prod-1")
	assert.Equal(t, int64(25), p.StockQuantity)
}

func TestRecordPurchaseWrongAccount(t *testing.T) {
	engine, mem := newFixture(t)
	seedProduct(t, mem, "acct-b", "prod-1", "Beans", "10.00", 5)

	_, err := engine.RecordPurchase(context.Background(), "acct-a", domain.PurchaseInput{
		ProductID: "prod-1",
		Quantity:  20,
		UnitCost:  dec("6.00"),
	})
	var notFound *domain.NotFoundError
	require.ErrorAs(t, err, &notFound)

	p, _ := mem.Product("prod-1")
	assert.Equal(t, int64(5), p.StockQuantity)
}
