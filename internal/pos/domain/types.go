package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusCompleted OrderStatus = "COMPLETED"
)

const DefaultPaymentMethod = "cash"

type Product struct {
	ProductID     string          `json:"productId"`
	AccountID     string          `json:"accountId"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	Rating        *float64        `json:"rating,omitempty"`
	StockQuantity int64           `json:"stockQuantity"`
}

type Customer struct {
	CustomerID string    `json:"customerId"`
	AccountID  string    `json:"accountId"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	CreatedAt  time.Time `json:"createdAt"`
}

type SaleOrder struct {
	SaleOrderID   string          `json:"saleOrderId"`
	AccountID     string          `json:"accountId"`
	CustomerID    *string         `json:"customerId,omitempty"`
	InvoiceNumber string          `json:"invoiceNumber"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tax           decimal.Decimal `json:"tax"`
	Discount      decimal.Decimal `json:"discount"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	Status        OrderStatus     `json:"status"`
	PaymentMethod string          `json:"paymentMethod"`
	Notes         *string         `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`

	Customer *Customer  `json:"customer,omitempty"`
	Items    []SaleItem `json:"items"`
}

type SaleItem struct {
	SaleItemID  string          `json:"saleItemId"`
	SaleOrderID string          `json:"saleOrderId"`
	ProductID   string          `json:"productId"`
	Quantity    int64           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	TotalPrice  decimal.Decimal `json:"totalPrice"`

	Product *Product `json:"product,omitempty"`
}

// Sale is the legacy single-line sale record kept alongside cart orders.
type Sale struct {
	SaleID      string          `json:"saleId"`
	AccountID   string          `json:"accountId"`
	ProductID   string          `json:"productId"`
	Quantity    int64           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Timestamp   time.Time       `json:"timestamp"`

	Product *Product `json:"product,omitempty"`
}

type Purchase struct {
	PurchaseID string          `json:"purchaseId"`
	AccountID  string          `json:"accountId"`
	ProductID  string          `json:"productId"`
	Quantity   int64           `json:"quantity"`
	UnitCost   decimal.Decimal `json:"unitCost"`
	TotalCost  decimal.Decimal `json:"totalCost"`
	Timestamp  time.Time       `json:"timestamp"`

	Product *Product `json:"product,omitempty"`
}

type SalesSummary struct {
	SalesSummaryID   string          `json:"salesSummaryId"`
	AccountID        string          `json:"accountId"`
	TotalValue       decimal.Decimal `json:"totalValue"`
	ChangePercentage *float64        `json:"changePercentage,omitempty"`
	Date             time.Time       `json:"date"`
}

type PurchaseSummary struct {
	PurchaseSummaryID string          `json:"purchaseSummaryId"`
	AccountID         string          `json:"accountId"`
	TotalPurchased    decimal.Decimal `json:"totalPurchased"`
	ChangePercentage  *float64        `json:"changePercentage,omitempty"`
	Date              time.Time       `json:"date"`
}

type ExpenseSummary struct {
	ExpenseSummaryID string          `json:"expenseSummaryId"`
	AccountID        string          `json:"accountId"`
	TotalExpenses    decimal.Decimal `json:"totalExpenses"`
	Date             time.Time       `json:"date"`
}

type DashboardMetrics struct {
	PopularProducts []Product         `json:"popularProducts"`
	SalesSummary    []SalesSummary    `json:"salesSummary"`
	PurchaseSummary []PurchaseSummary `json:"purchaseSummary"`
	ExpenseSummary  []ExpenseSummary  `json:"expenseSummary"`
}

// CheckoutLine is one cart row as submitted by the client. UnitPrice is the
// price the cashier sold at; it is snapshotted on the sale item and does not
// track later product price changes.
type CheckoutLine struct {
	ProductID string          `json:"productId"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

type CheckoutInput struct {
	Items         []CheckoutLine   `json:"items"`
	CustomerID    *string          `json:"customerId,omitempty"`
	Tax           *decimal.Decimal `json:"tax,omitempty"`
	Discount      *decimal.Decimal `json:"discount,omitempty"`
	PaymentMethod string           `json:"paymentMethod,omitempty"`
	Notes         *string          `json:"notes,omitempty"`
}

type SaleInput struct {
	ProductID string          `json:"productId"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Timestamp *time.Time      `json:"timestamp,omitempty"`
}

type PurchaseInput struct {
	ProductID string          `json:"productId"`
	Quantity  int64           `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unitCost"`
	Timestamp *time.Time      `json:"timestamp,omitempty"`
}
