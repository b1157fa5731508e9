package contracts

import "time"

type Event struct {
	EventID   string         `json:"event_id"`
	AccountID string         `json:"account_id"`
	Type      string         `json:"type"`
	CreatedAt time.Time      `json:"created_at"`
	Payload   map[string]any `json:"payload"`
}

const (
	EventSaleOrderCreated = "sale_order.created"
	EventSaleCreated      = "sale.created"
	EventPurchaseCreated  = "purchase.created"
)

// TopicSaleEvents carries every committed stock movement, keyed by account
// so per-tenant ordering is preserved.
const TopicSaleEvents = "pos.sale-events"
