package events

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventSaleCreated     = "SaleCreated"
	EventSaleUpdated     = "SaleUpdated"
	EventSaleDeleted     = "SaleDeleted"
	EventStockAdjusted   = "StockAdjusted"
	EventPaymentRecorded = "PaymentRecorded"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type SaleLine struct {
	ItemID    int64           `json:"item_id"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// SalePayload is carried by SaleCreated, SaleUpdated and SaleDeleted.
type SalePayload struct {
	SaleID      int64           `json:"sale_id"`
	CustomerID  int64           `json:"customer_id"`
	UserID      *int64          `json:"user_id,omitempty"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Paid        bool            `json:"paid"`
	Lines       []SaleLine      `json:"lines"`
}

type StockAdjustedPayload struct {
	ItemID   int64 `json:"item_id"`
	Delta    int64 `json:"delta"`
	NewStock int64 `json:"new_stock"`
}

type PaymentRecordedPayload struct {
	PaymentID  int64           `json:"payment_id"`
	CustomerID int64           `json:"customer_id"`
	SaleID     *int64          `json:"sale_id,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
}
