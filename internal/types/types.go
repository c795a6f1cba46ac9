package types

import (
	"encoding/json"
	"time"
)

// RecordType identifies the domain collection a record belongs to.
type RecordType string

const (
	TypeProducts  RecordType = "products"
	TypeSales     RecordType = "sales"
	TypeSettings  RecordType = "settings"
	TypeMovements RecordType = "movements"
)

// Valid reports whether rt is a known record type.
func (rt RecordType) Valid() bool {
	switch rt {
	case TypeProducts, TypeSales, TypeSettings, TypeMovements:
		return true
	}
	return false
}

// Action is a pending mutation kind against a record.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// Record is a locally persisted domain object. Data carries the
// type-specific payload; Action records the most recent local mutation so
// reads can exclude deleted records.
type Record struct {
	ID         string          `json:"id"`
	Type       RecordType      `json:"type"`
	BusinessID string          `json:"business_id"`
	Action     Action          `json:"action"`
	Data       json.RawMessage `json:"data"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// QueueItem is a pending mutation awaiting remote confirmation.
// Its id matches the target record's id; enqueueing a new mutation for an
// id already queued replaces the previous entry, so at most one live item
// exists per record.
type QueueItem struct {
	ID         string          `json:"id"`
	Type       RecordType      `json:"type"`
	Action     Action          `json:"action"`
	Data       json.RawMessage `json:"data"`
	BusinessID string          `json:"business_id"`
	Timestamp  time.Time       `json:"timestamp"`
	Synced     bool            `json:"synced"`
	RetryCount int             `json:"retry_count"`
}

// SyncResult summarizes one pass over the sync queue.
type SyncResult struct {
	Skipped  bool          `json:"skipped"`
	Synced   int           `json:"synced"`
	Failed   int           `json:"failed"`
	Dropped  int           `json:"dropped"`
	Errors   []string      `json:"errors,omitempty"`
	Duration time.Duration `json:"-"`
}

// SyncStatus is the connectivity snapshot polled by the front-end
// indicator.
type SyncStatus struct {
	IsOnline    bool       `json:"is_online"`
	QueueLength int        `json:"queue_length"`
	LastSync    *time.Time `json:"last_sync,omitempty"`
	IsSyncing   bool       `json:"is_syncing"`
}

// Product is a catalog entry.
type Product struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Barcode   string    `json:"barcode,omitempty"`
	Category  string    `json:"category,omitempty"`
	Brand     string    `json:"brand,omitempty"`
	Price     float64   `json:"price"`
	Cost      float64   `json:"cost,omitempty"`
	Stock     int       `json:"stock"`
	MinStock  int       `json:"min_stock"`
	Unit      string    `json:"unit,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SaleItem is a single line of a sale.
type SaleItem struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Total       float64 `json:"total"`
}

// Sale is a completed checkout.
type Sale struct {
	ID            string     `json:"id"`
	Items         []SaleItem `json:"items"`
	Total         float64    `json:"total"`
	Discount      float64    `json:"discount,omitempty"`
	PaymentMethod string     `json:"payment_method"`
	Operator      string     `json:"operator,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Setting holds per-business configuration; one record per business,
// updated in place.
type Setting struct {
	ID           string    `json:"id"`
	BusinessName string    `json:"business_name"`
	CNPJ         string    `json:"cnpj,omitempty"`
	Address      string    `json:"address,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	LowStockWarn bool      `json:"low_stock_warn"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// MovementKind classifies a stock movement.
type MovementKind string

const (
	MovementIn         MovementKind = "in"
	MovementOut        MovementKind = "out"
	MovementAdjustment MovementKind = "adjustment"
)

// StockMovement records a change to a product's stock level.
type StockMovement struct {
	ID        string       `json:"id"`
	ProductID string       `json:"product_id"`
	Kind      MovementKind `json:"kind"`
	Quantity  int          `json:"quantity"`
	Reason    string       `json:"reason,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// SalesStats aggregates local revenue figures for the dashboard.
type SalesStats struct {
	DailyRevenue   float64            `json:"daily_revenue"`
	MonthlyRevenue float64            `json:"monthly_revenue"`
	YearlyRevenue  float64            `json:"yearly_revenue"`
	PaymentMethods map[string]float64 `json:"payment_methods"`
}
