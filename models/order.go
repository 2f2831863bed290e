package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus represents the lifecycle state of a dine-in order. Statuses
// advance in a fixed total order and never regress.
type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusPreparing OrderStatus = "PREPARING"
	StatusReady     OrderStatus = "READY"
	StatusCompleted OrderStatus = "COMPLETED"
)

// statusRank orders the lifecycle for monotonicity checks.
var statusRank = map[OrderStatus]int{
	StatusPending:   0,
	StatusPreparing: 1,
	StatusReady:     2,
	StatusCompleted: 3,
}

// Before reports whether s comes strictly earlier in the lifecycle than other.
func (s OrderStatus) Before(other OrderStatus) bool {
	return statusRank[s] < statusRank[other]
}

type Order struct {
	ID           uint            `json:"id" gorm:"primaryKey"`
	RestaurantID uint            `json:"restaurant_id" gorm:"not null;index:idx_orders_scope"`
	BranchID     uint            `json:"branch_id" gorm:"not null;index:idx_orders_scope"`
	TableID      uint            `json:"table_id" gorm:"not null"`
	Table        *Table          `json:"table,omitempty" gorm:"foreignKey:TableID"`
	Status       OrderStatus     `json:"status" gorm:"not null;default:'PENDING'"`
	TotalPrice   decimal.Decimal `json:"total_price" gorm:"type:decimal(10,2);not null"`

	// ServedBy is the single-owner service claim: one waiter identity, set once
	// per order lifecycle.
	ServedBy *uint `json:"served_by"`

	PaymentMethod string `json:"payment_method"`
	PaymentStatus string `json:"payment_status"`

	Details []OrderDetail `json:"details,omitempty" gorm:"foreignKey:OrderID"`

	CreatedAt   time.Time  `json:"created_at"`
	ApprovedAt  *time.Time `json:"approved_at"`
	ReadyAt     *time.Time `json:"ready_at"`
	ServedAt    *time.Time `json:"served_at"`
	CompletedAt *time.Time `json:"completed_at"`
	ClosedAt    *time.Time `json:"closed_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type OrderDetail struct {
	ID         uint            `json:"id" gorm:"primaryKey"`
	OrderID    uint            `json:"order_id" gorm:"not null;index"`
	MenuItemID uint            `json:"menu_item_id" gorm:"not null"`
	MenuItem   *MenuItem       `json:"menu_item,omitempty" gorm:"foreignKey:MenuItemID"`
	ExtraID    *uint           `json:"extra_id"`
	Extra      *Extra          `json:"extra,omitempty" gorm:"foreignKey:ExtraID"`
	Quantity   int             `json:"quantity" gorm:"not null"`
	UnitPrice  decimal.Decimal `json:"unit_price" gorm:"type:decimal(10,2);not null"` // snapshot price at order time
	IsPrepared bool            `json:"is_prepared" gorm:"not null;default:false"`
	PreparedBy *uint           `json:"prepared_by"`
	PreparedAt *time.Time      `json:"prepared_at"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ServedRecord is an append-only ledger entry recording that a line item was
// handed to the customer. At most one record exists per (order, menu item).
type ServedRecord struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	OrderID    uint      `json:"order_id" gorm:"not null;uniqueIndex:idx_served_once"`
	MenuItemID uint      `json:"menu_item_id" gorm:"not null;uniqueIndex:idx_served_once"`
	ServedBy   uint      `json:"served_by" gorm:"not null"`
	CreatedAt  time.Time `json:"created_at"`
}
