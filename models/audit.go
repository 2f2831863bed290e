package models

import "time"

// Audit results. A row is written for successful mutations and for denied
// attempts alike; denials carry the rejection code.
const (
	AuditOK = "ok"
)

// AuditEntry is an immutable record of one attempted mutation. Rows are only
// ever appended, never updated or deleted.
type AuditEntry struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	ActorID      uint      `json:"actor_id" gorm:"not null;index"`
	Action       string    `json:"action" gorm:"not null"`
	TargetID     uint      `json:"target_id" gorm:"not null;index"`
	RestaurantID uint      `json:"restaurant_id" gorm:"not null;index:idx_audit_scope"`
	BranchID     uint      `json:"branch_id" gorm:"not null;index:idx_audit_scope"`
	Result       string    `json:"result" gorm:"not null"`
	CreatedAt    time.Time `json:"created_at"`
}
