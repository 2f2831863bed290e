package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Restaurant struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"not null"`
	Branches  []Branch  `json:"branches,omitempty" gorm:"foreignKey:RestaurantID"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Branch struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	RestaurantID uint      `json:"restaurant_id" gorm:"not null;index"`
	Name         string    `json:"name" gorm:"not null"`
	Address      string    `json:"address"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Table struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	RestaurantID uint      `json:"restaurant_id" gorm:"not null;index"`
	BranchID     uint      `json:"branch_id" gorm:"not null;index"`
	Number       int       `json:"number" gorm:"not null"`
	Seats        int       `json:"seats" gorm:"default:4"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type MenuItem struct {
	ID           uint            `json:"id" gorm:"primaryKey"`
	RestaurantID uint            `json:"restaurant_id" gorm:"not null;index"`
	BranchID     uint            `json:"branch_id" gorm:"not null;index"`
	Name         string          `json:"name" gorm:"not null"`
	Category     string          `json:"category"`
	Price        decimal.Decimal `json:"price" gorm:"type:decimal(10,2);not null"`
	IsAvailable  bool            `json:"is_available" gorm:"default:true"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Extra is an add-on a customer can attach to a single line item.
type Extra struct {
	ID           uint            `json:"id" gorm:"primaryKey"`
	RestaurantID uint            `json:"restaurant_id" gorm:"not null;index"`
	BranchID     uint            `json:"branch_id" gorm:"not null;index"`
	Name         string          `json:"name" gorm:"not null"`
	Price        decimal.Decimal `json:"price" gorm:"type:decimal(10,2);not null"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
