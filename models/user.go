package models

import (
	"time"
)

// Role defines allowed actor classes in the system. All role dispatch happens
// over these constants; raw strings never reach a switch.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleKitchen  Role = "kitchen"
	RoleWaiter   Role = "waiter"
	RoleAdmin    Role = "admin"
	RoleOwner    Role = "owner"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleKitchen, RoleWaiter, RoleAdmin, RoleOwner:
		return true
	}
	return false
}

type User struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Name         string    `json:"name" gorm:"not null"`
	Email        string    `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"not null"`
	Role         Role      `json:"role" gorm:"not null;default:'customer'"`
	RestaurantID uint      `json:"restaurant_id" gorm:"not null"`
	BranchID     uint      `json:"branch_id" gorm:"not null"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TenantScope is the (restaurant, branch) pair that isolates all data and
// events for one physical location. Every read and mutation is filtered by it.
type TenantScope struct {
	RestaurantID uint `json:"restaurant_id"`
	BranchID     uint `json:"branch_id"`
}

// Matches reports whether the given entity coordinates fall inside the scope.
func (s TenantScope) Matches(restaurantID, branchID uint) bool {
	return s.RestaurantID == restaurantID && s.BranchID == branchID
}
