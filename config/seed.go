package config

import (
	"golang.org/x/crypto/bcrypt"

	"table-order-api/models"
)

// SeedAdmin creates the first admin account from ADMIN_EMAIL/ADMIN_PASSWORD,
// together with its restaurant and branch when the store is empty. Skipped
// silently when the env vars are absent or the account exists.
func SeedAdmin() error {
	email := getEnv("ADMIN_EMAIL", "")
	pass := getEnv("ADMIN_PASSWORD", "")
	if email == "" || pass == "" {
		Log.Warn("skip seeding admin: missing ADMIN_EMAIL/ADMIN_PASSWORD")
		return nil
	}

	var count int64
	if err := DB.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		Log.WithField("email", email).Info("admin already exists")
		return nil
	}

	restaurant := models.Restaurant{Name: getEnv("RESTAURANT_NAME", "Demo Restaurant")}
	if err := DB.Create(&restaurant).Error; err != nil {
		return err
	}
	branch := models.Branch{RestaurantID: restaurant.ID, Name: getEnv("BRANCH_NAME", "Main Branch")}
	if err := DB.Create(&branch).Error; err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	admin := models.User{
		Name:         "Admin",
		Email:        email,
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
		RestaurantID: restaurant.ID,
		BranchID:     branch.ID,
	}
	if err := DB.Create(&admin).Error; err != nil {
		return err
	}
	Log.WithField("email", email).Info("seeded admin account")
	return nil
}
