package config

import (
	"os"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"table-order-api/models"
)

var (
	DB *gorm.DB

	// JWTSecret signs tenant-context tokens.
	JWTSecret []byte

	// Log is the shared structured logger.
	Log = logrus.New()
)

type Config struct {
	Port        string
	DBSource    string // sqlite file, used unless DATABASE_URL is set
	DatabaseURL string // postgres DSN
	JWTSecret   string
	// StoreTimeout bounds every transactional unit of work; an expired unit
	// rolls back with zero side effects.
	StoreTimeout time.Duration
}

// Load reads .env (if present) and the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		Log.Debug("no .env file, using process environment")
	}

	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		DBSource:     getEnv("DB_SOURCE", "table_order.db"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		JWTSecret:    getEnv("JWT_SECRET", "table_order_super_secret_2025"),
		StoreTimeout: getDurationEnv("STORE_TIMEOUT", 5*time.Second),
	}
	JWTSecret = []byte(cfg.JWTSecret)
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// InitDB opens the store and migrates the schema. Postgres is used when
// DATABASE_URL is set (row-level FOR UPDATE locks); sqlite otherwise.
func InitDB(cfg *Config) {
	gormCfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	}

	var err error
	if cfg.DatabaseURL != "" {
		DB, err = gorm.Open(postgres.Open(cfg.DatabaseURL), gormCfg)
	} else {
		DB, err = gorm.Open(sqlite.Open(cfg.DBSource), gormCfg)
	}
	if err != nil {
		Log.WithError(err).Fatal("failed to connect to database")
	}

	if err := Migrate(DB); err != nil {
		Log.WithError(err).Fatal("failed to migrate database")
	}
	Log.Info("database connected and migrated")
}

// Migrate applies the schema. Exported so tests can run it against their own
// in-memory stores.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Restaurant{},
		&models.Branch{},
		&models.User{},
		&models.Table{},
		&models.MenuItem{},
		&models.Extra{},
		&models.Order{},
		&models.OrderDetail{},
		&models.ServedRecord{},
		&models.AuditEntry{},
	)
}
