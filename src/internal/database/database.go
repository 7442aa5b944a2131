package database

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/spf13/viper"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bookhive/bookhive/src/internal/database/models"
)

// Initialize opens the database connection
func Initialize(cfg *viper.Viper) (*gorm.DB, error) {
	var dialector gorm.Dialector

	dbType := cfg.GetString("database.type")
	dbDSN := cfg.GetString("database.dsn")
	switch dbType {
	case "postgres", "postgresql":
		dialector = postgres.Open(dbDSN)
	case "mysql":
		dialector = mysql.Open(dbDSN)
	case "sqlite", "":
		dialector = sqlite.Open(dbDSN)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", dbType)
	}

	logLevel := logger.Silent
	if cfg.GetBool("log.debug") {
		logLevel = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	maxOpen := cfg.GetInt("database.max_open_conns")
	if maxOpen <= 0 {
		maxOpen = 25
	}
	maxIdle := cfg.GetInt("database.max_idle_conns")
	if maxIdle <= 0 {
		maxIdle = maxOpen / 2
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(cfg.GetDuration("database.conn_max_lifetime"))

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// IsPostgres reports whether the connection speaks postgres. The ranked
// full-text + trigram search tier exists only there; every other dialect
// goes straight to the LIKE fallback.
func IsPostgres(db *gorm.DB) bool {
	return db.Dialector.Name() == "postgres"
}

// MigrateDB runs the SQL migrations for the connected dialect and seeds the
// fixed role set.
func MigrateDB(db *gorm.DB) error {
	if err := RunMigrations(db, db.Dialector.Name()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := SeedRoles(db); err != nil {
		return fmt.Errorf("failed to seed roles: %w", err)
	}

	return nil
}

// MigrateTest prepares an in-memory test database. It uses AutoMigrate
// instead of the SQL migrations, so the postgres-only search vector and
// trigram indexes are never created; searches against it exercise the LIKE
// fallback tier, same as any non-postgres deployment.
func MigrateTest(db *gorm.DB) error {
	if err := db.AutoMigrate(models.GetAllModels()...); err != nil {
		return fmt.Errorf("failed to run test migrations: %w", err)
	}

	if err := SeedRoles(db); err != nil {
		return fmt.Errorf("failed to seed roles: %w", err)
	}

	return nil
}

// SeedRoles creates the fixed role rows if missing.
func SeedRoles(db *gorm.DB) error {
	for _, name := range []string{models.RoleAdmin, models.RoleLibrarian, models.RoleMember} {
		var role models.Role
		if err := db.Where("name = ?", name).FirstOrCreate(&role, models.Role{Name: name}).Error; err != nil {
			return fmt.Errorf("failed to create role %s: %w", name, err)
		}
	}
	return nil
}
