package database

import (
	"fmt"
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect establishes a connection to the PostgreSQL database and returns
// the handle. Callers inject the handle into services; there is no global
// database state.
func Connect(dsn string, logLevel logger.LogLevel) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Println("Database connection established")
	return db, nil
}

// AutoMigrate runs database migrations for all models.
func AutoMigrate(db *gorm.DB) error {
	log.Println("Running database migrations...")

	err := db.AutoMigrate(
		&Alert{},
		&Incident{},
		&IncidentMerge{},
		&AuditLog{},
		&TriageSettings{},
		&NotificationSettings{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Println("Database migrations completed successfully")
	return nil
}

// InitializeDefaults creates the singleton settings rows if they don't exist.
func InitializeDefaults(db *gorm.DB) error {
	if _, err := GetOrCreateTriageSettings(db); err != nil {
		return fmt.Errorf("failed to initialize triage settings: %w", err)
	}
	if _, err := GetOrCreateNotificationSettings(db); err != nil {
		return fmt.Errorf("failed to initialize notification settings: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
