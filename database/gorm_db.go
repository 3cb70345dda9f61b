package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/campusface/enrollbackend/models"
)

// InitGormDB initializes and returns a GORM database instance
func InitGormDB(dataSourceName string) (*gorm.DB, error) {
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags), // io writer
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)

	db, err := gorm.Open(sqlite.Open(dataSourceName), &gorm.Config{
		Logger: gormLogger,
	})

	if err != nil {
		return nil, fmt.Errorf("failed to connect to database using GORM: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB from GORM: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Println("GORM Database initialized successfully at", dataSourceName)
	return db, nil
}

// AutoMigrateModels can be called after InitGormDB to migrate schemas
func AutoMigrateModels(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Department{},
		&models.BatchYear{},
		&models.Student{},
		&models.Gallery{},
		&models.QualityReport{},
		&models.QualityResult{},
		&models.User{},
	)
	if err != nil {
		return fmt.Errorf("GORM AutoMigrate failed: %w", err)
	}
	log.Println("GORM AutoMigrate completed successfully.")
	return nil
}

// SeedDefaults inserts the default batch years and departments on first run,
// mirroring what campus IT provisions by hand elsewhere.
func SeedDefaults(db *gorm.DB) error {
	var yearCount int64
	if err := db.Model(&models.BatchYear{}).Count(&yearCount).Error; err != nil {
		return fmt.Errorf("failed to count batch years: %w", err)
	}
	if yearCount == 0 {
		now := time.Now().Unix()
		for _, year := range []string{"2026", "2027", "2028", "2029"} {
			if err := db.Create(&models.BatchYear{Year: year, CreatedAt: now}).Error; err != nil {
				return fmt.Errorf("failed to seed batch year %s: %w", year, err)
			}
		}
	}

	var deptCount int64
	if err := db.Model(&models.Department{}).Count(&deptCount).Error; err != nil {
		return fmt.Errorf("failed to count departments: %w", err)
	}
	if deptCount == 0 {
		now := time.Now().Unix()
		defaults := map[string]string{
			"DPT001": "CS",
			"DPT002": "IT",
			"DPT003": "ECE",
			"DPT004": "EEE",
			"DPT005": "CIVIL",
		}
		for id, name := range defaults {
			if err := db.Create(&models.Department{DepartmentID: id, Name: name, CreatedAt: now}).Error; err != nil {
				return fmt.Errorf("failed to seed department %s: %w", id, err)
			}
		}
	}

	return nil
}
