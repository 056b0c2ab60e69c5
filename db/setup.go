package db

import (
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/flowscribe-dev/flowscribe/internal/models"
)

var DB *gorm.DB

func ConnectDatabase(dsn string) error {
	database, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return err
	}

	DB = database
	log.Println("Database connection established")
	return nil
}

// MigrateDatabase creates any missing tables. Existing tables are left
// untouched so the schema is never altered under a running deployment.
func MigrateDatabase() error {
	migrator := DB.Migrator()

	tables := []any{
		&models.User{},
		&models.Project{},
		&models.HearingLog{},
		&models.FlowNode{},
		&models.FlowEdge{},
		&models.UndoRecord{},
	}

	for _, table := range tables {
		if !migrator.HasTable(table) {
			if err := DB.AutoMigrate(table); err != nil {
				return err
			}
		}
	}

	log.Println("Database migration completed")
	return nil
}
