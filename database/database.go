package database

import (
	"fmt"
	"log"

	config "github.com/anjiri1684/fee_ledger/configs"
	"github.com/anjiri1684/fee_ledger/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func ConnectDB() {
	var err error
	dsn := config.Config("DATABASE_URL")

	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		PrepareStmt:            false,
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	if err != nil {
		log.Fatalf("🔥 Failed to connect to database: %v", err)
	}

	fmt.Println("✅ Database connected successfully")
}

func Migrate() {
	err := DB.AutoMigrate(
		&models.Business{},
		&models.Student{},
		&models.Enrollment{},
		&models.FeeTemplate{},
		&models.Scholarship{},
		&models.Fee{},
		&models.Transaction{},
		&models.Payment{},
		&models.JobRun{},
	)
	if err != nil {
		log.Fatalf("🔥 Failed to migrate database: %v", err)
	}
	fmt.Println("✅ Database migration successful")
}
