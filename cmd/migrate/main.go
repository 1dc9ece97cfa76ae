package main

import (
	"mlbilling/internal/app/dsn"
	"mlbilling/internal/app/repository"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	_ = godotenv.Load()

	dsnStr := dsn.FromEnv()
	if dsnStr == "" {
		logrus.Fatal("DSN string is empty. Check your .env file")
	}

	db, err := gorm.Open(postgres.Open(dsnStr), &gorm.Config{})
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	logrus.Info("Connected to database successfully")

	if err := repository.Migrate(db); err != nil {
		logrus.Fatal(err)
	}
	logrus.Info("Database migration completed successfully")
}
