// Command seed provisions demo users and wallets for local development.
package main

import (
	"log"

	"github.com/shopspring/decimal"

	"ledgercore/internal/config"
	"ledgercore/internal/models"
	"ledgercore/internal/repositories"
)

func main() {
	config.LoadEnv()

	if err := repositories.InitDB(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if sqlDB, err := repositories.DB.DB(); err == nil {
			sqlDB.Close()
		}
		repositories.RedisClient.Close()
	}()

	users := []models.User{
		{ID: 1, Status: models.UserStatusActive},
		{ID: 2, Status: models.UserStatusActive},
	}
	for _, u := range users {
		if err := repositories.DB.FirstOrCreate(&u, u.ID).Error; err != nil {
			log.Fatalf("Failed to seed user %d: %v", u.ID, err)
		}
	}

	wallets := []models.Wallet{
		{UserID: 1, Asset: "BTC", Balance: decimal.RequireFromString("100000000"), IsPrimary: true},
		{UserID: 1, Asset: "USDT", Balance: decimal.RequireFromString("500000000"), IsPrimary: false},
		{UserID: 2, Asset: "BTC", Balance: decimal.Zero, IsPrimary: true},
	}
	for _, w := range wallets {
		var existing models.Wallet
		err := repositories.DB.Where("user_id = ? AND asset = ?", w.UserID, w.Asset).First(&existing).Error
		if err == nil {
			log.Printf("wallet %d/%s already exists", w.UserID, w.Asset)
			continue
		}
		if err := repositories.DB.Create(&w).Error; err != nil {
			log.Fatalf("Failed to seed wallet %d/%s: %v", w.UserID, w.Asset, err)
		}
		log.Printf("seeded wallet %d/%s with balance %s", w.UserID, w.Asset, w.Balance)
	}

	log.Println("seed complete")
}
