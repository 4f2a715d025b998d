package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"github.com/dorkfun/match-core/internal/config"
	"github.com/dorkfun/match-core/internal/store"
)

// seed-admin creates or updates the single operator account the §6.6 admin
// surface authenticates against. Grounded on cmd/seed-admin/main.go, swapped
// from the teacher's phone+SMS-OTP signup to a direct bcrypt-hashed token
// since no SMS provider survives the distillation (see DESIGN.md).
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment variables")
	}

	cfg := config.Load()

	st, err := store.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	phone := os.Getenv("ADMIN_PHONE")
	if phone == "" {
		phone = "0000000000"
		log.Printf("using default admin phone: %s", phone)
	}

	token := os.Getenv("ADMIN_TOKEN")
	if token == "" {
		token = "change-me-in-production"
		log.Printf("WARNING: using default admin token, set ADMIN_TOKEN in production")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(token), cfg.AdminBcryptCost)
	if err != nil {
		log.Fatalf("failed to hash admin token: %v", err)
	}

	now := time.Now()
	err = st.UpsertAdminAccount(context.Background(), &store.AdminAccountRecord{
		Phone:      phone,
		TokenHash:  string(hash),
		Roles:      pq.StringArray{"admin"},
		AllowedIPs: pq.StringArray{},
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		log.Fatalf("failed to seed admin account: %v", err)
	}

	log.Printf("admin account ready")
	log.Printf("  phone: %s", phone)
	log.Printf("  token: %s", token)
}
