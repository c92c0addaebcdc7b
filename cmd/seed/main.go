// seed inserts development accounts for local testing.
// Idempotent: an account whose email already exists is left untouched.
package main

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"identity-service/internal/config"
	"identity-service/internal/db"
	identitydomain "identity-service/internal/identity/domain"
	"identity-service/internal/security"
	userdomain "identity-service/internal/user/domain"
	userrepo "identity-service/internal/user/repository"
)

const devPassword = "password123"

var devAccounts = []struct {
	userName string
	email    string
	role     userdomain.Role
	verified bool
}{
	{"dev", "dev@example.com", userdomain.RoleSuperAdmin, true},
	{"admin", "admin@example.com", userdomain.RoleAdmin, true},
	{"member", "member@example.com", userdomain.RoleUser, true},
	{"unverified", "unverified@example.com", userdomain.RoleUser, false},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env or export DATABASE_URL")
	}

	ctx := context.Background()
	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	users := userrepo.NewPostgresRepository(pool)
	hash, err := security.NewHasher(cfg.BcryptCost).Hash(devPassword)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	now := time.Now().UTC()
	for _, a := range devAccounts {
		existing, err := users.GetByEmail(ctx, a.email)
		if err != nil {
			log.Fatalf("seed check %s: %v", a.email, err)
		}
		if existing != nil {
			log.Printf("seed: %s exists, skipping", a.email)
			continue
		}
		u := &userdomain.User{
			ID:            uuid.NewString(),
			UserName:      a.userName,
			Email:         a.email,
			PasswordHash:  hash,
			LoginType:     identitydomain.OriginLocal,
			Role:          a.role,
			EmailVerified: a.verified,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := users.Create(ctx, u); err != nil {
			log.Fatalf("create %s: %v", a.email, err)
		}
		log.Printf("seed: created %s (%s)", a.email, a.role)
	}
	log.Printf("seed: done; password for every account is %q", devPassword)
}
