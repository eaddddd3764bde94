// Command seed_admin creates or repairs the bootstrap administrator account.
// It reads database settings from the same .env the API uses.
package main

import (
	"context"
	"flag"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Crisjan0/enrollment-portal-api/pkg/config"
	"github.com/Crisjan0/enrollment-portal-api/pkg/database"
)

func main() {
	var (
		username  string
		password  string
		email     string
		firstName string
		lastName  string
		timeout   time.Duration
	)

	flag.StringVar(&username, "username", "admin", "Administrator username")
	flag.StringVar(&password, "password", "", "Administrator password (required)")
	flag.StringVar(&email, "email", "admin@example.com", "Administrator email")
	flag.StringVar(&firstName, "first-name", "Portal", "First name")
	flag.StringVar(&lastName, "last-name", "Administrator", "Last name")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "Database operation timeout")
	flag.Parse()

	if password == "" {
		log.Fatal("missing required -password flag")
	}
	if len(password) < 8 {
		log.Fatal("password must be at least 8 characters")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	username = strings.TrimSpace(strings.ToLower(username))
	email = strings.TrimSpace(strings.ToLower(email))
	now := time.Now().UTC()

	var existingID string
	err = db.GetContext(ctx, &existingID, `SELECT id FROM users WHERE username = $1`, username)
	if err == nil {
		_, err = db.ExecContext(ctx,
			`UPDATE users SET password_hash = $1, role = 'admin', updated_at = $2 WHERE id = $3`,
			string(hash), now, existingID)
		if err != nil {
			log.Fatalf("failed to update administrator: %v", err)
		}
		log.Printf("updated existing account %s (%s) to administrator", username, existingID)
		return
	}

	id := uuid.NewString()
	_, err = db.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, first_name, last_name, email, role, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, 'admin', $7, $7)`,
		id, username, string(hash), firstName, lastName, email, now)
	if err != nil {
		log.Fatalf("failed to create administrator: %v", err)
	}
	log.Printf("created administrator %s (%s)", username, id)
}
