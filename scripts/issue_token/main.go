package main

import (
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/noah-isme/tutoring-ledger-api/internal/models"
	"github.com/noah-isme/tutoring-ledger-api/internal/service"
	"github.com/noah-isme/tutoring-ledger-api/pkg/config"
)

// issue_token mints an access token with the configured JWT secret for local
// testing and operational scripts.
func main() {
	var (
		userID string
		email  string
		name   string
		role   string
		ttl    time.Duration
	)

	flag.StringVar(&userID, "user", "", "User ID placed in the token (required)")
	flag.StringVar(&email, "email", "", "Email claim")
	flag.StringVar(&name, "name", "", "Full name claim")
	flag.StringVar(&role, "role", string(models.RoleAdmin), "Role claim: SUPERADMIN, ADMIN, TEACHER or STUDENT")
	flag.DurationVar(&ttl, "ttl", 0, "Token lifetime (defaults to JWT_ACCESS_TOKEN_TTL)")
	flag.Parse()

	if userID == "" {
		log.Fatal("-user is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if ttl <= 0 {
		ttl = cfg.JWT.AccessTokenTTL
	}

	auth := service.NewAuthService(nil, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: ttl,
		Issuer:            cfg.JWT.Issuer,
	})
	token, expiresAt, err := auth.IssueToken(models.User{ID: userID, Email: email, FullName: name}, models.UserRole(strings.ToUpper(role)))
	if err != nil {
		log.Fatalf("failed to issue token: %v", err)
	}

	fmt.Println(token)
	log.Printf("expires at %s", expiresAt.Format(time.RFC3339))
}
