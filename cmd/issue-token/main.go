package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/noah-isme/asset-inventory-api/internal/models"
	"github.com/noah-isme/asset-inventory-api/internal/service"
	"github.com/noah-isme/asset-inventory-api/pkg/config"
	"github.com/noah-isme/asset-inventory-api/pkg/logger"
)

// issue-token mints a signed access token for local development against the configured JWT secret.
func main() {
	userID := flag.String("user", "", "user id placed in the token")
	role := flag.String("role", string(models.RoleEmployee), "admin|employee")
	email := flag.String("email", "", "optional email claim")
	name := flag.String("name", "", "optional full name claim")
	ttl := flag.Duration("ttl", 0, "token lifetime (defaults to JWT_EXPIRATION)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.Env == config.EnvProduction {
		fmt.Fprintln(os.Stderr, "refusing to mint tokens in production")
		os.Exit(1)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	expiry := cfg.JWT.Expiration
	if *ttl > 0 {
		expiry = *ttl
	}
	auth := service.NewAuthService(logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: expiry,
		Issuer:            cfg.JWT.Issuer,
	})

	token, expiresAt, err := auth.IssueToken(*userID, models.UserRole(*role), *email, *name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "issue token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", expiresAt.Format(time.RFC3339))
}
