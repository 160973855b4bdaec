// Command ledger-token prints a bearer token for the configured ledger
// owner, signed with AUTH_JWT_SECRET.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"ledger/internal/cli"
	"ledger/internal/log"
	"ledger/internal/middleware/auth"
)

func main() {
	ttl := flag.Duration("ttl", 0, "token lifetime, defaults to AUTH_TOKEN_TTL")
	flag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Stderr).WithComponent(log.ComponentAuth)
	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AuthJWTSecret == "" {
		logger.Error("AUTH_JWT_SECRET is required to issue tokens")
		os.Exit(1)
	}
	lifetime := cfg.AuthTokenTTL
	if *ttl > 0 {
		lifetime = *ttl
	}

	token, exp, err := auth.NewTokenService(cfg.AuthJWTSecret, lifetime, cfg.UserID).Issue()
	if err != nil {
		logger.Error("Failed to issue token", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Token issued", log.FieldUserID, cfg.UserID, "expires_at", exp.Format(time.RFC3339))
	fmt.Println(token)
}
