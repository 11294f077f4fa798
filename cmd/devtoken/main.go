// Package main issues a bearer token signed with the server's identity key,
// for local development without an identity provider.
//
// Usage:
//
//	go run ./cmd/devtoken --email doc@clinic.example --ttl 8h
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/samber/do/v2"

	"github.com/neurotunes/neurotunes-server/internal/auth"
	"github.com/neurotunes/neurotunes-server/internal/config"
	"github.com/neurotunes/neurotunes-server/internal/di/providers"
	"github.com/neurotunes/neurotunes-server/internal/logger"
)

var (
	email = flag.String("email", "", "Email claim of the token (required)")
	name  = flag.String("name", "", "Display name claim")
	ttl   = flag.Duration("ttl", 24*time.Hour, "Token lifetime")
)

func main() {
	flag.Parse()
	if *email == "" {
		log.Fatal("--email is required")
	}

	cfg, err := config.Load(nil)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	injector := do.New()
	do.ProvideValue(injector, cfg)
	do.ProvideValue(injector, logger.New(logger.Config{Writer: io.Discard}))
	do.Provide(injector, providers.ProvideIdentityKey)
	do.Provide(injector, providers.ProvideIssuer)

	issuer := do.MustInvoke[*auth.Issuer](injector)
	token, err := issuer.Issue(*email, *name, *ttl)
	if err != nil {
		log.Fatalf("Failed to issue token: %v", err)
	}
	fmt.Println(token)
}
