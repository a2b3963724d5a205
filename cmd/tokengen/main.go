// Package main issues bearer tokens for local testing of principal resolution.
// Tokens are signed with the key given by -key or DIYET_AUTH__JWT_SIGNING_KEY
// and are only accepted by a server configured with the same key.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	jwttoken "diyetlenio/internal/jwt_token"
)

const (
	devSigningKey   = "dev-secret-key-change-in-production"
	defaultIssuer   = "diyetlenio"
	defaultTokenTTL = 15 * time.Minute
)

type tokenOutput struct {
	Token     string            `json:"token"`
	Type      string            `json:"type"`
	Subject   string            `json:"subject"`
	ExpiresIn string            `json:"expires_in"`
	Usage     map[string]string `json:"usage"`
}

func main() {
	subject := flag.String("subject", "", "Token subject (user ID). Generated if empty.")
	key := flag.String("key", os.Getenv("DIYET_AUTH__JWT_SIGNING_KEY"), "HS256 signing key")
	issuer := flag.String("issuer", defaultIssuer, "Token issuer")
	scopes := flag.String("scopes", "", "Comma-separated scopes")
	ttl := flag.Duration("ttl", defaultTokenTTL, "Token time-to-live")
	asJSON := flag.Bool("json", false, "Output as JSON")
	flag.Parse()

	if *key == "" {
		*key = devSigningKey
	}
	if *subject == "" {
		*subject = uuid.NewString()
	}

	var scopeList []string
	if *scopes != "" {
		scopeList = strings.Split(*scopes, ",")
	}

	token, err := jwttoken.NewJWTService(*key, *issuer).Sign(context.Background(), *subject, *ttl, scopeList...)
	if err != nil {
		fmt.Fprintln(os.Stderr, "sign token:", err)
		os.Exit(1)
	}

	if !*asJSON {
		fmt.Println(token)
		return
	}
	out := tokenOutput{
		Token:     token,
		Type:      "Bearer",
		Subject:   *subject,
		ExpiresIn: ttl.String(),
		Usage: map[string]string{
			"curl": fmt.Sprintf(`curl -H "Authorization: Bearer %s" http://localhost:8000/api/versions/`, token),
		},
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintln(os.Stderr, "encode output:", err)
		os.Exit(1)
	}
}
