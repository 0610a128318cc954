// Command admintoken mints a short-lived ADMIN access token for operators
// who manage featured credit.  The subject becomes the actor recorded in
// the credit audit log, so use a real operator id.
//
//	JWT_SECRET=... admintoken -sub ops-anna -ttl 30m
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/marketplace-ranking/internal/model"
	"github.com/iliyamo/marketplace-ranking/internal/utils"
)

func main() {
	_ = godotenv.Load()

	sub := flag.String("sub", "", "operator id recorded as audit actor (required)")
	role := flag.String("role", model.RoleAdmin, "role claim")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("missing required env var: JWT_SECRET")
	}
	if *sub == "" {
		flag.Usage()
		os.Exit(2)
	}
	tok, err := utils.NewAccessToken(secret, *sub, *role, *ttl)
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}
	fmt.Println(tok.Token)
	fmt.Fprintf(os.Stderr, "expires %s\n", tok.Exp.Format(time.RFC3339))
}
