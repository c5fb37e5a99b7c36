// Command devtoken prints a bearer token accepted by the API, for local
// testing without the identity provider.
//
//	go run ./cmd/devtoken -user user_123 -role ADMIN
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-ticket-booking/internal/utils"
)

func main() {
	_ = godotenv.Load()

	user := flag.String("user", "dev_user", "subject (identity provider user id)")
	role := flag.String("role", "", `role claim, e.g. "ADMIN"`)
	ttl := flag.Int("ttl", 60, "lifetime in minutes")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		logrus.Fatal("missing required env var: JWT_SECRET")
	}
	tok, err := utils.NewAccessToken(secret, *user, *role, *ttl)
	if err != nil {
		logrus.WithError(err).Fatal("failed to sign token")
	}
	fmt.Println(tok.Token)
	fmt.Fprintf(os.Stderr, "expires %s\n", tok.Exp.Format("2006-01-02 15:04:05 MST"))
}
