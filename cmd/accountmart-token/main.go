// Command accountmart-token mints a bearer token the way the identity
// provider does, for local development against the API.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env"

	"github.com/andymarkow/accountmart/internal/auth"
	"github.com/andymarkow/accountmart/internal/domain/users"
)

type config struct {
	Secret string `env:"JWT_SECRET_KEY"`
}

func main() {
	cfg := config{}

	var (
		sub  string
		role string
		ttl  time.Duration
	)

	flag.StringVar(&cfg.Secret, "s", "secretkey", "JWT secret to sign tokens [env:JWT_SECRET_KEY]")
	flag.StringVar(&sub, "u", "", "user id put into the sub claim")
	flag.StringVar(&role, "r", "user", "role claim, user or admin")
	flag.DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("env.Parse: %v", err)
	}

	if err := users.ValidateID(sub); err != nil {
		log.Fatalf("users.ValidateID: %v", err)
	}

	userRole, err := users.ParseRole(role)
	if err != nil {
		log.Fatalf("users.ParseRole: %v", err)
	}

	token, err := auth.NewJWTAuth([]byte(cfg.Secret), auth.WithTokenTTL(ttl)).CreateJWTString(sub, userRole)
	if err != nil {
		log.Fatalf("auth.CreateJWTString: %v", err)
	}

	fmt.Println(token)
}
