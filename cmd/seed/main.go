package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	"trailroom-billing/internal/config"
	"trailroom-billing/internal/domain"
	"trailroom-billing/internal/domain/model"
	"trailroom-billing/internal/domain/ports/repository"
	"trailroom-billing/internal/infra/api"
	pg "trailroom-billing/internal/infra/db/postgres"
	"trailroom-billing/internal/infra/logging"
	"trailroom-billing/internal/usecase"
)

// Seeds a demo account with a starting balance and prints a bearer token for
// it, for local development against a dev-mode app.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	id := flag.String("id", "00000000-0000-4000-8000-000000000001", "account id")
	email := flag.String("email", "demo@trailroom.local", "account email")
	credits := flag.Int64("credits", 50, "starting bonus credits for a new account")
	admin := flag.Bool("admin", false, "mint an admin token")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.Log, true)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	accounts := pg.NewAccountRepo(pool)
	creditUC := usecase.NewCreditUseCase(accounts, pg.NewLedgerRepo(pool), pg.NewTxManager(pool), nil, usecase.CreditOptions{}, logger)

	acc, err := accounts.FindByID(ctx, repository.NoTX, *id)
	switch {
	case err == nil:
		fmt.Printf("account %s already present (credits=%d). No changes.\n", acc.ID, acc.Credits)
	case errors.Is(err, domain.ErrNotFound):
		acc, err = model.NewAccount(*id, *email, "Demo User")
		if err != nil {
			log.Fatalf("new account: %v", err)
		}
		if err := accounts.Save(ctx, repository.NoTX, acc); err != nil {
			log.Fatalf("save account: %v", err)
		}
		if *credits > 0 {
			bal, err := creditUC.Add(ctx, usecase.CreditChange{
				AccountID:   acc.ID,
				Amount:      *credits,
				Kind:        model.EntryKindAdminAdjustment,
				Description: "Seed balance",
			})
			if err != nil {
				log.Fatalf("seed credits: %v", err)
			}
			fmt.Printf("seeded: %s (email=%s, credits=%d)\n", acc.ID, acc.Email, bal)
		}
	default:
		log.Fatalf("find account: %v", err)
	}

	role := ""
	if *admin {
		role = api.RoleAdmin
	}
	secret := cfg.Auth.JWTSecret
	if secret == "" {
		log.Fatalf("auth.jwt_secret is empty; set it so the app accepts the token")
	}
	tok, err := api.NewAuthManager(secret, 7*24*time.Hour).Mint(acc.ID, role)
	if err != nil {
		log.Fatalf("mint token: %v", err)
	}
	fmt.Printf("Authorization: Bearer %s\n", tok)
}
