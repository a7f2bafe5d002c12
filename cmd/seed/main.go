package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/safedocs-api/internal/repository"
	"github.com/noah-isme/safedocs-api/internal/service"
	"github.com/noah-isme/safedocs-api/pkg/config"
	"github.com/noah-isme/safedocs-api/pkg/database"
	"github.com/noah-isme/safedocs-api/pkg/logger"
)

// seed creates the super administrator, or promotes and reactivates the
// account when the email already exists.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	email := flag.String("email", cfg.Seed.AdminEmail, "super admin email")
	password := flag.String("password", cfg.Seed.AdminPassword, "super admin password")
	name := flag.String("name", cfg.Seed.AdminName, "super admin full name")
	flag.Parse()

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	users := service.NewUserService(repository.NewUserRepository(db), nil, nil, nil, logr)
	created, err := users.EnsureSuperAdmin(ctx, service.SeedAdmin{
		Email:    *email,
		Password: *password,
		FullName: *name,
	})
	if err != nil {
		logr.Fatal("failed to seed super admin", zap.Error(err))
	}
	if created {
		logr.Info("super admin created", zap.String("email", *email))
		return
	}
	logr.Info("super admin already present, role and status ensured", zap.String("email", *email))
}
