package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	dbfs "github.com/garnizeh/probetas/db"
	"github.com/garnizeh/probetas/internal/auth"
	"github.com/garnizeh/probetas/internal/config"
	"github.com/garnizeh/probetas/internal/db"
	"github.com/garnizeh/probetas/internal/repository/sqlite"
	"github.com/garnizeh/probetas/pkg/models"
	"github.com/garnizeh/probetas/pkg/repository"
)

func main() {
	ctx := context.Background()
	cfg, err := config.LoadConfig("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	database, err := db.New(ctx, cfg.DatabasePath, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "DB init error: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.Migrate(ctx, database, dbfs.Migrations); err != nil {
		fmt.Fprintf(os.Stderr, "Migration runner error: %v\n", err)
		os.Exit(1)
	}

	seeded, err := seedAdmin(ctx, sqlite.New(database, nil), os.Getenv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Seed error: %v\n", err)
		os.Exit(1)
	}
	if seeded != "" {
		fmt.Printf("Admin user %q ready.\n", seeded)
	}

	fmt.Println("Database initialized successfully.")
}

// seedAdmin upserts the admin account named by PROBETAS_SEED_ADMIN_USERNAME.
// It returns the username, or "" when no admin is configured.
func seedAdmin(ctx context.Context, users repository.UserRepo, getenv func(string) string) (string, error) {
	username := strings.TrimSpace(getenv("PROBETAS_SEED_ADMIN_USERNAME"))
	password := getenv("PROBETAS_SEED_ADMIN_PASSWORD")
	if username == "" {
		return "", nil
	}
	if len(password) < 6 {
		return "", errors.New("PROBETAS_SEED_ADMIN_PASSWORD must be at least 6 characters")
	}

	email := strings.ToLower(strings.TrimSpace(getenv("PROBETAS_SEED_ADMIN_EMAIL")))
	if email == "" {
		if !strings.Contains(username, "@") {
			return "", errors.New("PROBETAS_SEED_ADMIN_EMAIL is required when the username is not an e-mail address")
		}
		email = strings.ToLower(username)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return "", err
	}

	u := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		FullName:     "Administrator",
		Role:         models.RoleAdmin,
	}
	if _, err := users.UpsertUser(ctx, u); err != nil {
		return "", fmt.Errorf("upsert admin: %w", err)
	}

	return username, nil
}
