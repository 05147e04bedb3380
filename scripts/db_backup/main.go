package main

import (
	"context"
	"fmt"
	"os"

	"github.com/garnizeh/probetas/internal/config"
	"github.com/garnizeh/probetas/internal/db"
)

func main() {
	cfg, err := config.LoadConfig("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	dst := cfg.DatabasePath + ".bak"
	if err := backup(context.Background(), cfg.DatabasePath, dst); err != nil {
		fmt.Fprintf(os.Stderr, "Backup error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Database backup written to %s.\n", dst)
}

// backup writes a consistent snapshot of the database at src to dst,
// replacing any previous snapshot. The server may keep running.
func backup(ctx context.Context, src, dst string) error {
	if _, err := os.Stat(src); err != nil {
		return err
	}

	database, err := db.New(ctx, src, nil)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return err
	}
	if _, err := database.Exec(ctx, `VACUUM INTO ?`, dst); err != nil {
		return fmt.Errorf("vacuum into %s: %w", dst, err)
	}

	return nil
}
