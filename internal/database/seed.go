// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"
)

// Demo account created on an empty database.
const (
	SeedAdminEmail    = "admin@demo.com"
	SeedAdminPassword = "password"
	SeedCategorySlug  = "general"
)

// Seed populates an empty database with a demo admin account and a default
// category so that posts can be created right away. It is a no-op once any
// user exists.
func Seed(ctx context.Context, db *sql.DB) error {
	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return fmt.Errorf("seed check users: %w", err)
	}

	if count > 0 {
		slog.Info("database already seeded, skipping")
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(SeedAdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("seed bcrypt: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO users (name, email, password_hash, role)
		VALUES ($1, $2, $3, 'admin')
	`, "Admin", SeedAdminEmail, string(hash)); err != nil {
		return fmt.Errorf("seed insert admin: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO categories (name, slug, description)
		VALUES ($1, $2, $3)
		ON CONFLICT (slug) DO NOTHING
	`, "General", SeedCategorySlug, "Uncategorised posts"); err != nil {
		return fmt.Errorf("seed insert category: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed commit: %w", err)
	}

	slog.Info("database seeded with demo admin user", "email", SeedAdminEmail)
	return nil
}
