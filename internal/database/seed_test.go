package database

import (
	"context"
	"testing"
)

func TestSeedIdempotent(t *testing.T) {
	db := migratedDB(t)
	ctx := context.Background()

	var before int
	if err := db.QueryRow("SELECT COUNT(*) FROM users").Scan(&before); err != nil {
		t.Fatalf("count users: %v", err)
	}

	// Other packages may share this database, so only the empty case can
	// assert on the seeded rows.
	if err := Seed(ctx, db); err != nil {
		t.Fatalf("first Seed: %v", err)
	}
	if err := Seed(ctx, db); err != nil {
		t.Fatalf("second Seed: %v", err)
	}

	if before > 0 {
		return
	}

	var role string
	if err := db.QueryRow("SELECT role FROM users WHERE email = $1", SeedAdminEmail).Scan(&role); err != nil {
		t.Fatalf("load admin: %v", err)
	}
	if role != "admin" {
		t.Errorf("seeded role = %q, want admin", role)
	}

	var cats int
	if err := db.QueryRow("SELECT COUNT(*) FROM categories WHERE slug = $1", SeedCategorySlug).Scan(&cats); err != nil {
		t.Fatalf("count categories: %v", err)
	}
	if cats != 1 {
		t.Errorf("expected the default category, got %d", cats)
	}
}
