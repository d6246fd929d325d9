// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package store provides database access methods for all inkpost entities.
// Each store struct wraps a *sql.DB and exposes typed query methods. Lookups
// return (nil, nil) when the row does not exist.
package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Sentinel errors mapped from constraint violations.
var (
	ErrSlugTaken      = errors.New("slug already taken")
	ErrEmailTaken     = errors.New("email already registered")
	ErrParentMismatch = errors.New("parent comment belongs to another post")
	ErrInUse          = errors.New("record is still referenced")
)

// PostgreSQL error codes used by the stores.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// violates reports whether err is a PostgreSQL error with the given code,
// and, when constraint is non-empty, raised by that constraint.
func violates(err error, code, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	if pgErr.Code != code {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
