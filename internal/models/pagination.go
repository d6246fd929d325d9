// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"math"
	"strconv"
)

// Page size limits for listings.
const (
	DefaultPerPage = 9
	MaxPerPage     = 50
	// MaxPage keeps Offset from overflowing. Anything past it is as empty
	// as any other page beyond the last.
	MaxPage = math.MaxInt32
)

// PageQuery is an offset pagination request. Page is 1-based.
type PageQuery struct {
	Page    int
	PerPage int
}

// ParsePageQuery reads page and per_page query values, falling back to the
// first page and def items. page is capped at MaxPage and per_page at
// MaxPerPage.
func ParsePageQuery(page, perPage string, def int) PageQuery {
	q := PageQuery{Page: atoiOr(page, 1), PerPage: atoiOr(perPage, def)}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Page > MaxPage {
		q.Page = MaxPage
	}
	if q.PerPage < 1 {
		q.PerPage = def
	}
	if q.PerPage > MaxPerPage {
		q.PerPage = MaxPerPage
	}
	return q
}

// Offset returns the number of rows to skip.
func (q PageQuery) Offset() int {
	return (q.Page - 1) * q.PerPage
}

// PageMeta describes where a page sits in the full result set.
type PageMeta struct {
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	Total       int64 `json:"total"`
	LastPage    int   `json:"last_page"`
}

// NewPageMeta computes the metadata for q over total rows. LastPage is at
// least 1 so an empty listing still has a valid page to show.
func NewPageMeta(q PageQuery, total int64) PageMeta {
	last := 1
	if q.PerPage > 0 && total > 0 {
		last = int((total + int64(q.PerPage) - 1) / int64(q.PerPage))
	}
	return PageMeta{CurrentPage: q.Page, PerPage: q.PerPage, Total: total, LastPage: last}
}

// Paginated is a page of items with its metadata.
type Paginated[T any] struct {
	Data []T      `json:"data"`
	Meta PageMeta `json:"meta"`
}

func atoiOr(s string, def int) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
