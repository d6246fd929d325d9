// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// OwnerKind names the entity type a media item is attached to.
type OwnerKind string

const (
	OwnerPost    OwnerKind = "post"
	OwnerComment OwnerKind = "comment"
)

// ErrUnknownOwnerKind is returned by ParseOwner for kinds outside the
// closed set of attachable entities.
var ErrUnknownOwnerKind = errors.New("unknown owner type")

// Valid reports whether k is an attachable entity kind.
func (k OwnerKind) Valid() bool {
	switch k {
	case OwnerPost, OwnerComment:
		return true
	default:
		return false
	}
}

// Owner identifies the entity a media item belongs to. The zero value is
// not a valid owner; build one with PostOwner, CommentOwner or ParseOwner.
type Owner struct {
	Kind OwnerKind `json:"owner_type"`
	ID   uuid.UUID `json:"owner_id"`
}

// PostOwner returns the owner reference for a post.
func PostOwner(id uuid.UUID) Owner { return Owner{Kind: OwnerPost, ID: id} }

// CommentOwner returns the owner reference for a comment.
func CommentOwner(id uuid.UUID) Owner { return Owner{Kind: OwnerComment, ID: id} }

// ParseOwner builds an Owner from its wire representation.
func ParseOwner(kind, id string) (Owner, error) {
	k := OwnerKind(kind)
	if !k.Valid() {
		return Owner{}, fmt.Errorf("%w: %q", ErrUnknownOwnerKind, kind)
	}
	uid, err := uuid.Parse(id)
	if err != nil {
		return Owner{}, fmt.Errorf("invalid owner id: %w", err)
	}
	return Owner{Kind: k, ID: uid}, nil
}

// String renders the owner as "kind:id".
func (o Owner) String() string {
	return string(o.Kind) + ":" + o.ID.String()
}
