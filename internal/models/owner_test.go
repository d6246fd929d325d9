package models

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestParseOwner(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name    string
		kind    string
		id      string
		want    Owner
		wantErr bool
	}{
		{name: "post", kind: "post", id: id.String(), want: PostOwner(id)},
		{name: "comment", kind: "comment", id: id.String(), want: CommentOwner(id)},
		{name: "unknown kind", kind: "user", id: id.String(), wantErr: true},
		{name: "empty kind", kind: "", id: id.String(), wantErr: true},
		{name: "class name", kind: "App\\Models\\Post", id: id.String(), wantErr: true},
		{name: "bad id", kind: "post", id: "42", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOwner(tt.kind, tt.id)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseOwner(%q, %q) = %v, want error", tt.kind, tt.id, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseOwner: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseOwner = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseOwnerUnknownKindSentinel(t *testing.T) {
	_, err := ParseOwner("page", uuid.NewString())
	if !errors.Is(err, ErrUnknownOwnerKind) {
		t.Errorf("expected ErrUnknownOwnerKind, got %v", err)
	}
}

func TestOwnerString(t *testing.T) {
	id := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	if got := CommentOwner(id).String(); got != "comment:11111111-2222-3333-4444-555555555555" {
		t.Errorf("String() = %q", got)
	}
}
