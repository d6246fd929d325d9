// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StringList stores a list of strings in a jsonb column.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner. NULL scans as an empty list.
func (l *StringList) Scan(value any) error {
	raw, err := jsonBytes(value)
	if err != nil {
		return fmt.Errorf("models.StringList: %w", err)
	}
	if raw == nil {
		*l = StringList{}
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("models.StringList: %w", err)
	}
	*l = out
	return nil
}

// Metadata is an opaque key-value bag stored in a jsonb column. Callers
// must not assume any fixed schema for its contents.
type Metadata map[string]any

// Value implements driver.Valuer. A nil bag is stored as NULL.
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(map[string]any(m))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *Metadata) Scan(value any) error {
	raw, err := jsonBytes(value)
	if err != nil {
		return fmt.Errorf("models.Metadata: %w", err)
	}
	if raw == nil {
		*m = nil
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("models.Metadata: %w", err)
	}
	*m = out
	return nil
}

func jsonBytes(value any) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		if len(v) == 0 || string(v) == "null" {
			return nil, nil
		}
		return v, nil
	case string:
		if v == "" || v == "null" {
			return nil, nil
		}
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported Scan type %T", value)
	}
}
