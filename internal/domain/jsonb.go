package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONBMap maps a PostgreSQL JSONB column onto a Go map. Job payloads
// and article metadata are stored through it.
type JSONBMap map[string]any

// Scan implements the sql.Scanner interface.
func (m *JSONBMap) Scan(src any) error {
	if src == nil {
		*m = nil
		return nil
	}

	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into JSONBMap", src)
	}

	if len(raw) == 0 {
		*m = JSONBMap{}
		return nil
	}

	return json.Unmarshal(raw, m)
}

// Value implements the driver.Valuer interface. An empty or nil map is
// stored as an empty JSON object, never as SQL NULL.
func (m JSONBMap) Value() (driver.Value, error) {
	if len(m) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}
