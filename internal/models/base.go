package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// BaseModel contains common fields for all models
type BaseModel struct {
	ID        string    `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Variables represents a JSON object for storing arbitrary data
type Variables map[string]interface{}

// Value implements driver.Valuer interface
func (v Variables) Value() (driver.Value, error) {
	if v == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(v)
}

// Scan implements sql.Scanner interface
func (v *Variables) Scan(value interface{}) error {
	*v = make(Variables)
	return scanJSON(value, v)
}

// Clone returns a shallow copy of the map.
func (v Variables) Clone() Variables {
	out := make(Variables, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// scanJSON decodes a JSONB column into dst. NULL leaves dst untouched.
func scanJSON(value interface{}, dst interface{}) error {
	switch data := value.(type) {
	case nil:
		return nil
	case []byte:
		if len(data) == 0 {
			return nil
		}
		return json.Unmarshal(data, dst)
	case string:
		if data == "" {
			return nil
		}
		return json.Unmarshal([]byte(data), dst)
	default:
		return fmt.Errorf("cannot scan %T into %T", value, dst)
	}
}
