package models

import (
	"database/sql/driver"
	"fmt"
)

// ProviderRef is an external payment provider identifier. It persists
// as NULL when empty so that unique indexes on provider reference
// columns skip rows that have none: trial subscriptions and pending
// payment records coexist without colliding on ''.
type ProviderRef string

func (r ProviderRef) Value() (driver.Value, error) {
	if r == "" {
		return nil, nil
	}
	return string(r), nil
}

func (r *ProviderRef) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*r = ""
	case string:
		*r = ProviderRef(v)
	case []byte:
		*r = ProviderRef(v)
	default:
		return fmt.Errorf("cannot scan %T into ProviderRef", value)
	}
	return nil
}
