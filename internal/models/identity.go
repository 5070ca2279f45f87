package models

import (
	"time"
)

// Identity is an enrolled person. The id is externally assigned; the label
// is the stable integer the classifier trains on, assigned once and never
// reused.
type Identity struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Label     int       `json:"label" db:"label"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
