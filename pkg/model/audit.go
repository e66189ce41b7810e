package model

import "time"

// Audit is embedded by every persisted entity. Repositories stamp the
// timestamps and bump Version on each successful write; an update carrying a
// Version that no longer matches the stored one is rejected.
type Audit struct {
	CreatedAt time.Time `json:"created_at" bson:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at" db:"updated_at"`
	Version   int64     `json:"version" bson:"version" db:"version"`
}

// Stamp initialises the audit fields of a new entity.
func (a *Audit) Stamp(now time.Time) {
	a.CreatedAt = now
	a.UpdatedAt = now
	a.Version = 0
}

// Touch records a successful write at now.
func (a *Audit) Touch(now time.Time) {
	a.UpdatedAt = now
	a.Version++
}
