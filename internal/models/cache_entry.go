package models

import "time"

// CacheEntry backs the database cache store used by the HTTP rate limiter
// when Redis is not configured.
type CacheEntry struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     []byte    `json:"value"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
