package storage

import "time"

// User is a person using the demo.
type User struct {
	ID        string    `json:"id" gorm:"primaryKey;column:id"`
	FirstName string    `json:"first_name" gorm:"column:first_name"`
	LastName  string    `json:"last_name" gorm:"column:last_name"`
	Role      string    `json:"role" gorm:"column:role"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at"`
}

// Submission is one address/consumption form entry. Values are stored as
// entered; nothing is validated.
type Submission struct {
	ID              string    `json:"id" gorm:"primaryKey;column:id"`
	UserID          string    `json:"user_id,omitempty" gorm:"column:user_id;index"`
	Address         string    `json:"address" gorm:"column:address"`
	Consumption     string    `json:"consumption" gorm:"column:consumption"`
	PercentageScale string    `json:"percentage_scale" gorm:"column:percentage_scale"`
	CreatedAt       time.Time `json:"created_at" gorm:"column:created_at"`
}

// RatesSnapshot stores the latest processed lookup result for a query key.
type RatesSnapshot struct {
	ID         uint      `json:"-" gorm:"primaryKey;column:id"`
	QueryKey   string    `json:"query_key" gorm:"column:query_key;uniqueIndex:idx_rates_snapshots_query_key_unique"`
	StatusCode int       `json:"status_code" gorm:"column:status_code"`
	Payload    []byte    `json:"payload" gorm:"column:payload"`
	FetchedAt  time.Time `json:"fetched_at" gorm:"column:fetched_at"`
}

// Token represents an API access token.
type Token struct {
	ID         string     `json:"id" gorm:"primaryKey;column:id"`
	UserID     string     `json:"user_id" gorm:"column:user_id"`
	Name       string     `json:"name" gorm:"column:name"`
	TokenHash  string     `json:"-" gorm:"column:token_hash;uniqueIndex"`
	Role       string     `json:"role" gorm:"column:role"`
	CreatedAt  time.Time  `json:"created_at" gorm:"column:created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty" gorm:"column:expires_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty" gorm:"column:last_used_at"`
}

type Setting struct {
	Key       string    `gorm:"primaryKey;column:key"`
	Value     string    `gorm:"column:value"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

type ScheduledJob struct {
	Name           string    `json:"name" gorm:"primaryKey;column:name"`
	LastRunAt      time.Time `json:"last_run_at" gorm:"column:last_run_at"`
	LastDurationMs int64     `json:"last_duration_ms" gorm:"column:last_duration_ms"`
	LastSuccess    int       `json:"last_success" gorm:"column:last_success"`
	LastError      string    `json:"last_error" gorm:"column:last_error"`
}
