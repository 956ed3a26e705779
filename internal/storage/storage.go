package storage

import (
	"context"
	"time"
)

// Storage abstracts persistence for users, submissions and rate snapshots.
// Single-record lookups return (nil, nil) when nothing matches.
type Storage interface {
	// Users
	CreateUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, id string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)

	// Submissions
	SaveSubmission(ctx context.Context, s Submission) error
	GetSubmission(ctx context.Context, id string) (*Submission, error)
	ListSubmissions(ctx context.Context) ([]Submission, error)

	// Rates snapshots
	GetRatesSnapshot(ctx context.Context, queryKey string) (*RatesSnapshot, error)
	SaveRatesSnapshot(ctx context.Context, snap RatesSnapshot) error

	// Tokens
	CreateToken(ctx context.Context, t Token) error
	GetTokenByHash(ctx context.Context, hash string) (*Token, error)
	UpdateTokenLastUsed(ctx context.Context, id string) error

	// Settings
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	// Scheduled jobs
	UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error
	GetScheduledJob(ctx context.Context, name string) (*ScheduledJob, error)

	Ping(ctx context.Context) error
	// Close releases any resources (no-op for in-memory).
	Close() error
}

// ReleaseFunc gives back a lock obtained from a Locker.
type ReleaseFunc func(ctx context.Context) error

// Locker is implemented by backends that can serialize work across
// processes. Backends without real locks always succeed. When acquired is
// true the caller must call release exactly once.
type Locker interface {
	AcquireAdvisoryLock(ctx context.Context, key int64) (release ReleaseFunc, acquired bool, err error)
}

func noopRelease(context.Context) error { return nil }
