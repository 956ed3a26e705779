package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
)

// tryAdvisoryLock pins one pooled connection for the lifetime of the lock.
// Session-level advisory locks belong to the connection that took them, so
// the unlock has to run on the same one.
func tryAdvisoryLock(ctx context.Context, db *sql.DB, key int64) (ReleaseFunc, bool, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("advisory lock: get connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&acquired); err != nil {
		conn.Close()
		return nil, false, fmt.Errorf("advisory lock: %w", err)
	}
	if !acquired {
		conn.Close()
		return nil, false, nil
	}

	release := func(ctx context.Context) error {
		defer conn.Close()
		var released bool
		if err := conn.QueryRowContext(ctx, "SELECT pg_advisory_unlock($1)", key).Scan(&released); err != nil {
			// Discard the connection; ending the session frees the lock.
			_ = conn.Raw(func(any) error { return driver.ErrBadConn })
			return fmt.Errorf("advisory unlock: %w", err)
		}
		if !released {
			return fmt.Errorf("advisory unlock: lock %d was not held by this session", key)
		}
		return nil
	}
	return release, true, nil
}
