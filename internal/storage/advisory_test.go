package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
)

// lockServer mimics postgres session-level advisory locks: a lock belongs to
// the connection that took it and is freed when that connection closes.
type lockServer struct {
	mu      sync.Mutex
	nextID  int
	holders map[int64]int
}

func newLockServer() *lockServer { return &lockServer{holders: map[int64]int{}} }

func (s *lockServer) Connect(context.Context) (driver.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return &lockConn{srv: s, id: s.nextID}, nil
}

func (s *lockServer) Driver() driver.Driver { return nil }

func (s *lockServer) exec(conn int, query string, key int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	holder, held := s.holders[key]
	switch {
	case strings.Contains(query, "pg_try_advisory_lock"):
		if held && holder != conn {
			return false
		}
		s.holders[key] = conn
		return true
	case strings.Contains(query, "pg_advisory_unlock"):
		if !held || holder != conn {
			return false
		}
		delete(s.holders, key)
		return true
	}
	return false
}

func (s *lockServer) held() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.holders)
}

type lockConn struct {
	srv *lockServer
	id  int
}

func (c *lockConn) Prepare(query string) (driver.Stmt, error) {
	return &lockStmt{conn: c, query: query}, nil
}

func (c *lockConn) Close() error {
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()
	for k, holder := range c.srv.holders {
		if holder == c.id {
			delete(c.srv.holders, k)
		}
	}
	return nil
}

func (c *lockConn) Begin() (driver.Tx, error) { return nil, errors.New("transactions not supported") }

type lockStmt struct {
	conn  *lockConn
	query string
}

func (s *lockStmt) Close() error  { return nil }
func (s *lockStmt) NumInput() int { return 1 }

func (s *lockStmt) Exec(args []driver.Value) (driver.Result, error) {
	return nil, errors.New("exec not supported")
}

func (s *lockStmt) Query(args []driver.Value) (driver.Rows, error) {
	key, _ := args[0].(int64)
	return &boolRows{v: s.conn.srv.exec(s.conn.id, s.query, key)}, nil
}

type boolRows struct {
	v    bool
	done bool
}

func (r *boolRows) Columns() []string { return []string{"ok"} }
func (r *boolRows) Close() error      { return nil }

func (r *boolRows) Next(dest []driver.Value) error {
	if r.done {
		return io.EOF
	}
	dest[0] = r.v
	r.done = true
	return nil
}

func newLockDB(t *testing.T) (*sql.DB, *lockServer) {
	t.Helper()
	srv := newLockServer()
	db := sql.OpenDB(srv)
	db.SetMaxIdleConns(4)
	t.Cleanup(func() { db.Close() })

	// Leave several idle connections in the pool so consecutive queries can
	// land on different sessions.
	ctx := context.Background()
	conns := make([]*sql.Conn, 3)
	for i := range conns {
		c, err := db.Conn(ctx)
		if err != nil {
			t.Fatalf("Conn failed: %v", err)
		}
		conns[i] = c
	}
	for _, c := range conns {
		c.Close()
	}
	return db, srv
}

func TestTryAdvisoryLock_ReleasesOnSameSession(t *testing.T) {
	ctx := context.Background()
	db, srv := newLockDB(t)

	release, acquired, err := tryAdvisoryLock(ctx, db, 42)
	if err != nil || !acquired {
		t.Fatalf("expected lock to be acquired, got %v, %v", acquired, err)
	}

	_, other, err := tryAdvisoryLock(ctx, db, 42)
	if err != nil {
		t.Fatalf("second attempt failed: %v", err)
	}
	if other {
		t.Fatal("expected a second session to be refused while the lock is held")
	}

	if err := release(ctx); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if n := srv.held(); n != 0 {
		t.Fatalf("expected no locks held after release, got %d", n)
	}

	for i := 0; i < 3; i++ {
		release, acquired, err := tryAdvisoryLock(ctx, db, 42)
		if err != nil || !acquired {
			t.Fatalf("round %d: expected lock to be acquired, got %v, %v", i, acquired, err)
		}
		if err := release(ctx); err != nil {
			t.Fatalf("round %d: release failed: %v", i, err)
		}
	}
}

func TestTryAdvisoryLock_FailedUnlockDropsSession(t *testing.T) {
	db, srv := newLockDB(t)

	release, acquired, err := tryAdvisoryLock(context.Background(), db, 7)
	if err != nil || !acquired {
		t.Fatalf("expected lock to be acquired, got %v, %v", acquired, err)
	}

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	if err := release(canceled); err == nil {
		t.Fatal("expected release with a canceled context to fail")
	}
	if n := srv.held(); n != 0 {
		t.Fatalf("expected the lock to be freed with its session, got %d held", n)
	}

	release, acquired, err = tryAdvisoryLock(context.Background(), db, 7)
	if err != nil || !acquired {
		t.Fatalf("expected lock to be free again, got %v, %v", acquired, err)
	}
	_ = release(context.Background())
}
