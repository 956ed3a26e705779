package auth

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bher20/utilityrates/internal/storage"
)

func newTestService(t *testing.T) (*Service, *storage.MemoryStorage) {
	t.Helper()
	st := storage.NewMemory()
	log := logrus.New()
	log.SetOutput(io.Discard)
	svc, err := NewService(st, log)
	require.NoError(t, err)
	return svc, st
}

func TestEnforce_Roles(t *testing.T) {
	svc, _ := newTestService(t)

	tests := []struct {
		role, obj, act string
		want           bool
	}{
		{RoleAdmin, "users", "write", true},
		{RoleEditor, "rates", "write", true},
		{RoleEditor, "users", "write", false},
		{RoleViewer, "rates", "read", true},
		{RoleViewer, "rates", "write", false},
		{"stranger", "rates", "read", false},
	}
	for _, tt := range tests {
		got, err := svc.Enforce(tt.role, tt.obj, tt.act)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s %s %s", tt.role, tt.obj, tt.act)
	}
}

func TestCreateAndValidateToken(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	tok, raw, err := svc.CreateToken(ctx, "u1", "cli", RoleEditor, nil)
	require.NoError(t, err)
	assert.NotEqual(t, raw, tok.TokenHash)
	assert.Len(t, tok.TokenHash, 64)

	got, err := svc.ValidateToken(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, tok.ID, got.ID)

	stored, _ := st.GetTokenByHash(ctx, tok.TokenHash)
	require.NotNil(t, stored)
	assert.NotNil(t, stored.LastUsedAt)

	_, err = svc.ValidateToken(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, _, err = svc.CreateToken(ctx, "u1", "bad", "superuser", nil)
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestValidateToken_Expired(t *testing.T) {
	svc, _ := newTestService(t)
	past := time.Now().Add(-time.Hour)

	_, raw, err := svc.CreateToken(context.Background(), "u1", "old", RoleViewer, &past)
	require.NoError(t, err)

	_, err = svc.ValidateToken(context.Background(), raw)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestRequirePermission(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, viewer, err := svc.CreateToken(ctx, "u1", "v", RoleViewer, nil)
	require.NoError(t, err)
	_, editor, err := svc.CreateToken(ctx, "u2", "e", RoleEditor, nil)
	require.NoError(t, err)

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	read := svc.Middleware(svc.RequirePermission("rates", "read", true, ok))
	write := svc.Middleware(svc.RequirePermission("rates", "write", true, ok))
	strictRead := svc.Middleware(svc.RequirePermission("rates", "read", false, ok))

	do := func(h http.Handler, token string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, do(read, ""))
	assert.Equal(t, http.StatusUnauthorized, do(strictRead, ""))
	assert.Equal(t, http.StatusNoContent, do(strictRead, viewer))
	assert.Equal(t, http.StatusUnauthorized, do(write, ""))
	assert.Equal(t, http.StatusForbidden, do(write, viewer))
	assert.Equal(t, http.StatusNoContent, do(write, editor))
	assert.Equal(t, http.StatusUnauthorized, do(read, "bogus"))
}

func TestMiddleware_MalformedHeader(t *testing.T) {
	svc, _ := newTestService(t)
	h := svc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestParseExpiry(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	got, err := ParseExpiry("never", now)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = ParseExpiry("36h", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(36*time.Hour), *got)

	got, err = ParseExpiry("2w", now)
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, 14), *got)

	got, err = ParseExpiry("2026-02-01", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), *got)

	for _, bad := range []string{"2025-12-31", "-1h", "0d", "soon"} {
		_, err := ParseExpiry(bad, now)
		assert.Error(t, err, bad)
	}
}
