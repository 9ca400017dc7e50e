package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bher20/fuelkl/internal/storage"
)

func newService(t *testing.T) (*Service, *storage.MemoryStorage) {
	t.Helper()
	st := storage.NewMemory()
	svc, err := NewService(st)
	require.NoError(t, err)
	return svc, st
}

func TestEnforcePolicies(t *testing.T) {
	svc, _ := newService(t)

	cases := []struct {
		role, obj, act string
		want           bool
	}{
		{RoleAdmin, "prices", "refresh", true},
		{RoleAdmin, "tokens", "write", true},
		{RoleOperator, "prices", "refresh", true},
		{RoleOperator, "prices", "read", true},
		{RoleOperator, "tokens", "write", false},
		{RoleViewer, "prices", "read", true},
		{RoleViewer, "prices", "refresh", false},
		{"nobody", "prices", "read", false},
	}
	for _, tc := range cases {
		got, err := svc.Enforce(tc.role, tc.obj, tc.act)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "%s %s/%s", tc.role, tc.obj, tc.act)
	}
}

func TestCreateAndValidateToken(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t)

	tok, raw, err := svc.CreateToken(ctx, "scheduler", RoleOperator, nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(raw, tok.ID+"."))

	stored, err := st.GetToken(ctx, tok.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.NotContains(t, stored.SecretHash, strings.TrimPrefix(raw, tok.ID+"."))

	got, err := svc.ValidateToken(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, tok.ID, got.ID)
	assert.Equal(t, RoleOperator, got.Role)

	stored, err = st.GetToken(ctx, tok.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastUsedAt)

	_, err = svc.ValidateToken(ctx, tok.ID+".wrong")
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = svc.ValidateToken(ctx, "no-dot")
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = svc.ValidateToken(ctx, "missing."+strings.Repeat("a", 64))
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, _, err = svc.CreateToken(ctx, "x", "root", nil)
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestExpiredTokenIsRejected(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	expires := now.Add(time.Hour)
	_, raw, err := svc.CreateToken(ctx, "short", RoleAdmin, &expires)
	require.NoError(t, err)

	_, err = svc.ValidateToken(ctx, raw)
	require.NoError(t, err)

	now = expires
	_, err = svc.ValidateToken(ctx, raw)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestRevokeToken(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	tok, raw, err := svc.CreateToken(ctx, "temp", RoleViewer, nil)
	require.NoError(t, err)
	toks, err := svc.ListTokens(ctx)
	require.NoError(t, err)
	require.Len(t, toks, 1)

	require.NoError(t, svc.RevokeToken(ctx, tok.ID))
	_, err = svc.ValidateToken(ctx, raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Error(t, svc.RevokeToken(ctx, tok.ID))
}

func TestBootstrapToken(t *testing.T) {
	ctx := context.Background()
	svc, err := NewService(nil)
	require.NoError(t, err)

	_, err = svc.ValidateToken(ctx, "s3cret")
	assert.ErrorIs(t, err, ErrInvalidToken)

	require.NoError(t, svc.SetBootstrapToken("s3cret"))
	tok, err := svc.ValidateToken(ctx, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, BootstrapTokenID, tok.ID)
	assert.Equal(t, RoleAdmin, tok.Role)

	_, err = svc.ValidateToken(ctx, "other")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, _, err = svc.CreateToken(ctx, "x", RoleAdmin, nil)
	assert.Error(t, err)
}

func TestGuard(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	_, operator, err := svc.CreateToken(ctx, "op", RoleOperator, nil)
	require.NoError(t, err)
	_, viewer, err := svc.CreateToken(ctx, "view", RoleViewer, nil)
	require.NoError(t, err)

	h := svc.Guard("prices", "refresh", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, ok := TokenFromContext(r.Context())
		require.True(t, ok)
		_, _ = w.Write([]byte(tok.Name))
	}))

	call := func(header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/internal/refresh", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := call("")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))

	assert.Equal(t, http.StatusUnauthorized, call("Basic abc").Code)
	assert.Equal(t, http.StatusUnauthorized, call("Bearer nope").Code)
	assert.Equal(t, http.StatusForbidden, call("Bearer "+viewer).Code)

	rec = call("Bearer " + operator)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "op", rec.Body.String())
}
