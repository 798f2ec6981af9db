package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ashureev/tonechat/internal/domain"
	"github.com/ashureev/tonechat/internal/store"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEmail(t *testing.T) {
	got, err := NormalizeEmail("  Ada <Ada@Example.COM> ")
	require.NoError(t, err)
	require.Equal(t, "ada@example.com", got)

	_, err = NormalizeEmail("not an email")
	require.ErrorIs(t, err, ErrInvalidEmail)
}

func TestOwnerIDIsStable(t *testing.T) {
	a := OwnerID("ada@example.com")
	require.Equal(t, a, OwnerID("ada@example.com"))
	require.NotEqual(t, a, OwnerID("bob@example.com"))
	require.Regexp(t, `^owner_[a-f0-9]{32}$`, a)
}

func TestNewToken(t *testing.T) {
	a, err := NewToken()
	require.NoError(t, err)
	b, err := NewToken()
	require.NoError(t, err)
	require.NotEqual(t, a, b)
	require.True(t, ValidToken(a))
	require.False(t, ValidToken("short"))
}

func gated(repo store.Repository) http.Handler {
	return Middleware(repo)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(OwnerIDFromContext(r.Context()) + "|" + EmailFromContext(r.Context())))
	}))
}

func TestMiddlewareRejectsMissingCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	gated(store.NewMemory()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/session", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.JSONEq(t, `{"error":"unauthorized"}`, rec.Body.String())
}

func TestMiddlewareRejectsUnknownAndExpiredSessions(t *testing.T) {
	repo := store.NewMemory()
	expiredID, _ := NewToken()
	now := time.Now()
	require.NoError(t, repo.CreateAuthSession(context.Background(), &domain.AuthSession{
		ID: expiredID, OwnerID: "o", Email: "a@example.com",
		ExpiresAt: now.Add(-time.Minute), CreatedAt: now.Add(-time.Hour),
	}))
	unknownID, _ := NewToken()

	for _, id := range []string{expiredID, unknownID, "malformed"} {
		req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: id})
		rec := httptest.NewRecorder()
		gated(repo).ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code, id)
	}
}

func TestMiddlewareInjectsOwner(t *testing.T) {
	repo := store.NewMemory()
	id, err := NewToken()
	require.NoError(t, err)
	now := time.Now()
	require.NoError(t, repo.CreateAuthSession(context.Background(), &domain.AuthSession{
		ID: id, OwnerID: "owner_x", Email: "a@example.com",
		ExpiresAt: now.Add(time.Hour), CreatedAt: now,
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: id})
	rec := httptest.NewRecorder()
	gated(repo).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "owner_x|a@example.com", rec.Body.String())
}

func TestCleanupExpired(t *testing.T) {
	repo := store.NewMemory()
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, repo.CreateMagicLink(ctx, &domain.MagicLink{Token: "t", Email: "a@example.com", ExpiresAt: now.Add(-time.Second), CreatedAt: now}))
	require.NoError(t, repo.CreateAuthSession(ctx, &domain.AuthSession{ID: "live", OwnerID: "o", ExpiresAt: now.Add(time.Hour), CreatedAt: now}))

	require.Equal(t, int64(1), cleanupExpired(ctx, repo, now))
	require.Equal(t, int64(0), cleanupExpired(ctx, repo, now))

	live, err := repo.GetAuthSession(ctx, "live")
	require.NoError(t, err)
	require.NotNil(t, live)
}
