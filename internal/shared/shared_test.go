package shared

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsAdministrator(t *testing.T) {
	for _, name := range []string{"admin", "Admin", "ADMIN", "  admin\t"} {
		assert.True(t, IsAdministrator(name), name)
	}
	for _, name := range []string{"", "administrator", "adm1n", "maria"} {
		assert.False(t, IsAdministrator(name), name)
	}
	assert.Equal(t, FoldUsername("Maria"), FoldUsername(" MARIA "))
}

func TestNormalizePageURL(t *testing.T) {
	assert.Equal(t, "/Users", NormalizePageURL(" Users "))
	assert.Equal(t, "/Users", NormalizePageURL("/Users"))
	assert.Equal(t, "", NormalizePageURL("   "))
	for _, page := range CorePages() {
		assert.Equal(t, page, NormalizePageURL(page))
	}
}

func TestErrorTaxonomy(t *testing.T) {
	field := fmt.Errorf("create year: %w", NewFieldError("year", "fiscal year already exists"))
	assert.ErrorIs(t, field, ErrConflict)
	var fe *FieldError
	require.True(t, errors.As(field, &fe))
	assert.Equal(t, "year", fe.Field)

	policy := NewPolicyError("delete node", "system nodes cannot be deleted")
	assert.ErrorIs(t, policy, ErrConflict)
	assert.NotErrorIs(t, policy, ErrNotFound)

	assert.Equal(t, "not found", UserSafeMessage(fmt.Errorf("user 4: %w", ErrNotFound)))
	assert.Equal(t, "internal error", UserSafeMessage(errors.New("dial tcp: refused")))
	assert.Equal(t, "", UserSafeMessage(nil))
}

func newTestManager(t *testing.T) (*SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewSessionManager(client, "sid", "secret", time.Hour, false), mr
}

func TestSessionRoundTrip(t *testing.T) {
	sm, mr := newTestManager(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SetUser("maria")
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, sess))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Len(t, mr.Keys(), 1)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	loaded, err := sm.Load(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "maria", loaded.User())
	assert.Equal(t, "maria", UsernameFromContext(ContextWithSession(ctx, loaded)))

	sm.Destroy(loaded)
	rec = httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, loaded))
	assert.Empty(t, mr.Keys())
	assert.Equal(t, -1, rec.Result().Cookies()[0].MaxAge)
}

func TestSessionRejectsTamperedCookie(t *testing.T) {
	sm, _ := newTestManager(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SetUser("maria")
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), sess))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: sess.ID + ".forged"})
	loaded, err := sm.Load(ctx, req)
	require.NoError(t, err)
	assert.Empty(t, loaded.User())
	assert.NotEqual(t, sess.ID, loaded.ID)
}

func TestAnonymousSessionIsNotPersisted(t *testing.T) {
	sm, mr := newTestManager(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, sess))
	assert.Empty(t, mr.Keys())
	assert.Empty(t, rec.Result().Cookies())
	assert.Empty(t, UsernameFromContext(ctx))
}

func TestSetUserRotatesStoredSession(t *testing.T) {
	sm, mr := newTestManager(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SetUser("maria")
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, sess))
	firstID := sess.ID

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(rec.Result().Cookies()[0])
	loaded, err := sm.Load(ctx, req)
	require.NoError(t, err)
	assert.False(t, loaded.AuthenticatedAt().IsZero())

	loaded.SetUser("luca")
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), loaded))
	assert.NotEqual(t, firstID, loaded.ID)
	assert.False(t, mr.Exists(sessionKeyPrefix+firstID))
	assert.True(t, mr.Exists(sessionKeyPrefix+loaded.ID))
}
