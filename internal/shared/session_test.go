package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	_ "github.com/pressroom-hq/pressroom/testing"
)

func newTestSessionManager(t *testing.T) *SessionManager {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionManager(client, "pressroom_session", "secret", time.Hour, false)
}

func TestSessionLifecycle(t *testing.T) {
	sm := newTestSessionManager(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID)

	sess.SetUserID(7)
	sess.Set("csrf_token", "tok")

	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, sess))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, "pressroom_session", cookies[0].Name)
	require.Equal(t, sess.ID, cookies[0].Value)
	require.True(t, cookies[0].HttpOnly)

	// A follow-up request with the cookie restores state.
	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.AddCookie(cookies[0])
	restored, err := sm.Load(ctx, req2)
	require.NoError(t, err)

	id, ok := restored.UserID()
	require.True(t, ok)
	require.Equal(t, int64(7), id)
	require.Equal(t, "tok", restored.Get("csrf_token"))
}

func TestSessionDestroy(t *testing.T) {
	sm := newTestSessionManager(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SetUserID(7)
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), sess))

	sm.Destroy(sess)
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, sess))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, -1, cookies[0].MaxAge)

	// The server side copy is gone too.
	cookie := &http.Cookie{Name: sm.CookieName(), Value: sess.ID}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	fresh, err := sm.Load(ctx, req)
	require.NoError(t, err)
	_, ok := fresh.UserID()
	require.False(t, ok)
}

func TestSessionUnknownCookieStartsFresh(t *testing.T) {
	sm := newTestSessionManager(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sm.CookieName(), Value: "gone"})
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "gone", sess.ID)
	_, ok := sess.UserID()
	require.False(t, ok)
}

func TestSessionUserIDNilSafe(t *testing.T) {
	var sess *Session
	_, ok := sess.UserID()
	require.False(t, ok)
}

func TestCSRFManager(t *testing.T) {
	m := NewCSRFManager("csrf-secret")
	sess := &Session{ID: "abc"}

	token, err := m.EnsureToken(sess)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	// Stable for the session once issued.
	again, err := m.EnsureToken(sess)
	require.NoError(t, err)
	require.Equal(t, token, again)

	require.NoError(t, m.VerifyToken(sess, token))
	require.ErrorIs(t, m.VerifyToken(sess, "forged"), ErrCSRFTokenMismatch)
	require.ErrorIs(t, m.VerifyToken(sess, ""), ErrCSRFTokenMissing)
	require.ErrorIs(t, m.VerifyToken(nil, token), ErrCSRFTokenMissing)
}

func TestParsePageRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?page=3&per_page=50", nil)
	page := ParsePageRequest(req, 100)
	require.Equal(t, PageRequest{Page: 3, PerPage: 50}, page)
	require.Equal(t, 100, page.Offset())

	req = httptest.NewRequest(http.MethodGet, "/?page=-1&per_page=9999", nil)
	page = ParsePageRequest(req, 100)
	require.Equal(t, PageRequest{Page: 1, PerPage: 100}, page)
	require.Zero(t, page.Offset())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	page = ParsePageRequest(req, 0)
	require.Equal(t, PageRequest{Page: 1, PerPage: 20}, page)
}
