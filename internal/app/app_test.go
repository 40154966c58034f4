package app

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staffdesk/staffdesk/internal/observability"
	"github.com/staffdesk/staffdesk/internal/shared"
	_ "github.com/staffdesk/staffdesk/testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s3cret")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "42")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, 42, cfg.RateLimitPerMinute)
	assert.Equal(t, 5, cfg.WorkerConcurrency)
	assert.Equal(t, 12*time.Hour, cfg.SessionTTL)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigRejectsNegativeRateLimit(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s3cret")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "-1")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestInTestMode(t *testing.T) {
	t.Cleanup(RefreshTestMode)
	for value, want := range map[string]bool{"1": true, "true": true, " T ": true, "0": false, "no": false, "": false} {
		t.Setenv(TestModeEnv, value)
		RefreshTestMode()
		assert.Equal(t, want, InTestMode(), "value %q", value)
	}

	t.Setenv(TestModeEnv, "1")
	RefreshTestMode()
	assert.True(t, SkipStartup("worker"))
}

func TestLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&Config{LogFormat: "json"}, &buf).Info("hello", slog.String("k", "v"))
	assert.True(t, strings.HasPrefix(buf.String(), "{"))
	assert.Contains(t, buf.String(), `"k":"v"`)
}

func newTestSessions(t *testing.T) *shared.SessionManager {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return shared.NewSessionManager(client, "staffdesk_session", "secret", time.Hour, false)
}

func TestSessionMiddlewareCommitsOnWrite(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions := newTestSessions(t)

	login := SessionMiddleware(sessions, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		shared.SessionFromContext(r.Context()).SetUser("maria")
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	login.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)

	var seen string
	whoami := SessionMiddleware(sessions, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = shared.UsernameFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(cookies[0])
	whoami.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "maria", seen)
}

func TestRouterBaseRoutes(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := NewRouter(RouterParams{
		Logger:         logger,
		Config:         &Config{RateLimitPerMinute: 0, AppRequestTimeout: time.Second},
		SessionManager: newTestSessions(t),
		Metrics:        observability.NewMetrics(),
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "metrics are served on the internal listener only")
}

func TestMetricsServerIsSeparate(t *testing.T) {
	metrics := observability.NewMetrics()
	metrics.ObserveAccess("/Menu", true)
	srv := NewMetricsServer(":0", metrics)

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "staffdesk_access_decisions_total")
}

func TestRouterLogsEachRequestOnce(t *testing.T) {
	var buf bytes.Buffer
	router := NewRouter(RouterParams{
		Logger: slog.New(slog.NewJSONHandler(&buf, nil)),
		Config: &Config{AppRequestTimeout: time.Second},
	})
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, 1, strings.Count(buf.String(), `"msg":"request"`))
}

func TestAccessLogRecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	handler := accessLog(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/menu", nil))
	assert.Contains(t, buf.String(), `"path":"/menu"`)
	assert.Contains(t, buf.String(), `"status":418`)
}
