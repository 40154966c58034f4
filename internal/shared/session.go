package shared

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "staffdesk:session:"

// SessionManager issues signed session cookies whose state lives in Redis.
type SessionManager struct {
	client     *redis.Client
	cookieName string
	ttl        time.Duration
	secure     bool
	secret     []byte
}

// Session is the per-request view of the signed-in user.
type Session struct {
	ID string

	username        string
	authenticatedAt time.Time
	// replaces holds the id a rotated session was issued for; its key is
	// removed on commit.
	replaces  string
	stored    bool
	dirty     bool
	destroyed bool
}

type sessionRecord struct {
	Username        string    `json:"username"`
	AuthenticatedAt time.Time `json:"authenticated_at"`
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(client *redis.Client, cookieName string, secret string, ttl time.Duration, secure bool) *SessionManager {
	return &SessionManager{
		client:     client,
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
		secret:     []byte(secret),
	}
}

// Load resolves the request cookie into a session. A missing, forged or
// expired cookie yields a fresh anonymous session.
func (sm *SessionManager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(sm.cookieName)
	if err != nil {
		return anonymousSession(), nil
	}
	id, ok := sm.verify(cookie.Value)
	if !ok {
		return anonymousSession(), nil
	}

	raw, err := sm.client.Get(ctx, sessionKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return anonymousSession(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: load: %w", err)
	}

	var record sessionRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("session: decode: %w", err)
	}
	return &Session{
		ID:              id,
		username:        record.Username,
		authenticatedAt: record.AuthenticatedAt,
		stored:          true,
	}, nil
}

// Commit writes session changes to Redis and refreshes the cookie. Sessions
// that were never stored and never modified are skipped.
func (sm *SessionManager) Commit(ctx context.Context, w http.ResponseWriter, sess *Session) error {
	if sess == nil {
		return nil
	}
	if sess.destroyed {
		keys := []string{sessionKeyPrefix + sess.ID}
		if sess.replaces != "" {
			keys = append(keys, sessionKeyPrefix+sess.replaces)
		}
		if err := sm.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("session: delete: %w", err)
		}
		http.SetCookie(w, sm.cookie("", -1))
		return nil
	}
	if !sess.stored && !sess.dirty {
		return nil
	}

	if sess.dirty {
		data, err := json.Marshal(sessionRecord{Username: sess.username, AuthenticatedAt: sess.authenticatedAt})
		if err != nil {
			return fmt.Errorf("session: encode: %w", err)
		}
		_, err = sm.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if sess.replaces != "" {
				pipe.Del(ctx, sessionKeyPrefix+sess.replaces)
			}
			pipe.Set(ctx, sessionKeyPrefix+sess.ID, data, sm.ttl)
			return nil
		})
		if err != nil {
			return fmt.Errorf("session: save: %w", err)
		}
		sess.replaces = ""
		sess.stored = true
		sess.dirty = false
	} else if err := sm.client.Expire(ctx, sessionKeyPrefix+sess.ID, sm.ttl).Err(); err != nil {
		return fmt.Errorf("session: touch: %w", err)
	}

	http.SetCookie(w, sm.cookie(sm.sign(sess.ID), int(sm.ttl.Seconds())))
	return nil
}

// Destroy marks the session for deletion on commit.
func (sm *SessionManager) Destroy(sess *Session) {
	if sess != nil {
		sess.destroyed = true
	}
}

// CookieValue returns the signed cookie value for sess.
func (sm *SessionManager) CookieValue(sess *Session) string {
	if sess == nil {
		return ""
	}
	return sm.sign(sess.ID)
}

// SetUser signs username into the session. A session that already exists
// in Redis gets a new id so a pre-login cookie cannot be reused.
func (s *Session) SetUser(username string) {
	if s.stored && s.replaces == "" {
		s.replaces = s.ID
		s.ID = uuid.NewString()
	}
	s.username = username
	s.authenticatedAt = time.Now().UTC()
	s.dirty = true
}

// User returns the signed-in username, empty for anonymous sessions.
func (s *Session) User() string {
	return s.username
}

// AuthenticatedAt returns when the user signed in.
func (s *Session) AuthenticatedAt() time.Time {
	return s.authenticatedAt
}

func anonymousSession() *Session {
	return &Session{ID: uuid.NewString()}
}

func (sm *SessionManager) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     sm.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteStrictMode,
	}
}

func (sm *SessionManager) sign(id string) string {
	mac := hmac.New(sha256.New, sm.secret)
	mac.Write([]byte(id))
	return id + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (sm *SessionManager) verify(value string) (string, bool) {
	id, _, ok := strings.Cut(value, ".")
	if !ok || id == "" {
		return "", false
	}
	if !hmac.Equal([]byte(sm.sign(id)), []byte(value)) {
		return "", false
	}
	return id, true
}
