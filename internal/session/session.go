// Package session keeps analysed batches in memory, one per browser.
package session

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"salone/internal/cache"
	"salone/internal/core"
)

// CookieName carries the session id.
const CookieName = "salone_session"

// ErrNotFound is returned for an unknown or expired session.
var ErrNotFound = errors.New("session not found")

// Session is one analysed batch. Data and Result never change after
// creation; only Suggestions is replaced.
type Session struct {
	ID        string
	CreatedAt time.Time
	Source    string // "upload" or "import"
	Data      core.PeriodDataset
	Result    core.AnalysisResult

	mu          sync.Mutex
	suggestions string
}

// Suggestions returns the last generated suggestion text.
func (s *Session) Suggestions() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suggestions
}

// SetSuggestions replaces the suggestion text.
func (s *Session) SetSuggestions(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suggestions = text
}

// Periods returns the period keys in chronological order.
func (s *Session) Periods() []string { return s.Result.Keys() }

// Store holds sessions in an LRU cache with sliding expiry.
type Store struct {
	cache *cache.LRUCache[*Session]
	ttl   time.Duration
}

// NewStore keeps at most maxSessions for ttl since the last access. onEvict
// may be nil.
func NewStore(maxSessions int, ttl time.Duration, onEvict func(id string)) *Store {
	opts := []cache.Option[*Session]{cache.WithSliding[*Session]()}
	if onEvict != nil {
		opts = append(opts, cache.WithOnEvict(func(id string, _ *Session) { onEvict(id) }))
	}
	return &Store{cache: cache.NewLRUCache[*Session](maxSessions, ttl, opts...), ttl: ttl}
}

// Create stores a new session for the batch.
func (st *Store) Create(source string, data core.PeriodDataset, result core.AnalysisResult) *Session {
	s := &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		Source:    source,
		Data:      data,
		Result:    result,
	}
	st.cache.Set(s.ID, s)
	return s
}

// Get returns a live session.
func (st *Store) Get(id string) (*Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	s, ok := st.cache.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Delete drops a session.
func (st *Store) Delete(id string) { st.cache.Delete(id) }

// Len returns the number of live sessions.
func (st *Store) Len() int { return st.cache.Size() }

// Cleaner exposes the underlying cache for periodic cleanup.
func (st *Store) Cleaner() cache.Cleaner { return st.cache }

// FromRequest resolves the session named by the request cookie.
func (st *Store) FromRequest(r *http.Request) (*Session, error) {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return nil, ErrNotFound
	}
	return st.Get(c.Value)
}

// SetCookie binds s to the client.
func (st *Store) SetCookie(w http.ResponseWriter, r *http.Request, s *Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    s.ID,
		Path:     "/",
		MaxAge:   int(st.ttl.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie removes the session cookie.
func ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: CookieName, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
}
