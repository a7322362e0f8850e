// Package session implements the lazily started session service. Nothing
// connects to the store or schedules garbage collection until Start runs,
// which the container does on first resolution of the "session" service.
package session

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/GoCodeAlone/baseapp"
	"github.com/GoCodeAlone/baseapp/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
)

// Options configures the session cookie and garbage collection.
type Options struct {
	Name       string
	Lifetime   time.Duration
	GCSchedule string
	Path       string
	Secure     bool
}

// OptionsFrom maps the session config section.
func OptionsFrom(cfg config.SessionConfig) Options {
	return Options{Name: cfg.Name, Lifetime: cfg.Lifetime, GCSchedule: cfg.GCSchedule, Path: "/"}
}

// NewStore builds the configured store.
func NewStore(cfg config.SessionConfig) (Store, error) {
	switch strings.ToLower(cfg.Store) {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:         cfg.RedisAddr,
			DialTimeout:  3 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})
		return NewRedisStore(client, cfg.Prefix), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownStore, cfg.Store)
	}
}

// Manager loads and saves sessions for HTTP requests.
type Manager struct {
	store  Store
	opts   Options
	logger baseapp.Logger

	mu      sync.Mutex
	started bool
	cron    *cron.Cron
}

func NewManager(store Store, opts Options, logger baseapp.Logger) *Manager {
	if logger == nil {
		logger = baseapp.NopLogger{}
	}
	if opts.Name == "" {
		opts.Name = "baseapp_session"
	}
	if opts.Path == "" {
		opts.Path = "/"
	}
	return &Manager{store: store, opts: opts, logger: logger}
}

// Start checks the store and schedules garbage collection. It is a no-op
// once started.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return nil
	}
	if err := m.store.Ping(ctx); err != nil {
		return err
	}
	if m.opts.GCSchedule != "" {
		c := cron.New()
		if _, err := c.AddFunc(m.opts.GCSchedule, m.collect); err != nil {
			return fmt.Errorf("%w: %q: %w", ErrInvalidSchedule, m.opts.GCSchedule, err)
		}
		c.Start()
		m.cron = c
	}
	m.started = true
	m.logger.Info("Session manager started", "cookie", m.opts.Name, "gc", m.opts.GCSchedule)
	return nil
}

func (m *Manager) Started() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

// Stop halts garbage collection and closes the store.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return nil
	}
	if m.cron != nil {
		select {
		case <-m.cron.Stop().Done():
		case <-ctx.Done():
			return fmt.Errorf("session gc shutdown: %w", ctx.Err())
		}
	}
	m.started = false
	return m.store.Close()
}

func (m *Manager) collect() {
	n, err := m.GC(context.Background())
	if err != nil {
		m.logger.Warn("Session GC failed", "error", err)
		return
	}
	if n > 0 {
		m.logger.Debug("Session GC removed sessions", "count", n)
	}
}

// GC removes expired sessions now.
func (m *Manager) GC(ctx context.Context) (int, error) {
	return m.store.GC(ctx)
}

// Load returns the session named by the request cookie, or a fresh one.
func (m *Manager) Load(r *http.Request) (*Session, error) {
	if !m.Started() {
		return nil, ErrNotStarted
	}
	cookie, err := r.Cookie(m.opts.Name)
	if err != nil || cookie.Value == "" {
		return m.fresh(), nil
	}
	if _, err := uuid.Parse(cookie.Value); err != nil {
		return m.fresh(), nil
	}
	data, ok, err := m.store.Load(r.Context(), cookie.Value)
	if err != nil {
		return nil, err
	}
	if !ok {
		return m.fresh(), nil
	}
	values := make(map[string]any)
	if err := json.Unmarshal(data, &values); err != nil {
		m.logger.Warn("Discarding unreadable session", "error", err)
		return m.fresh(), nil
	}
	return newSession(cookie.Value, values, false), nil
}

func (m *Manager) fresh() *Session {
	return newSession(uuid.NewString(), nil, true)
}

// Save persists s and writes the session cookie. Untouched existing
// sessions are refreshed in the store without rewriting the cookie.
func (m *Manager) Save(ctx context.Context, w http.ResponseWriter, s *Session) error {
	s.mu.RLock()
	destroyed, dirty, isNew := s.destroyed, s.dirty, s.isNew
	s.mu.RUnlock()

	if destroyed {
		if err := m.store.Destroy(ctx, s.id); err != nil {
			return err
		}
		http.SetCookie(w, &http.Cookie{Name: m.opts.Name, Value: "", Path: m.opts.Path, MaxAge: -1, HttpOnly: true})
		return nil
	}
	if isNew && !dirty {
		return nil
	}
	data, err := s.encode()
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := m.store.Save(ctx, s.id, data, m.opts.Lifetime); err != nil {
		return err
	}
	if isNew {
		http.SetCookie(w, &http.Cookie{
			Name:     m.opts.Name,
			Value:    s.id,
			Path:     m.opts.Path,
			MaxAge:   int(m.opts.Lifetime / time.Second),
			HttpOnly: true,
			Secure:   m.opts.Secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
	s.mu.Lock()
	s.dirty, s.isNew = false, false
	s.mu.Unlock()
	return nil
}

// Middleware attaches the request's session to its context and saves it
// before the response headers go out.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := m.Load(r)
		if err != nil {
			m.logger.Error("Session load failed", "error", err)
			next.ServeHTTP(w, r)
			return
		}
		sw := &savingWriter{ResponseWriter: w, save: func() {
			if err := m.Save(r.Context(), w, s); err != nil {
				m.logger.Error("Session save failed", "error", err)
			}
		}}
		next.ServeHTTP(sw, r.WithContext(NewContext(r.Context(), s)))
		sw.flush()
	})
}

type savingWriter struct {
	http.ResponseWriter
	save  func()
	saved bool
}

func (w *savingWriter) flush() {
	if !w.saved {
		w.saved = true
		w.save()
	}
}

func (w *savingWriter) WriteHeader(code int) {
	w.flush()
	w.ResponseWriter.WriteHeader(code)
}

func (w *savingWriter) Write(p []byte) (int, error) {
	w.flush()
	return w.ResponseWriter.Write(p)
}

func (w *savingWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
