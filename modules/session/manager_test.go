package session

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/GoCodeAlone/baseapp/config"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cartItem struct {
	SKU string `json:"sku"`
	Qty int    `json:"qty"`
}

func startedManager(t *testing.T, store Store) *Manager {
	t.Helper()
	m := NewManager(store, Options{Name: "sid", Lifetime: time.Hour}, nil)
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(func() { _ = m.Stop(context.Background()) })
	return m
}

func counterHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := FromContext(r.Context())
		if !ok {
			http.Error(w, "no session", http.StatusInternalServerError)
			return
		}
		var visits int
		if _, err := s.GetInto("visits", &visits); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		visits++
		s.Set("visits", visits)
		if r.URL.Path == "/logout" {
			s.Destroy()
		}
		_, _ = io.WriteString(w, strconv.Itoa(visits))
	})
}

func TestManager_RoundTrip(t *testing.T) {
	stores := map[string]func(t *testing.T) Store{
		"memory": func(*testing.T) Store { return NewMemoryStore() },
		"redis": func(t *testing.T) Store {
			s := miniredis.RunT(t)
			return NewRedisStore(redis.NewClient(&redis.Options{Addr: s.Addr()}), "session:")
		},
	}
	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			m := startedManager(t, newStore(t))
			h := m.Middleware(counterHandler())

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
			assert.Equal(t, "1", rec.Body.String())
			cookies := rec.Result().Cookies()
			require.Len(t, cookies, 1)
			sid := cookies[0]
			assert.Equal(t, "sid", sid.Name)
			assert.True(t, sid.HttpOnly)
			assert.Equal(t, 3600, sid.MaxAge)

			req := httptest.NewRequest("GET", "/", nil)
			req.AddCookie(sid)
			rec = httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, "2", rec.Body.String())
			assert.Empty(t, rec.Result().Cookies(), "existing session keeps its cookie")

			req = httptest.NewRequest("GET", "/logout", nil)
			req.AddCookie(sid)
			rec = httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			require.Len(t, rec.Result().Cookies(), 1)
			assert.Equal(t, -1, rec.Result().Cookies()[0].MaxAge)

			req = httptest.NewRequest("GET", "/", nil)
			req.AddCookie(sid)
			rec = httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, "1", rec.Body.String())
		})
	}
}

func TestManager_LazyStart(t *testing.T) {
	m := NewManager(NewMemoryStore(), Options{GCSchedule: "@every 1h"}, nil)
	assert.False(t, m.Started())
	_, err := m.Load(httptest.NewRequest("GET", "/", nil))
	assert.ErrorIs(t, err, ErrNotStarted)

	require.NoError(t, m.Start(context.Background()))
	require.NoError(t, m.Start(context.Background()))
	assert.True(t, m.Started())
	require.NoError(t, m.Stop(context.Background()))
	assert.False(t, m.Started())
}

func TestManager_InvalidSchedule(t *testing.T) {
	m := NewManager(NewMemoryStore(), Options{GCSchedule: "every tuesday"}, nil)
	assert.ErrorIs(t, m.Start(context.Background()), ErrInvalidSchedule)
	assert.False(t, m.Started())
}

func TestManager_UnreachableRedis(t *testing.T) {
	s := miniredis.RunT(t)
	addr := s.Addr()
	s.Close()
	m := NewManager(NewRedisStore(redis.NewClient(&redis.Options{Addr: addr}), "session:"), Options{}, nil)
	assert.Error(t, m.Start(context.Background()))
}

func TestManager_ForgedCookieGetsFreshSession(t *testing.T) {
	m := startedManager(t, NewMemoryStore())
	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: "../../etc/passwd"})
	s, err := m.Load(req)
	require.NoError(t, err)
	assert.True(t, s.IsNew())
	assert.NotEqual(t, "../../etc/passwd", s.ID())
}

func TestMemoryStore_GC(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "a", []byte("{}"), time.Minute))
	require.NoError(t, store.Save(ctx, "b", []byte("{}"), time.Hour))
	now = now.Add(2 * time.Minute)

	n, err := store.GC(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, store.Len())
}

func TestSession_Values(t *testing.T) {
	s := newSession("id", nil, true)
	s.Set("cart", []cartItem{{SKU: "lamp", Qty: 2}})
	s.Set("user", "ada")
	assert.Equal(t, []string{"cart", "user"}, s.Keys())

	// Values decoded from a store are generic JSON shapes.
	loaded := newSession("id", map[string]any{"cart": []any{map[string]any{"sku": "lamp", "qty": float64(2)}}}, false)
	var cart []cartItem
	ok, err := loaded.GetInto("cart", &cart)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []cartItem{{SKU: "lamp", Qty: 2}}, cart)

	s.Delete("user")
	assert.False(t, s.Has("user"))
}

func TestNewStore(t *testing.T) {
	st, err := NewStore(config.SessionConfig{Store: "Memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, st)

	st, err = NewStore(config.SessionConfig{Store: "redis", RedisAddr: "127.0.0.1:1", Prefix: "s:"})
	require.NoError(t, err)
	assert.IsType(t, &RedisStore{}, st)
	_ = st.Close()

	_, err = NewStore(config.SessionConfig{Store: "files"})
	assert.ErrorIs(t, err, ErrUnknownStore)
}
