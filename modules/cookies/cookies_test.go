package cookies

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/GoCodeAlone/baseapp/modules/crypt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func replay(t *testing.T, rec *httptest.ResponseRecorder, rename string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		if rename != "" {
			c.Name = rename
		}
		req.AddCookie(c)
	}
	return req
}

func TestJar_Encrypted(t *testing.T) {
	c, err := crypt.New("cookie-secret")
	require.NoError(t, err)
	jar := New(c, Options{MaxAge: time.Hour})
	assert.True(t, jar.Encrypted())

	rec := httptest.NewRecorder()
	require.NoError(t, jar.Set(rec, "remember", "user-7"))
	written := rec.Result().Cookies()
	require.Len(t, written, 1)
	assert.NotContains(t, written[0].Value, "user-7")
	assert.Equal(t, 3600, written[0].MaxAge)
	assert.True(t, written[0].HttpOnly)

	v, ok, err := jar.Get(replay(t, rec, ""), "remember")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "user-7", v)

	_, _, err = jar.Get(replay(t, rec, "other"), "other")
	assert.ErrorIs(t, err, ErrTampered)

	_, ok, err = jar.Get(httptest.NewRequest(http.MethodGet, "/", nil), "remember")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestJar_PlainAndDelete(t *testing.T) {
	jar := New(nil, Options{})
	rec := httptest.NewRecorder()
	require.NoError(t, jar.Set(rec, "lang", "fr"))
	req := replay(t, rec, "")
	assert.True(t, jar.Has(req, "lang"))
	v, ok, err := jar.Get(req, "lang")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "fr", v)

	rec = httptest.NewRecorder()
	jar.Delete(rec, "lang")
	require.Len(t, rec.Result().Cookies(), 1)
	assert.Equal(t, -1, rec.Result().Cookies()[0].MaxAge)
}
