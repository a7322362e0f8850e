package i18n

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/GoCodeAlone/baseapp"
	"github.com/GoCodeAlone/baseapp/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func newTranslator(t *testing.T) *Translator {
	t.Helper()
	tr, err := New(config.I18nConfig{
		Default:    "en",
		Supported:  []string{"es", "en", "fr"},
		CookieName: "lang",
		QueryParam: "lang",
	}, Locales())
	require.NoError(t, err)
	return tr
}

func TestTranslator_Negotiate(t *testing.T) {
	tr := newTranslator(t)
	tests := []struct {
		name    string
		url     string
		cookie  string
		accept  string
		want    language.Tag
		persist bool
	}{
		{name: "default", url: "/", want: language.English},
		{name: "query_wins", url: "/?lang=fr", cookie: "es", accept: "es", want: language.French, persist: true},
		{name: "unsupported_query_ignored", url: "/?lang=de", cookie: "es", want: language.Spanish},
		{name: "cookie_over_header", url: "/", cookie: "es", accept: "fr", want: language.Spanish},
		{name: "accept_language", url: "/", accept: "de-DE, fr-CA;q=0.8, en;q=0.5", want: language.French},
		{name: "accept_unmatched_falls_back", url: "/", accept: "ja", want: language.English},
		{name: "malformed_cookie", url: "/", cookie: "%%", want: language.English},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.url, nil)
			if tt.cookie != "" {
				r.AddCookie(&http.Cookie{Name: "lang", Value: tt.cookie})
			}
			if tt.accept != "" {
				r.Header.Set("Accept-Language", tt.accept)
			}
			got, persist := tr.Negotiate(r)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.persist, persist)
		})
	}
	got, _ := tr.Negotiate(nil)
	assert.Equal(t, language.English, got)
}

func TestTranslator_T(t *testing.T) {
	tr := newTranslator(t)
	assert.Equal(t, "¡Algo va mal!", tr.T(language.Spanish, "Something is wrong!"))
	assert.Equal(t, "Bienvenue, Ada", tr.T(language.French, "Welcome, %s", "Ada"))
	assert.Equal(t, "3 usuarios", tr.Locale("es", "%d users", 3))
	assert.Equal(t, "Something is wrong!", tr.Locale("xx", "Something is wrong!"))
	assert.Equal(t, "untranslated key", tr.T(language.Spanish, "untranslated key"))
	assert.Equal(t, language.English, tr.Supported()[0])
}

func TestTranslator_Middleware(t *testing.T) {
	tr := newTranslator(t)
	var seen string
	h := tr.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = baseapp.LocaleFrom(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?lang=es", nil))
	assert.Equal(t, "es", seen)
	require.Len(t, rec.Result().Cookies(), 1)
	assert.Equal(t, "es", rec.Result().Cookies()[0].Value)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "en", seen)
	assert.Empty(t, rec.Result().Cookies())
}

func TestNew_Errors(t *testing.T) {
	_, err := New(config.I18nConfig{Default: "en"}, nil)
	assert.ErrorIs(t, err, ErrNoLocales)

	_, err = New(config.I18nConfig{Default: "de", Supported: []string{"en"}}, nil)
	assert.ErrorIs(t, err, ErrUnsupportedDefault)

	_, err = New(config.I18nConfig{Default: "en", Supported: []string{"en"}}, fstest.MapFS{
		"en.yaml": {Data: []byte("- not a map")},
	})
	assert.Error(t, err)
}
