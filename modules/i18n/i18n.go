// Package i18n provides the "i18n" service: message catalogs per locale and
// request language negotiation.
package i18n

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/GoCodeAlone/baseapp"
	"github.com/GoCodeAlone/baseapp/config"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var embeddedLocales embed.FS

// Locales returns the catalogs shipped with the application.
func Locales() fs.FS {
	sub, err := fs.Sub(embeddedLocales, "locales")
	if err != nil {
		panic(err)
	}
	return sub
}

var (
	// ErrUnsupportedDefault is returned when the default locale is not supported
	ErrUnsupportedDefault = errors.New("i18n: default locale is not in the supported list")

	// ErrNoLocales is returned when no supported locale is configured
	ErrNoLocales = errors.New("i18n: no supported locales")
)

// Translator holds the catalogs and negotiates request languages.
type Translator struct {
	supported  []language.Tag
	def        language.Tag
	matcher    language.Matcher
	catalog    *catalog.Builder
	cookieName string
	queryParam string
}

// New builds a translator for the configured locales. Catalog files are
// read from fsys as "<tag>.yaml" mapping message keys to translations; a
// supported locale without a file falls back to the keys themselves.
func New(cfg config.I18nConfig, fsys fs.FS) (*Translator, error) {
	if len(cfg.Supported) == 0 {
		return nil, ErrNoLocales
	}
	t := &Translator{cookieName: cfg.CookieName, queryParam: cfg.QueryParam}
	for _, s := range cfg.Supported {
		tag, err := language.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("i18n: parse locale %q: %w", s, err)
		}
		t.supported = append(t.supported, tag)
	}
	def, err := language.Parse(cfg.Default)
	if err != nil {
		return nil, fmt.Errorf("i18n: parse default locale %q: %w", cfg.Default, err)
	}
	if !slices.Contains(t.supported, def) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDefault, def)
	}
	t.def = def
	// The matcher falls back to its first tag.
	ordered := append([]language.Tag{def}, slices.DeleteFunc(slices.Clone(t.supported), func(tag language.Tag) bool { return tag == def })...)
	t.matcher = language.NewMatcher(ordered)
	t.supported = ordered

	t.catalog = catalog.NewBuilder(catalog.Fallback(def))
	for _, tag := range t.supported {
		if err := t.load(fsys, tag); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *Translator) load(fsys fs.FS, tag language.Tag) error {
	if fsys == nil {
		return nil
	}
	name := tag.String() + ".yaml"
	data, err := fs.ReadFile(fsys, name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("i18n: read %s: %w", name, err)
	}
	var messages map[string]string
	if err := yaml.Unmarshal(data, &messages); err != nil {
		return fmt.Errorf("i18n: parse %s: %w", name, err)
	}
	for key, msg := range messages {
		if err := t.catalog.SetString(tag, key, msg); err != nil {
			return fmt.Errorf("i18n: %s %q: %w", name, key, err)
		}
	}
	return nil
}

func (t *Translator) Default() language.Tag { return t.def }

// Supported returns the supported tags, default first.
func (t *Translator) Supported() []language.Tag { return slices.Clone(t.supported) }

// Match returns the best supported tag for the preferences.
func (t *Translator) Match(prefs ...language.Tag) language.Tag {
	_, idx, conf := t.matcher.Match(prefs...)
	if conf == language.No {
		return t.def
	}
	return t.supported[idx]
}

func (t *Translator) parseSupported(value string) (language.Tag, bool) {
	tag, err := language.Parse(strings.TrimSpace(value))
	if err != nil {
		return language.Tag{}, false
	}
	if !slices.Contains(t.supported, tag) {
		return language.Tag{}, false
	}
	return tag, true
}

// Negotiate picks the request language: query parameter, then cookie, then
// Accept-Language, then the default. The bool reports that the choice came
// from the query and should be remembered in the cookie.
func (t *Translator) Negotiate(r *http.Request) (language.Tag, bool) {
	if r == nil {
		return t.def, false
	}
	if v := r.URL.Query().Get(t.queryParam); v != "" {
		if tag, ok := t.parseSupported(v); ok {
			return tag, true
		}
	}
	if c, err := r.Cookie(t.cookieName); err == nil {
		if tag, ok := t.parseSupported(c.Value); ok {
			return tag, false
		}
	}
	if accept := strings.TrimSpace(r.Header.Get("Accept-Language")); accept != "" {
		if prefs, _, err := language.ParseAcceptLanguage(accept); err == nil && len(prefs) > 0 {
			return t.Match(prefs...), false
		}
	}
	return t.def, false
}

// Printer formats messages in tag.
func (t *Translator) Printer(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag, message.Catalog(t.catalog))
}

// T translates key in tag, applying fmt-style args.
func (t *Translator) T(tag language.Tag, key string, args ...any) string {
	return t.Printer(tag).Sprintf(key, args...)
}

// Locale translates key in a locale given as a string, as stored in the
// request context.
func (t *Translator) Locale(locale, key string, args ...any) string {
	tag, ok := t.parseSupported(locale)
	if !ok {
		tag = t.def
	}
	return t.T(tag, key, args...)
}

// Middleware stores the negotiated locale in the request context and
// remembers an explicit query choice in a cookie.
func (t *Translator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tag, persist := t.Negotiate(r)
		if persist {
			http.SetCookie(w, &http.Cookie{
				Name:     t.cookieName,
				Value:    tag.String(),
				Path:     "/",
				MaxAge:   int((365 * 24 * time.Hour).Seconds()),
				SameSite: http.SameSiteLaxMode,
			})
		}
		next.ServeHTTP(w, r.WithContext(baseapp.WithLocale(r.Context(), tag.String())))
	})
}
