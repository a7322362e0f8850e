package view

import (
	"bytes"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderer_BuiltIn(t *testing.T) {
	r, err := New(Templates(), "Shop", func(locale, key string, _ ...any) string {
		if locale == "es" && key == "Page not found" {
			return "Página no encontrada"
		}
		return key
	})
	require.NoError(t, err)

	tests := []struct {
		name     string
		view     string
		data     any
		testFunc func(t *testing.T, out string, err error)
	}{
		{
			name: "error_page_is_generic", view: "error", data: map[string]any{"Status": 500},
			testFunc: func(t *testing.T, out string, err error) {
				require.NoError(t, err)
				assert.Contains(t, out, "<h1>Sorry, something went wrong.</h1>")
				assert.Contains(t, out, "<title>Shop</title>")
				assert.Contains(t, out, `<html lang="en">`)
			},
		},
		{
			name: "not_found_translated_and_escaped", view: "notfound", data: map[string]any{"Locale": "es", "Path": "/<script>"},
			testFunc: func(t *testing.T, out string, err error) {
				require.NoError(t, err)
				assert.Contains(t, out, "Página no encontrada")
				assert.Contains(t, out, "/&lt;script&gt;")
			},
		},
		{
			name: "index_items", view: "index", data: map[string]any{"Title": "Home", "Items": []string{"a", "b"}},
			testFunc: func(t *testing.T, out string, err error) {
				require.NoError(t, err)
				assert.Contains(t, out, "<h1>Home</h1>")
				assert.Equal(t, 2, strings.Count(out, "<section>"))
			},
		},
		{
			name: "unknown", view: "ghost",
			testFunc: func(t *testing.T, _ string, err error) {
				assert.ErrorIs(t, err, ErrUnknownView)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := r.Render(&buf, tt.view, tt.data)
			tt.testFunc(t, buf.String(), err)
		})
	}
}

func TestRenderer_PageAndFailures(t *testing.T) {
	r, err := New(fstest.MapFS{
		"hello.html":  {Data: []byte(`Hello {{.Data.Name}}`)},
		"broken.html": {Data: []byte(`before {{.Data.Missing.Field}}`)},
	}, "", nil)
	require.NoError(t, err)
	assert.True(t, r.Has("hello"))
	assert.False(t, r.Has("error"))

	p, err := r.Page("hello", struct{ Name string }{"Ada"})
	require.NoError(t, err)
	assert.Equal(t, "Hello Ada", p.Content())

	var buf bytes.Buffer
	assert.Error(t, r.Render(&buf, "broken", struct{}{}))
	assert.Empty(t, buf.String())
}

func TestSource(t *testing.T) {
	dir := t.TempDir()
	assert.NotNil(t, Source(dir))
	_, err := New(Source("/definitely/missing"), "", nil)
	assert.NoError(t, err)
}
