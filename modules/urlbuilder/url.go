// Package urlbuilder provides the "url" service: application and static
// asset URLs relative to the configured base URIs.
package urlbuilder

import (
	"net/url"
	"strings"
)

// Builder joins paths onto the base and static URIs.
type Builder struct {
	base   string
	static string
}

// New seeds a builder. An empty static URI falls back to the base URI.
func New(baseURI, staticURI string) *Builder {
	if baseURI == "" {
		baseURI = "/"
	}
	if staticURI == "" {
		staticURI = baseURI
	}
	return &Builder{base: withSlash(baseURI), static: withSlash(staticURI)}
}

func withSlash(s string) string {
	if strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}

func (b *Builder) BaseURI() string   { return b.base }
func (b *Builder) StaticURI() string { return b.static }

// Get returns the application URL for path with optional query values.
func (b *Builder) Get(path string, query url.Values) string {
	return join(b.base, path, query)
}

// Static returns the URL of a static asset.
func (b *Builder) Static(path string) string {
	return join(b.static, path, nil)
}

// Route builds "module/controller/action/params..." paths the router
// understands; the frontend module has no prefix.
func (b *Builder) Route(prefix, controller, action string, params ...string) string {
	parts := make([]string, 0, 3+len(params))
	if prefix != "" {
		parts = append(parts, strings.Trim(prefix, "/"))
	}
	if controller != "" {
		parts = append(parts, url.PathEscape(controller))
	}
	if action != "" {
		parts = append(parts, url.PathEscape(action))
	}
	for _, p := range params {
		parts = append(parts, url.PathEscape(p))
	}
	return b.Get(strings.Join(parts, "/"), nil)
}

func join(root, path string, query url.Values) string {
	if strings.Contains(path, "://") || strings.HasPrefix(path, "//") {
		return path
	}
	out := root + strings.TrimPrefix(path, "/")
	if len(query) > 0 {
		out += "?" + query.Encode()
	}
	return out
}
