// Package flash stores one-shot user notices in the request's session and
// renders them with the configured CSS classes.
package flash

import (
	"context"
	"errors"
	"html"
	"slices"
	"strings"

	"github.com/GoCodeAlone/baseapp/modules/session"
)

// Message kinds.
const (
	Error   = "error"
	Notice  = "notice"
	Success = "success"
	Warning = "warning"
)

// sessionKey holds pending messages in the session.
const sessionKey = "_flashMessages"

// ErrNoSession is returned when the context carries no session.
var ErrNoSession = errors.New("flash: no session in context")

// DefaultClasses maps each kind to its CSS classes. "dismissable" is added
// to every message when AutoDismiss is set.
func DefaultClasses() map[string]string {
	return map[string]string{
		Warning:       "alert alert-warning",
		Notice:        "alert alert-info",
		Success:       "alert alert-success",
		Error:         "alert alert-danger",
		"dismissable": "alert alert-dismissable",
	}
}

// Flash is the "flashSession" service.
type Flash struct {
	classes     map[string]string
	AutoDismiss bool
}

func New(classes map[string]string) *Flash {
	if classes == nil {
		classes = DefaultClasses()
	}
	return &Flash{classes: classes}
}

// Classes returns a copy of the class mapping.
func (f *Flash) Classes() map[string]string {
	out := make(map[string]string, len(f.classes))
	for k, v := range f.classes {
		out[k] = v
	}
	return out
}

func (f *Flash) Error(ctx context.Context, msg string) error   { return f.Message(ctx, Error, msg) }
func (f *Flash) Notice(ctx context.Context, msg string) error  { return f.Message(ctx, Notice, msg) }
func (f *Flash) Success(ctx context.Context, msg string) error { return f.Message(ctx, Success, msg) }
func (f *Flash) Warning(ctx context.Context, msg string) error { return f.Message(ctx, Warning, msg) }

// Message queues msg under kind for the next Output.
func (f *Flash) Message(ctx context.Context, kind, msg string) error {
	s, ok := session.FromContext(ctx)
	if !ok {
		return ErrNoSession
	}
	pending, err := load(s)
	if err != nil {
		return err
	}
	pending[kind] = append(pending[kind], msg)
	s.Set(sessionKey, pending)
	return nil
}

// Has reports whether messages of kind are pending. An empty kind matches any.
func (f *Flash) Has(ctx context.Context, kind string) bool {
	s, ok := session.FromContext(ctx)
	if !ok {
		return false
	}
	pending, err := load(s)
	if err != nil {
		return false
	}
	if kind == "" {
		return len(pending) > 0
	}
	return len(pending[kind]) > 0
}

// Messages removes and returns the pending messages of kind.
func (f *Flash) Messages(ctx context.Context, kind string) ([]string, error) {
	s, ok := session.FromContext(ctx)
	if !ok {
		return nil, ErrNoSession
	}
	pending, err := load(s)
	if err != nil {
		return nil, err
	}
	msgs := pending[kind]
	delete(pending, kind)
	store(s, pending)
	return msgs, nil
}

// Output renders and clears every pending message, kinds in name order.
func (f *Flash) Output(ctx context.Context) (string, error) {
	s, ok := session.FromContext(ctx)
	if !ok {
		return "", ErrNoSession
	}
	pending, err := load(s)
	if err != nil {
		return "", err
	}
	kinds := make([]string, 0, len(pending))
	for k := range pending {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)

	var b strings.Builder
	for _, kind := range kinds {
		class := f.classes[kind]
		if f.AutoDismiss {
			class = strings.TrimSpace(class + " " + f.classes["dismissable"])
		}
		for _, msg := range pending[kind] {
			b.WriteString(`<div class="`)
			b.WriteString(html.EscapeString(class))
			b.WriteString(`">`)
			b.WriteString(html.EscapeString(msg))
			b.WriteString("</div>\n")
		}
	}
	store(s, nil)
	return b.String(), nil
}

func load(s *session.Session) (map[string][]string, error) {
	pending := make(map[string][]string)
	if _, err := s.GetInto(sessionKey, &pending); err != nil {
		return nil, err
	}
	return pending, nil
}

func store(s *session.Session, pending map[string][]string) {
	if len(pending) == 0 {
		s.Delete(sessionKey)
		return
	}
	s.Set(sessionKey, pending)
}
