package baseapp

import (
	"fmt"
	"slices"
	"strings"
	"sync/atomic"
)

// Defaults are the target fields a rule supplies when its pattern does not
// capture them.
type Defaults struct {
	Module     string
	Controller string
	Action     string
}

// Rule binds a URL pattern to a dispatch target.
type Rule struct {
	Pattern  string
	Defaults Defaults
	// Methods restricts the rule to these HTTP methods; empty means any.
	Methods []string

	order    int
	compiled *compiledPattern
}

// Order is the rule's registration position, starting at 1.
func (r *Rule) Order() int {
	return r.order
}

func (r *Rule) allows(method string) bool {
	return method == "" || len(r.Methods) == 0 || slices.Contains(r.Methods, strings.ToUpper(method))
}

// Router resolves paths to dispatch targets with ordered, first-match-wins
// rules. Registration order is significant: an earlier rule shadows any later
// rule that matches the same path.
//
// Rules are added during boot; after Freeze the router is read-only and safe
// for concurrent use without locking.
type Router struct {
	defaults Defaults
	notFound Defaults
	rules    []*Rule
	frozen   atomic.Bool
}

// NewRouter creates a router whose unqualified targets fall back to defaults.
// Empty controller and action defaults become "index".
func NewRouter(defaults Defaults) *Router {
	if defaults.Controller == "" {
		defaults.Controller = DefaultController
	}
	if defaults.Action == "" {
		defaults.Action = DefaultAction
	}
	return &Router{
		defaults: defaults,
		notFound: Defaults{Controller: DefaultController, Action: NotFoundAction},
	}
}

// Add appends a rule. Methods are optional.
func (r *Router) Add(pattern string, defaults Defaults, methods ...string) (*Rule, error) {
	if r.frozen.Load() {
		return nil, fmt.Errorf("%w: cannot add %q", ErrRouterFrozen, pattern)
	}
	compiled, err := compilePattern(pattern)
	if err != nil {
		return nil, err
	}
	upper := make([]string, len(methods))
	for i, m := range methods {
		upper[i] = strings.ToUpper(m)
	}
	rule := &Rule{
		Pattern:  pattern,
		Defaults: defaults,
		Methods:  upper,
		order:    len(r.rules) + 1,
		compiled: compiled,
	}
	r.rules = append(r.rules, rule)
	return rule, nil
}

// NotFound sets the controller and action used when no rule matches.
// The module always comes from the router defaults.
func (r *Router) NotFound(d Defaults) {
	r.notFound = d
}

// Freeze makes the router read-only.
func (r *Router) Freeze() {
	r.frozen.Store(true)
}

// DefaultModule returns the module used for targets that do not name one.
func (r *Router) DefaultModule() string {
	return r.defaults.Module
}

// Rules returns a copy of the registered rules in evaluation order.
func (r *Router) Rules() []Rule {
	out := make([]Rule, len(r.rules))
	for i, rule := range r.rules {
		out[i] = *rule
	}
	return out
}

// Match resolves path to a target. An unmatched path is not an error: it
// yields the not-found target, whose Route is empty.
func (r *Router) Match(path, method string) Target {
	path = normalizePath(path)
	for _, rule := range r.rules {
		if !rule.allows(method) {
			continue
		}
		m := rule.compiled.re.FindStringSubmatch(path)
		if m == nil {
			continue
		}
		return r.bind(rule, m[1:])
	}
	return Target{
		Module:     r.defaults.Module,
		Controller: orDefault(r.notFound.Controller, DefaultController),
		Action:     orDefault(r.notFound.Action, NotFoundAction),
		Params:     []any{},
		Named:      map[string]string{},
	}
}

func (r *Router) bind(rule *Rule, values []string) Target {
	t := Target{
		Module:     orDefault(rule.Defaults.Module, r.defaults.Module),
		Controller: orDefault(rule.Defaults.Controller, r.defaults.Controller),
		Action:     orDefault(rule.Defaults.Action, r.defaults.Action),
		Params:     []any{},
		Named:      map[string]string{},
		Route:      rule.Pattern,
	}
	for i, c := range rule.compiled.captures {
		v := values[i]
		switch c.kind {
		case captureModule:
			t.Module = v
		case captureController:
			t.Controller = v
		case captureAction:
			t.Action = v
		case captureParams:
			t.Params = splitParams(v)
		case captureInt:
			t.Named[IDParam] = v
		case captureNamed:
			t.Named[c.name] = v
		}
	}
	return t
}

func normalizePath(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" || path[0] != '/' {
		path = "/" + path
	}
	return path
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Default module names.
const (
	FrontendModule = "frontend"
	BackendModule  = "backend"
)

// DefaultRoutes registers the stock route table on r.
//
// Rules are listed in evaluation order: the backend rules come first so
// "/admin/..." never falls through to the generic frontend rules, then the
// frontend rules from most to least specific.
func DefaultRoutes(r *Router) error {
	table := []struct {
		pattern  string
		defaults Defaults
	}{
		{"/admin[/]?", Defaults{Module: BackendModule, Controller: "index", Action: "index"}},
		{"/admin/:controller[/]?", Defaults{Module: BackendModule, Action: "index"}},
		{"/admin/:controller/:action/:params", Defaults{Module: BackendModule}},
		{"/", Defaults{Module: FrontendModule, Controller: "index", Action: "index"}},
		{"/:controller[/]?", Defaults{Module: FrontendModule, Action: "index"}},
		{"/:controller/:int", Defaults{Module: FrontendModule, Action: "index"}},
		{"/:controller/:action/:params", Defaults{Module: FrontendModule}},
	}
	for _, route := range table {
		if _, err := r.Add(route.pattern, route.defaults); err != nil {
			return err
		}
	}
	r.NotFound(Defaults{Controller: "index", Action: NotFoundAction})
	return nil
}

// NewDefaultRouter builds the frozen stock router with frontend as the
// default module.
func NewDefaultRouter() (*Router, error) {
	r := NewRouter(Defaults{Module: FrontendModule, Controller: DefaultController, Action: DefaultAction})
	if err := DefaultRoutes(r); err != nil {
		return nil, err
	}
	r.Freeze()
	return r, nil
}
