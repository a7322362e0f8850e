package baseapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"

	"github.com/golobby/cast"
)

// Default target names.
const (
	DefaultController = "index"
	DefaultAction     = "index"
	NotFoundAction    = "notFound"
)

// Target is a resolved dispatch destination. It is created per request or
// internal call and discarded afterwards.
type Target struct {
	Module     string
	Controller string
	Action     string
	// Params holds the ordered positional parameters captured by :params.
	Params []any
	// Named holds named parameters, such as "id" bound by :int.
	Named map[string]string
	// Route is the pattern of the matching rule, empty for the not-found target.
	Route string
}

// NotFound reports whether t is the router's fallback target.
func (t Target) NotFound() bool {
	return t.Route == ""
}

func (t Target) String() string {
	return fmt.Sprintf("%s/%s/%s", t.Module, t.Controller, t.Action)
}

// Location addresses an internal (HMVC) request. Module is mandatory;
// Controller and Action default to "index".
//
// Params may be nil (no parameters), a slice (used element by element) or
// any other value, which becomes the single parameter.
type Location struct {
	Module     string
	Controller string
	Action     string
	Params     any
}

// Target converts the location to a dispatch target.
func (l Location) Target() (Target, error) {
	if l.Module == "" {
		return Target{}, fmt.Errorf("%w: %s/%s", ErrModuleRequired, l.Controller, l.Action)
	}
	return Target{
		Module:     l.Module,
		Controller: orDefault(l.Controller, DefaultController),
		Action:     orDefault(l.Action, DefaultAction),
		Params:     coerceParams(l.Params),
		Named:      map[string]string{},
	}, nil
}

func coerceParams(p any) []any {
	switch v := p.(type) {
	case nil:
		return []any{}
	case []any:
		return v
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	}
	rv := reflect.ValueOf(p)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out
	}
	return []any{p}
}

// Action handles one dispatch.
type Action func(c *Context) (any, error)

// Controller exposes actions by name.
type Controller interface {
	Action(name string) (Action, bool)
}

// Actions is a Controller backed by a map.
type Actions map[string]Action

func (a Actions) Action(name string) (Action, bool) {
	fn, ok := a[name]
	return fn, ok
}

// ContentProvider is implemented by results that carry a response body.
// The dispatcher returns only the content of such results.
type ContentProvider interface {
	Content() string
}

// Response is a full HTTP response produced by an action.
type Response struct {
	Status int
	Header http.Header
	Body   string
}

// Content returns the response body.
func (r *Response) Content() string {
	return r.Body
}

// NewResponse creates a response with the given status and body.
func NewResponse(status int, body string) *Response {
	return &Response{Status: status, Header: make(http.Header), Body: body}
}

type localeKey struct{}

// WithLocale returns a context carrying the negotiated locale.
func WithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, localeKey{}, locale)
}

// LocaleFrom returns the locale stored by WithLocale.
func LocaleFrom(ctx context.Context) (string, bool) {
	l, ok := ctx.Value(localeKey{}).(string)
	return l, ok
}

// Context is passed to actions. It is never shared between dispatches.
type Context struct {
	Ctx    context.Context
	Target Target
	// HTTP is the inbound request; nil for internal requests.
	HTTP *http.Request

	app *Application
}

// Param returns the i-th positional parameter, or nil.
func (c *Context) Param(i int) any {
	if i < 0 || i >= len(c.Target.Params) {
		return nil
	}
	return c.Target.Params[i]
}

// ParamInt returns the i-th positional parameter as an int.
func (c *Context) ParamInt(i int) (int, error) {
	if i < 0 || i >= len(c.Target.Params) {
		return 0, fmt.Errorf("%w: %d of %d", ErrParamOutOfRange, i, len(c.Target.Params))
	}
	switch v := c.Target.Params[i].(type) {
	case int:
		return v, nil
	case string:
		n, err := cast.FromType(v, reflect.TypeOf(0))
		if err != nil {
			return 0, err
		}
		return n.(int), nil
	default:
		return 0, fmt.Errorf("parameter %d has type %T", i, v)
	}
}

// Named returns a named parameter.
func (c *Context) Named(key string) string {
	return c.Target.Named[key]
}

// Resolve looks up a service in the application container.
func (c *Context) Resolve(name string) (any, error) {
	return c.app.container.Resolve(name)
}

// Request performs an internal request and returns its normalized result.
func (c *Context) Request(loc Location) (any, error) {
	return c.app.Request(c.Ctx, loc)
}

// Session resolves the lazily started session service.
func (c *Context) Session() (any, error) {
	return c.Resolve(ServiceSession)
}

// Locale returns the locale negotiated for this request, if any.
func (c *Context) Locale() string {
	l, _ := LocaleFrom(c.Ctx)
	return l
}

// Dispatcher executes a single target. Obtain a new one per call; it holds
// the state of exactly one dispatch.
type Dispatcher struct {
	app *Application

	target Target
	done   bool
}

// NewDispatcher creates a dispatcher bound to app.
func NewDispatcher(app *Application) *Dispatcher {
	return &Dispatcher{app: app}
}

// Target returns the target of the last dispatch.
func (d *Dispatcher) Target() Target {
	return d.target
}

// Dispatch runs target and normalizes the result: a ContentProvider is
// reduced to its content, anything else is returned unchanged.
func (d *Dispatcher) Dispatch(ctx context.Context, target Target) (any, error) {
	result, err := d.Execute(ctx, target, nil)
	if err != nil {
		return nil, err
	}
	if cp, ok := result.(ContentProvider); ok {
		return cp.Content(), nil
	}
	return result, nil
}

// Execute runs target and returns the action result as is. r is the inbound
// HTTP request, nil for internal requests.
func (d *Dispatcher) Execute(ctx context.Context, target Target, r *http.Request) (any, error) {
	if d.done {
		return nil, fmt.Errorf("%w: dispatcher already used for %s", ErrDispatchFailure, d.target)
	}
	d.done = true
	d.target = target
	return d.invoke(ctx, target, r)
}

func (d *Dispatcher) invoke(ctx context.Context, target Target, r *http.Request) (result any, err error) {
	module, err := d.app.modules.Load(target.Module)
	if err != nil {
		return nil, newDispatchError(target, err)
	}
	controller, ok := module.Controller(target.Controller)
	if !ok {
		return nil, newDispatchError(target, fmt.Errorf("%w: %s in module %s", ErrControllerNotFound, target.Controller, target.Module))
	}
	action, ok := controller.Action(target.Action)
	if !ok {
		return nil, newDispatchError(target, fmt.Errorf("%w: %s/%s in module %s", ErrActionNotFound, target.Controller, target.Action, target.Module))
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = &DispatchError{Target: target, Err: NewPanicError(rec)}
		}
	}()

	result, err = action(&Context{Ctx: ctx, Target: target, HTTP: r, app: d.app})
	if err != nil {
		// A failed internal request already names the innermost target.
		var inner *DispatchError
		if errors.As(err, &inner) {
			return nil, err
		}
		return nil, newDispatchError(target, err)
	}
	return result, nil
}
