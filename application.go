package baseapp

import (
	"context"
	"fmt"
	"net/http"

	jsoniter "github.com/json-iterator/go"
)

// Well-known service names.
const (
	ServiceConfig     = "config"
	ServiceLoader     = "loader"
	ServiceTimezone   = "timezone"
	ServiceI18n       = "i18n"
	ServiceDB         = "db"
	ServiceFlash      = "flashSession"
	ServiceCrypt      = "crypt"
	ServiceSession    = "session"
	ServiceCookies    = "cookies"
	ServiceURL        = "url"
	ServiceRouter     = "router"
	ServiceView       = "view"
	ServiceMailer     = "mail"
	ServiceEscalator  = "escalator"
	ServiceMetrics    = "metrics"
	ServiceEvents     = "events"
	ServiceApp        = "app"
	ServiceDispatcher = "dispatcher"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Application is the outermost request boundary. It matches inbound requests,
// dispatches them into modules and hands every failure to the escalator.
type Application struct {
	container *Container
	modules   *ModuleRegistry
	logger    Logger
	subject   *Subject
}

// ApplicationOption configures an Application.
type ApplicationOption func(*Application) error

// WithLogger sets the application logger.
func WithLogger(logger Logger) ApplicationOption {
	return func(app *Application) error {
		if logger == nil {
			return fmt.Errorf("logger is nil")
		}
		app.logger = logger
		return nil
	}
}

// WithSubject shares an event subject, typically the one used during boot.
func WithSubject(subject *Subject) ApplicationOption {
	return func(app *Application) error {
		app.subject = subject
		return nil
	}
}

// NewApplication creates the application over a booted container. It
// publishes itself as "app" and registers the transient "dispatcher".
func NewApplication(c *Container, modules *ModuleRegistry, opts ...ApplicationOption) (*Application, error) {
	app := &Application{container: c, modules: modules, logger: NopLogger{}}
	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, fmt.Errorf("failed to apply application option: %w", err)
		}
	}
	if app.subject == nil {
		app.subject = NewSubject(app.logger)
	}

	c.SetEager(ServiceApp, app)
	c.Register(ServiceDispatcher, func(Resolver) (any, error) {
		return NewDispatcher(app), nil
	}, Transient)
	return app, nil
}

// Container returns the service container.
func (a *Application) Container() *Container {
	return a.container
}

// Modules returns the module registry.
func (a *Application) Modules() *ModuleRegistry {
	return a.modules
}

// Logger returns the application logger.
func (a *Application) Logger() Logger {
	return a.logger
}

// Router resolves the router service.
func (a *Application) Router() (*Router, error) {
	return ResolveAs[*Router](a.container, ServiceRouter)
}

// RegisterObserver subscribes o to application events.
func (a *Application) RegisterObserver(o Observer, eventTypes ...string) error {
	return a.subject.RegisterObserver(o, eventTypes...)
}

// UnregisterObserver removes o.
func (a *Application) UnregisterObserver(o Observer) error {
	return a.subject.UnregisterObserver(o)
}

func (a *Application) dispatcher() (*Dispatcher, error) {
	return ResolveAs[*Dispatcher](a.container, ServiceDispatcher)
}

// Request performs an internal (HMVC) request: the target action runs
// synchronously without the transport, and its content is returned.
func (a *Application) Request(ctx context.Context, loc Location) (any, error) {
	target, err := loc.Target()
	if err != nil {
		return nil, err
	}
	d, err := a.dispatcher()
	if err != nil {
		return nil, err
	}
	result, err := d.Dispatch(ctx, target)
	if err != nil {
		a.subject.emit(ctx, EventTypeDispatchFailed, "application", map[string]any{
			"target":   target.String(),
			"internal": true,
			"error":    err.Error(),
		})
		return nil, err
	}
	return result, nil
}

// Match resolves a path with the application router.
func (a *Application) Match(path, method string) (Target, error) {
	router, err := a.Router()
	if err != nil {
		return Target{}, err
	}
	return router.Match(path, method), nil
}

// ServeHTTP is the single top-level handler: failures below it are never
// returned to the caller, they are escalated.
func (a *Application) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer func() {
		if rec := recover(); rec != nil {
			a.escalate(ctx, w, NewPanicError(rec))
		}
	}()

	target, err := a.Match(r.URL.Path, r.Method)
	if err != nil {
		a.escalate(ctx, w, err)
		return
	}
	if target.NotFound() {
		a.subject.emit(ctx, EventTypeRouteNotFound, "router", map[string]any{"path": r.URL.Path})
	} else {
		a.subject.emit(ctx, EventTypeRouteMatched, "router", map[string]any{
			"path":   r.URL.Path,
			"route":  target.Route,
			"target": target.String(),
		})
	}

	d, err := a.dispatcher()
	if err != nil {
		a.escalate(ctx, w, err)
		return
	}
	result, err := d.Execute(ctx, target, r)
	if err != nil {
		a.subject.emit(ctx, EventTypeDispatchFailed, "application", map[string]any{
			"target": target.String(),
			"error":  err.Error(),
		})
		a.escalate(ctx, w, err)
		return
	}
	if err := writeResult(w, result); err != nil {
		a.logger.Warn("Failed to write response", "target", target.String(), "error", err)
	}
}

func (a *Application) escalate(ctx context.Context, w http.ResponseWriter, failure error) {
	a.logger.Error("Request failed", "error", failure)
	esc, err := ResolveAs[*Escalator](a.container, ServiceEscalator)
	if err != nil {
		a.logger.Error("Escalator unavailable", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	if err := esc.Exception(ctx, w, failure); err != nil {
		a.logger.Error("Escalation failed", "error", err)
	}
}

func writeResult(w http.ResponseWriter, result any) error {
	switch v := result.(type) {
	case nil:
		w.WriteHeader(http.StatusOK)
		return nil
	case *Response:
		for k, values := range v.Header {
			for _, value := range values {
				w.Header().Add(k, value)
			}
		}
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
		}
		status := v.Status
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		_, err := w.Write([]byte(v.Body))
		return err
	case ContentProvider:
		return writeBody(w, v.Content())
	case string:
		return writeBody(w, v)
	case []byte:
		return writeBody(w, string(v))
	default:
		body, err := json.Marshal(v)
		if err != nil {
			return err
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, err = w.Write(body)
		return err
	}
}

func writeBody(w http.ResponseWriter, body string) error {
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	}
	w.WriteHeader(http.StatusOK)
	_, err := w.Write([]byte(body))
	return err
}
