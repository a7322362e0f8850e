// Package bootstrap wires the concrete services into the container in the
// fixed boot order, registers the frontend and backend modules and builds the
// Application.
//
//	b := bootstrap.New(bootstrap.Options{ConfigPath: "config/config.yaml", Logger: logger})
//	app, err := b.Boot()
//	if err != nil {
//		return err
//	}
//	defer b.Close(context.Background())
//	handler, err := b.Handler(app)
package bootstrap

import (
	"context"
	"io"
	"io/fs"
	"net/http"
	"slices"
	"sync"

	"github.com/GoCodeAlone/baseapp"
	"github.com/GoCodeAlone/baseapp/app/backend"
	"github.com/GoCodeAlone/baseapp/app/frontend"
	"github.com/GoCodeAlone/baseapp/config"
	"github.com/GoCodeAlone/baseapp/internal/platform/metrics"
	"github.com/GoCodeAlone/baseapp/modules/cache"
	"github.com/GoCodeAlone/baseapp/modules/httpserver"
	"github.com/GoCodeAlone/baseapp/modules/i18n"
	"github.com/GoCodeAlone/baseapp/modules/mailer"
	"github.com/GoCodeAlone/baseapp/modules/session"
	"go.uber.org/multierr"
)

// ModuleSpec pairs a module descriptor with its loader.
type ModuleSpec struct {
	Descriptor baseapp.ModuleDescriptor
	Loader     baseapp.ModuleLoader
}

// DefaultModules returns the frontend and backend modules.
func DefaultModules() []ModuleSpec {
	return []ModuleSpec{
		{Descriptor: frontend.Descriptor(), Loader: frontend.Load},
		{Descriptor: backend.Descriptor(), Loader: backend.Load},
	}
}

// Options configures a Bootstrap. Only ConfigPath or Config is required.
type Options struct {
	ConfigPath    string
	ConfigOptions []config.Option
	// Config skips loading when set.
	Config *config.Config

	Logger baseapp.Logger

	// Out is the escalator's operator channel; Exit halts in development.
	Out  io.Writer
	Exit func(code int)

	// SendMail replaces the SMTP transport of the "mail" service.
	SendMail mailer.SendFunc
	// Locales and Views replace the built-in catalogs and templates.
	Locales fs.FS
	Views   fs.FS
	// Caches supplies the cache adapter registry.
	Caches *cache.Registry
	// Modules defaults to DefaultModules.
	Modules []ModuleSpec

	// RuntimeMetrics adds the Go and process collectors.
	RuntimeMetrics bool
}

// Bootstrap owns one container and its boot.
type Bootstrap struct {
	opts      Options
	logger    baseapp.Logger
	container *baseapp.Container
	subject   *baseapp.Subject
	recorder  *metrics.Recorder
	registrar *baseapp.Registrar

	cfg *config.Config

	mu      sync.Mutex
	closers []func(context.Context) error
}

func New(opts Options) *Bootstrap {
	logger := opts.Logger
	if logger == nil {
		logger = baseapp.NopLogger{}
	}
	if opts.Caches == nil {
		opts.Caches = cache.NewRegistry()
	}
	if opts.Locales == nil {
		opts.Locales = i18n.Locales()
	}
	if opts.Modules == nil {
		opts.Modules = DefaultModules()
	}
	b := &Bootstrap{
		opts:      opts,
		logger:    logger,
		container: baseapp.NewContainer(logger),
		subject:   baseapp.NewSubject(logger),
	}
	b.registrar = baseapp.NewRegistrar(logger, b.subject, b.Steps()...)
	return b
}

// Container returns the container the steps populate.
func (b *Bootstrap) Container() *baseapp.Container { return b.container }

// Subject returns the event subject shared by boot and the application.
func (b *Bootstrap) Subject() *baseapp.Subject { return b.subject }

// Config returns the loaded configuration, nil before the config step.
func (b *Bootstrap) Config() *config.Config { return b.cfg }

// StepNames lists the boot steps in order.
func (b *Bootstrap) StepNames() []string { return b.registrar.Steps() }

// Boot runs the steps, registers the modules and builds the Application,
// published as "app".
func (b *Bootstrap) Boot() (*baseapp.Application, error) {
	if b.recorder == nil {
		rec, err := metrics.New(metrics.DefaultNamespace, b.opts.RuntimeMetrics)
		if err != nil {
			return nil, err
		}
		// Observe from the first step so boot durations are recorded.
		if err := b.subject.RegisterObserver(rec, metrics.EventTypes()...); err != nil {
			return nil, err
		}
		b.recorder = rec
	}
	b.container.SetEager(baseapp.ServiceEvents, b.subject)

	if err := b.registrar.Boot(b.container); err != nil {
		return nil, err
	}

	modules := baseapp.NewModuleRegistry(b.container, b.logger)
	for _, m := range b.opts.Modules {
		if err := modules.Register(m.Descriptor, m.Loader); err != nil {
			return nil, err
		}
	}
	return baseapp.NewApplication(b.container, modules,
		baseapp.WithLogger(b.logger),
		baseapp.WithSubject(b.subject),
	)
}

// Handler builds the HTTP transport for app: request IDs, locale
// negotiation, the session and the metrics endpoint.
func (b *Bootstrap) Handler(app *baseapp.Application) (http.Handler, error) {
	tr, err := baseapp.ResolveAs[*i18n.Translator](b.container, baseapp.ServiceI18n)
	if err != nil {
		return nil, err
	}
	rec, err := baseapp.ResolveAs[*metrics.Recorder](b.container, baseapp.ServiceMetrics)
	if err != nil {
		return nil, err
	}
	return httpserver.NewRouter(app, httpserver.RouterOptions{
		Logger:      b.logger,
		Middlewares: []func(http.Handler) http.Handler{tr.Middleware, b.sessionMiddleware},
		Metrics:     rec.Handler(),
		MetricsPath: b.cfg.Server.MetricsPath,
	}), nil
}

// sessionMiddleware resolves the session service on the first request,
// which starts it.
func (b *Bootstrap) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m, err := baseapp.ResolveAs[*session.Manager](b.container, baseapp.ServiceSession)
		if err != nil {
			b.logger.Error("Session unavailable", "error", err)
			next.ServeHTTP(w, r)
			return
		}
		m.Middleware(next).ServeHTTP(w, r)
	})
}

func (b *Bootstrap) onClose(fn func(context.Context) error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closers = append(b.closers, fn)
}

// Close releases the services constructed so far, latest first.
func (b *Bootstrap) Close(ctx context.Context) error {
	b.mu.Lock()
	closers := slices.Clone(b.closers)
	b.closers = nil
	b.mu.Unlock()

	var err error
	for i := len(closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, closers[i](ctx))
	}
	return err
}
