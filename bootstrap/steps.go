package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/GoCodeAlone/baseapp"
	"github.com/GoCodeAlone/baseapp/config"
	"github.com/GoCodeAlone/baseapp/modules/cache"
	"github.com/GoCodeAlone/baseapp/modules/cookies"
	"github.com/GoCodeAlone/baseapp/modules/crypt"
	"github.com/GoCodeAlone/baseapp/modules/database"
	"github.com/GoCodeAlone/baseapp/modules/eventlogger"
	"github.com/GoCodeAlone/baseapp/modules/flash"
	"github.com/GoCodeAlone/baseapp/modules/i18n"
	"github.com/GoCodeAlone/baseapp/modules/mailer"
	"github.com/GoCodeAlone/baseapp/modules/session"
	"github.com/GoCodeAlone/baseapp/modules/urlbuilder"
	"github.com/GoCodeAlone/baseapp/modules/view"
)

// Loader namespaces registered by the loader step.
const (
	NamespaceModels    = "models"
	NamespaceLibrary   = "library"
	NamespaceExtension = "extension"
	NamespaceViews     = "views"
	NamespaceLogs      = "logs"
)

// Steps returns the boot pipeline. The first twelve steps are fixed; view,
// mail, escalator and metrics follow.
func (b *Bootstrap) Steps() []baseapp.Step {
	return []baseapp.Step{
		{Name: "config", Run: b.initConfig},
		{Name: "loader", Run: b.initLoader},
		{Name: "timezone", Run: b.initTimezone},
		{Name: "lang", Run: b.initLang},
		{Name: "db", Run: b.initDatabase},
		{Name: "flash", Run: b.initFlash},
		{Name: "crypt", Run: b.initCrypt},
		{Name: "session", Run: b.initSession},
		{Name: "cookie", Run: b.initCookies},
		{Name: "cache", Run: b.initCache},
		{Name: "url", Run: b.initURL},
		{Name: "router", Run: b.initRouter},
		{Name: "view", Run: b.initView},
		{Name: "mail", Run: b.initMail},
		{Name: "escalator", Run: b.initEscalator},
		{Name: "metrics", Run: b.initMetrics},
	}
}

func (b *Bootstrap) initConfig(c *baseapp.Container) error {
	cfg := b.opts.Config
	if cfg == nil {
		if b.opts.ConfigPath == "" {
			return config.ErrNoConfigFile
		}
		loaded, err := config.Load(b.opts.ConfigPath, b.opts.ConfigOptions...)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	b.cfg = cfg
	c.SetEager(baseapp.ServiceConfig, cfg)
	b.logger.Info("Configuration loaded", "env", cfg.App.Env, "path", b.opts.ConfigPath)
	return nil
}

func (b *Bootstrap) initLoader(c *baseapp.Container) error {
	p := b.cfg.Paths
	l := baseapp.NewLoader().
		Register(NamespaceModels, p.Models).
		Register(NamespaceLibrary, p.Library).
		Register(NamespaceExtension, p.Extension).
		Register(NamespaceViews, p.Views).
		Register(NamespaceLogs, p.Logs)
	c.SetEager(baseapp.ServiceLoader, l)
	return nil
}

func (b *Bootstrap) initTimezone(c *baseapp.Container) error {
	loc, err := time.LoadLocation(b.cfg.App.Timezone)
	if err != nil {
		return fmt.Errorf("app.timezone %q: %w", b.cfg.App.Timezone, err)
	}
	c.SetEager(baseapp.ServiceTimezone, loc)
	return nil
}

func (b *Bootstrap) initLang(c *baseapp.Container) error {
	tr, err := i18n.New(b.cfg.I18n, b.opts.Locales)
	if err != nil {
		return err
	}
	c.SetEager(baseapp.ServiceI18n, tr)
	return nil
}

func (b *Bootstrap) initDatabase(c *baseapp.Container) error {
	dbCfg := b.cfg.Database
	c.Register(baseapp.ServiceDB, func(baseapp.Resolver) (any, error) {
		db, err := database.Open(dbCfg)
		if err != nil {
			return nil, err
		}
		b.onClose(func(context.Context) error { return db.Close() })
		return db, nil
	}, baseapp.Singleton)
	return nil
}

func (b *Bootstrap) initFlash(c *baseapp.Container) error {
	c.Register(baseapp.ServiceFlash, func(baseapp.Resolver) (any, error) {
		return flash.New(flash.DefaultClasses()), nil
	}, baseapp.Transient)
	return nil
}

func (b *Bootstrap) initCrypt(c *baseapp.Container) error {
	key := b.cfg.Crypt.Key
	c.Register(baseapp.ServiceCrypt, func(baseapp.Resolver) (any, error) {
		return crypt.New(key)
	}, baseapp.Singleton)
	return nil
}

// initSession registers the session manager. Its store is contacted and its
// GC scheduled only when the service is first resolved.
func (b *Bootstrap) initSession(c *baseapp.Container) error {
	sessCfg := b.cfg.Session
	secure := strings.HasPrefix(b.cfg.App.BaseURI, "https://")
	c.Register(baseapp.ServiceSession, func(baseapp.Resolver) (any, error) {
		store, err := session.NewStore(sessCfg)
		if err != nil {
			return nil, err
		}
		opts := session.OptionsFrom(sessCfg)
		opts.Secure = secure
		m := session.NewManager(store, opts, b.logger)
		if err := m.Start(context.Background()); err != nil {
			_ = store.Close()
			return nil, err
		}
		b.onClose(m.Stop)
		return m, nil
	}, baseapp.Singleton)
	return nil
}

func (b *Bootstrap) initCookies(c *baseapp.Container) error {
	secure := strings.HasPrefix(b.cfg.App.BaseURI, "https://")
	c.Register(baseapp.ServiceCookies, func(r baseapp.Resolver) (any, error) {
		cr, err := baseapp.ResolveAs[*crypt.Crypt](r, baseapp.ServiceCrypt)
		if err != nil {
			return nil, err
		}
		return cookies.New(cr, cookies.Options{Secure: secure}), nil
	}, baseapp.Transient)
	return nil
}

// initCache validates every configured cache service now and registers a
// lazy factory for each.
func (b *Bootstrap) initCache(c *baseapp.Container) error {
	names := make([]string, 0, len(b.cfg.Cache.Services))
	for name := range b.cfg.Cache.Services {
		names = append(names, name)
	}
	slices.Sort(names)

	registry := b.opts.Caches
	for _, name := range names {
		plan, err := registry.Plan(b.cfg, name, b.cfg.Cache.Services[name])
		if err != nil {
			return err
		}
		c.Register(name, func(r baseapp.Resolver) (any, error) {
			store, err := registry.Build(plan)
			if err != nil {
				return nil, err
			}
			if rec, err := r.Resolve(baseapp.ServiceMetrics); err == nil {
				if cr, ok := rec.(cache.Recorder); ok {
					store.WithRecorder(cr)
				}
			} else if !errors.Is(err, baseapp.ErrUnknownService) {
				return nil, err
			}
			b.onClose(func(context.Context) error { return store.Close() })
			return store, nil
		}, baseapp.Singleton)
		b.logger.Debug("Cache service planned", "service", name,
			"frontend", plan.FrontendAdapter, "backend", plan.BackendAdapter)
	}
	return nil
}

func (b *Bootstrap) initURL(c *baseapp.Container) error {
	base, static := b.cfg.App.BaseURI, b.cfg.App.StaticURI
	c.Register(baseapp.ServiceURL, func(baseapp.Resolver) (any, error) {
		return urlbuilder.New(base, static), nil
	}, baseapp.Singleton)
	return nil
}

func (b *Bootstrap) initRouter(c *baseapp.Container) error {
	c.Register(baseapp.ServiceRouter, func(baseapp.Resolver) (any, error) {
		return baseapp.NewDefaultRouter()
	}, baseapp.Singleton)
	return nil
}

func (b *Bootstrap) initView(c *baseapp.Container) error {
	title := b.cfg.App.Name
	c.Register(baseapp.ServiceView, func(r baseapp.Resolver) (any, error) {
		tr, err := baseapp.ResolveAs[*i18n.Translator](r, baseapp.ServiceI18n)
		if err != nil {
			return nil, err
		}
		fsys := b.opts.Views
		if fsys == nil {
			l, err := baseapp.ResolveAs[*baseapp.Loader](r, baseapp.ServiceLoader)
			if err != nil {
				return nil, err
			}
			dir, err := l.Path(NamespaceViews)
			if err != nil {
				return nil, err
			}
			fsys = view.Source(dir)
		}
		return view.New(fsys, title, tr.Locale)
	}, baseapp.Singleton)
	return nil
}

func (b *Bootstrap) initMail(c *baseapp.Container) error {
	mailCfg := b.cfg.Mail
	c.Register(baseapp.ServiceMailer, func(baseapp.Resolver) (any, error) {
		opts := []mailer.Option{mailer.WithLogger(b.logger)}
		if b.opts.SendMail != nil {
			opts = append(opts, mailer.WithSendFunc(b.opts.SendMail))
		}
		return mailer.New(mailCfg, mailer.Templates(), opts...)
	}, baseapp.Singleton)
	return nil
}

// initEscalator builds the escalator from the environment, the dated log
// directory, the mailer and the error view. The alert subject is translated
// into the default locale.
func (b *Bootstrap) initEscalator(c *baseapp.Container) error {
	env := baseapp.ParseEnvironment(b.cfg.App.Env)
	admin := b.cfg.App.Admin
	c.Register(baseapp.ServiceEscalator, func(r baseapp.Resolver) (any, error) {
		tz, err := baseapp.ResolveAs[*time.Location](r, baseapp.ServiceTimezone)
		if err != nil {
			return nil, err
		}
		tr, err := baseapp.ResolveAs[*i18n.Translator](r, baseapp.ServiceI18n)
		if err != nil {
			return nil, err
		}
		esc := &baseapp.Escalator{
			Env:     env,
			Admin:   admin,
			Subject: tr.T(tr.Default(), baseapp.DefaultAlertSubject),
			Out:     b.opts.Out,
			Exit:    b.opts.Exit,
			Now:     func() time.Time { return time.Now().In(tz) },
			Logger:  b.logger,
			Events:  b.subject,
		}
		if rec, err := baseapp.ResolveAs[baseapp.EscalationRecorder](r, baseapp.ServiceMetrics); err == nil {
			esc.Recorder = rec
		}
		if env == baseapp.Development {
			return esc, nil
		}

		l, err := baseapp.ResolveAs[*baseapp.Loader](r, baseapp.ServiceLoader)
		if err != nil {
			return nil, err
		}
		logs, err := l.Path(NamespaceLogs)
		if err != nil {
			return nil, err
		}
		if esc.OpenSink, err = eventlogger.OpenDaily(logs, eventlogger.Options{Location: tz}); err != nil {
			return nil, err
		}
		if esc.Notifier, err = baseapp.ResolveAs[*mailer.Mailer](r, baseapp.ServiceMailer); err != nil {
			return nil, err
		}
		if esc.View, err = baseapp.ResolveAs[*view.Renderer](r, baseapp.ServiceView); err != nil {
			return nil, err
		}
		return esc, nil
	}, baseapp.Singleton)
	return nil
}

func (b *Bootstrap) initMetrics(c *baseapp.Container) error {
	c.SetEager(baseapp.ServiceMetrics, b.recorder)
	return nil
}
