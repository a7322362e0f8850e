// Package backend is the administration module, routed under /admin.
package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/GoCodeAlone/baseapp"
	"github.com/GoCodeAlone/baseapp/modules/database"
)

// ServiceUsers is the module-level user repository.
const ServiceUsers = "backend.users"

// CountCacheService names the optional cache service used for the user count.
const CountCacheService = "modelsCache"

const migrateTimeout = 30 * time.Second

// Descriptor registers the module with the application.
func Descriptor() baseapp.ModuleDescriptor {
	return baseapp.ModuleDescriptor{
		Name:      baseapp.BackendModule,
		EntryPath: "app/backend",
		ClassName: "backend.Module",
	}
}

// Load is the module's baseapp.ModuleLoader.
func Load(baseapp.ModuleDescriptor) (baseapp.Module, error) {
	return New(), nil
}

// Module holds the backend controllers.
type Module struct {
	controllers map[string]baseapp.Controller
	// PasswordCost is the bcrypt cost for new users; zero uses the default.
	PasswordCost int
}

func New() *Module {
	return &Module{
		controllers: map[string]baseapp.Controller{
			"index": baseapp.Actions{
				"index": dashboard,
			},
			"users": baseapp.Actions{
				"index":  listUsers,
				"count":  countUsers,
				"create": createUser,
				"delete": deleteUser,
			},
		},
	}
}

func (m *Module) Name() string { return baseapp.BackendModule }

// Init migrates the schema and registers the user repository.
func (m *Module) Init(c *baseapp.Container) error {
	db, err := baseapp.ResolveAs[*database.Service](c, baseapp.ServiceDB)
	if err != nil {
		return err
	}
	var (
		events database.EventEmitter
		logger baseapp.Logger
	)
	if subject, err := baseapp.ResolveAs[*baseapp.Subject](c, baseapp.ServiceEvents); err == nil {
		events = subject
	}
	if app, err := baseapp.ResolveAs[*baseapp.Application](c, baseapp.ServiceApp); err == nil {
		logger = app.Logger()
	}

	ctx, cancel := context.WithTimeout(context.Background(), migrateTimeout)
	defer cancel()
	if _, err := database.NewMigrator(db, events, logger).Migrate(ctx, Migrations(db.Driver())...); err != nil {
		return fmt.Errorf("backend: migrate: %w", err)
	}

	cost := m.PasswordCost
	c.Register(ServiceUsers, func(baseapp.Resolver) (any, error) {
		return NewUsers(db, cost), nil
	}, baseapp.Singleton)
	return nil
}

func (m *Module) Controller(name string) (baseapp.Controller, bool) {
	ctrl, ok := m.controllers[name]
	return ctrl, ok
}
