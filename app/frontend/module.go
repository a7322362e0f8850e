// Package frontend is the public module. It also owns the not-found page
// every unmatched request is dispatched to.
package frontend

import (
	"fmt"
	"net/http"

	"github.com/GoCodeAlone/baseapp"
	"github.com/GoCodeAlone/baseapp/app/common"
)

// Descriptor registers the module with the application.
func Descriptor() baseapp.ModuleDescriptor {
	return baseapp.ModuleDescriptor{
		Name:      baseapp.FrontendModule,
		EntryPath: "app/frontend",
		ClassName: "frontend.Module",
	}
}

// Load is the module's baseapp.ModuleLoader.
func Load(baseapp.ModuleDescriptor) (baseapp.Module, error) {
	return New(), nil
}

type Module struct {
	controllers map[string]baseapp.Controller
}

func New() *Module {
	return &Module{
		controllers: map[string]baseapp.Controller{
			"index": baseapp.Actions{
				baseapp.DefaultAction:  home,
				baseapp.NotFoundAction: notFound,
			},
			"widgets": baseapp.Actions{
				"users": usersWidget,
			},
		},
	}
}

func (m *Module) Name() string { return baseapp.FrontendModule }

// Init has nothing to register; the module only uses application services.
func (m *Module) Init(*baseapp.Container) error { return nil }

func (m *Module) Controller(name string) (baseapp.Controller, bool) {
	ctrl, ok := m.controllers[name]
	return ctrl, ok
}

func home(c *baseapp.Context) (any, error) {
	cfg, err := common.Config(c)
	if err != nil {
		return nil, err
	}
	title, err := common.T(c, "Welcome, %s", cfg.App.Name)
	if err != nil {
		return nil, err
	}
	widget, err := c.Request(baseapp.Location{Module: baseapp.FrontendModule, Controller: "widgets", Action: "users"})
	if err != nil {
		return nil, err
	}
	return common.Render(c, "index", map[string]any{"Title": title, "Items": []any{widget}})
}

func notFound(c *baseapp.Context) (any, error) {
	path := c.Target.String()
	if c.HTTP != nil {
		path = c.HTTP.URL.Path
	}
	page, err := common.Render(c, "notfound", map[string]any{"Path": path})
	if err != nil {
		return nil, err
	}
	return baseapp.NewResponse(http.StatusNotFound, page.Content()), nil
}

// usersWidget embeds the backend's user count in a frontend page.
func usersWidget(c *baseapp.Context) (any, error) {
	n, err := c.Request(baseapp.Location{Module: baseapp.BackendModule, Controller: "users", Action: "count"})
	if err != nil {
		return nil, err
	}
	count, ok := n.(int)
	if !ok {
		return nil, fmt.Errorf("frontend: user count has type %T", n)
	}
	return common.T(c, "%d users", count)
}
