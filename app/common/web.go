// Package common holds helpers shared by the frontend and backend modules'
// controllers.
package common

import (
	"errors"
	"html/template"
	"net/http"

	"github.com/GoCodeAlone/baseapp"
	"github.com/GoCodeAlone/baseapp/config"
	"github.com/GoCodeAlone/baseapp/modules/flash"
	"github.com/GoCodeAlone/baseapp/modules/i18n"
	"github.com/GoCodeAlone/baseapp/modules/urlbuilder"
	"github.com/GoCodeAlone/baseapp/modules/view"
)

// Render renders a page for the current request. The negotiated locale and
// any pending flash messages are added unless data already sets them.
func Render(c *baseapp.Context, name string, data map[string]any) (view.Page, error) {
	v, err := baseapp.ResolveAs[*view.Renderer](c, baseapp.ServiceView)
	if err != nil {
		return view.Page{}, err
	}
	if data == nil {
		data = map[string]any{}
	}
	if _, ok := data["Locale"]; !ok {
		data["Locale"] = c.Locale()
	}
	if _, ok := data["Flash"]; !ok {
		html, err := Flash(c)
		if err != nil {
			return view.Page{}, err
		}
		data["Flash"] = html
	}
	return v.Page(name, data)
}

// Flash drains the pending flash messages as HTML. Requests without a
// session, such as internal ones, have none.
func Flash(c *baseapp.Context) (template.HTML, error) {
	f, err := baseapp.ResolveAs[*flash.Flash](c, baseapp.ServiceFlash)
	if err != nil {
		return "", err
	}
	out, err := f.Output(c.Ctx)
	if errors.Is(err, flash.ErrNoSession) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	// Output escapes every message.
	return template.HTML(out), nil
}

// Notify queues a flash message. It is a no-op without a session.
func Notify(c *baseapp.Context, kind, msg string) error {
	f, err := baseapp.ResolveAs[*flash.Flash](c, baseapp.ServiceFlash)
	if err != nil {
		return err
	}
	if err := f.Message(c.Ctx, kind, msg); err != nil && !errors.Is(err, flash.ErrNoSession) {
		return err
	}
	return nil
}

// T translates key into the request locale.
func T(c *baseapp.Context, key string, args ...any) (string, error) {
	tr, err := baseapp.ResolveAs[*i18n.Translator](c, baseapp.ServiceI18n)
	if err != nil {
		return "", err
	}
	return tr.Locale(c.Locale(), key, args...), nil
}

// Config returns the application configuration.
func Config(c *baseapp.Context) (*config.Config, error) {
	return baseapp.ResolveAs[*config.Config](c, baseapp.ServiceConfig)
}

// URL returns the url service.
func URL(c *baseapp.Context) (*urlbuilder.Builder, error) {
	return baseapp.ResolveAs[*urlbuilder.Builder](c, baseapp.ServiceURL)
}

// Redirect answers with a See Other to location.
func Redirect(location string) *baseapp.Response {
	resp := baseapp.NewResponse(http.StatusSeeOther, "")
	resp.Header.Set("Location", location)
	return resp
}
