package baseapp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func siteModules() (*testModule, *testModule) {
	frontend := widgetsModule()
	frontend.controllers["index"].(Actions)["notFound"] = func(c *Context) (any, error) {
		return NewResponse(http.StatusNotFound, "nothing at "+c.HTTP.URL.Path), nil
	}
	frontend.controllers["products"] = Actions{
		"index": func(c *Context) (any, error) {
			return map[string]string{"id": c.Named(IDParam)}, nil
		},
		"boom": func(c *Context) (any, error) {
			panic("products exploded")
		},
	}
	backend := &testModule{
		name: "backend",
		controllers: map[string]Controller{
			"users": Actions{
				"delete": func(c *Context) (any, error) {
					id, err := c.ParamInt(0)
					if err != nil {
						return nil, err
					}
					resp := NewResponse(http.StatusAccepted, "deleted")
					resp.Header.Set("X-Deleted", strconv.Itoa(id))
					return resp, nil
				},
			},
		},
	}
	return frontend, backend
}

func TestApplication_PublishesItself(t *testing.T) {
	app := newTestApp(t)
	got, err := app.Container().Resolve(ServiceApp)
	require.NoError(t, err)
	assert.Same(t, app, got)

	desc, ok := app.Container().Descriptor(ServiceDispatcher)
	require.True(t, ok)
	assert.Equal(t, Transient, desc.Lifetime)
}

func TestApplication_ServeHTTP(t *testing.T) {
	frontend, backend := siteModules()
	app := newTestApp(t, frontend, backend)

	var mu sync.Mutex
	var types []string
	require.NoError(t, app.RegisterObserver(NewFunctionalObserver("recorder", func(_ context.Context, e cloudevents.Event) error {
		mu.Lock()
		defer mu.Unlock()
		types = append(types, e.Type())
		return nil
	})))

	tests := []struct {
		name   string
		method string
		path   string
		status int
		body   string
		header map[string]string
	}{
		{name: "home_with_hmvc", method: "GET", path: "/", status: 200, body: "home[latest:[3]]"},
		{name: "backend_response", method: "POST", path: "/admin/users/delete/42", status: 202, body: "deleted", header: map[string]string{"X-Deleted": "42"}},
		{name: "json_result", method: "GET", path: "/products/7", status: 200, body: `{"id":"7"}`, header: map[string]string{"Content-Type": "application/json"}},
		{name: "not_found_is_dispatched", method: "GET", path: "/no such page", status: 404, body: "nothing at /no such page"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "http://example.com"+encodePath(tt.path), nil)
			rec := httptest.NewRecorder()
			app.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.body, rec.Body.String())
			for k, v := range tt.header {
				assert.Equal(t, v, rec.Header().Get(k))
			}
		})
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, types, EventTypeRouteMatched)
	assert.Contains(t, types, EventTypeRouteNotFound)
}

func encodePath(p string) string {
	out := make([]byte, 0, len(p))
	for i := 0; i < len(p); i++ {
		if p[i] == ' ' {
			out = append(out, "%20"...)
			continue
		}
		out = append(out, p[i])
	}
	return string(out)
}

func TestApplication_FailuresAreEscalated(t *testing.T) {
	frontend, backend := siteModules()
	app := newTestApp(t, frontend, backend)

	f := newProdFixture()
	app.Container().SetEager(ServiceEscalator, f.esc)

	req := httptest.NewRequest("GET", "/products/boom", nil)
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "<h1>Sorry, something went wrong.</h1>", rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "products exploded")

	require.Len(t, f.sink.entries, 3)
	assert.Contains(t, f.sink.entries[0].message, "products exploded")
	assert.Contains(t, f.sink.entries[1].message, "application_test.go[")
	assert.Len(t, f.notifier.sent, 1)
}

func TestApplication_MissingEscalatorStillAnswers(t *testing.T) {
	frontend, backend := siteModules()
	app := newTestApp(t, frontend, backend)

	req := httptest.NewRequest("GET", "/widgets/fail", nil)
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Internal Server Error")
}

func TestApplication_DevelopmentHalts(t *testing.T) {
	frontend, backend := siteModules()
	app := newTestApp(t, frontend, backend)

	exited := make(chan int, 1)
	app.Container().SetEager(ServiceEscalator, &Escalator{
		Env:  Development,
		Out:  &lockedDiscard{},
		Exit: func(code int) { exited <- code },
	})

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest("GET", "/widgets/fail", nil))

	assert.Equal(t, 1, <-exited)
	assert.Contains(t, rec.Body.String(), "widget exploded")
	assert.Contains(t, rec.Body.String(), "Trace:")
}

type lockedDiscard struct{ mu sync.Mutex }

func (d *lockedDiscard) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(p), nil
}
