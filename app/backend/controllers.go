package backend

import (
	"errors"
	"time"

	"github.com/GoCodeAlone/baseapp"
	"github.com/GoCodeAlone/baseapp/app/common"
	"github.com/GoCodeAlone/baseapp/modules/cache"
	"github.com/GoCodeAlone/baseapp/modules/flash"
)

const (
	countKey      = "users.count"
	countLifetime = time.Minute
)

func dashboard(c *baseapp.Context) (any, error) {
	title, err := common.T(c, "Administration")
	if err != nil {
		return nil, err
	}
	summary, err := c.Request(baseapp.Location{Module: baseapp.BackendModule, Controller: "users", Action: "count"})
	if err != nil {
		return nil, err
	}
	n, _ := summary.(int)
	line, err := common.T(c, "%d users", n)
	if err != nil {
		return nil, err
	}
	return common.Render(c, "index", map[string]any{"Title": title, "Items": []string{line}})
}

func listUsers(c *baseapp.Context) (any, error) {
	users, err := baseapp.ResolveAs[*Users](c, ServiceUsers)
	if err != nil {
		return nil, err
	}
	list, err := users.List(c.Ctx)
	if err != nil {
		return nil, err
	}
	title, err := common.T(c, "%d users", len(list))
	if err != nil {
		return nil, err
	}
	return common.Render(c, "users", map[string]any{"Title": title, "Users": list})
}

// countUsers answers internal requests with the number of users, cached
// when a models cache is configured.
func countUsers(c *baseapp.Context) (any, error) {
	store := countCache(c)
	if store != nil {
		var n int
		if ok, err := store.Get(c.Ctx, countKey, &n); err == nil && ok {
			return n, nil
		}
	}
	users, err := baseapp.ResolveAs[*Users](c, ServiceUsers)
	if err != nil {
		return nil, err
	}
	n, err := users.Count(c.Ctx)
	if err != nil {
		return nil, err
	}
	if store != nil {
		_ = store.Save(c.Ctx, countKey, n, countLifetime)
	}
	return n, nil
}

func createUser(c *baseapp.Context) (any, error) {
	users, err := baseapp.ResolveAs[*Users](c, ServiceUsers)
	if err != nil {
		return nil, err
	}
	var email, password string
	if c.HTTP != nil {
		email, password = c.HTTP.PostFormValue("email"), c.HTTP.PostFormValue("password")
	} else {
		email, _ = c.Param(0).(string)
		password, _ = c.Param(1).(string)
	}

	_, err = users.Create(c.Ctx, email, password)
	switch {
	case errors.Is(err, ErrInvalidUser):
		if err := notify(c, flash.Error, "Email and password are required"); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		forgetCount(c)
		if err := notify(c, flash.Success, "User created"); err != nil {
			return nil, err
		}
	}
	return backToUsers(c)
}

func deleteUser(c *baseapp.Context) (any, error) {
	id, err := c.ParamInt(0)
	if err != nil {
		return nil, err
	}
	users, err := baseapp.ResolveAs[*Users](c, ServiceUsers)
	if err != nil {
		return nil, err
	}
	err = users.Delete(c.Ctx, int64(id))
	switch {
	case errors.Is(err, ErrUserNotFound):
		if err := notify(c, flash.Notice, "User not found"); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		forgetCount(c)
		if err := notify(c, flash.Success, "User deleted"); err != nil {
			return nil, err
		}
	}
	return backToUsers(c)
}

func notify(c *baseapp.Context, kind, key string) error {
	msg, err := common.T(c, key)
	if err != nil {
		return err
	}
	return common.Notify(c, kind, msg)
}

func backToUsers(c *baseapp.Context) (any, error) {
	urls, err := common.URL(c)
	if err != nil {
		return nil, err
	}
	return common.Redirect(urls.Route("admin", "users", "")), nil
}

func countCache(c *baseapp.Context) *cache.Cache {
	store, err := baseapp.ResolveAs[*cache.Cache](c, CountCacheService)
	if err != nil {
		return nil
	}
	return store
}

func forgetCount(c *baseapp.Context) {
	if store := countCache(c); store != nil {
		_ = store.Delete(c.Ctx, countKey)
	}
}
