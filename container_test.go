package baseapp

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct{ n int }

func TestContainer(t *testing.T) {
	tests := []struct {
		name     string
		testFunc func(t *testing.T)
	}{
		{
			name: "singleton_returns_same_instance",
			testFunc: func(t *testing.T) {
				c := NewContainer(nil)
				calls := 0
				c.Register("svc", func(Resolver) (any, error) {
					calls++
					return &counter{n: calls}, nil
				}, Singleton)

				first, err := c.Resolve("svc")
				require.NoError(t, err)
				second, err := c.Resolve("svc")
				require.NoError(t, err)

				assert.Same(t, first, second)
				assert.Equal(t, 1, calls)
			},
		},
		{
			name: "transient_constructs_every_call",
			testFunc: func(t *testing.T) {
				c := NewContainer(nil)
				c.Register("svc", func(Resolver) (any, error) { return &counter{}, nil }, Transient)

				first := c.MustResolve("svc")
				second := c.MustResolve("svc")
				assert.NotSame(t, first, second)
			},
		},
		{
			name: "unknown_service",
			testFunc: func(t *testing.T) {
				c := NewContainer(nil)
				_, err := c.Resolve("missing")
				require.ErrorIs(t, err, ErrUnknownService)
				assert.Contains(t, err.Error(), "missing")
			},
		},
		{
			name: "overwrite_discards_cached_instance",
			testFunc: func(t *testing.T) {
				c := NewContainer(nil)
				c.Register("svc", func(Resolver) (any, error) { return &counter{n: 1}, nil }, Singleton)
				first := c.MustResolve("svc").(*counter)

				c.Register("svc", func(Resolver) (any, error) { return &counter{n: 2}, nil }, Singleton)
				second := c.MustResolve("svc").(*counter)

				assert.Equal(t, 1, first.n)
				assert.Equal(t, 2, second.n)
				assert.NotSame(t, first, second)
			},
		},
		{
			name: "eager_value_is_returned_without_factory",
			testFunc: func(t *testing.T) {
				c := NewContainer(nil)
				c.Register("app", func(Resolver) (any, error) {
					t.Fatal("factory must not run")
					return nil, nil
				}, Singleton)
				value := &counter{n: 7}
				c.SetEager("app", value)

				got, err := c.Resolve("app")
				require.NoError(t, err)
				assert.Same(t, value, got)
			},
		},
		{
			name: "factories_resolve_other_services",
			testFunc: func(t *testing.T) {
				c := NewContainer(nil)
				c.Register("config", func(Resolver) (any, error) { return map[string]string{"dsn": "mem"}, nil }, Singleton)
				c.Register("db", func(r Resolver) (any, error) {
					cfg, err := ResolveAs[map[string]string](r, "config")
					if err != nil {
						return nil, err
					}
					return "db:" + cfg["dsn"], nil
				}, Singleton)

				db, err := ResolveAs[string](c, "db")
				require.NoError(t, err)
				assert.Equal(t, "db:mem", db)
			},
		},
		{
			name: "self_dependency_is_a_cycle",
			testFunc: func(t *testing.T) {
				c := NewContainer(nil)
				c.Register("a", func(r Resolver) (any, error) { return r.Resolve("b") }, Singleton)
				c.Register("b", func(r Resolver) (any, error) { return r.Resolve("a") }, Singleton)

				_, err := c.Resolve("a")
				require.ErrorIs(t, err, ErrCircularDependency)
				assert.Contains(t, err.Error(), "a -> b -> a")
			},
		},
		{
			name: "factory_error_names_service",
			testFunc: func(t *testing.T) {
				c := NewContainer(nil)
				boom := errors.New("boom")
				c.Register("db", func(Resolver) (any, error) { return nil, boom }, Singleton)

				_, err := c.Resolve("db")
				require.ErrorIs(t, err, ErrServiceConstruction)
				require.ErrorIs(t, err, boom)
				assert.Contains(t, err.Error(), `"db"`)

				// Re-registering replaces the failing factory.
				c.Register("db", func(Resolver) (any, error) { return "ok", nil }, Singleton)
				v, err := c.Resolve("db")
				require.NoError(t, err)
				assert.Equal(t, "ok", v)
			},
		},
		{
			name: "resolve_as_wrong_type",
			testFunc: func(t *testing.T) {
				c := NewContainer(nil)
				c.SetEager("n", 42)
				_, err := ResolveAs[string](c, "n")
				assert.ErrorIs(t, err, ErrServiceWrongType)
			},
		},
		{
			name: "nil_factory_panics",
			testFunc: func(t *testing.T) {
				c := NewContainer(nil)
				assert.Panics(t, func() { c.Register("x", nil, Singleton) })
			},
		},
		{
			name: "names_and_descriptors",
			testFunc: func(t *testing.T) {
				c := NewContainer(nil)
				c.Register("b", func(Resolver) (any, error) { return 1, nil }, Transient)
				c.SetEager("a", 1)

				assert.Equal(t, []string{"a", "b"}, c.Names())
				assert.True(t, c.Has("a"))
				assert.False(t, c.Has("c"))
				desc, ok := c.Descriptor("b")
				require.True(t, ok)
				assert.Equal(t, Transient, desc.Lifetime)
				assert.Equal(t, "transient", desc.Lifetime.String())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, tt.testFunc)
	}
}

func TestContainer_ConcurrentSingletonConstruction(t *testing.T) {
	c := NewContainer(nil)
	var calls atomic.Int32
	release := make(chan struct{})
	c.Register("slow", func(Resolver) (any, error) {
		calls.Add(1)
		<-release
		return &counter{}, nil
	}, Singleton)

	const workers = 16
	results := make([]any, workers)
	var started, done sync.WaitGroup
	started.Add(workers)
	done.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer done.Done()
			started.Done()
			results[i] = c.MustResolve("slow")
		}(i)
	}
	started.Wait()
	close(release)
	done.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
}
