package construct_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zozi96/construct"
)

func TestContainer_Register(t *testing.T) {
	t.Run("valid provider", func(t *testing.T) {
		c := construct.New()

		err := c.Register(construct.For[IClock](), func() *SystemClock { return &SystemClock{} }, construct.Singleton)
		require.NoError(t, err)

		config, ok := c.Config(construct.For[IClock]())
		require.True(t, ok)
		assert.Equal(t, construct.Singleton, config.Lifetime)
	})

	t.Run("provider with error return", func(t *testing.T) {
		c := construct.New()

		err := construct.AddTransient[IRepo](c, func() (*InMemoryRepo, error) { return NewInMemoryRepo(), nil })
		require.NoError(t, err)
	})

	t.Run("nil key", func(t *testing.T) {
		c := construct.New()

		err := c.Register(nil, func() *SystemClock { return &SystemClock{} }, construct.Singleton)
		require.Error(t, err)

		var regErr construct.RegistrationError
		require.ErrorAs(t, err, &regErr)
		assert.ErrorIs(t, err, construct.ErrNilServiceKey)
	})

	t.Run("nil provider", func(t *testing.T) {
		c := construct.New()

		err := c.Register(construct.For[IClock](), nil, construct.Singleton)
		assert.ErrorIs(t, err, construct.ErrNilProvider)
	})

	t.Run("non-callable provider", func(t *testing.T) {
		c := construct.New()

		err := c.Register(construct.For[IClock](), &SystemClock{}, construct.Singleton)
		require.Error(t, err)

		var regErr construct.RegistrationError
		require.ErrorAs(t, err, &regErr)
		assert.ErrorIs(t, err, construct.ErrProviderNotFunc)
	})

	t.Run("no return values", func(t *testing.T) {
		c := construct.New()

		err := c.Register(construct.For[IClock](), func() {}, construct.Singleton)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "(T) or (T, error)")
	})

	t.Run("second return not error", func(t *testing.T) {
		c := construct.New()

		err := c.Register(construct.For[IClock](), func() (*SystemClock, int) { return nil, 0 }, construct.Singleton)
		require.Error(t, err)
	})

	t.Run("result not assignable to key", func(t *testing.T) {
		c := construct.New()

		err := c.Register(construct.For[IClock](), NewInMemoryRepo, construct.Singleton)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not assignable")
	})

	t.Run("invalid lifetime", func(t *testing.T) {
		c := construct.New()

		err := c.Register(construct.For[IClock](), func() *SystemClock { return &SystemClock{} }, construct.Lifetime(42))
		require.Error(t, err)

		var ltErr construct.LifetimeError
		assert.ErrorAs(t, err, &ltErr)
	})

	t.Run("unmatched default", func(t *testing.T) {
		c := construct.New()

		err := construct.AddSingleton[IClock](c,
			func() *SystemClock { return &SystemClock{} },
			construct.Default("nothing takes a string"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "matches no provider parameter")
	})
}

func TestContainer_Replace(t *testing.T) {
	ctx := context.Background()

	t.Run("second provider wins", func(t *testing.T) {
		c := construct.New()

		require.NoError(t, construct.AddTransient[IRepo](c, func() *InMemoryRepo {
			return &InMemoryRepo{data: map[string]string{"k": "first"}}
		}))
		require.NoError(t, construct.AddTransient[IRepo](c, func() *InMemoryRepo {
			return &InMemoryRepo{data: map[string]string{"k": "second"}}
		}))

		repo, err := construct.Resolve[IRepo](ctx, c)
		require.NoError(t, err)
		assert.Equal(t, "second", repo.Get("k"))
	})

	t.Run("cached singleton evicted", func(t *testing.T) {
		c := construct.New()

		require.NoError(t, construct.AddSingleton[IRepo](c, func() *InMemoryRepo {
			return &InMemoryRepo{data: map[string]string{"k": "first"}}
		}))

		repo, err := construct.Resolve[IRepo](ctx, c)
		require.NoError(t, err)
		require.Equal(t, "first", repo.Get("k"))

		require.NoError(t, construct.AddSingleton[IRepo](c, func() *InMemoryRepo {
			return &InMemoryRepo{data: map[string]string{"k": "second"}}
		}))

		repo, err = construct.Resolve[IRepo](ctx, c)
		require.NoError(t, err)
		assert.Equal(t, "second", repo.Get("k"), "no instance from the first provider may leak through")
	})

	t.Run("stale result mapping removed", func(t *testing.T) {
		c := construct.New()

		require.NoError(t, construct.AddScoped[IRepo](c, func() *DiskRepo { return &DiskRepo{} }))
		require.NoError(t, construct.AddScoped[IRepo](c, NewInMemoryRepo))

		// The replaced concrete type is no longer any key's provider
		// result; autowiring it is an ordinary caller-supplied parameter.
		plan, err := c.Autowire(func(r *DiskRepo) {})
		require.NoError(t, err)
		assert.False(t, plan.Params[0].Supplied)

		// The current provider's result still trips the diagnostic.
		_, err = c.Autowire(func(r *InMemoryRepo) {})
		var mismatch construct.InterfaceMismatchError
		assert.ErrorAs(t, err, &mismatch)
	})
}

func TestContainer_Isolation(t *testing.T) {
	ctx := context.Background()

	a := construct.New()
	b := construct.New()

	require.NoError(t, construct.AddSingleton[IClock](a, func() *SystemClock { return &SystemClock{tick: 1} }))

	_, err := construct.Resolve[IClock](ctx, b)
	assert.ErrorIs(t, err, construct.ErrNotRegistered, "registrations in one container must be invisible to another")

	require.NoError(t, construct.AddSingleton[IClock](b, func() *SystemClock { return &SystemClock{tick: 2} }))

	clockA, err := construct.Resolve[IClock](ctx, a)
	require.NoError(t, err)
	clockB, err := construct.Resolve[IClock](ctx, b)
	require.NoError(t, err)

	assert.EqualValues(t, 1, clockA.Now())
	assert.EqualValues(t, 2, clockB.Now())
}

func TestContainer_Reset(t *testing.T) {
	ctx := context.Background()
	c := construct.New()

	require.NoError(t, construct.AddSingleton[IClock](c, func() *SystemClock { return &SystemClock{} }))

	first, err := construct.Resolve[IClock](ctx, c)
	require.NoError(t, err)

	c.Reset()

	_, err = construct.Resolve[IClock](ctx, c)
	assert.ErrorIs(t, err, construct.ErrNotRegistered)

	// Re-registering after reset starts from a clean singleton cache.
	require.NoError(t, construct.AddSingleton[IClock](c, func() *SystemClock { return &SystemClock{} }))

	second, err := construct.Resolve[IClock](ctx, c)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

func TestContainer_SetSingleton(t *testing.T) {
	ctx := context.Background()
	c := construct.New()

	seeded := &SystemClock{tick: 99}
	c.SetSingleton(construct.For[IClock](), seeded)

	cached, ok := c.Singleton(construct.For[IClock]())
	require.True(t, ok)
	assert.Same(t, seeded, cached)

	// Resolution uses the pre-seeded instance without a provider invocation.
	require.NoError(t, construct.AddSingleton[IClock](c, func() *SystemClock {
		t.Fatal("provider must not run for a pre-seeded singleton")
		return nil
	}))
	// Register evicts the seed; seed again afterwards to exercise the
	// bypass path.
	c.SetSingleton(construct.For[IClock](), seeded)

	clock, err := construct.Resolve[IClock](ctx, c)
	require.NoError(t, err)
	assert.Same(t, seeded, clock)
}

func TestContainer_SingletonConcurrentReads(t *testing.T) {
	ctx := context.Background()
	c := construct.New()

	require.NoError(t, construct.AddSingleton[IClock](c, func() *SystemClock { return &SystemClock{} }))

	_, err := construct.Resolve[IClock](ctx, c)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				if _, ok := c.Singleton(construct.For[IClock]()); !ok {
					t.Error("cached singleton disappeared")
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestContainer_ErrorMessages(t *testing.T) {
	c := construct.New()

	require.NoError(t, construct.AddScoped[IRepo](c, NewInMemoryRepo))

	err := construct.AddSingleton[IService](c, func(repo IRepo) *Service { return &Service{} })

	var captive construct.CaptiveDependencyError
	require.ErrorAs(t, err, &captive)
	assert.True(t, strings.Contains(err.Error(), "Scoped") && strings.Contains(err.Error(), "Singleton"))
	assert.Contains(t, err.Error(), "To resolve this:")
}

func TestErrors_Unwrap(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name string
		err  error
	}{
		{"RegistrationError", construct.RegistrationError{Cause: cause}},
		{"ConstructorInvocationError", construct.ConstructorInvocationError{Cause: cause}},
		{"StartupError", construct.StartupError{Cause: cause}},
		{"ModuleError", construct.ModuleError{Module: "m", Cause: cause}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, cause)
		})
	}
}
