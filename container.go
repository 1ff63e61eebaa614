package construct

import (
	"context"
	"fmt"
	"reflect"
	"sync"
)

// DependencyConfig is the immutable pairing of a provider and a lifetime,
// owned by the container entry for its service key. Re-registering the same
// key replaces the config; it never mutates in place.
type DependencyConfig struct {
	// Provider is the constructor function registered for the key.
	Provider reflect.Value

	// Lifetime determines instance caching behavior.
	Lifetime Lifetime

	// Result is the concrete type the provider produces.
	Result reflect.Type

	params  []param
	hasErr  bool
	numIn   int
	provTyp reflect.Type
}

// param is one analyzed constructor parameter.
type param struct {
	typ        reflect.Type
	defaultVal reflect.Value
	hasDefault bool
}

// Container maps service keys to providers and lifetimes, caches singleton
// instances, and tracks which instances have run their startup hook.
//
// A service key is a reflect.Type, usually an interface type obtained with
// [For]. Independent Container instances are fully isolated: registering or
// resolving in one never observes another's state.
//
// All methods are safe for concurrent use. Reset must not be called
// concurrently with in-flight resolutions; that ordering is the caller's
// responsibility.
type Container struct {
	mu       sync.RWMutex
	registry map[reflect.Type]*DependencyConfig

	// byResult maps a provider's concrete result type back to the key it
	// was registered under. Built at registration time so the interface
	// mismatch diagnostic does not scan the whole registry per call.
	byResult map[reflect.Type]reflect.Type

	// singletons is the write-once-per-key instance cache. buildMu guards
	// the check-construct-store sequence; reads go through singletonsMu
	// without taking buildMu.
	singletonsMu sync.RWMutex
	singletons   map[reflect.Type]any
	buildMu      sync.Mutex

	hooks *hookRunner
}

// New creates an empty Container ready for registration.
func New() *Container {
	return &Container{
		registry:   make(map[reflect.Type]*DependencyConfig),
		byResult:   make(map[reflect.Type]reflect.Type),
		singletons: make(map[reflect.Type]any),
		hooks:      newHookRunner(),
	}
}

// Register stores a provider and lifetime for the given key.
//
// The provider must be a function with the signature func(deps...) T or
// func(deps...) (T, error), where T is assignable to the key. Each parameter
// is resolved recursively at construction time when its type is registered,
// filled from a [Default] option otherwise, and rejected as unresolvable if
// neither applies.
//
// Registering the same key again replaces the previous config and evicts the
// key's cached singleton instance, so no instance from the old provider can
// leak through later resolutions.
func (c *Container) Register(key reflect.Type, provider any, lifetime Lifetime, opts ...RegisterOption) error {
	if key == nil {
		return RegistrationError{Key: nil, Cause: ErrNilServiceKey}
	}

	if !lifetime.IsValid() {
		return RegistrationError{Key: key, Cause: LifetimeError{Value: lifetime}}
	}

	config, err := c.newConfig(key, provider, lifetime, opts...)
	if err != nil {
		return err
	}

	// Static diagnostics over the provider's own parameters. These fire
	// here rather than at resolution time so misuse is caught early.
	if err := c.checkParams(key, config.provTyp, config.params, lifetime, false); err != nil {
		return err
	}

	c.mu.Lock()
	// Re-registration drops the old provider's result mapping so the
	// mismatch diagnostic cannot name a concrete type no key produces
	// anymore.
	if old, ok := c.registry[key]; ok {
		if mapped, ok := c.byResult[old.Result]; ok && mapped == key {
			delete(c.byResult, old.Result)
		}
	}
	c.registry[key] = config
	c.byResult[config.Result] = key
	c.mu.Unlock()

	// The old provider's singleton must not survive re-registration.
	c.singletonsMu.Lock()
	delete(c.singletons, key)
	c.singletonsMu.Unlock()

	return nil
}

// newConfig validates the provider and analyzes its signature.
func (c *Container) newConfig(key reflect.Type, provider any, lifetime Lifetime, opts ...RegisterOption) (*DependencyConfig, error) {
	if provider == nil {
		return nil, RegistrationError{Key: key, Cause: ErrNilProvider}
	}

	val := reflect.ValueOf(provider)
	typ := val.Type()

	if typ.Kind() != reflect.Func {
		return nil, RegistrationError{Key: key, Cause: fmt.Errorf("%w, got %s", ErrProviderNotFunc, typ)}
	}

	if typ.NumOut() == 0 || typ.NumOut() > 2 {
		return nil, RegistrationError{Key: key, Cause: fmt.Errorf("provider must return (T) or (T, error)")}
	}

	hasErr := false
	if typ.NumOut() == 2 {
		if !typ.Out(1).Implements(errorType) {
			return nil, RegistrationError{Key: key, Cause: fmt.Errorf("second return value must implement error")}
		}
		hasErr = true
	}

	result := typ.Out(0)
	if !result.AssignableTo(key) {
		return nil, RegistrationError{
			Key:   key,
			Cause: fmt.Errorf("provider returns %s, not assignable to %s", formatType(result), formatType(key)),
		}
	}

	options := registerOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt.applyRegisterOption(&options)
		}
	}

	params := make([]param, typ.NumIn())
	for i := range params {
		params[i] = param{typ: typ.In(i)}
	}

	// Defaults bind to the first parameter their value is assignable to,
	// in declaration order. A default that matches no parameter is a
	// registration bug.
	for _, dv := range options.defaults {
		bound := false
		for i := range params {
			if params[i].hasDefault {
				continue
			}
			if dv.Type().AssignableTo(params[i].typ) {
				params[i].defaultVal = dv
				params[i].hasDefault = true
				bound = true
				break
			}
		}
		if !bound {
			return nil, RegistrationError{
				Key:   key,
				Cause: fmt.Errorf("default value of type %s matches no provider parameter", formatType(dv.Type())),
			}
		}
	}

	return &DependencyConfig{
		Provider: val,
		Lifetime: lifetime,
		Result:   result,
		params:   params,
		hasErr:   hasErr,
		numIn:    typ.NumIn(),
		provTyp:  typ,
	}, nil
}

// checkParams runs the static autowiring diagnostics over a parameter list.
// skipFirst treats parameter 0 as a method receiver and leaves it untouched.
func (c *Container) checkParams(owner reflect.Type, fnType reflect.Type, params []param, ownerLifetime Lifetime, skipFirst bool) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for i, p := range params {
		if skipFirst && i == 0 {
			continue
		}

		// Parameters with explicit defaults are never autowired, even
		// when their type happens to be registered.
		if p.hasDefault {
			continue
		}

		if cfg, ok := c.registry[p.typ]; ok {
			if ownerLifetime == Singleton && cfg.Lifetime == Scoped {
				return CaptiveDependencyError{Owner: owner, Dependency: p.typ}
			}
			continue
		}

		// Not registered as a key. If some key's provider produces exactly
		// this type, the parameter was typed as the concrete implementation
		// instead of its interface.
		if iface, ok := c.byResult[p.typ]; ok && iface != p.typ {
			return InterfaceMismatchError{
				Owner:     owner,
				Parameter: p.typ,
				Interface: iface,
				Index:     i,
			}
		}
	}

	return nil
}

// Config returns the dependency configuration registered for the key.
// It is a pure lookup with no side effects; external integrations use it to
// decide whether a declared parameter type is container-managed.
func (c *Container) Config(key reflect.Type) (*DependencyConfig, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	config, ok := c.registry[key]
	return config, ok
}

// SetSingleton pre-seeds an instance for the key, bypassing construction.
// Primarily useful in tests.
func (c *Container) SetSingleton(key reflect.Type, instance any) {
	c.singletonsMu.Lock()
	defer c.singletonsMu.Unlock()

	c.singletons[key] = instance
}

// Singleton returns the cached singleton instance for the key, if one exists.
func (c *Container) Singleton(key reflect.Type) (any, bool) {
	c.singletonsMu.RLock()
	defer c.singletonsMu.RUnlock()

	instance, ok := c.singletons[key]
	return instance, ok
}

// Reset clears all registrations, the singleton cache, and the startup-hook
// tracking. It is intended for test isolation and must not race with
// in-flight resolutions.
func (c *Container) Reset() {
	c.mu.Lock()
	c.registry = make(map[reflect.Type]*DependencyConfig)
	c.byResult = make(map[reflect.Type]reflect.Type)
	c.mu.Unlock()

	c.singletonsMu.Lock()
	c.singletons = make(map[reflect.Type]any)
	c.singletonsMu.Unlock()

	c.hooks.reset()
}

// Apply runs module options against the container, stopping at the first
// failure.
func (c *Container) Apply(modules ...ModuleOption) error {
	for _, module := range modules {
		if module == nil {
			continue
		}

		if err := module(c); err != nil {
			return err
		}
	}

	return nil
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// For returns the service key for T. The key for an interface is the
// interface type itself:
//
//	key := construct.For[IClock]()
func For[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// AddTransient registers a provider for T with Transient lifetime.
func AddTransient[T any](c *Container, provider any, opts ...RegisterOption) error {
	return c.Register(For[T](), provider, Transient, opts...)
}

// AddScoped registers a provider for T with Scoped lifetime.
func AddScoped[T any](c *Container, provider any, opts ...RegisterOption) error {
	return c.Register(For[T](), provider, Scoped, opts...)
}

// AddSingleton registers a provider for T with Singleton lifetime.
func AddSingleton[T any](c *Container, provider any, opts ...RegisterOption) error {
	return c.Register(For[T](), provider, Singleton, opts...)
}

// Resolve resolves T from the container without running startup hooks.
//
//	clock, err := construct.Resolve[IClock](ctx, c)
func Resolve[T any](ctx context.Context, c *Container) (T, error) {
	var zero T

	instance, err := c.Resolve(ctx, For[T]())
	if err != nil {
		return zero, err
	}

	out, ok := instance.(T)
	if !ok {
		return zero, fmt.Errorf("cannot convert %T to %s", instance, For[T]())
	}

	return out, nil
}

// ResolveStarted resolves T and awaits its startup hooks before returning.
func ResolveStarted[T any](ctx context.Context, c *Container) (T, error) {
	var zero T

	instance, err := c.ResolveStarted(ctx, For[T]())
	if err != nil {
		return zero, err
	}

	out, ok := instance.(T)
	if !ok {
		return zero, fmt.Errorf("cannot convert %T to %s", instance, For[T]())
	}

	return out, nil
}
