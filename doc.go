// Package construct provides a lifetime-aware dependency injection container
// for Go applications. It maps abstract service keys to concrete providers
// and builds object graphs on demand, enforcing lifetime rules, detecting
// circular dependencies, and running startup hooks exactly once per instance.
//
// # Basic Usage
//
// Create a container, register providers under their interface keys, and
// resolve:
//
//	c := construct.New()
//	construct.AddSingleton[IClock](c, NewSystemClock)
//	construct.AddScoped[IRepo](c, NewInMemoryRepo)
//
//	clock, err := construct.Resolve[IClock](ctx, c)
//
// # Service Lifetimes
//
// Three lifetimes control instance caching:
//
//   - Transient: a new instance on every resolution
//   - Scoped: one instance per active scope; transient-like when no scope
//     is active
//   - Singleton: one instance for the container's lifetime, constructed at
//     most once even under concurrent resolution
//
// # Dependency Injection
//
// Providers declare dependencies through their parameters. A parameter whose
// type is registered resolves recursively; unregistered parameters are
// filled from Default options:
//
//	func NewUserService(repo IRepo, clock IClock) *UserService {
//	    return &UserService{repo: repo, clock: clock}
//	}
//
//	construct.AddScoped[IUserService](c, NewUserService)
//
// # Scopes
//
// A scope bounds the lifetime of Scoped instances to one logical unit of
// work, typically an HTTP request:
//
//	ctx, scope := c.EnterScope(ctx)
//	defer scope.Close()
//
//	repo, _ := construct.Resolve[IRepo](ctx, c) // cached within the scope
//
// # Startup Hooks
//
// Instances implementing Startable are initialized by ResolveStarted before
// being returned, exactly once per instance. The plain Resolve path never
// runs hooks and may return a not-yet-started instance.
//
// # Diagnostics
//
// Misconfigurations surface early as typed errors: registering a non-function
// provider fails immediately, typing a parameter as a concrete implementation
// instead of its registered interface fails with InterfaceMismatchError, and
// injecting a Scoped dependency into a Singleton owner fails with
// CaptiveDependencyError.
package construct
