package construct

import (
	"context"
	"errors"
	"fmt"
	"reflect"
)

// session is the per-call resolution state: the set of keys currently under
// construction on this call path and the ordered stack used for cycle error
// messages. A session is created per top-level Resolve call and threaded
// through the recursion, never stored on the container, so concurrent
// resolutions cannot observe each other's in-progress keys.
type session struct {
	ctx       context.Context
	resolving map[reflect.Type]struct{}
	stack     []reflect.Type

	// runHooks selects the started resolution path. The plain path never
	// runs startup hooks.
	runHooks bool

	// holdsBuildLock is set while this call path owns the container's
	// singleton build lock, so nested singleton construction on the same
	// path does not re-acquire it.
	holdsBuildLock bool

	// pending holds instances whose startup hooks were staged because the
	// build lock was held at construction time. Hooks must not run under
	// the lock: a hook that resolves another singleton would deadlock on
	// it, and a slow hook would stall unrelated singleton construction.
	// The frame that releases the lock flushes these in construction
	// order, dependencies first.
	pending []pendingStart
}

// pendingStart is one staged startup hook. key is set for singleton
// instances so a failed hook can evict the cache entry.
type pendingStart struct {
	key      reflect.Type
	instance any
}

func (c *Container) newSession(ctx context.Context, runHooks bool) *session {
	if ctx == nil {
		ctx = context.Background()
	}

	return &session{
		ctx:       ctx,
		resolving: make(map[reflect.Type]struct{}),
		runHooks:  runHooks,
	}
}

// Resolve builds and returns the instance registered for key.
//
// Transient keys always construct fresh instances. Scoped keys cache per
// active scope (see [Container.EnterScope]) and behave like Transient when no
// scope is active. Singleton keys construct at most once for the container's
// lifetime, even under concurrent resolution.
//
// Resolve never runs startup hooks; an instance implementing [Startable] is
// returned possibly not yet started. Use [Container.ResolveStarted] when the
// hooks must have completed.
func (c *Container) Resolve(ctx context.Context, key reflect.Type) (any, error) {
	if key == nil {
		return nil, NotFoundError{Key: nil}
	}

	return c.resolve(c.newSession(ctx, false), key)
}

// ResolveStarted resolves like [Container.Resolve] and additionally runs the
// startup hook of every constructed instance that implements [Startable],
// exactly once per instance, waiting for completion before returning. The
// context cancels both construction entry and in-flight hook waits.
func (c *Container) ResolveStarted(ctx context.Context, key reflect.Type) (any, error) {
	if key == nil {
		return nil, NotFoundError{Key: nil}
	}

	return c.resolve(c.newSession(ctx, true), key)
}

func (c *Container) resolve(s *session, key reflect.Type) (any, error) {
	if err := s.ctx.Err(); err != nil {
		return nil, err
	}

	config, ok := c.Config(key)
	if !ok {
		return nil, NotFoundError{Key: key}
	}

	if _, busy := s.resolving[key]; busy {
		return nil, CircularDependencyError{Key: key, Chain: append(append([]reflect.Type{}, s.stack...), key)}
	}

	switch config.Lifetime {
	case Singleton:
		return c.resolveSingleton(s, key, config)
	case Scoped:
		return c.resolveScoped(s, key, config)
	default:
		return c.resolveTransient(s, key, config)
	}
}

// resolveSingleton implements double-checked locking over the singleton
// store: an unlocked-read fast path, then the build mutex, then a re-check
// before constructing. The build lock is container-wide and guards only the
// check-construct-store sequence; it serializes singleton construction but
// never blocks transient or scoped resolution, and startup hooks run after
// it is released.
func (c *Container) resolveSingleton(s *session, key reflect.Type, config *DependencyConfig) (any, error) {
	c.singletonsMu.RLock()
	instance, ok := c.singletons[key]
	c.singletonsMu.RUnlock()

	if ok {
		return c.startSingleton(s, key, instance)
	}

	acquired := false
	if !s.holdsBuildLock {
		c.buildMu.Lock()
		s.holdsBuildLock = true
		acquired = true
	}

	// Another call path may have finished construction while this one was
	// waiting on the lock.
	c.singletonsMu.RLock()
	instance, ok = c.singletons[key]
	c.singletonsMu.RUnlock()

	var err error
	if !ok {
		if instance, err = c.construct(s, key, config); err == nil {
			c.singletonsMu.Lock()
			c.singletons[key] = instance
			c.singletonsMu.Unlock()
		}
	}

	if acquired {
		s.holdsBuildLock = false
		c.buildMu.Unlock()
	}

	if err != nil {
		return nil, err
	}

	if acquired {
		if err := c.flushPending(s); err != nil {
			if isStartupFailure(err) {
				c.singletonsMu.Lock()
				delete(c.singletons, key)
				c.singletonsMu.Unlock()
			}
			return nil, err
		}
	}

	return c.startSingleton(s, key, instance)
}

// startSingleton runs or stages the startup hook for a cached or freshly
// built singleton. A singleton whose hook failed is evicted so the next
// resolution constructs and starts a fresh one.
func (c *Container) startSingleton(s *session, key reflect.Type, instance any) (any, error) {
	if !s.runHooks {
		return instance, nil
	}

	if s.holdsBuildLock {
		s.pending = append(s.pending, pendingStart{key: key, instance: instance})
		return instance, nil
	}

	if err := c.hooks.run(s.ctx, instance); err != nil {
		// A hook failure evicts the entry; a waiter that merely gave up
		// (context cancelled while another path runs the hook) must not.
		if isStartupFailure(err) {
			c.singletonsMu.Lock()
			delete(c.singletons, key)
			c.singletonsMu.Unlock()
		}
		return nil, err
	}

	return instance, nil
}

// flushPending runs staged startup hooks in construction order. Called with
// the build lock released.
func (c *Container) flushPending(s *session) error {
	pending := s.pending
	s.pending = nil

	for i, p := range pending {
		if err := c.hooks.run(s.ctx, p.instance); err != nil {
			// Entries from the failed one onward never started; their
			// cache entries are discarded so a retry rebuilds and starts
			// them.
			if isStartupFailure(err) {
				c.singletonsMu.Lock()
				for _, rest := range pending[i:] {
					if rest.key != nil {
						delete(c.singletons, rest.key)
					}
				}
				c.singletonsMu.Unlock()
			}
			return err
		}
	}

	return nil
}

// isStartupFailure reports whether the error came from the hook itself
// rather than from a cancelled wait on someone else's invocation.
func isStartupFailure(err error) bool {
	var startupErr StartupError
	return errors.As(err, &startupErr)
}

func (c *Container) resolveScoped(s *session, key reflect.Type, config *DependencyConfig) (any, error) {
	scope, ok := scopeFromContext(s.ctx, c)
	if !ok {
		// No active scope: fall back to transient behavior. Nothing is
		// cached.
		return c.resolveTransient(s, key, config)
	}

	if scope.isClosed() {
		return nil, ErrScopeClosed
	}

	if instance, ok := scope.get(key); ok {
		return c.maybeStart(s, instance)
	}

	instance, err := c.construct(s, key, config)
	if err != nil {
		return nil, err
	}

	if _, err := c.maybeStart(s, instance); err != nil {
		return nil, err
	}

	// Prefer an instance stored by a racing resolution on the same scope,
	// so both callers observe a single scoped instance.
	return scope.put(key, instance), nil
}

func (c *Container) resolveTransient(s *session, key reflect.Type, config *DependencyConfig) (any, error) {
	instance, err := c.construct(s, key, config)
	if err != nil {
		return nil, err
	}

	return c.maybeStart(s, instance)
}

// construct invokes the provider with recursively resolved arguments. The
// key is held in the session's in-progress set for the duration of the call
// and removed on every exit path, including construction failure, so a
// retried resolution is never permanently blocked.
func (c *Container) construct(s *session, key reflect.Type, config *DependencyConfig) (instance any, err error) {
	s.resolving[key] = struct{}{}
	s.stack = append(s.stack, key)
	defer func() {
		delete(s.resolving, key)
		s.stack = s.stack[:len(s.stack)-1]
	}()

	args := make([]reflect.Value, config.numIn)
	for i, p := range config.params {
		if p.hasDefault {
			args[i] = p.defaultVal
			continue
		}

		if _, registered := c.Config(p.typ); registered {
			dep, err := c.resolve(s, p.typ)
			if err != nil {
				return nil, err
			}
			args[i] = reflect.ValueOf(dep)
			continue
		}

		return nil, UnresolvedDependencyError{Key: key, Parameter: p.typ, Index: i}
	}

	defer func() {
		if r := recover(); r != nil {
			instance = nil
			err = ConstructorInvocationError{
				Key:         key,
				Constructor: config.provTyp,
				Cause:       fmt.Errorf("panic: %v", r),
			}
		}
	}()

	results := config.Provider.Call(args)
	if config.hasErr && !results[1].IsNil() {
		return nil, ConstructorInvocationError{
			Key:         key,
			Constructor: config.provTyp,
			Cause:       results[1].Interface().(error),
		}
	}

	return results[0].Interface(), nil
}

// maybeStart runs the instance's startup hook when the session is on the
// started path. The plain path returns the instance untouched. While the
// build lock is held the hook is staged instead and runs once the lock is
// released.
func (c *Container) maybeStart(s *session, instance any) (any, error) {
	if !s.runHooks {
		return instance, nil
	}

	if s.holdsBuildLock {
		s.pending = append(s.pending, pendingStart{instance: instance})
		return instance, nil
	}

	if err := c.hooks.run(s.ctx, instance); err != nil {
		return nil, err
	}

	return instance, nil
}
