package construct

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Scope caches one instance per Scoped key for the duration of a logical
// unit of work: an HTTP request, a background task, or a manual block.
//
// A scope belongs to the container that created it and to whichever logical
// unit opened it; it must not be shared across concurrent units of work.
// Entering a scope derives a new context carrying it, so a nested EnterScope
// replaces the active scope for the inner context while the outer context
// keeps the outer scope untouched:
//
//	ctx, scope := c.EnterScope(ctx)
//	defer scope.Close()
type Scope struct {
	id        string
	container *Container

	mu        sync.Mutex
	instances map[reflect.Type]any

	closed atomic.Bool
}

// scopeContextKey is the key for storing the active scope in context.
type scopeContextKey struct{}

// EnterScope installs a fresh empty scope into the returned context. The
// scope is active for any resolution using that context or a context derived
// from it, until Close. Contexts derived before EnterScope keep whatever
// scope they had, which restores the previous scope on exit from a nested
// block.
func (c *Container) EnterScope(ctx context.Context) (context.Context, *Scope) {
	if ctx == nil {
		ctx = context.Background()
	}

	s := &Scope{
		id:        uuid.NewString(),
		container: c,
		instances: make(map[reflect.Type]any),
	}

	return context.WithValue(ctx, scopeContextKey{}, s), s
}

// WithScope runs fn inside a fresh scope and guarantees the scope is closed
// on every exit path, including panics.
func (c *Container) WithScope(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, scope := c.EnterScope(ctx)
	defer scope.Close()

	return fn(ctx)
}

// ID returns the unique ID of this scope.
func (s *Scope) ID() string {
	return s.id
}

// Close marks the scope closed and discards its cached instances. Resolving
// a Scoped key against a closed scope fails with ErrScopeClosed. Close is
// idempotent.
func (s *Scope) Close() {
	if s.closed.Swap(true) {
		return
	}

	s.mu.Lock()
	s.instances = nil
	s.mu.Unlock()
}

func (s *Scope) isClosed() bool {
	return s.closed.Load()
}

func (s *Scope) get(key reflect.Type) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	instance, ok := s.instances[key]
	return instance, ok
}

// put stores the instance unless another one was cached first, returning
// whichever instance the scope settled on.
func (s *Scope) put(key reflect.Type, instance any) any {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.instances == nil {
		return instance
	}

	if existing, ok := s.instances[key]; ok {
		return existing
	}

	s.instances[key] = instance
	return instance
}

// ScopeFromContext returns the scope carried by ctx, if any.
func ScopeFromContext(ctx context.Context) (*Scope, bool) {
	if ctx == nil {
		return nil, false
	}

	scope, ok := ctx.Value(scopeContextKey{}).(*Scope)
	return scope, ok
}

// scopeFromContext returns the active scope only when it belongs to the
// given container. Scopes from other containers are invisible, keeping
// independent containers fully isolated.
func scopeFromContext(ctx context.Context, c *Container) (*Scope, bool) {
	scope, ok := ScopeFromContext(ctx)
	if !ok || scope.container != c {
		return nil, false
	}

	return scope, true
}
