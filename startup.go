package construct

import (
	"context"
	"reflect"
	"sync"
)

// Startable is the optional asynchronous initialization hook. Instances
// implementing it are started by the ResolveStarted path after construction,
// exactly once per instance, before being handed to the caller.
//
// The plain Resolve path never runs Start; use ResolveStarted when a caller
// must not observe an unstarted instance.
type Startable interface {
	Start(ctx context.Context) error
}

// hookRunner invokes startup hooks at most once per instance identity. The
// gate is the instance, not the service key: a singleton fetched many times
// starts once, and a scoped instance reused within one scope starts once.
type hookRunner struct {
	mu      sync.Mutex
	started map[any]*startState
}

// startState tracks one in-flight or completed hook invocation. Waiters
// block on done so an instance is never handed out mid-startup.
type startState struct {
	done chan struct{}
	err  error
}

func newHookRunner() *hookRunner {
	return &hookRunner{
		started: make(map[any]*startState),
	}
}

// run starts the instance if it implements Startable and has not been
// started before. Concurrent callers for the same instance wait for the
// first invocation to finish; a cancelled waiter returns the context error
// without affecting the invocation.
func (h *hookRunner) run(ctx context.Context, instance any) error {
	startable, ok := instance.(Startable)
	if !ok {
		return nil
	}

	id, ok := identityOf(instance)
	if !ok {
		// No stable identity to gate on; invoke directly.
		return h.invoke(ctx, startable)
	}

	h.mu.Lock()
	if state, exists := h.started[id]; exists {
		h.mu.Unlock()

		select {
		case <-state.done:
			return state.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	state := &startState{done: make(chan struct{})}
	h.started[id] = state
	h.mu.Unlock()

	state.err = h.invoke(ctx, startable)
	close(state.done)

	if state.err != nil {
		// A failed hook is forgotten so a retried resolution may start
		// the instance again.
		h.mu.Lock()
		delete(h.started, id)
		h.mu.Unlock()
	}

	return state.err
}

func (h *hookRunner) invoke(ctx context.Context, startable Startable) error {
	if err := startable.Start(ctx); err != nil {
		return StartupError{Instance: reflect.TypeOf(startable), Cause: err}
	}

	return nil
}

func (h *hookRunner) reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.started = make(map[any]*startState)
}

// identityOf derives a comparable identity for the instance: the instance
// itself, whenever its dynamic type is comparable. Pointers compare by
// address, and using the value as the map key keeps it reachable, so a
// collected instance's address can never be mistaken for an already-started
// one. The cost is that started entries live until Reset; long-running
// processes starting many transient instances pay for that retention.
//
// Values with non-comparable dynamic types (slices, maps, funcs) have no
// usable identity and report false; their hooks run ungated.
func identityOf(instance any) (any, bool) {
	v := reflect.ValueOf(instance)
	if v.IsValid() && v.Comparable() {
		return instance, true
	}

	return nil, false
}
