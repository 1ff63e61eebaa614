// Package chi integrates the construct container with the Chi router.
//
// It provides middleware that opens a container scope per HTTP request and
// handler wrappers that resolve controllers through the container, honoring
// each dependency's lifetime: Scoped dependencies cache per request,
// Transient dependencies never cache, and Singletons route through the
// container's singleton store. Startup hooks are awaited before a controller
// is handed to request-handling code.
//
// Example usage:
//
//	c := construct.New()
//	construct.AddScoped[*UserController](c, NewUserController)
//
//	r := constructchi.NewRouter(c)
//	r.Get("/users/{id}", constructchi.Handle(c, (*UserController).GetByID))
package chi

import (
	"log/slog"
	"net/http"

	gochi "github.com/go-chi/chi/v5"

	"github.com/Zozi96/construct"
)

// Config holds the per-handler configuration for Handle and HandleFunc.
type Config struct {
	// ErrorHandler is called when resolving a handler's controller fails.
	// If nil, a default handler returning 500 Internal Server Error is used.
	ErrorHandler func(http.ResponseWriter, *http.Request, error)

	// Logger records controller resolution and handler invocation
	// failures. If nil, slog.Default is used.
	Logger *slog.Logger
}

// Option configures the integration.
type Option func(*Config)

// WithErrorHandler sets the error handler for resolution failures.
func WithErrorHandler(h func(http.ResponseWriter, *http.Request, error)) Option {
	return func(c *Config) {
		c.ErrorHandler = h
	}
}

// WithLogger sets the logger for scope lifecycle errors.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

func defaultConfig() *Config {
	return &Config{
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		},
		Logger: slog.Default(),
	}
}

func (c *Config) apply(opts []Option) *Config {
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ScopeMiddleware returns a middleware that enters a container scope for
// each request and closes it when the request completes. Scoped services
// resolved during the request are cached for its duration and discarded
// afterwards.
func ScopeMiddleware(c *construct.Container) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, scope := c.EnterScope(r.Context())
			defer scope.Close()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewRouter builds a chi router with the scope middleware installed.
// Resolution error handling is configured per handler; see [Handle] and
// [HandleFunc].
func NewRouter(c *construct.Container) gochi.Router {
	r := gochi.NewRouter()
	r.Use(ScopeMiddleware(c))
	return r
}

// Handle wraps a controller method as an http.HandlerFunc. The controller is
// resolved from the request's scope through the started resolution path, so
// its startup hooks have completed before the method runs.
//
//	r.Get("/users/{id}", constructchi.Handle(c, (*UserController).GetByID))
func Handle[T any](c *construct.Container, method func(T, http.ResponseWriter, *http.Request), opts ...Option) http.HandlerFunc {
	cfg := defaultConfig().apply(opts)

	return func(w http.ResponseWriter, r *http.Request) {
		controller, err := construct.ResolveStarted[T](r.Context(), c)
		if err != nil {
			cfg.Logger.Error("failed to resolve controller", "error", err)
			cfg.ErrorHandler(w, r, err)
			return
		}

		method(controller, w, r)
	}
}

// HandleFunc wraps a plain function whose container-managed parameters were
// analyzed with Container.Autowire. The remaining parameters must be, in
// order, http.ResponseWriter and *http.Request.
func HandleFunc(c *construct.Container, fn any, opts ...Option) http.HandlerFunc {
	cfg := defaultConfig().apply(opts)

	plan, err := c.Autowire(fn)
	if err != nil {
		// Autowire diagnostics are configuration bugs; fail at route
		// registration, not per request.
		panic(err)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := plan.Invoke(r.Context(), w, r); err != nil {
			cfg.Logger.Error("failed to invoke handler", "error", err)
			cfg.ErrorHandler(w, r, err)
		}
	}
}

// URLParam returns the named URL parameter from the request, delegating to
// the chi route context.
func URLParam(r *http.Request, key string) string {
	return gochi.URLParam(r, key)
}
