package construct

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// Sentinel errors. These are wrapped by the typed errors below; callers
// should match them with errors.Is.
var (
	ErrNilServiceKey   = errors.New("service key cannot be nil")
	ErrNilProvider     = errors.New("provider cannot be nil")
	ErrNotRegistered   = errors.New("no provider registered")
	ErrProviderNotFunc = errors.New("provider must be a function")
	ErrScopeClosed     = errors.New("scope has been closed")
)

var (
	_ error = LifetimeError{}
	_ error = RegistrationError{}
	_ error = NotFoundError{}
	_ error = CircularDependencyError{}
	_ error = UnresolvedDependencyError{}
	_ error = ConstructorInvocationError{}
	_ error = InterfaceMismatchError{}
	_ error = CaptiveDependencyError{}
	_ error = StartupError{}
	_ error = ModuleError{}
)

// LifetimeError indicates an invalid lifetime value.
type LifetimeError struct {
	Value any
}

func (e LifetimeError) Error() string {
	return fmt.Sprintf("invalid lifetime: %v", e.Value)
}

// RegistrationError wraps errors that occur while registering a provider.
// Registration errors are configuration bugs and are surfaced immediately,
// never deferred to resolution time.
type RegistrationError struct {
	Key   reflect.Type
	Cause error
}

func (e RegistrationError) Error() string {
	return fmt.Sprintf("failed to register %s: %v", formatType(e.Key), e.Cause)
}

func (e RegistrationError) Unwrap() error {
	return e.Cause
}

// NotFoundError indicates a resolution was requested for a key that has no
// registered provider.
type NotFoundError struct {
	Key reflect.Type
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("no provider registered for %s", formatType(e.Key))
}

func (e NotFoundError) Is(target error) bool {
	return target == ErrNotRegistered
}

// CircularDependencyError indicates a cycle was detected while constructing
// the dependency graph. Chain holds the construction path ending at the key
// that closed the cycle.
type CircularDependencyError struct {
	Key   reflect.Type
	Chain []reflect.Type
}

func (e CircularDependencyError) Error() string {
	if len(e.Chain) == 0 {
		return fmt.Sprintf("circular dependency detected for %s", formatType(e.Key))
	}

	parts := make([]string, len(e.Chain))
	for i, t := range e.Chain {
		parts[i] = formatType(t)
	}

	return fmt.Sprintf("circular dependency detected: %s", strings.Join(parts, " -> "))
}

// UnresolvedDependencyError indicates a constructor parameter that is neither
// a registered service nor covered by a declared default. Go constructors
// cannot be invoked with missing arguments, so this surfaces as a typed error
// instead of a partial call.
type UnresolvedDependencyError struct {
	Key       reflect.Type
	Parameter reflect.Type
	Index     int
}

func (e UnresolvedDependencyError) Error() string {
	return fmt.Sprintf(
		"cannot construct %s: parameter %d (%s) is not registered and has no default value",
		formatType(e.Key), e.Index, formatType(e.Parameter))
}

// ConstructorInvocationError wraps a failure reported by a provider itself,
// either through its error return or through a panic during the call.
type ConstructorInvocationError struct {
	Key         reflect.Type
	Constructor reflect.Type
	Cause       error
}

func (e ConstructorInvocationError) Error() string {
	return fmt.Sprintf("constructor %s for %s failed: %v",
		formatType(e.Constructor), formatType(e.Key), e.Cause)
}

func (e ConstructorInvocationError) Unwrap() error {
	return e.Cause
}

// InterfaceMismatchError is an autowiring diagnostic: a parameter was typed
// as a concrete implementation even though that implementation is registered
// under an interface key. It is raised at registration or analysis time so
// the misuse is caught before any resolution runs.
type InterfaceMismatchError struct {
	Owner     reflect.Type
	Parameter reflect.Type
	Interface reflect.Type
	Index     int
}

func (e InterfaceMismatchError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("cannot autowire %s: parameter %d is typed as the concrete implementation %s\n\n",
		formatType(e.Owner), e.Index, formatType(e.Parameter)))
	b.WriteString(fmt.Sprintf("%s is registered in the container as %s.\n",
		formatType(e.Parameter), formatType(e.Interface)))
	b.WriteString(fmt.Sprintf("Change the parameter type from %s to %s.\n",
		formatType(e.Parameter), formatType(e.Interface)))

	return b.String()
}

// CaptiveDependencyError is an autowiring diagnostic: a Scoped dependency
// would be captured by a Singleton owner and silently outlive its scope.
type CaptiveDependencyError struct {
	Owner      reflect.Type
	Dependency reflect.Type
}

func (e CaptiveDependencyError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("cannot inject Scoped dependency %s into Singleton %s\n\n",
		formatType(e.Dependency), formatType(e.Owner)))
	b.WriteString("Singleton services are created once and live for the container lifetime.\n")
	b.WriteString("A singleton holding a scoped service would keep it alive long after its\n")
	b.WriteString("scope has ended (captive dependency).\n\n")
	b.WriteString("To resolve this:\n")
	b.WriteString(fmt.Sprintf("  - Change %s to Scoped lifetime\n", formatType(e.Owner)))
	b.WriteString(fmt.Sprintf("  - Change %s to Singleton lifetime\n", formatType(e.Dependency)))
	b.WriteString("  - Inject a factory and resolve the dependency per scope instead\n")

	return b.String()
}

// StartupError wraps a failure reported by an instance's Start hook.
type StartupError struct {
	Instance reflect.Type
	Cause    error
}

func (e StartupError) Error() string {
	return fmt.Sprintf("startup hook for %s failed: %v", formatType(e.Instance), e.Cause)
}

func (e StartupError) Unwrap() error {
	return e.Cause
}

// ModuleError wraps errors from module application.
type ModuleError struct {
	Module string
	Cause  error
}

func (e ModuleError) Error() string {
	return fmt.Sprintf("module %q: %v", e.Module, e.Cause)
}

func (e ModuleError) Unwrap() error {
	return e.Cause
}

// formatType formats a reflect.Type for error messages.
func formatType(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}

	switch t.Kind() {
	case reflect.Pointer:
		elem := t.Elem()
		if elem.PkgPath() != "" && elem.Name() != "" {
			return "*" + elem.Name()
		}
		return t.String()
	case reflect.Interface, reflect.Struct:
		if t.Name() != "" {
			return t.Name()
		}
		return t.String()
	case reflect.Func:
		return t.String()
	default:
		if t.Name() != "" {
			return t.Name()
		}
		return t.String()
	}
}
