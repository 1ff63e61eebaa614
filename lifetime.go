package construct

import (
	"encoding/json"
	"fmt"
)

// Lifetime specifies how long an instance produced by a provider lives
// and when the container may hand out a cached instance instead of
// constructing a new one.
type Lifetime int

const (
	// Transient specifies that a new instance is constructed on every
	// resolution. The container never caches transient instances.
	Transient Lifetime = iota

	// Scoped specifies that one instance is shared within an active scope.
	// In web applications this typically means one instance per HTTP request.
	// When no scope is active, scoped services behave like Transient: a
	// fresh instance is constructed and nothing is cached.
	Scoped

	// Singleton specifies that a single instance is created on first
	// resolution and shared for the lifetime of the container, until Reset.
	// Singleton services must not depend on Scoped services.
	Singleton
)

// String returns the string representation of the Lifetime.
func (l Lifetime) String() string {
	switch l {
	case Transient:
		return "Transient"
	case Scoped:
		return "Scoped"
	case Singleton:
		return "Singleton"
	default:
		return fmt.Sprintf("Unknown(%d)", int(l))
	}
}

// IsValid checks if the lifetime is one of the three defined values.
func (l Lifetime) IsValid() bool {
	return l >= Transient && l <= Singleton
}

// MarshalText implements encoding.TextMarshaler.
func (l Lifetime) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Lifetime) UnmarshalText(text []byte) error {
	switch string(text) {
	case "Transient", "transient":
		*l = Transient
	case "Scoped", "scoped":
		*l = Scoped
	case "Singleton", "singleton":
		*l = Singleton
	default:
		return LifetimeError{Value: string(text)}
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (l Lifetime) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *Lifetime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	return l.UnmarshalText([]byte(s))
}
