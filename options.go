package construct

import "reflect"

// A RegisterOption modifies the behavior of Register and the Add helpers.
type RegisterOption interface {
	applyRegisterOption(*registerOptions)
}

type registerOptions struct {
	defaults []reflect.Value
}

// An AutowireOption modifies the behavior of Container.Autowire.
type AutowireOption interface {
	applyAutowireOption(*autowireOptions)
}

type autowireOptions struct {
	owner    Lifetime
	hasOwner bool
	method   bool
	defaults []reflect.Value
}

// Default supplies a value for a provider parameter that is not registered
// in the container. Values bind to parameters by assignability, in
// declaration order:
//
//	c.Register(construct.For[IRepo](), NewFileRepo, construct.Scoped,
//	    construct.Default("/var/data/repo.db"))
//
// A parameter covered by a default is never autowired, even if its type is
// registered.
func Default(value any) interface {
	RegisterOption
	AutowireOption
} {
	return defaultOption{value: reflect.ValueOf(value)}
}

type defaultOption struct {
	value reflect.Value
}

func (o defaultOption) applyRegisterOption(opts *registerOptions) {
	opts.defaults = append(opts.defaults, o.value)
}

func (o defaultOption) applyAutowireOption(opts *autowireOptions) {
	opts.defaults = append(opts.defaults, o.value)
}

// AsOwner declares the lifetime of the service that owns the callable being
// autowired, enabling the captive-dependency diagnostic.
func AsOwner(lifetime Lifetime) AutowireOption {
	return ownerOption(lifetime)
}

type ownerOption Lifetime

func (o ownerOption) applyAutowireOption(opts *autowireOptions) {
	opts.owner = Lifetime(o)
	opts.hasOwner = true
}

// AsMethod marks the callable as a method expression: its first parameter is
// the receiver and always passes through untouched.
func AsMethod() AutowireOption {
	return methodOption{}
}

type methodOption struct{}

func (methodOption) applyAutowireOption(opts *autowireOptions) {
	opts.method = true
}
