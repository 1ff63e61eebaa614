package construct

import (
	"context"
	"fmt"
	"reflect"
)

// ParamPlan describes how a single parameter of an autowired callable is
// supplied.
type ParamPlan struct {
	// Index is the parameter's position in the callable's signature.
	Index int

	// Type is the parameter's declared type.
	Type reflect.Type

	// Supplied is true when the container resolves this parameter. The
	// remaining fields below are only meaningful when Supplied is true.
	Supplied bool

	// Lifetime is the registered lifetime of the parameter's service.
	Lifetime Lifetime

	// CachePerScope reports the caching policy the injection point should
	// apply: cache within one logical unit for Scoped and Singleton,
	// never cache for Transient.
	CachePerScope bool

	// Receiver is true for a method expression's receiver parameter,
	// which always passes through untouched.
	Receiver bool

	// HasDefault is true when an explicit default covers this parameter.
	// Defaulted parameters are never resolver-supplied.
	HasDefault bool

	// DefaultValue holds the declared default when HasDefault is true.
	DefaultValue any
}

// Plan is the result of autowiring a callable: a per-parameter description
// of which arguments the container supplies and which the caller must
// provide. External integrations consume the plan to build injection points.
type Plan struct {
	container *Container
	fn        reflect.Value
	fnType    reflect.Type

	// Params holds one entry per parameter, in signature order.
	Params []ParamPlan
}

// Autowire inspects a constructor or function and marks every parameter
// whose declared type is registered as supplied by the container.
//
// Two misuse patterns are rejected with diagnostics rather than silently
// producing an unresolvable plan:
//
//   - a parameter typed as a concrete implementation that is registered
//     under an interface key fails with InterfaceMismatchError;
//   - with AsOwner(Singleton), a parameter resolving to a Scoped service
//     fails with CaptiveDependencyError.
//
// Receiver parameters (see [AsMethod]) and parameters covered by a [Default]
// are always passed through untouched.
func (c *Container) Autowire(fn any, opts ...AutowireOption) (*Plan, error) {
	if fn == nil {
		return nil, fmt.Errorf("autowire: %w", ErrNilProvider)
	}

	val := reflect.ValueOf(fn)
	typ := val.Type()

	if typ.Kind() != reflect.Func {
		return nil, fmt.Errorf("autowire: %w, got %s", ErrProviderNotFunc, typ)
	}

	options := autowireOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt.applyAutowireOption(&options)
		}
	}

	params := make([]param, typ.NumIn())
	for i := range params {
		params[i] = param{typ: typ.In(i)}
	}

	for _, dv := range options.defaults {
		for i := range params {
			if params[i].hasDefault {
				continue
			}
			if options.method && i == 0 {
				continue
			}
			if dv.Type().AssignableTo(params[i].typ) {
				params[i].defaultVal = dv
				params[i].hasDefault = true
				break
			}
		}
	}

	owner := Transient
	if options.hasOwner {
		owner = options.owner
	}

	if err := c.checkParams(typ, typ, params, owner, options.method); err != nil {
		return nil, err
	}

	plan := &Plan{
		container: c,
		fn:        val,
		fnType:    typ,
		Params:    make([]ParamPlan, typ.NumIn()),
	}

	for i, p := range params {
		pp := ParamPlan{Index: i, Type: p.typ}

		switch {
		case options.method && i == 0:
			pp.Receiver = true
		case p.hasDefault:
			pp.HasDefault = true
			pp.DefaultValue = p.defaultVal.Interface()
		default:
			if config, ok := c.Config(p.typ); ok {
				pp.Supplied = true
				pp.Lifetime = config.Lifetime
				pp.CachePerScope = config.Lifetime != Transient
			}
		}

		plan.Params[i] = pp
	}

	return plan, nil
}

// Invoke calls the planned function. Container-supplied parameters resolve
// through the started path; receiver and unmanaged parameters are filled
// from supplied, in signature order. Defaults cover their parameters unless
// a supplied value overrides them.
//
// Supplied values are checked against the parameter types before the call,
// and a panic inside the function surfaces as ConstructorInvocationError,
// matching provider invocation during resolution.
func (p *Plan) Invoke(ctx context.Context, supplied ...any) (out []any, err error) {
	args := make([]reflect.Value, len(p.Params))
	next := 0

	take := func() (reflect.Value, bool) {
		if next >= len(supplied) {
			return reflect.Value{}, false
		}
		v := reflect.ValueOf(supplied[next])
		next++
		return v, true
	}

	for i, pp := range p.Params {
		if pp.Supplied {
			instance, err := p.container.ResolveStarted(ctx, pp.Type)
			if err != nil {
				return nil, err
			}
			args[i] = reflect.ValueOf(instance)
			continue
		}

		if v, ok := take(); ok {
			args[i] = v
			continue
		}

		if pp.HasDefault {
			args[i] = reflect.ValueOf(pp.DefaultValue)
			continue
		}

		return nil, UnresolvedDependencyError{Key: p.fnType, Parameter: pp.Type, Index: i}
	}

	for i := range args {
		if !args[i].IsValid() {
			// Untyped nil was supplied; only nilable parameters accept it.
			switch p.Params[i].Type.Kind() {
			case reflect.Pointer, reflect.Interface, reflect.Map,
				reflect.Slice, reflect.Chan, reflect.Func, reflect.UnsafePointer:
				args[i] = reflect.Zero(p.Params[i].Type)
			default:
				return nil, fmt.Errorf("invoke %s: argument %d is nil, but %s is not nilable",
					formatType(p.fnType), i, formatType(p.Params[i].Type))
			}
			continue
		}

		if !args[i].Type().AssignableTo(p.Params[i].Type) {
			return nil, fmt.Errorf("invoke %s: argument %d has type %s, not assignable to %s",
				formatType(p.fnType), i, formatType(args[i].Type()), formatType(p.Params[i].Type))
		}
	}

	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = ConstructorInvocationError{
				Key:         p.fnType,
				Constructor: p.fnType,
				Cause:       fmt.Errorf("panic: %v", r),
			}
		}
	}()

	results := p.fn.Call(args)
	out = make([]any, len(results))
	for i, r := range results {
		out[i] = r.Interface()
	}

	return out, nil
}
