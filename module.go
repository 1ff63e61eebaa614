package construct

// ModuleOption represents a registration action within a module.
type ModuleOption func(*Container) error

// NewModule groups related registrations under a name. Failures are wrapped
// in a ModuleError naming the module.
//
//	var StorageModule = construct.NewModule("storage",
//	    construct.ProvideSingleton[IDatabase](NewDatabase),
//	    construct.ProvideScoped[IRepo](NewRepo),
//	)
//
//	err := c.Apply(StorageModule)
func NewModule(name string, builders ...ModuleOption) ModuleOption {
	return func(c *Container) error {
		for _, builder := range builders {
			if builder == nil {
				continue
			}

			if err := builder(c); err != nil {
				return ModuleError{Module: name, Cause: err}
			}
		}

		return nil
	}
}

// ProvideTransient creates a ModuleOption registering a transient provider.
func ProvideTransient[T any](provider any, opts ...RegisterOption) ModuleOption {
	return func(c *Container) error {
		return AddTransient[T](c, provider, opts...)
	}
}

// ProvideScoped creates a ModuleOption registering a scoped provider.
func ProvideScoped[T any](provider any, opts ...RegisterOption) ModuleOption {
	return func(c *Container) error {
		return AddScoped[T](c, provider, opts...)
	}
}

// ProvideSingleton creates a ModuleOption registering a singleton provider.
func ProvideSingleton[T any](provider any, opts ...RegisterOption) ModuleOption {
	return func(c *Container) error {
		return AddSingleton[T](c, provider, opts...)
	}
}
