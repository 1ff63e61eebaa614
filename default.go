package construct

// defaultContainer is the process-wide default container. It is constructed
// once at package initialization; callers that rely on it in tests should
// call DefaultContainer().Reset() between runs rather than swapping
// containers from arbitrary call sites.
var defaultContainer = New()

// DefaultContainer returns the process-wide default container.
//
// The default container exists for applications that want one registry for
// the whole process without threading a *Container through every call site.
// Libraries should accept an explicit *Container instead.
func DefaultContainer() *Container {
	return defaultContainer
}

// SetDefaultContainer replaces the process-wide default container. This is
// meant for application start-up or test harnesses, not for mutation
// mid-run.
func SetDefaultContainer(c *Container) {
	if c == nil {
		c = New()
	}

	defaultContainer = c
}
