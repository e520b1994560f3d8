package arbor

// Options configures a Task at spawn time -- DATA MODEL's
// `options: { blockParent?, ignoreError?, ignoreChildErrors?,
// resourceScope? }`, plus a Name Arbor supplements (SPEC_FULL §3.1).
type Options struct {
	// Name is the task's display name. Empty means "generate one":
	// "task-<id>" followed by a short UUID fragment (defaultTaskName).
	Name string

	// BlockParent, when true, makes a parent's normal completion wait
	// for this task rather than halt it (SUPERVISION / blockParent).
	BlockParent bool

	// IgnoreError suppresses this task's own error from propagating to
	// its parent.
	IgnoreError bool

	// IgnoreChildErrors suppresses propagation of *this task's
	// children's* errors to this task.
	IgnoreChildErrors bool

	// ResourceScope overrides which Task owns resources acquired via
	// UseResource inside this task's body. Defaults to the task itself.
	ResourceScope *Task

	// ConcurrencyLimit caps how many of this task's own children may be
	// Running at once; 0 means unlimited. A child beyond the limit waits
	// to acquire a slot before its body starts, and releases it once it
	// reaches a terminal state.
	ConcurrencyLimit int
}

// Option mutates Options; functional-options constructors below are
// the idiomatic Go stand-in for the spec's options object literal.
type Option func(*Options)

func resolveOptions(opts []Option) Options {
	var o Options
	for _, apply := range opts {
		apply(&o)
	}
	return o
}

// WithName sets a task's display name.
func WithName(name string) Option {
	return func(o *Options) { o.Name = name }
}

// WithBlockParent sets BlockParent.
func WithBlockParent(block bool) Option {
	return func(o *Options) { o.BlockParent = block }
}

// WithIgnoreError sets IgnoreError.
func WithIgnoreError(ignore bool) Option {
	return func(o *Options) { o.IgnoreError = ignore }
}

// WithIgnoreChildErrors sets IgnoreChildErrors.
func WithIgnoreChildErrors(ignore bool) Option {
	return func(o *Options) { o.IgnoreChildErrors = ignore }
}

// WithResourceScope overrides the task's resource scope.
func WithResourceScope(scope *Task) Option {
	return func(o *Options) { o.ResourceScope = scope }
}

// WithConcurrencyLimit caps how many of this task's children may run
// concurrently.
func WithConcurrencyLimit(n int) Option {
	return func(o *Options) { o.ConcurrencyLimit = n }
}
