package install

import "github.com/charmbracelet/log"

// Default limits.
const (
	DefaultMaxDepth    = 10
	DefaultConcurrency = 6
)

// Options configures an Installer.
type Options struct {
	// MaxDepth is the deepest dependency level that is fetched. Roots are
	// at depth 0.
	MaxDepth int

	// Concurrency is the number of packages resolved or fetched at once.
	Concurrency int

	// Logger receives per-package warnings and session summaries.
	Logger *log.Logger
}

// WithDefaults returns a copy of o with zero values replaced by defaults.
func (o Options) WithDefaults() Options {
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	return o
}
