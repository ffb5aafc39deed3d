package cache

// ScopedKeyer wraps a Keyer with a prefix for multi-tenant isolation.
// This is useful when several nodevfs servers, or several registries,
// share one Redis or MongoDB instance.
//
// Example usage:
//
//	// Packages mirrored from a private registry
//	private := NewScopedKeyer(NewDefaultKeyer(), "registry:internal:")
//
//	// Packages from the public registry
//	public := NewDefaultKeyer()
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// PackageKey generates a prefixed package key.
func (k *ScopedKeyer) PackageKey(name, version string) string {
	return k.prefix + k.inner.PackageKey(name, version)
}
