package cache

// ScopedKeyer prefixes every key of an inner Keyer, so that several
// deployments can share one Redis without colliding:
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "mathlib:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer wraps inner, or the default keyer when inner is nil.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

func (k *ScopedKeyer) SimplifyKey(graphHash string, opts SimplifyKeyOpts) string {
	return k.prefix + k.inner.SimplifyKey(graphHash, opts)
}

func (k *ScopedKeyer) LayoutKey(graphHash string, opts LayoutKeyOpts) string {
	return k.prefix + k.inner.LayoutKey(graphHash, opts)
}
