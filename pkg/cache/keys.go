package cache

// Key type labels, reported to observability hooks.
const (
	KeyTypeSimplify = "simplify"
	KeyTypeLayout   = "layout"
)

// Keyer derives cache keys. Keys must change whenever an option that
// affects the cached value changes.
type Keyer interface {
	SimplifyKey(graphHash string, opts SimplifyKeyOpts) string
	LayoutKey(graphHash string, opts LayoutKeyOpts) string
}

// SimplifyKeyOpts lists the options that change simplification output.
type SimplifyKeyOpts struct {
	HideTechnical       bool
	TransitiveReduction bool
	HideOrphaned        bool
	BreakCycles         bool
}

// LayoutKeyOpts lists the options that change a solved layout.
// ConfigHash covers physics and solver settings.
type LayoutKeyOpts struct {
	Seed       uint64
	ConfigHash string
	// PositionsHash covers saved positions the layout was seeded with.
	PositionsHash string
}

// DefaultKeyer produces keys of the form "<type>:<sha256>".
type DefaultKeyer struct{}

// NewDefaultKeyer creates the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// SimplifyKey generates a key for a simplified graph.
func (DefaultKeyer) SimplifyKey(graphHash string, opts SimplifyKeyOpts) string {
	return hashKey(KeyTypeSimplify, graphHash, opts)
}

// LayoutKey generates a key for a solved layout.
func (DefaultKeyer) LayoutKey(graphHash string, opts LayoutKeyOpts) string {
	return hashKey(KeyTypeLayout, graphHash, opts)
}
