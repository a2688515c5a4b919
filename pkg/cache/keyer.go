package cache

// Keyer builds cache keys for rendered outputs. A render key identifies
// one rendering of a resolved graph by the graph's content hash.
type Keyer interface {
	RenderKey(graphHash string, format string) string
}

// DefaultKeyer hashes key inputs into fixed-length keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default Keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

func (DefaultKeyer) RenderKey(graphHash, format string) string {
	return hashKey("render", graphHash, format)
}

// ScopedKeyer prefixes the keys of another keyer, e.g. with the program
// version so that renders of different releases never share entries.
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix. A nil inner keyer uses the
// default.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

func (k *ScopedKeyer) RenderKey(graphHash, format string) string {
	return k.prefix + k.inner.RenderKey(graphHash, format)
}
