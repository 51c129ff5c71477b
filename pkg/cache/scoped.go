package cache

// ScopedKeyer wraps a Keyer with a prefix so different projects get
// separate cache namespaces. The hosted API scopes keys per project;
// the CLI uses the unscoped DefaultKeyer.
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer that prepends prefix to all keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

// WitnessKey generates a prefixed witness set key.
func (k *ScopedKeyer) WitnessKey(setHash string, opts WitnessKeyOpts) string {
	return k.prefix + k.inner.WitnessKey(setHash, opts)
}

// CollationKey generates a prefixed collation key.
func (k *ScopedKeyer) CollationKey(setHash string, opts CollationKeyOpts) string {
	return k.prefix + k.inner.CollationKey(setHash, opts)
}

// StemmaKey generates a prefixed stemma key.
func (k *ScopedKeyer) StemmaKey(collationHash string, opts StemmaKeyOpts) string {
	return k.prefix + k.inner.StemmaKey(collationHash, opts)
}

// ArtifactKey generates a prefixed artifact key.
func (k *ScopedKeyer) ArtifactKey(sourceHash string, opts ArtifactKeyOpts) string {
	return k.prefix + k.inner.ArtifactKey(sourceHash, opts)
}
