// Package cache provides content-addressed caching for pipeline stages.
//
// Collation, stemma inference, and artifact rendering are all pure
// functions of their inputs, so results are cached under keys derived
// from content hashes. Backends include a file cache for CLI usage, a
// Redis cache for the hosted API, and a null cache for tests.
package cache

import (
	"context"
	"time"
)

// Default TTLs per pipeline stage. Tokenized witnesses and collations
// are pure functions of their inputs and could live forever; the TTLs
// just bound cache growth.
const (
	TTLWitness   = 7 * 24 * time.Hour
	TTLCollation = 7 * 24 * time.Hour
	TTLStemma    = 7 * 24 * time.Hour
	TTLArtifact  = 24 * time.Hour
)

// Cache is the storage interface shared by all backends.
type Cache interface {
	// Get retrieves a value. The bool reports whether the key was found.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with a TTL. A zero TTL means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Keyer generates cache keys for pipeline stages. Keys incorporate all
// inputs that affect the stage's output, so a change in any option or
// upstream result produces a different key.
type Keyer interface {
	// WitnessKey keys a tokenized witness set by its normalized content.
	WitnessKey(setHash string, opts WitnessKeyOpts) string

	// CollationKey keys an alignment result.
	CollationKey(setHash string, opts CollationKeyOpts) string

	// StemmaKey keys an inferred stemma.
	StemmaKey(collationHash string, opts StemmaKeyOpts) string

	// ArtifactKey keys a rendered artifact (DOT, SVG, PNG, apparatus).
	ArtifactKey(sourceHash string, opts ArtifactKeyOpts) string
}

// WitnessKeyOpts captures normalization settings that shape tokens.
type WitnessKeyOpts struct {
	CaseFold         bool
	StripPunctuation bool
	RulesHash        string
}

// CollationKeyOpts captures alignment settings that shape the table.
type CollationKeyOpts struct {
	Substitution  float64
	Insertion     float64
	Deletion      float64
	Transposition float64
	TieBreak      string
}

// StemmaKeyOpts captures inference settings that shape the tree.
type StemmaKeyOpts struct {
	Method        string
	Seed          int
	MaxIterations int
}

// ArtifactKeyOpts captures rendering settings that shape the output.
type ArtifactKeyOpts struct {
	Format   string
	Detailed bool
}

// DefaultKeyer generates hash-based cache keys.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{}
}

// WitnessKey generates a key for witness set caching.
func (k *DefaultKeyer) WitnessKey(setHash string, opts WitnessKeyOpts) string {
	return hashKey("witness", setHash, opts)
}

// CollationKey generates a key for collation result caching.
func (k *DefaultKeyer) CollationKey(setHash string, opts CollationKeyOpts) string {
	return hashKey("collation", setHash, opts)
}

// StemmaKey generates a key for stemma caching.
func (k *DefaultKeyer) StemmaKey(collationHash string, opts StemmaKeyOpts) string {
	return hashKey("stemma", collationHash, opts)
}

// ArtifactKey generates a key for rendered artifact caching.
func (k *DefaultKeyer) ArtifactKey(sourceHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", sourceHash, opts)
}

// Ensure DefaultKeyer implements Keyer.
var _ Keyer = (*DefaultKeyer)(nil)
