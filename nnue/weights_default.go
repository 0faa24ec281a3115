//go:build !embed

package nnue

// EmbeddedDefault returns the built-in network for opts. Without the embed
// build tag the weights are synthesized, which needs no I/O and matches any
// variant and topology.
func EmbeddedDefault(opts LoadOptions) (*Network, error) {
	return Synthesize(DefaultSeed, opts)
}
