//go:build embed

package nnue

import (
	"bytes"
	_ "embed"
	"fmt"
)

//go:embed default.nnue
var defaultNetwork []byte

// EmbeddedDefault loads the weight file compiled into the binary. The file is
// produced by go generate and must match the variant and topology in opts.
func EmbeddedDefault(opts LoadOptions) (*Network, error) {
	n, err := Load(bytes.NewReader(defaultNetwork), opts)
	if err != nil {
		return nil, fmt.Errorf("embedded network: %w", err)
	}
	return n, nil
}
