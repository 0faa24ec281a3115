//go:build !linux

package memory

import "fmt"

func allocLargePages(size int) (data []byte, release, freeze func() error, err error) {
	return nil, nil, nil, fmt.Errorf("%w: large pages not supported on this platform", ErrAllocationFailed)
}
