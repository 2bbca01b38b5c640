// Package cart persists raw cart documents per cart profile. Decoding and
// merging live in the cart service; storage only moves bytes.
package cart

import (
	"context"
)

// Storage reads and writes the persisted document of one cart profile.
type Storage interface {
	// Read returns nil, nil when the cart has never been written.
	Read(ctx context.Context, cartID string) ([]byte, error)
	Write(ctx context.Context, cartID string, raw []byte) error
}
