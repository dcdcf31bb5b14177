package reader

import "context"

// TagReader reads proximity-card identifiers from a physical reader.
// Read blocks until a card is presented or the context is cancelled and
// returns the card's uid as a fixed-case hex string.
type TagReader interface {
	Read(ctx context.Context) (string, error)
	Close() error
}
