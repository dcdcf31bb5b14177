package reader

import "context"

// Stub is a TagReader fed programmatically, for development boxes with
// no reader hardware attached.
type Stub struct {
	uids chan string
}

// NewStub creates a stub reader.
func NewStub() *Stub {
	return &Stub{uids: make(chan string, 16)}
}

// Inject queues a uid for the next Read call.
func (s *Stub) Inject(uid string) {
	s.uids <- uid
}

// Read implements TagReader.Read.
func (s *Stub) Read(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case uid := <-s.uids:
		return uid, nil
	}
}

// Close implements TagReader.Close.
func (s *Stub) Close() error {
	return nil
}
