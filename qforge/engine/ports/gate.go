package engineports

import "context"

// Gate bounds concurrent provider calls across every session in the
// process. Acquire blocks until a slot frees or ctx is done; the returned
// release must be called exactly once.
type Gate interface {
	Acquire(ctx context.Context) (release func(), err error)
}
