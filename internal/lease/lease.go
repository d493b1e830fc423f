// Package lease serializes access to the single image-generation engine.
// Only one job may be between upload and result at a time, across requests
// and, with the Redis implementation, across replicas.
package lease

import (
	"context"
)

// Lease grants exclusive use of the engine. The returned release func must be
// called exactly once; calling it more than once is harmless.
type Lease interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// Local is an in-process lease backed by a one-slot channel.
type Local struct {
	slot chan struct{}
}

// NewLocal returns a lease that allows one holder at a time.
func NewLocal() *Local {
	return &Local{slot: make(chan struct{}, 1)}
}

func (l *Local) Acquire(ctx context.Context) (func(), error) {
	select {
	case l.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	released := false
	return func() {
		if released {
			return
		}
		released = true
		<-l.slot
	}, nil
}
