// Package lock serializes expensive per-project work such as AI generation.
package lock

import "context"

// Release frees a held lock. Calling it more than once is harmless.
type Release func()

// Locker grants exclusive access to a key, waiting until it is free or ctx ends.
type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}
