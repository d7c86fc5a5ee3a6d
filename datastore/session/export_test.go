package session

import "context"

// Release exposes the cleanup step of Run to the external tests.
func (b *Binder) Release(ctx context.Context, conn Execer, onFailure func(ctx context.Context)) error {
	return b.release(ctx, conn, onFailure)
}
