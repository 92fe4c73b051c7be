package backend

import "context"

// Bridge normalizes a synchronous or asynchronous backend into plain
// blocking calls. Callers never need to know which form the backend takes:
// every method suspends until the underlying hook settles, preserving the
// strict ordering the migration runner depends on.
type Bridge struct {
	backend Backend
	async   AsyncBackend
}

// NewBridge wraps a synchronous backend.
func NewBridge(backend Backend) *Bridge {
	return &Bridge{backend: backend}
}

// NewAsyncBridge wraps a deferred-result backend.
func NewAsyncBridge(backend AsyncBackend) *Bridge {
	return &Bridge{async: backend}
}

// Connect opens the backend's connection to target.
func (b *Bridge) Connect(ctx context.Context, target string) error {
	if b.backend != nil {
		return b.backend.Connect(ctx, target)
	}
	return b.await(ctx, b.async.Connect(target))
}

// EnsureVersionStorage creates the backend's version storage if missing.
func (b *Bridge) EnsureVersionStorage(ctx context.Context) error {
	if b.backend != nil {
		return b.backend.EnsureVersionStorage(ctx)
	}
	return b.await(ctx, b.async.EnsureVersionStorage())
}

// ReadVersion returns the backend's current version.
func (b *Bridge) ReadVersion(ctx context.Context) (int, error) {
	if b.backend != nil {
		return b.backend.ReadVersion(ctx)
	}
	select {
	case res := <-b.async.ReadVersion():
		return res.Version, res.Err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// WriteVersion persists version as the backend's current version.
func (b *Bridge) WriteVersion(ctx context.Context, version int) error {
	if b.backend != nil {
		return b.backend.WriteVersion(ctx, version)
	}
	return b.await(ctx, b.async.WriteVersion(version))
}

// ExecuteScript runs a declarative script batch through the backend.
func (b *Bridge) ExecuteScript(ctx context.Context, script string) error {
	if b.backend != nil {
		return b.backend.ExecuteScript(ctx, script)
	}
	return b.await(ctx, b.async.ExecuteScript(script))
}

// Close releases the backend's resources if it supports release at all.
func (b *Bridge) Close(ctx context.Context) error {
	if b.backend != nil {
		if closer, ok := b.backend.(Closer); ok {
			return closer.Close(ctx)
		}
		return nil
	}
	if closer, ok := b.async.(AsyncCloser); ok {
		return b.await(ctx, closer.Close())
	}
	return nil
}

func (b *Bridge) await(ctx context.Context, done <-chan error) error {
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
