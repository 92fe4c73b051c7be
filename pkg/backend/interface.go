// Package backend defines the backend adapter interfaces used to route
// version storage and SQL execution to a pluggable storage engine.
package backend

import "context"

// Backend is the hook set a storage engine must provide so the migration
// runner can track versions and execute declarative scripts against it.
// The built-in SQLite engine ships an implementation; applications may
// supply their own to target other databases.
type Backend interface {
	// Connect establishes a connection to the target database.
	Connect(ctx context.Context, target string) error

	// EnsureVersionStorage creates the version bookkeeping storage if it
	// does not exist yet. A backend decides what "no version yet" means;
	// typically a fresh store reads back as version 0 afterwards.
	EnsureVersionStorage(ctx context.Context) error

	// ReadVersion returns the current database version.
	ReadVersion(ctx context.Context) (int, error)

	// WriteVersion persists v as the new current version.
	WriteVersion(ctx context.Context, version int) error

	// ExecuteScript executes a declarative script batch as a single unit.
	ExecuteScript(ctx context.Context, script string) error
}

// Closer is optionally implemented by backends that hold releasable
// resources such as connection pools.
type Closer interface {
	Close(ctx context.Context) error
}

// VersionResult carries the settled outcome of an asynchronous ReadVersion.
type VersionResult struct {
	Version int
	Err     error
}

// AsyncBackend is the deferred-result form of Backend. Each hook returns a
// channel that delivers exactly one value when the operation settles. The
// bridge awaits every hook before issuing the next, so implementations never
// observe overlapping calls.
type AsyncBackend interface {
	Connect(target string) <-chan error
	EnsureVersionStorage() <-chan error
	ReadVersion() <-chan VersionResult
	WriteVersion(version int) <-chan error
	ExecuteScript(script string) <-chan error
}

// AsyncCloser is optionally implemented by asynchronous backends.
type AsyncCloser interface {
	Close() <-chan error
}
