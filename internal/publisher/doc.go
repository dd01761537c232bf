// Package publisher owns the broadcast channel events are published on.
//
// A Publisher moves through three states:
//
//	Uninitialized ──first Publish──▶ Bound ──Shutdown──▶ Closed
//
// The transport is bound lazily by the first Publish and reused afterwards.
// A single mutex guards the state, the lazy bind and every send, so concurrent
// first calls bind exactly once. Sends are fire-and-forget: a failed send is
// returned as ErrPublish and never retried. Shutdown is idempotent and safe
// before the first Publish; publishing after it returns ErrChannelClosed.
//
// The default transport is a mangos PUB socket listening on a nanomsg-style
// URL (ipc://, tcp://, inproc://). Hub provides an in-memory transport for
// tests and for embedding the pipeline in-process.
package publisher
