// Package session holds the connection context the host interception process
// supplies with every session buffer, and the Handler interface that adapters
// (content-log ingestion, capture replay) use to hand sessions to the pipeline.
//
// A ConnectionContext is read-only to the core. Absent fields are reported as
// ErrMissingContext by whoever needs them; they are never written out empty.
package session
