package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMissingContext is returned when a required connection field is absent.
var ErrMissingContext = errors.New("missing connection context")

// Transport is the transport-protocol hint supplied by the host.
type Transport string

// Known transport hints. The values match the markers written by the
// interception proxy at the start of a session.
const (
	TransportUnknown   Transport = ""
	TransportPlain     Transport = "tcp"
	TransportEncrypted Transport = "ssl"
)

// ParseTransport maps a hint string to a Transport, case-insensitively.
// Unrecognized hints map to TransportUnknown.
func ParseTransport(s string) Transport {
	switch Transport(strings.ToLower(s)) {
	case TransportPlain:
		return TransportPlain
	case TransportEncrypted:
		return TransportEncrypted
	default:
		return TransportUnknown
	}
}

// Known reports whether t is one of the recognized hints.
func (t Transport) Known() bool {
	return t == TransportPlain || t == TransportEncrypted
}

// Encrypted reports whether the session is carried over TLS.
func (t Transport) Encrypted() bool {
	return t == TransportEncrypted
}

// Endpoint is one side of a session.
type Endpoint struct {
	Addr string
	Port string
}

func (e Endpoint) String() string {
	return e.Addr + ":" + e.Port
}

// ConnectionContext describes a session as observed by the host.
type ConnectionContext struct {
	Src       Endpoint
	Dst       Endpoint
	Transport Transport
	Bytes     int64
	// ObservedAt is the capture time when the host knows it (replayed
	// captures). Zero means "now".
	ObservedAt time.Time
}

// Merge returns c with every absent field filled from other.
// Fields already present in c always win.
func (c ConnectionContext) Merge(other ConnectionContext) ConnectionContext {
	if c.Src.Addr == "" {
		c.Src.Addr = other.Src.Addr
	}
	if c.Src.Port == "" {
		c.Src.Port = other.Src.Port
	}
	if c.Dst.Addr == "" {
		c.Dst.Addr = other.Dst.Addr
	}
	if c.Dst.Port == "" {
		c.Dst.Port = other.Dst.Port
	}
	if !c.Transport.Known() {
		c.Transport = other.Transport
	}
	if c.Bytes == 0 {
		c.Bytes = other.Bytes
	}
	if c.ObservedAt.IsZero() {
		c.ObservedAt = other.ObservedAt
	}
	return c
}

// Validate checks that both endpoints are fully populated.
// The returned error wraps ErrMissingContext and names the first absent field.
func (c ConnectionContext) Validate() error {
	switch {
	case c.Src.Addr == "":
		return fmt.Errorf("%w: source address", ErrMissingContext)
	case c.Src.Port == "":
		return fmt.Errorf("%w: source port", ErrMissingContext)
	case c.Dst.Addr == "":
		return fmt.Errorf("%w: destination address", ErrMissingContext)
	case c.Dst.Port == "":
		return fmt.Errorf("%w: destination port", ErrMissingContext)
	}
	return nil
}

// Handler consumes one session at a time.
type Handler interface {
	HandleSession(ctx context.Context, cc ConnectionContext, buf []byte) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, cc ConnectionContext, buf []byte) error

// HandleSession calls f.
func (f HandlerFunc) HandleSession(ctx context.Context, cc ConnectionContext, buf []byte) error {
	return f(ctx, cc, buf)
}
