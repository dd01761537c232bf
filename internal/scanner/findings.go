package scanner

import (
	"fmt"

	"github.com/netgrok/netgrok/internal/session"
)

// Value is one captured header value.
type Value struct {
	Text string
	Seen bool
}

// Present reports whether the header was seen with a non-empty value.
func (v Value) Present() bool {
	return v.Seen && v.Text != ""
}

// TruncatedField notes a captured value that did not fit its field, or a
// marker that had no value after it. It is never fatal.
type TruncatedField struct {
	Field string
	// Length is the length of the observed value, zero when it was missing.
	Length int
	Kept   int
}

func (t TruncatedField) Error() string {
	if t.Length == 0 {
		return fmt.Sprintf("%s: no value after marker", t.Field)
	}
	return fmt.Sprintf("%s: value of %d bytes truncated to %d", t.Field, t.Length, t.Kept)
}

// Findings is the result of one scan pass.
type Findings struct {
	// TransportSeen is set when a transport header line was found; Transport,
	// Src and Dst then hold what it carried.
	TransportSeen bool
	Transport     session.Transport
	Src           session.Endpoint
	Dst           session.Endpoint

	ApplicationSeen bool
	Host            Value
	Referer         Value

	Truncations []TruncatedField
}

// Context returns the connection context carried by the transport header
// line, or the zero context when there was none.
func (f Findings) Context() session.ConnectionContext {
	if !f.TransportSeen {
		return session.ConnectionContext{}
	}
	return session.ConnectionContext{
		Src:       f.Src,
		Dst:       f.Dst,
		Transport: f.Transport,
	}
}

func (f *Findings) seen(k Kind) bool {
	switch k {
	case KindTransport:
		return f.TransportSeen
	case KindApplication:
		return f.ApplicationSeen
	case KindHost:
		return f.Host.Seen
	case KindReferer:
		return f.Referer.Seen
	default:
		return false
	}
}
