package scanner

import (
	"bytes"

	"github.com/netgrok/netgrok/internal/session"
)

// Kind identifies what a marker finds. Markers sharing a kind are alternatives:
// once one of them matched, the others are ignored for the rest of the scan.
type Kind int

// Marker kinds.
const (
	KindTransport Kind = iota
	KindApplication
	KindHost
	KindReferer
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindApplication:
		return "application"
	case KindHost:
		return "host"
	case KindReferer:
		return "referer"
	default:
		return "unknown"
	}
}

// Wildcard is the trailing character that turns a marker into a prefix match.
const Wildcard = '*'

// Marker is one recognized header token.
type Marker struct {
	Literal string
	Kind    Kind
	// Transport is the hint a transport marker stands for.
	Transport session.Transport
	// AnyPosition lets the marker match tokens after the first one on a line.
	AnyPosition bool
}

// DefaultMarkers returns the marker table used by New.
func DefaultMarkers() []Marker {
	return []Marker{
		{Literal: "ssl", Kind: KindTransport, Transport: session.TransportEncrypted},
		{Literal: "tcp", Kind: KindTransport, Transport: session.TransportPlain},
		{Literal: "http*", Kind: KindApplication, AnyPosition: true},
		{Literal: "host:", Kind: KindHost},
		{Literal: "referer:", Kind: KindReferer},
	}
}

// Match reports whether token matches the marker, ignoring ASCII case.
func (m Marker) Match(token []byte) bool {
	lit := m.Literal
	if n := len(lit); n > 0 && lit[n-1] == Wildcard {
		prefix := lit[:n-1]
		return len(token) >= len(prefix) && bytes.EqualFold(token[:len(prefix)], []byte(prefix))
	}
	return len(token) == len(lit) && bytes.EqualFold(token, []byte(lit))
}
