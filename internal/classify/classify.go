// Package classify derives the application-layer protocol label of a session.
package classify

import "github.com/netgrok/netgrok/internal/session"

// Protocol is the label published in the protocol field of an event.
type Protocol string

// Labels.
const (
	ProtocolHTTP    Protocol = "http"
	ProtocolHTTPS   Protocol = "https"
	ProtocolTCP     Protocol = "tcp"
	ProtocolSSL     Protocol = "ssl"
	ProtocolUnknown Protocol = "unknown"
)

// Classify returns the label for a transport hint and whether an HTTP
// request or status line was seen. It is total over its inputs.
func Classify(transport session.Transport, applicationSeen bool) Protocol {
	if applicationSeen {
		if transport.Encrypted() {
			return ProtocolHTTPS
		}
		return ProtocolHTTP
	}

	switch transport {
	case session.TransportEncrypted:
		return ProtocolSSL
	case session.TransportPlain:
		return ProtocolTCP
	default:
		return ProtocolUnknown
	}
}
