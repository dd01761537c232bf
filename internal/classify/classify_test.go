package classify

import (
	"testing"

	"github.com/netgrok/netgrok/internal/session"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		transport session.Transport
		seen      bool
		want      Protocol
	}{
		{session.TransportEncrypted, true, ProtocolHTTPS},
		{session.TransportPlain, true, ProtocolHTTP},
		{session.TransportUnknown, true, ProtocolHTTP},
		{session.TransportEncrypted, false, ProtocolSSL},
		{session.TransportPlain, false, ProtocolTCP},
		{session.TransportUnknown, false, ProtocolUnknown},
		{session.Transport("quic"), false, ProtocolUnknown},
	}

	for _, tt := range tests {
		name := string(tt.transport) + "/" + map[bool]string{true: "marker", false: "no-marker"}[tt.seen]
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.transport, tt.seen))
		})
	}
}
