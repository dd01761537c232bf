package publisher

import (
	"fmt"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/pub"

	// Register the transports accepted in endpoint URLs.
	_ "go.nanomsg.org/mangos/v3/transport/inproc"
	_ "go.nanomsg.org/mangos/v3/transport/ipc"
	_ "go.nanomsg.org/mangos/v3/transport/tcp"
)

type mangosTransport struct {
	sock mangos.Socket
}

// BindMangos opens a PUB socket listening on endpoint. Sends never block:
// subscribers that cannot keep up miss messages.
func BindMangos(endpoint string) (Transport, error) {
	sock, err := pub.NewSocket()
	if err != nil {
		return nil, fmt.Errorf("creating pub socket: %w", err)
	}
	if err := sock.Listen(endpoint); err != nil {
		_ = sock.Close() //nolint:errcheck // Best-effort cleanup in error path
		return nil, fmt.Errorf("listening on %s: %w", endpoint, err)
	}
	return &mangosTransport{sock: sock}, nil
}

func (t *mangosTransport) Send(payload []byte) error {
	return t.sock.Send(payload)
}

func (t *mangosTransport) Close() error {
	return t.sock.Close()
}
