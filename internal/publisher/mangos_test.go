package publisher

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/sub"
)

func TestBindMangos_PublishToSubscriber(t *testing.T) {
	endpoint := fmt.Sprintf("inproc://netgrok-test-%d", time.Now().UnixNano())
	p := New(endpoint)
	t.Cleanup(func() { _ = p.Shutdown() })

	// The first Publish binds the PUB socket; subscribers can dial after it.
	require.NoError(t, p.Publish("warmup"))

	sock, err := sub.NewSocket()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sock.Close() })
	require.NoError(t, sock.SetOption(mangos.OptionSubscribe, []byte("")))
	require.NoError(t, sock.SetOption(mangos.OptionRecvDeadline, 50*time.Millisecond))
	require.NoError(t, sock.Dial(endpoint))

	const event = `{"protocol": "https"}`
	var got []byte
	// PUB drops messages sent before the subscription is in place.
	for i := 0; i < 100 && got == nil; i++ {
		require.NoError(t, p.Publish(event))
		msg, err := sock.Recv()
		if errors.Is(err, mangos.ErrRecvTimeout) {
			continue
		}
		require.NoError(t, err)
		got = msg
	}
	assert.Equal(t, event, string(got))
}

func TestBindMangos_InvalidEndpoint(t *testing.T) {
	p := New("bogus://nowhere")

	err := p.Publish("x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBind))
	assert.Equal(t, StateUninitialized, p.State())
}
