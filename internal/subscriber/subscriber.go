// Package subscriber receives published events from a netgrok endpoint.
package subscriber

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/sub"

	_ "go.nanomsg.org/mangos/v3/transport/inproc"
	_ "go.nanomsg.org/mangos/v3/transport/ipc"
	_ "go.nanomsg.org/mangos/v3/transport/tcp"
)

// DefaultPollInterval bounds how long a receive blocks before the context is
// checked again.
const DefaultPollInterval = 200 * time.Millisecond

// Subscriber dials a PUB endpoint and hands every event to a callback.
type Subscriber struct {
	endpoint string
	poll     time.Duration
	log      zerolog.Logger
}

// Option configures a Subscriber.
type Option func(*Subscriber)

// WithPollInterval sets the receive deadline.
func WithPollInterval(d time.Duration) Option {
	return func(s *Subscriber) {
		if d > 0 {
			s.poll = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Subscriber) {
		s.log = l
	}
}

// New creates a Subscriber for endpoint.
func New(endpoint string, opts ...Option) *Subscriber {
	s := &Subscriber{
		endpoint: endpoint,
		poll:     DefaultPollInterval,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run receives events until ctx is done. The dial is asynchronous, so Run may
// start before the publisher has bound the endpoint. Returning from fn with an
// error stops Run with that error.
func (s *Subscriber) Run(ctx context.Context, fn func(event string) error) error {
	sock, err := sub.NewSocket()
	if err != nil {
		return fmt.Errorf("creating sub socket: %w", err)
	}
	defer sock.Close() //nolint:errcheck // Nothing to do about a failed close on exit

	if err := sock.SetOption(mangos.OptionSubscribe, []byte("")); err != nil {
		return fmt.Errorf("subscribing: %w", err)
	}
	if err := sock.SetOption(mangos.OptionRecvDeadline, s.poll); err != nil {
		return fmt.Errorf("setting receive deadline: %w", err)
	}
	if err := sock.DialOptions(s.endpoint, map[string]interface{}{mangos.OptionDialAsynch: true}); err != nil {
		return fmt.Errorf("dialing %s: %w", s.endpoint, err)
	}
	s.log.Info().Str("endpoint", s.endpoint).Msg("subscribed")

	for {
		if ctx.Err() != nil {
			return nil
		}
		msg, err := sock.Recv()
		if errors.Is(err, mangos.ErrRecvTimeout) {
			continue
		}
		if err != nil {
			return fmt.Errorf("receiving from %s: %w", s.endpoint, err)
		}
		if err := fn(string(msg)); err != nil {
			return err
		}
	}
}

// Subscribe runs a default Subscriber on endpoint.
func Subscribe(ctx context.Context, endpoint string, fn func(event string) error) error {
	return New(endpoint).Run(ctx, fn)
}
