package publisher

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// DefaultEndpoint is the local address events are published on.
const DefaultEndpoint = "ipc://netgrok_socket"

var (
	// ErrBind is returned when the transport cannot be bound on first use.
	ErrBind = errors.New("binding publish endpoint")
	// ErrPublish is returned when a send fails.
	ErrPublish = errors.New("publishing event")
	// ErrChannelClosed is returned by Publish after Shutdown.
	ErrChannelClosed = errors.New("publish channel closed")
)

// State is the lifecycle state of a Publisher.
type State int

// Publisher states.
const (
	StateUninitialized State = iota
	StateBound
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateBound:
		return "bound"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Transport sends opaque payloads to every subscriber.
type Transport interface {
	Send(payload []byte) error
	Close() error
}

// Binder creates a Transport bound to endpoint.
type Binder func(endpoint string) (Transport, error)

// Publisher publishes encoded events on a lazily bound transport.
type Publisher struct {
	mu        sync.Mutex
	endpoint  string
	bind      Binder
	transport Transport
	state     State
	sent      uint64
	log       zerolog.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithBinder replaces the mangos transport.
func WithBinder(b Binder) Option {
	return func(p *Publisher) {
		p.bind = b
	}
}

// WithLogger sets the logger used for bind, send and teardown failures.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Publisher) {
		p.log = l
	}
}

// New creates a Publisher for endpoint. Nothing is bound until the first
// Publish. An empty endpoint selects DefaultEndpoint.
func New(endpoint string, opts ...Option) *Publisher {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	p := &Publisher{
		endpoint: endpoint,
		bind:     BindMangos,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Endpoint returns the configured endpoint.
func (p *Publisher) Endpoint() string {
	return p.endpoint
}

// State returns the current lifecycle state.
func (p *Publisher) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Sent returns the number of events handed to the transport.
func (p *Publisher) Sent() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sent
}

// Publish sends one event, binding the transport first if needed.
func (p *Publisher) Publish(event string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case StateClosed:
		return ErrChannelClosed
	case StateUninitialized:
		t, err := p.bind(p.endpoint)
		if err != nil {
			p.log.Error().Err(err).Str("endpoint", p.endpoint).Msg("binding publish endpoint")
			return fmt.Errorf("%w %s: %w", ErrBind, p.endpoint, err)
		}
		p.transport = t
		p.state = StateBound
		p.log.Info().Str("endpoint", p.endpoint).Msg("publish channel bound")
	}

	if err := p.transport.Send([]byte(event)); err != nil {
		p.log.Warn().Err(err).Str("endpoint", p.endpoint).Msg("event dropped")
		return fmt.Errorf("%w: %w", ErrPublish, err)
	}
	p.sent++
	return nil
}

// Shutdown closes the transport. It runs the teardown once; later calls, and
// calls before anything was bound, return nil.
func (p *Publisher) Shutdown() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateClosed {
		return nil
	}
	p.state = StateClosed

	if p.transport == nil {
		return nil
	}
	t := p.transport
	p.transport = nil
	if err := t.Close(); err != nil {
		return fmt.Errorf("closing publish channel %s: %w", p.endpoint, err)
	}
	p.log.Info().Str("endpoint", p.endpoint).Uint64("sent", p.sent).Msg("publish channel closed")
	return nil
}
