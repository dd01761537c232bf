// Package capture replays pcap files through the pipeline.
//
// TCP streams are reassembled per direction. Every direction that carried
// payload becomes one session whose context comes from the flow endpoints.
// The transport hint is "ssl" when the payload starts with a TLS handshake
// record and "tcp" otherwise; the capture time is the time of the first
// reassembled segment.
package capture

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/google/gopacket/tcpassembly"
	"github.com/netgrok/netgrok/internal/session"
	"github.com/rs/zerolog"
)

// DefaultMaxSessionBytes is the default cap on the payload kept per stream.
const DefaultMaxSessionBytes = 64 * 1024

// Stats counts what a replay did.
type Stats struct {
	Packets  int
	Sessions int
	Failed   int
}

// Replayer feeds reassembled TCP streams to a session handler.
type Replayer struct {
	handler  session.Handler
	maxBytes int
	log      zerolog.Logger

	// Set for the duration of Replay; tcpassembly streams have no context.
	ctx   context.Context
	stats Stats
}

// Option configures a Replayer.
type Option func(*Replayer)

// WithMaxSessionBytes caps the payload kept per stream direction.
func WithMaxSessionBytes(n int) Option {
	return func(r *Replayer) {
		if n > 0 {
			r.maxBytes = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Replayer) {
		r.log = l
	}
}

// New creates a Replayer dispatching sessions to handler.
func New(handler session.Handler, opts ...Option) *Replayer {
	r := &Replayer{
		handler:  handler,
		maxBytes: DefaultMaxSessionBytes,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Replay reads a pcap stream from src until EOF or cancellation. Streams
// still open at the end are flushed. A Replayer must not run two replays at
// once.
func (r *Replayer) Replay(ctx context.Context, src io.Reader) (Stats, error) {
	pr, err := pcapgo.NewReader(src)
	if err != nil {
		return Stats{}, fmt.Errorf("opening pcap: %w", err)
	}

	r.ctx = ctx
	r.stats = Stats{}
	defer func() { r.ctx = nil }()

	assembler := tcpassembly.NewAssembler(tcpassembly.NewStreamPool(&streamFactory{replayer: r}))
	packets := gopacket.NewPacketSource(pr, pr.LinkType())

	for ctx.Err() == nil {
		packet, err := packets.NextPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			r.log.Debug().Err(err).Msg("skipping undecodable packet")
			continue
		}
		r.stats.Packets++

		tcp, ok := packet.Layer(layers.LayerTypeTCP).(*layers.TCP)
		if !ok || packet.NetworkLayer() == nil {
			continue
		}
		assembler.AssembleWithTimestamp(packet.NetworkLayer().NetworkFlow(), tcp, packet.Metadata().Timestamp)
	}

	assembler.FlushAll()
	return r.stats, nil
}

func (r *Replayer) emit(cc session.ConnectionContext, buf []byte) {
	r.stats.Sessions++
	if err := r.handler.HandleSession(r.ctx, cc, buf); err != nil {
		r.stats.Failed++
		r.log.Warn().Err(err).Str("src", cc.Src.String()).Str("dst", cc.Dst.String()).Msg("session dropped")
	}
}

type streamFactory struct {
	replayer *Replayer
}

func (f *streamFactory) New(netFlow, tcpFlow gopacket.Flow) tcpassembly.Stream {
	return &stream{
		replayer: f.replayer,
		cc: session.ConnectionContext{
			Src: session.Endpoint{Addr: addr(netFlow.Src()), Port: port(tcpFlow.Src())},
			Dst: session.Endpoint{Addr: addr(netFlow.Dst()), Port: port(tcpFlow.Dst())},
		},
	}
}

// stream accumulates one direction of a TCP connection.
type stream struct {
	replayer *Replayer
	cc       session.ConnectionContext
	buf      []byte
}

func (s *stream) Reassembled(reassemblies []tcpassembly.Reassembly) {
	for _, ra := range reassemblies {
		if len(ra.Bytes) == 0 {
			continue
		}
		if s.cc.ObservedAt.IsZero() {
			s.cc.ObservedAt = ra.Seen
		}
		s.cc.Bytes += int64(len(ra.Bytes))

		// ra.Bytes is reused by the assembler after we return.
		if room := s.replayer.maxBytes - len(s.buf); room > 0 {
			data := ra.Bytes
			if len(data) > room {
				data = data[:room]
			}
			s.buf = append(s.buf, data...)
		}
	}
}

func (s *stream) ReassemblyComplete() {
	if s.cc.Bytes == 0 {
		return
	}
	s.cc.Transport = hint(s.buf)
	s.replayer.emit(s.cc, s.buf)
}

// hint guesses the transport from the first payload bytes: a TLS handshake
// record starts with content type 0x16 and major version 3.
func hint(payload []byte) session.Transport {
	if len(payload) >= 3 && payload[0] == 0x16 && payload[1] == 0x03 {
		return session.TransportEncrypted
	}
	return session.TransportPlain
}

func addr(e gopacket.Endpoint) string {
	return net.IP(e.Raw()).String()
}

func port(e gopacket.Endpoint) string {
	raw := e.Raw()
	if len(raw) != 2 {
		return ""
	}
	return strconv.Itoa(int(binary.BigEndian.Uint16(raw)))
}
