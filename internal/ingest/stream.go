package ingest

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/netgrok/netgrok/internal/scanner"
	"github.com/netgrok/netgrok/internal/session"
	"github.com/rs/zerolog"
)

// DefaultMaxSessionBytes is the default cap on the bytes kept per session.
const DefaultMaxSessionBytes = 64 * 1024

// endOfHeaders closes a session early.
var endOfHeaders = []byte("</headers>")

// Stats counts what a Stream did.
type Stats struct {
	Sessions int
	Failed   int
	Skipped  int64 // bytes outside any session
}

// Stream reads a content log and hands each session to a handler.
type Stream struct {
	handler  session.Handler
	maxBytes int
	markers  []scanner.Marker
	log      zerolog.Logger
}

// Option configures a Stream.
type Option func(*Stream)

// WithMaxSessionBytes caps the bytes kept per session. Bytes beyond the cap
// are still counted.
func WithMaxSessionBytes(n int) Option {
	return func(s *Stream) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Stream) {
		s.log = l
	}
}

// New creates a Stream dispatching sessions to handler.
func New(handler session.Handler, opts ...Option) *Stream {
	s := &Stream{
		handler:  handler,
		maxBytes: DefaultMaxSessionBytes,
		log:      zerolog.Nop(),
	}
	for _, m := range scanner.DefaultMarkers() {
		if m.Kind == scanner.KindTransport {
			s.markers = append(s.markers, m)
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// pending is the session being accumulated.
type pending struct {
	buf   []byte
	bytes int64
}

// Run reads r until EOF or until ctx is cancelled. The session in progress is
// dispatched in both cases. Handler errors are logged and counted; only a
// read error stops Run early.
func (s *Stream) Run(ctx context.Context, r io.Reader) (Stats, error) {
	var stats Stats
	var cur *pending

	flush := func() {
		if cur == nil {
			return
		}
		stats.Sessions++
		cc := session.ConnectionContext{Bytes: cur.bytes}
		if err := s.handler.HandleSession(ctx, cc, cur.buf); err != nil {
			stats.Failed++
			s.log.Warn().Err(err).Int("session", stats.Sessions).Msg("session dropped")
		}
		cur = nil
	}

	lines, errc := readLines(ctx, r)
	for {
		select {
		case <-ctx.Done():
			flush()
			return stats, nil
		case line, ok := <-lines:
			if !ok {
				flush()
				if err := <-errc; err != nil {
					return stats, fmt.Errorf("reading content log: %w", err)
				}
				return stats, nil
			}

			trimmed := bytes.TrimSpace(line)
			switch {
			case s.isHeader(trimmed):
				flush()
				cur = &pending{}
				cur.buf = append(cur.buf, line...)
			case bytes.EqualFold(trimmed, endOfHeaders):
				flush()
			case cur == nil:
				stats.Skipped += int64(len(line))
			default:
				cur.bytes += int64(len(line))
				if room := s.maxBytes - len(cur.buf); room > 0 {
					if len(line) > room {
						line = line[:room]
					}
					cur.buf = append(cur.buf, line...)
				}
			}
		}
	}
}

// isHeader reports whether line is a transport header carrying all four
// endpoint tokens.
func (s *Stream) isHeader(line []byte) bool {
	fields := bytes.Fields(line)
	if len(fields) < 5 {
		return false
	}
	for _, m := range s.markers {
		if m.Match(fields[0]) {
			return true
		}
	}
	return false
}

// readLines reads r in a goroutine so Run can return on cancellation while a
// read is blocked. Each line keeps its terminator. The error channel yields
// the read error, or nil at EOF, after lines is closed.
func readLines(ctx context.Context, r io.Reader) (<-chan []byte, <-chan error) {
	lines := make(chan []byte)
	errc := make(chan error, 1)

	go func() {
		defer close(errc)
		defer close(lines)

		br := bufio.NewReader(r)
		for {
			line, err := br.ReadBytes('\n')
			if len(line) > 0 {
				select {
				case lines <- line:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					errc <- err
				}
				return
			}
		}
	}()

	return lines, errc
}
