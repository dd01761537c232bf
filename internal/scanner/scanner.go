package scanner

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrMalformedBuffer is returned when the session bytes cannot be read.
var ErrMalformedBuffer = errors.New("malformed buffer")

// Default field limits. A limit counts the terminator of the original
// fixed-size fields, so at most limit-1 bytes of a value are kept.
const (
	DefaultHostMaxLen    = 256
	DefaultRefererMaxLen = 2048
	DefaultLineMaxLen    = 4096
)

// minLineMaxLen is the smallest buffer bufio accepts.
const minLineMaxLen = 16

// Limits bounds the captured values.
type Limits struct {
	HostMaxLen    int
	RefererMaxLen int
	LineMaxLen    int
}

// DefaultLimits returns the limits used by New.
func DefaultLimits() Limits {
	return Limits{
		HostMaxLen:    DefaultHostMaxLen,
		RefererMaxLen: DefaultRefererMaxLen,
		LineMaxLen:    DefaultLineMaxLen,
	}
}

// Scanner matches session bytes against a fixed marker table.
// It holds no per-scan state and is safe for concurrent use.
type Scanner struct {
	markers []Marker
	limits  Limits
	kinds   map[Kind]bool
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithMarkers replaces the marker table.
func WithMarkers(markers []Marker) Option {
	return func(s *Scanner) {
		s.markers = append([]Marker(nil), markers...)
	}
}

// WithLimits replaces the field limits. Non-positive values keep the default.
func WithLimits(l Limits) Option {
	return func(s *Scanner) {
		if l.HostMaxLen > 0 {
			s.limits.HostMaxLen = l.HostMaxLen
		}
		if l.RefererMaxLen > 0 {
			s.limits.RefererMaxLen = l.RefererMaxLen
		}
		if l.LineMaxLen > 0 {
			s.limits.LineMaxLen = l.LineMaxLen
		}
	}
}

// New creates a Scanner with the default marker table and limits.
func New(opts ...Option) *Scanner {
	s := &Scanner{
		markers: DefaultMarkers(),
		limits:  DefaultLimits(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.limits.LineMaxLen < minLineMaxLen {
		s.limits.LineMaxLen = minLineMaxLen
	}

	s.kinds = make(map[Kind]bool, len(s.markers))
	for _, m := range s.markers {
		s.kinds[m.Kind] = true
	}
	return s
}

// Limits returns the limits in effect.
func (s *Scanner) Limits() Limits {
	return s.limits
}

// Scan extracts findings from buf. buf is not retained.
func (s *Scanner) Scan(buf []byte) (Findings, error) {
	return s.ScanReader(bytes.NewReader(buf))
}

// ScanReader extracts findings from r, reading no further than needed.
// A read error wraps ErrMalformedBuffer and no findings are returned.
func (s *Scanner) ScanReader(r io.Reader) (Findings, error) {
	var f Findings
	br := bufio.NewReaderSize(r, s.limits.LineMaxLen)

	for !s.complete(&f) {
		line, dropped, err := readLine(br)
		if err != nil && !errors.Is(err, io.EOF) {
			return Findings{}, fmt.Errorf("%w: %v", ErrMalformedBuffer, err)
		}

		line = bytes.TrimRight(line, "\r\n")
		if len(line) == 0 || !printable(line[0]) {
			// End of the header region, or binary content.
			break
		}
		s.scanLine(&f, line, dropped)

		if err != nil {
			break
		}
	}

	return f, nil
}

func (s *Scanner) complete(f *Findings) bool {
	for k := range s.kinds {
		if !f.seen(k) {
			return false
		}
	}
	return true
}

// scanLine matches one line. dropped is the number of bytes cut from the end
// of the line by the line limit.
func (s *Scanner) scanLine(f *Findings, line []byte, dropped int) {
	start, end := nextToken(line, 0)
	if start == end {
		return
	}

	// A line led by a marker belongs to that marker even when its kind is
	// already seen; repeated headers never reach the later-token pass.
	matched := false
	for _, m := range s.markers {
		if !m.Match(line[start:end]) {
			continue
		}
		matched = true
		if !f.seen(m.Kind) {
			s.capture(f, m, restOfLine(line, end), dropped)
			return
		}
	}
	if matched {
		return
	}

	// The application marker is usually not the first token of a request
	// line. Give the remaining tokens one pass against it.
	for pos := end; pos < len(line); {
		start, end = nextToken(line, pos)
		if start == end {
			return
		}
		for _, m := range s.markers {
			if !m.AnyPosition || f.seen(m.Kind) || !m.Match(line[start:end]) {
				continue
			}
			s.capture(f, m, restOfLine(line, end), dropped)
			return
		}
		pos = end
	}
}

func (s *Scanner) capture(f *Findings, m Marker, rest []byte, dropped int) {
	switch m.Kind {
	case KindTransport:
		f.TransportSeen = true
		f.Transport = m.Transport
		fields := strings.Fields(string(rest))
		for i, dst := range []*string{&f.Src.Addr, &f.Src.Port, &f.Dst.Addr, &f.Dst.Port} {
			if i < len(fields) {
				*dst = fields[i]
			}
		}
	case KindApplication:
		f.ApplicationSeen = true
	case KindHost:
		f.Host = s.value(f, "host", rest, dropped, s.limits.HostMaxLen)
	case KindReferer:
		f.Referer = s.value(f, "referer", rest, dropped, s.limits.RefererMaxLen)
	}
}

func (s *Scanner) value(f *Findings, field string, rest []byte, dropped, maxLen int) Value {
	if len(rest) == 0 && dropped == 0 {
		f.Truncations = append(f.Truncations, TruncatedField{Field: field})
		return Value{Seen: true}
	}
	full := len(rest) + dropped
	if keep := maxLen - 1; keep >= 0 && len(rest) > keep {
		rest = rest[:keep]
	}
	if full > len(rest) {
		f.Truncations = append(f.Truncations, TruncatedField{Field: field, Length: full, Kept: len(rest)})
	}
	return Value{Text: string(rest), Seen: true}
}

// readLine returns the next line including its terminator. Lines longer than
// the reader's buffer are cut to the buffer size; the remainder is discarded
// and its length, without the terminator, returned as dropped.
func readLine(br *bufio.Reader) (line []byte, dropped int, err error) {
	line, err = br.ReadSlice('\n')
	if !errors.Is(err, bufio.ErrBufferFull) {
		return line, 0, err
	}

	head := append([]byte(nil), line...)
	for errors.Is(err, bufio.ErrBufferFull) {
		var chunk []byte
		chunk, err = br.ReadSlice('\n')
		if !errors.Is(err, bufio.ErrBufferFull) {
			chunk = bytes.TrimRight(chunk, "\r\n")
		}
		dropped += len(chunk)
	}
	return head, dropped, err
}

// nextToken returns the bounds of the first token at or after pos.
// start == end means there is none.
func nextToken(line []byte, pos int) (int, int) {
	start := pos
	for start < len(line) && isSpace(line[start]) {
		start++
	}
	end := start
	for end < len(line) && !isSpace(line[end]) {
		end++
	}
	return start, end
}

// restOfLine returns everything after the token ending at end, without the
// whitespace separating it from the token.
func restOfLine(line []byte, end int) []byte {
	for end < len(line) && isSpace(line[end]) {
		end++
	}
	return line[end:]
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t'
}

func printable(c byte) bool {
	return c >= 0x20 && c <= 0x7e
}

var defaultScanner = New()

// Scan extracts findings from buf with the default markers and limits.
func Scan(buf []byte) (Findings, error) {
	return defaultScanner.Scan(buf)
}
