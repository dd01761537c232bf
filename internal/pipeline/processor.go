package pipeline

import (
	"context"
	"fmt"

	"github.com/netgrok/netgrok/internal/classify"
	"github.com/netgrok/netgrok/internal/encoder"
	"github.com/netgrok/netgrok/internal/filter"
	"github.com/netgrok/netgrok/internal/record"
	"github.com/netgrok/netgrok/internal/scanner"
	"github.com/netgrok/netgrok/internal/session"
	"github.com/netgrok/netgrok/internal/timesync"
	"github.com/rs/zerolog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// SpanName is the name of the span recorded for each session.
const SpanName = "netgrok.session"

// Publisher sends encoded events.
type Publisher interface {
	Publish(event string) error
}

// Result describes what happened to one session.
type Result struct {
	Record      record.Record
	Event       string
	Published   bool
	Filtered    bool
	Truncations []scanner.TruncatedField
}

// Processor runs sessions through the pipeline.
type Processor struct {
	scanner   *scanner.Scanner
	publisher Publisher
	filter    *filter.Filter
	clock     timesync.Clock
	tracer    trace.Tracer
	log       zerolog.Logger
}

// Option configures a Processor.
type Option func(*Processor)

// WithScanner replaces the default header scanner.
func WithScanner(s *scanner.Scanner) Option {
	return func(p *Processor) {
		p.scanner = s
	}
}

// WithFilter sets the filter records must pass to be published.
func WithFilter(f *filter.Filter) Option {
	return func(p *Processor) {
		p.filter = f
	}
}

// WithClock sets the clock used when the host gives no capture time.
func WithClock(c timesync.Clock) Option {
	return func(p *Processor) {
		p.clock = c
	}
}

// WithTracer sets the tracer for per-session spans.
func WithTracer(t trace.Tracer) Option {
	return func(p *Processor) {
		p.tracer = t
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Processor) {
		p.log = l
	}
}

// NewProcessor creates a Processor publishing through pub.
func NewProcessor(pub Publisher, opts ...Option) *Processor {
	p := &Processor{
		scanner:   scanner.New(),
		publisher: pub,
		clock:     timesync.SystemClock{},
		tracer:    noop.NewTracerProvider().Tracer(""),
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// HandleSession processes one session, discarding the result.
func (p *Processor) HandleSession(ctx context.Context, cc session.ConnectionContext, buf []byte) error {
	_, err := p.Process(ctx, cc, buf)
	return err
}

// Process extracts, encodes and publishes the metadata of one session.
// On a scan or build error no event is published and the Result is nil.
// On a publish error the Result holds the event that was not delivered.
func (p *Processor) Process(ctx context.Context, cc session.ConnectionContext, buf []byte) (*Result, error) {
	_, span := p.tracer.Start(ctx, SpanName,
		trace.WithAttributes(attribute.Int("netgrok.buffer.size", len(buf))),
	)
	defer span.End()

	res, err := p.process(span, cc, buf)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res, err
	}
	return res, nil
}

func (p *Processor) process(span trace.Span, cc session.ConnectionContext, buf []byte) (*Result, error) {
	findings, err := p.scanner.Scan(buf)
	if err != nil {
		return nil, fmt.Errorf("scanning session: %w", err)
	}
	for _, tr := range findings.Truncations {
		p.log.Warn().
			Str("field", tr.Field).
			Int("length", tr.Length).
			Int("kept", tr.Kept).
			Msg(tr.Error())
	}

	cc = cc.Merge(findings.Context())
	label := classify.Classify(cc.Transport, findings.ApplicationSeen)

	rec, err := record.Build(cc, findings, label, timesync.Stamp(p.clock, cc.ObservedAt))
	if err != nil {
		return nil, fmt.Errorf("building record: %w", err)
	}
	span.SetAttributes(recordAttributes(rec)...)

	res := &Result{Record: rec, Truncations: findings.Truncations}

	ok, err := p.filter.Match(rec)
	if err != nil {
		return nil, err
	}
	if !ok {
		res.Filtered = true
		span.SetAttributes(attribute.Bool("netgrok.filtered", true))
		p.log.Debug().Str("src", rec.Src.String()).Str("dst", rec.Dst.String()).Msg("record filtered")
		return res, nil
	}

	res.Event = encoder.Encode(rec)
	if err := p.publisher.Publish(res.Event); err != nil {
		return res, fmt.Errorf("publishing event: %w", err)
	}
	res.Published = true

	p.log.Debug().
		Str("src", rec.Src.String()).
		Str("dst", rec.Dst.String()).
		Str("protocol", string(rec.Protocol)).
		Msg("event published")
	return res, nil
}

func recordAttributes(rec record.Record) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("source.address", rec.Src.Addr),
		attribute.String("source.port", rec.Src.Port),
		attribute.String("destination.address", rec.Dst.Addr),
		attribute.String("destination.port", rec.Dst.Port),
		attribute.Int64("netgrok.bytes", rec.Bytes),
		attribute.String("netgrok.protocol", string(rec.Protocol)),
	}
	if rec.Host != "" {
		attrs = append(attrs, attribute.String("http.request.header.host", rec.Host))
	}
	if rec.Referer != "" {
		attrs = append(attrs, attribute.String("http.request.header.referer", rec.Referer))
	}
	return attrs
}
