package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/netgrok/netgrok/internal/classify"
	"github.com/netgrok/netgrok/internal/filter"
	"github.com/netgrok/netgrok/internal/publisher"
	"github.com/netgrok/netgrok/internal/scanner"
	"github.com/netgrok/netgrok/internal/session"
	"github.com/netgrok/netgrok/internal/timesync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var testTime = time.Date(2024, 5, 6, 7, 8, 9, 0, time.Local)

const requestBuffer = "GET / HTTP/1.1\r\nHost: example.com\r\nReferer: http://ref.example\r\n\r\n"

func scenarioContext() session.ConnectionContext {
	return session.ConnectionContext{
		Src:       session.Endpoint{Addr: "10.0.0.5", Port: "51000"},
		Dst:       session.Endpoint{Addr: "93.184.216.34", Port: "443"},
		Transport: session.TransportEncrypted,
		Bytes:     512,
	}
}

func newTestProcessor(t *testing.T, opts ...Option) (*Processor, *publisher.Hub, *publisher.Publisher) {
	t.Helper()
	hub := publisher.NewHub()
	pub := publisher.New("inproc://pipeline-test", publisher.WithBinder(hub.Binder()))
	t.Cleanup(func() { _ = pub.Shutdown() })

	opts = append([]Option{WithClock(timesync.FixedClock(testTime))}, opts...)
	return NewProcessor(pub, opts...), hub, pub
}

func TestProcess_EndToEnd(t *testing.T) {
	p, hub, _ := newTestProcessor(t)

	res, err := p.Process(context.Background(), scenarioContext(), []byte(requestBuffer))
	require.NoError(t, err)

	assert.True(t, res.Published)
	assert.Equal(t, classify.ProtocolHTTPS, res.Record.Protocol)
	assert.Equal(t, "example.com", res.Record.Host)
	assert.Equal(t, "http://ref.example", res.Record.Referer)

	msgs := hub.Messages()
	require.Len(t, msgs, 1)
	want := `{"src_ip": "10.0.0.5", "src_port": "51000", "dst_ip": "93.184.216.34", "dst_port": "443", ` +
		`"bytes": 512, "protocol": "https", "host": "example.com", "referer": "http://ref.example", ` +
		`"time": "2024-05-06 07:08:09"}`
	assert.Equal(t, want, msgs[0])
	assert.Equal(t, want, res.Event)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(msgs[0]), &decoded))
	assert.Len(t, decoded, 9)
}

func TestProcess_ContextFromTransportLine(t *testing.T) {
	p, hub, _ := newTestProcessor(t)
	buf := "tcp 192.168.1.10 40000 10.1.1.1 80\nGET /index.html HTTP/1.0\nHost: intranet\n"

	res, err := p.Process(context.Background(), session.ConnectionContext{Bytes: int64(len(buf))}, []byte(buf))
	require.NoError(t, err)

	assert.Equal(t, classify.ProtocolHTTP, res.Record.Protocol)
	assert.Equal(t, "192.168.1.10", res.Record.Src.Addr)
	assert.Equal(t, "80", res.Record.Dst.Port)
	assert.Equal(t, int64(len(buf)), res.Record.Bytes)
	assert.NotContains(t, hub.Messages()[0], `"referer"`)
}

func TestProcess_HostContextWins(t *testing.T) {
	p, _, _ := newTestProcessor(t)
	buf := "tcp 1.1.1.1 1 2.2.2.2 2\n"

	res, err := p.Process(context.Background(), scenarioContext(), []byte(buf))
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.5", res.Record.Src.Addr)
	assert.Equal(t, classify.ProtocolSSL, res.Record.Protocol)
}

func TestProcess_EncryptedWithoutMarker(t *testing.T) {
	p, _, _ := newTestProcessor(t)

	res, err := p.Process(context.Background(), scenarioContext(), []byte("\x16\x03\x01\x00\xa5\x01"))
	require.NoError(t, err)
	assert.Equal(t, classify.ProtocolSSL, res.Record.Protocol)
	assert.Empty(t, res.Record.Host)
}

func TestProcess_MissingContextPublishesNothing(t *testing.T) {
	p, hub, pub := newTestProcessor(t)
	cc := scenarioContext()
	cc.Src.Port = ""

	res, err := p.Process(context.Background(), cc, []byte(requestBuffer))
	require.Error(t, err)
	assert.True(t, errors.Is(err, session.ErrMissingContext))
	assert.Nil(t, res)
	assert.Empty(t, hub.Messages())
	assert.Equal(t, publisher.StateUninitialized, pub.State())
}

func TestProcess_Filter(t *testing.T) {
	f, err := filter.Compile(`protocol == "http"`)
	require.NoError(t, err)
	p, hub, _ := newTestProcessor(t, WithFilter(f))

	res, err := p.Process(context.Background(), scenarioContext(), []byte(requestBuffer))
	require.NoError(t, err)
	assert.True(t, res.Filtered)
	assert.False(t, res.Published)
	assert.Empty(t, res.Event)
	assert.Empty(t, hub.Messages())
}

func TestProcess_PublishAfterShutdown(t *testing.T) {
	p, hub, pub := newTestProcessor(t)
	require.NoError(t, pub.Shutdown())

	res, err := p.Process(context.Background(), scenarioContext(), []byte(requestBuffer))
	require.Error(t, err)
	assert.True(t, errors.Is(err, publisher.ErrChannelClosed))
	require.NotNil(t, res)
	assert.False(t, res.Published)
	assert.NotEmpty(t, res.Event)
	assert.Empty(t, hub.Messages())
}

func TestProcess_TruncationReported(t *testing.T) {
	s := scanner.New(scanner.WithLimits(scanner.Limits{HostMaxLen: 5}))
	p, hub, _ := newTestProcessor(t, WithScanner(s))

	res, err := p.Process(context.Background(), scenarioContext(), []byte("Host: example.com\n"))
	require.NoError(t, err)
	require.Len(t, res.Truncations, 1)
	assert.Equal(t, "exam", res.Record.Host)
	assert.True(t, strings.Contains(hub.Messages()[0], `"host": "exam"`))
}

func TestProcess_ObservedAtWinsOverClock(t *testing.T) {
	p, _, _ := newTestProcessor(t)
	cc := scenarioContext()
	cc.ObservedAt = time.Date(2020, 1, 1, 0, 0, 0, 0, time.Local)

	res, err := p.Process(context.Background(), cc, nil)
	require.NoError(t, err)
	assert.True(t, res.Record.Time.Equal(cc.ObservedAt))
	assert.Contains(t, res.Event, `"time": "2020-01-01 00:00:00"`)
}

func TestProcess_Spans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	p, _, _ := newTestProcessor(t, WithTracer(tp.Tracer("test")))

	_, err := p.Process(context.Background(), scenarioContext(), []byte(requestBuffer))
	require.NoError(t, err)

	missing := scenarioContext()
	missing.Dst.Addr = ""
	_, err = p.Process(context.Background(), missing, []byte(requestBuffer))
	require.Error(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, SpanName, spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "https", attrs["netgrok.protocol"])
	assert.Equal(t, "example.com", attrs["http.request.header.host"])
	assert.Equal(t, "93.184.216.34", attrs["destination.address"])

	assert.Equal(t, codes.Error, spans[1].Status().Code)
}

func TestHandleSession(t *testing.T) {
	p, hub, _ := newTestProcessor(t)
	var h session.Handler = p

	require.NoError(t, h.HandleSession(context.Background(), scenarioContext(), []byte(requestBuffer)))
	assert.Len(t, hub.Messages(), 1)
}

func TestProcess_RepeatedHostKeepsPlainLabel(t *testing.T) {
	p, _, _ := newTestProcessor(t)
	buf := "tcp 10.0.0.5 51000 10.0.0.6 25\nHost: mail.example\nHost: httpbin.org\n"

	res, err := p.Process(context.Background(), session.ConnectionContext{Bytes: int64(len(buf))}, []byte(buf))
	require.NoError(t, err)
	assert.Equal(t, classify.ProtocolTCP, res.Record.Protocol)
	assert.Equal(t, "mail.example", res.Record.Host)
}
