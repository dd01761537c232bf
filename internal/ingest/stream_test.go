package ingest

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"testing/iotest"
	"time"

	"github.com/netgrok/netgrok/internal/pipeline"
	"github.com/netgrok/netgrok/internal/publisher"
	"github.com/netgrok/netgrok/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	cc  session.ConnectionContext
	buf string
}

type recorder struct {
	mu       sync.Mutex
	sessions []captured
	err      error
}

func (r *recorder) HandleSession(_ context.Context, cc session.ConnectionContext, buf []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, captured{cc: cc, buf: string(buf)})
	return r.err
}

const contentLog = "preamble ignored\n" +
	"ssl 10.0.0.5 51000 93.184.216.34 443\n" +
	"GET / HTTP/1.1\r\n" +
	"Host: example.com\r\n" +
	"\r\n" +
	"TCP 192.168.1.10 40000 10.1.1.1 80\n" +
	"GET /a HTTP/1.0\n" +
	"</headers>\n" +
	"trailing body\n"

func TestRun_SplitsSessions(t *testing.T) {
	rec := &recorder{}
	stats, err := New(rec).Run(context.Background(), strings.NewReader(contentLog))
	require.NoError(t, err)

	require.Len(t, rec.sessions, 2)
	assert.Equal(t, "ssl 10.0.0.5 51000 93.184.216.34 443\nGET / HTTP/1.1\r\nHost: example.com\r\n\r\n", rec.sessions[0].buf)
	assert.Equal(t, int64(len("GET / HTTP/1.1\r\nHost: example.com\r\n\r\n")), rec.sessions[0].cc.Bytes)
	assert.Equal(t, "TCP 192.168.1.10 40000 10.1.1.1 80\nGET /a HTTP/1.0\n", rec.sessions[1].buf)

	assert.Equal(t, 2, stats.Sessions)
	assert.Zero(t, stats.Failed)
	assert.Equal(t, int64(len("preamble ignored\n")+len("trailing body\n")), stats.Skipped)
}

func TestRun_ShortTransportLineIsContent(t *testing.T) {
	rec := &recorder{}
	input := "ssl 1.1.1.1 1 2.2.2.2 2\ntcp is mentioned here\n"

	_, err := New(rec).Run(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rec.sessions, 1)
	assert.Contains(t, rec.sessions[0].buf, "tcp is mentioned here")
}

func TestRun_MaxSessionBytes(t *testing.T) {
	rec := &recorder{}
	header := "tcp 1.1.1.1 1 2.2.2.2 2\n"
	body := strings.Repeat("x", 100) + "\n"

	_, err := New(rec, WithMaxSessionBytes(len(header)+10)).Run(context.Background(), strings.NewReader(header+body))
	require.NoError(t, err)

	require.Len(t, rec.sessions, 1)
	assert.Len(t, rec.sessions[0].buf, len(header)+10)
	assert.Equal(t, int64(len(body)), rec.sessions[0].cc.Bytes)
}

func TestRun_HandlerErrorsCounted(t *testing.T) {
	rec := &recorder{err: errors.New("rejected")}

	stats, err := New(rec).Run(context.Background(), strings.NewReader(contentLog))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Sessions)
	assert.Equal(t, 2, stats.Failed)
}

func TestRun_ReadError(t *testing.T) {
	rec := &recorder{}
	r := io.MultiReader(strings.NewReader("tcp 1.1.1.1 1 2.2.2.2 2\nGET / HTTP/1.1\n"), iotest.ErrReader(errors.New("disk gone")))

	_, err := New(rec).Run(context.Background(), r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk gone")
	// The partial session is still dispatched.
	assert.Len(t, rec.sessions, 1)
}

func TestRun_Cancellation(t *testing.T) {
	rec := &recorder{}
	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Stats, 1)
	go func() {
		stats, _ := New(rec).Run(ctx, pr)
		done <- stats
	}()

	_, err := io.WriteString(pw, "ssl 10.0.0.5 51000 93.184.216.34 443\nGET / HTTP/1.1\n")
	require.NoError(t, err)
	// Give Run time to consume both lines before cancelling.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case stats := <-done:
		assert.Equal(t, 1, stats.Sessions)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestRun_ThroughPipeline(t *testing.T) {
	hub := publisher.NewHub()
	pub := publisher.New("inproc://ingest", publisher.WithBinder(hub.Binder()))
	t.Cleanup(func() { _ = pub.Shutdown() })

	stats, err := New(pipeline.NewProcessor(pub)).Run(context.Background(), strings.NewReader(contentLog))
	require.NoError(t, err)
	assert.Zero(t, stats.Failed)

	msgs := hub.Messages()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0], `"protocol": "https"`)
	assert.Contains(t, msgs[0], `"host": "example.com"`)
	assert.Contains(t, msgs[1], `"protocol": "http"`)
	assert.Contains(t, msgs[1], `"dst_port": "80"`)
}
