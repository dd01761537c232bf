// Package record assembles the metadata record of one session.
package record

import (
	"time"

	"github.com/netgrok/netgrok/internal/classify"
	"github.com/netgrok/netgrok/internal/scanner"
	"github.com/netgrok/netgrok/internal/session"
)

// Record is the metadata of one session. Build returns it by value and
// nothing in this module modifies a Record after that.
type Record struct {
	Src      session.Endpoint
	Dst      session.Endpoint
	Bytes    int64
	Protocol classify.Protocol
	Time     time.Time
	// Host and Referer are empty when the header was not observed.
	Host    string
	Referer string
}

// Build combines the connection context with scan findings. It fails with
// session.ErrMissingContext when an endpoint field is absent.
func Build(cc session.ConnectionContext, f scanner.Findings, label classify.Protocol, ts time.Time) (Record, error) {
	if err := cc.Validate(); err != nil {
		return Record{}, err
	}

	rec := Record{
		Src:      cc.Src,
		Dst:      cc.Dst,
		Bytes:    cc.Bytes,
		Protocol: label,
		Time:     ts,
	}
	if f.Host.Present() {
		rec.Host = f.Host.Text
	}
	if f.Referer.Present() {
		rec.Referer = f.Referer.Text
	}
	return rec, nil
}

// Env exposes the record to filter expressions.
func (r Record) Env() map[string]interface{} {
	return map[string]interface{}{
		"src_ip":   r.Src.Addr,
		"src_port": r.Src.Port,
		"dst_ip":   r.Dst.Addr,
		"dst_port": r.Dst.Port,
		"bytes":    r.Bytes,
		"protocol": string(r.Protocol),
		"host":     r.Host,
		"referer":  r.Referer,
	}
}
