// Package encoder serializes metadata records as single-line JSON events.
//
// Keys are written in a fixed order:
//
//	src_ip, src_port, dst_ip, dst_port, bytes, protocol, [host], [referer], time
//
// host and referer appear only when observed.
package encoder

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/netgrok/netgrok/internal/record"
	"github.com/netgrok/netgrok/internal/timesync"
)

// Event key names.
const (
	KeySrcIP    = "src_ip"
	KeySrcPort  = "src_port"
	KeyDstIP    = "dst_ip"
	KeyDstPort  = "dst_port"
	KeyBytes    = "bytes"
	KeyProtocol = "protocol"
	KeyHost     = "host"
	KeyReferer  = "referer"
	KeyTime     = "time"
)

// Encode returns the JSON event for rec. It is deterministic and never fails.
func Encode(rec record.Record) string {
	var b bytes.Buffer
	b.Grow(128 + len(rec.Host) + len(rec.Referer))

	b.WriteByte('{')
	writeString(&b, KeySrcIP, rec.Src.Addr, true)
	writeString(&b, KeySrcPort, rec.Src.Port, false)
	writeString(&b, KeyDstIP, rec.Dst.Addr, false)
	writeString(&b, KeyDstPort, rec.Dst.Port, false)
	writeKey(&b, KeyBytes, false)
	b.WriteString(strconv.FormatInt(rec.Bytes, 10))
	writeString(&b, KeyProtocol, string(rec.Protocol), false)
	if rec.Host != "" {
		writeString(&b, KeyHost, rec.Host, false)
	}
	if rec.Referer != "" {
		writeString(&b, KeyReferer, rec.Referer, false)
	}
	writeString(&b, KeyTime, timesync.Format(rec.Time), false)
	b.WriteByte('}')

	return b.String()
}

func writeKey(b *bytes.Buffer, key string, first bool) {
	if !first {
		b.WriteString(", ")
	}
	b.WriteByte('"')
	b.WriteString(key)
	b.WriteString(`": `)
}

func writeString(b *bytes.Buffer, key, value string, first bool) {
	writeKey(b, key, first)
	b.Write(quote(value))
}

// quote returns value as a JSON string literal. Control characters, quotes
// and backslashes are escaped and invalid UTF-8 is replaced, so the event
// stays on one line whatever the header bytes were. HTML characters are kept
// as is.
func quote(value string) []byte {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		// Encoding a string cannot fail.
		return []byte(`""`)
	}
	return bytes.TrimSuffix(b.Bytes(), []byte{'\n'})
}
