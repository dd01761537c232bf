// Package scanner extracts header findings from the raw bytes of one session.
//
// The buffer is read line by line. The first whitespace-delimited token of each
// line is compared, case-insensitively, with a table of markers:
//
//	ssl / tcp   transport header written by the interception proxy,
//	            followed by "SRC SPORT DST DPORT"
//	http*       application marker (HTTP request or status line), may appear
//	            at any token position: "GET / HTTP/1.1"
//	host:       Host header
//	referer:    Referer header
//
// A trailing '*' makes a marker match any token that starts with the
// characters before it. The first match of each kind wins. Scanning stops at
// the first empty or non-printable line, once every kind has been seen, or at
// the end of the buffer.
package scanner
