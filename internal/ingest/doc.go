// Package ingest splits an interception proxy's content log into sessions.
//
// The log is line oriented. Each session starts with a transport header line
//
//	ssl 10.0.0.5 51000 93.184.216.34 443
//
// followed by the bytes observed for it. A session ends at the next header
// line, at a "</headers>" line, or at the end of the stream. The header line
// is kept at the start of the session buffer so the scanner can read the
// endpoints from it.
package ingest
