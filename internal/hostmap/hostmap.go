// Package hostmap remembers which host names were requested from which
// destination addresses.
//
// Plaintext sessions carry a Host header; encrypted sessions to the same
// address usually do not. Looking the destination up in a Map recovers the
// names previously seen for it. This is a display hint only: a learned name is
// never added to a published event.
package hostmap

import (
	"net"
	"slices"
	"strings"
	"sync"
)

// Map is a reverse lookup from address to observed host names. The zero value
// is not usable; call New.
type Map struct {
	mu      sync.RWMutex
	byAddr  map[string][]string
	maxName int
}

// DefaultNamesPerAddr bounds how many names are kept for one address.
const DefaultNamesPerAddr = 4

// New creates an empty Map.
func New() *Map {
	return &Map{
		byAddr:  make(map[string][]string),
		maxName: DefaultNamesPerAddr,
	}
}

// Learn records that host was requested from addr. A port suffix on host is
// dropped. Hosts that are themselves IP literals are ignored. The most
// recently learned name is returned first by Lookup.
func (m *Map) Learn(addr, host string) {
	name := normalize(host)
	if addr == "" || name == "" || net.ParseIP(name) != nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	names := m.byAddr[addr]
	if i := slices.Index(names, name); i >= 0 {
		names = slices.Delete(names, i, i+1)
	}
	names = append([]string{name}, names...)
	if len(names) > m.maxName {
		names = names[:m.maxName]
	}
	m.byAddr[addr] = names
}

// Lookup returns the names learned for addr, most recent first.
func (m *Map) Lookup(addr string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.byAddr[addr])
}

// Len returns the number of addresses with at least one name.
func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byAddr)
}

func normalize(host string) string {
	host = strings.TrimSpace(host)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	return strings.ToLower(strings.TrimSuffix(host, "."))
}
