package hostmap

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLearn(t *testing.T) {
	m := New()
	m.Learn("93.184.216.34", "Example.COM:8080")
	m.Learn("93.184.216.34", "www.example.com.")

	assert.Equal(t, []string{"www.example.com", "example.com"}, m.Lookup("93.184.216.34"))
	assert.Nil(t, m.Lookup("10.0.0.1"))
	assert.Equal(t, 1, m.Len())
}

func TestLearn_Ignored(t *testing.T) {
	tests := []struct {
		name string
		addr string
		host string
	}{
		{name: "empty host", addr: "1.1.1.1", host: ""},
		{name: "empty addr", addr: "", host: "example.com"},
		{name: "ipv4 literal", addr: "1.1.1.1", host: "1.1.1.1:80"},
		{name: "ipv6 literal", addr: "::1", host: "[::1]:443"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New()
			m.Learn(tt.addr, tt.host)
			assert.Zero(t, m.Len())
		})
	}
}

func TestLearn_MostRecentFirstAndBounded(t *testing.T) {
	m := New()
	for _, h := range []string{"a.test", "b.test", "c.test", "d.test", "e.test", "b.test"} {
		m.Learn("10.0.0.1", h)
	}
	assert.Equal(t, []string{"b.test", "e.test", "d.test", "c.test"}, m.Lookup("10.0.0.1"))
}

func TestLookup_ReturnsCopy(t *testing.T) {
	m := New()
	m.Learn("10.0.0.1", "a.test")
	got := m.Lookup("10.0.0.1")
	got[0] = "mutated"
	assert.Equal(t, []string{"a.test"}, m.Lookup("10.0.0.1"))
}

func TestConcurrentAccess(t *testing.T) {
	m := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Learn("10.0.0.1", "a.test")
				_ = m.Lookup("10.0.0.1")
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, []string{"a.test"}, m.Lookup("10.0.0.1"))
}
