package ws

import (
	"sync"

	"github.com/carewire/teleconsult/internal/core"
)

// connTable pairs a browser's client token with its live consult socket's
// connection id. Connection ids are minted per socket; the token is only
// the pairing key the audio socket uses to target the same participant.
type connTable struct {
	mu sync.Mutex
	m  map[string]core.ConnID
}

func newConnTable() *connTable {
	return &connTable{m: make(map[string]core.ConnID)}
}

func (t *connTable) put(token string, cid core.ConnID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.m[token] = cid
}

func (t *connTable) get(token string) (core.ConnID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cid, ok := t.m[token]
	return cid, ok
}

// remove clears the pairing only while cid is still the live one, so a
// newer socket reusing the token is not unpaired by an older socket's
// close.
func (t *connTable) remove(token string, cid core.ConnID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.m[token] == cid {
		delete(t.m, token)
	}
}
