package mapper

import (
	"fmt"
	"sync"

	"github.com/aretw0/strata/pkg/core"
	"github.com/aretw0/strata/pkg/document"
)

// IdentityMap holds at most one live document per stringified identifier.
// It is process-local and safe for concurrent use.
type IdentityMap struct {
	mu      sync.RWMutex
	entries map[string]*document.Document
}

// NewIdentityMap creates an empty identity map.
func NewIdentityMap() *IdentityMap {
	return &IdentityMap{entries: make(map[string]*document.Document)}
}

// Get returns the document registered under id.
func (m *IdentityMap) Get(id any) (*document.Document, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.entries[core.KeyOf(id)]
	return doc, ok
}

// Register adds doc under id. Registering the same document twice is a no-op;
// registering a different one fails with core.ErrDuplicateIdentity.
func (m *IdentityMap) Register(id any, doc *document.Document) error {
	key := core.KeyOf(id)
	if key == "" {
		return fmt.Errorf("cannot register %s without an identifier", doc)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.entries[key]; ok {
		if existing == doc {
			return nil
		}
		return fmt.Errorf("%w: %s already maps to %s", core.ErrDuplicateIdentity, key, existing)
	}
	m.entries[key] = doc
	return nil
}

// LoadOrRegister returns the document already registered under id, or
// registers doc. loaded reports whether an existing document won.
func (m *IdentityMap) LoadOrRegister(id any, doc *document.Document) (actual *document.Document, loaded bool) {
	key := core.KeyOf(id)

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.entries[key]; ok {
		return existing, true
	}
	m.entries[key] = doc
	return doc, false
}

// Forget removes the entry for id.
func (m *IdentityMap) Forget(id any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, core.KeyOf(id))
}

// ForgetIf removes the entry for id when match accepts the registered document.
func (m *IdentityMap) ForgetIf(id any, match func(*document.Document) bool) bool {
	key := core.KeyOf(id)

	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.entries[key]
	if !ok || !match(doc) {
		return false
	}
	delete(m.entries, key)
	return true
}

// ForgetFunc removes every entry accepted by match and returns how many went.
func (m *IdentityMap) ForgetFunc(match func(*document.Document) bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for key, doc := range m.entries {
		if match(doc) {
			delete(m.entries, key)
			n++
		}
	}
	return n
}

// Clear evicts every entry.
func (m *IdentityMap) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.entries)
}

// Len returns the number of registered documents.
func (m *IdentityMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
