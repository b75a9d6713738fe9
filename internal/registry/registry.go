// Package registry maps operator call sites to handlers.
//
// Two lookup paths exist:
//
//   - MethodRegistry: exact identity. The call-site method is normalized to
//     its generic definition (meta.Normalize) and keyed by meta.MethodKey.
//   - NameRegistry: operator name plus structural predicate, for overloads
//     that cannot be told apart by signature shape. Entries are scanned in
//     registration order; the first matching predicate wins.
//
// Compound combines both, exact identity first.
//
// An unregistered method is not an error. Lookup reports found=false and
// the parser treats the call as an ordinary expression. The only lookup
// error is an ambiguous generic binding, which is returned as-is and never
// resolved by guessing.
//
// Registries are built once and then shared. Lookups are safe for
// concurrent use; registration takes a write lock.
package registry

import (
	"sort"
	"sync"

	"github.com/roach88/relinq/internal/meta"
)

// Lookuper resolves a call-site method to a handler.
type Lookuper[H any] interface {
	Lookup(m *meta.Method) (H, bool, error)
}

// MethodRegistry resolves methods by normalized identity.
type MethodRegistry[H any] struct {
	mu       sync.RWMutex
	handlers map[meta.MethodKey]H

	// keys memoizes generic definition → meta.MethodKey. Call sites are
	// normalized first, so the memo only ever holds definitions and stays
	// bounded by the catalog. A racing writer may recompute an entry.
	keys sync.Map
}

// NewMethodRegistry creates an empty registry.
func NewMethodRegistry[H any]() *MethodRegistry[H] {
	return &MethodRegistry[H]{handlers: make(map[meta.MethodKey]H)}
}

// Register associates each method with h. Re-registration overwrites.
// Returns an error if a method cannot be normalized.
func (r *MethodRegistry[H]) Register(methods []*meta.Method, h H) error {
	keys := make([]meta.MethodKey, 0, len(methods))
	for _, m := range methods {
		key, err := r.keyOf(m)
		if err != nil {
			return err
		}
		keys = append(keys, key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, key := range keys {
		r.handlers[key] = h
	}
	return nil
}

// Lookup returns the handler registered for m's generic definition.
func (r *MethodRegistry[H]) Lookup(m *meta.Method) (H, bool, error) {
	var zero H
	key, err := r.keyOf(m)
	if err != nil {
		return zero, false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[key]
	return h, ok, nil
}

// IsRegistered reports whether m resolves to a handler.
func (r *MethodRegistry[H]) IsRegistered(m *meta.Method) (bool, error) {
	_, ok, err := r.Lookup(m)
	return ok, err
}

// Keys returns the registered identities in a stable order.
func (r *MethodRegistry[H]) Keys() []meta.MethodKey {
	r.mu.RLock()
	keys := make([]meta.MethodKey, 0, len(r.handlers))
	for k := range r.handlers {
		keys = append(keys, k)
	}
	r.mu.RUnlock()

	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys
}

// keyOf normalizes m and derives its identity. Closed call sites are
// created per chain, so only the definition's key is memoized.
func (r *MethodRegistry[H]) keyOf(m *meta.Method) (meta.MethodKey, error) {
	def, err := meta.Normalize(m)
	if err != nil {
		return meta.MethodKey{}, err
	}
	if cached, ok := r.keys.Load(def); ok {
		return cached.(meta.MethodKey), nil
	}
	key := meta.KeyOf(def)
	r.keys.Store(def, key)
	return key, nil
}

func (r *MethodRegistry[H]) memoLen() int {
	n := 0
	r.keys.Range(func(any, any) bool {
		n++
		return true
	})
	return n
}

// Predicate decides whether a same-named method belongs to a handler.
type Predicate func(m *meta.Method) bool

type nameEntry[H any] struct {
	pred    Predicate
	handler H
}

// NameRegistry resolves methods by name and structural predicate.
type NameRegistry[H any] struct {
	mu      sync.RWMutex
	entries map[string][]nameEntry[H]
}

// NewNameRegistry creates an empty registry.
func NewNameRegistry[H any]() *NameRegistry[H] {
	return &NameRegistry[H]{entries: make(map[string][]nameEntry[H])}
}

// Register appends (pred, h) for each name. A nil predicate matches any
// method with that name.
func (r *NameRegistry[H]) Register(names []string, pred Predicate, h H) {
	if pred == nil {
		pred = func(*meta.Method) bool { return true }
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range names {
		r.entries[n] = append(r.entries[n], nameEntry[H]{pred: pred, handler: h})
	}
}

// Lookup returns the handler of the first registered predicate matching m.
func (r *NameRegistry[H]) Lookup(m *meta.Method) (H, bool, error) {
	var zero H
	if m == nil {
		return zero, false, nil
	}
	r.mu.RLock()
	entries := r.entries[m.Name]
	r.mu.RUnlock()

	for _, e := range entries {
		if e.pred(m) {
			return e.handler, true, nil
		}
	}
	return zero, false, nil
}

// Names returns the registered operator names in sorted order.
func (r *NameRegistry[H]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for n := range r.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Compound consults the exact registry first and the name registry second.
type Compound[H any] struct {
	Exact *MethodRegistry[H]
	Names *NameRegistry[H]
}

// NewCompound creates a compound registry with empty parts.
func NewCompound[H any]() *Compound[H] {
	return &Compound[H]{
		Exact: NewMethodRegistry[H](),
		Names: NewNameRegistry[H](),
	}
}

// Lookup resolves m. An ambiguous generic binding on the exact path is
// reported immediately.
func (c *Compound[H]) Lookup(m *meta.Method) (H, bool, error) {
	h, ok, err := c.Exact.Lookup(m)
	if err != nil || ok {
		return h, ok, err
	}
	return c.Names.Lookup(m)
}

// IsRegistered reports whether m resolves on either path.
func (c *Compound[H]) IsRegistered(m *meta.Method) (bool, error) {
	_, ok, err := c.Lookup(m)
	return ok, err
}
