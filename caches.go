package xmlrpc

import (
	"fmt"
	"reflect"
	"sync"
)

// cache is a concurrency-safe map of reflect.Type to a value derived
// from the type, which notices when derivation for a type recurses
// into itself.
type cache[V any] struct {
	// OnRecursive produces the value to hand out for t while t's
	// derivation is still in progress.
	OnRecursive func(t reflect.Type) V
	m           sync.Map
}

// Get returns the cached value for t, if any. If Get returns false,
// the caller must derive the value for t and Put it.
//
// If t's value is currently being derived, Get returns
// c.OnRecursive(t).
func (c *cache[V]) Get(t reflect.Type) (val V, found bool) {
	ent, loaded := c.m.LoadOrStore(t, nil)
	if !loaded {
		var zero V
		return zero, false
	}
	if ent == nil {
		if c.OnRecursive == nil {
			panic(fmt.Sprintf("recursive type %s", t))
		}
		return c.OnRecursive(t), true
	}
	if val, ok := ent.(V); ok {
		return val, true
	}
	panic(fmt.Sprintf("mystery value %v (%T) in cache", ent, ent))
}

// Load returns the value for t, only if its derivation is complete.
func (c *cache[V]) Load(t reflect.Type) (val V, found bool) {
	ent, ok := c.m.Load(t)
	if !ok || ent == nil {
		var zero V
		return zero, false
	}
	return ent.(V), true
}

// Put records the derived value for t.
func (c *cache[V]) Put(t reflect.Type, val V) {
	c.m.Store(t, val)
}
