package core

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry   = make(map[string]TableDefinition)
	registryMu sync.RWMutex
)

// Register adds a record kind to the registry.
// Panics if the kind is already registered.
func Register(def TableDefinition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Info.Key]; exists {
		panic(fmt.Sprintf("record kind already registered: %s", def.Info.Key))
	}
	if def.Info.Table == "" {
		def.Info.Table = def.Info.Key
	}

	registry[def.Info.Key] = def
}

// Get returns the definition for a kind.
// Returns false if not found.
func Get(kind string) (TableDefinition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[kind]
	return def, ok
}

// Lookup is Get with an ErrUnknownKind error for unregistered kinds.
func Lookup(kind string) (TableDefinition, error) {
	def, ok := Get(kind)
	if !ok {
		return TableDefinition{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return def, nil
}

// All returns all registered definitions sorted by key.
func All() []TableDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]TableDefinition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Info.Key < result[j].Info.Key
	})

	return result
}

// Kinds returns the registered kind keys, sorted.
func Kinds() []string {
	defs := All()
	kinds := make([]string, len(defs))
	for i, def := range defs {
		kinds[i] = def.Info.Key
	}
	return kinds
}

// TableCount returns the number of registered kinds.
func TableCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Clear removes all registered kinds.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]TableDefinition)
}
