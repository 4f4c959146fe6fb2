package core

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry   = make(map[string]Screen)
	registryMu sync.RWMutex
)

// Register adds a screen to the registry.
// Panics if the screen is invalid or its key is already registered.
func Register(s Screen) {
	if err := s.Validate(); err != nil {
		panic(err)
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[s.Key]; exists {
		panic(fmt.Sprintf("screen already registered: %s", s.Key))
	}
	registry[s.Key] = s
}

// Get returns a screen by key.
// Returns false if not found.
func Get(key string) (Screen, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	s, ok := registry[key]
	return s, ok
}

// All returns all registered screens.
// Sorted by group then by key for consistent ordering.
func All() []Screen {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]Screen, 0, len(registry))
	for _, s := range registry {
		result = append(result, s)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Group != result[j].Group {
			return result[i].Group < result[j].Group
		}
		return result[i].Key < result[j].Key
	})

	return result
}

// ByGroup returns all screens for a specific group.
// Sorted by key for consistent ordering.
func ByGroup(group string) []Screen {
	registryMu.RLock()
	defer registryMu.RUnlock()

	var result []Screen
	for _, s := range registry {
		if s.Group == group {
			result = append(result, s)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Key < result[j].Key
	})

	return result
}

// Groups returns all unique group names.
// Sorted alphabetically.
func Groups() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	seen := make(map[string]bool)
	for _, s := range registry {
		seen[s.Group] = true
	}

	groups := make([]string, 0, len(seen))
	for g := range seen {
		groups = append(groups, g)
	}

	sort.Strings(groups)
	return groups
}

// ScreenCount returns the number of registered screens.
func ScreenCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Clear removes all registered screens.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]Screen)
}
