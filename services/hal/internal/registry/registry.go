// services/hal/internal/registry/registry.go

// Package registry maps config device types to builders. Device packages
// register themselves from init.
package registry

import (
	"fmt"
	"slices"
	"sync"

	"iothat-go/services/hal/internal/halcore"
)

var (
	mu       sync.RWMutex
	builders = map[string]halcore.Builder{}
)

func RegisterBuilder(deviceType string, b halcore.Builder) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := builders[deviceType]; exists {
		panic(fmt.Sprintf("device builder already registered for type %q", deviceType))
	}
	builders[deviceType] = b
}

func Lookup(deviceType string) (halcore.Builder, bool) {
	mu.RLock()
	defer mu.RUnlock()
	b, ok := builders[deviceType]
	return b, ok
}

// Types lists the registered device types, sorted.
func Types() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(builders))
	for t := range builders {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}
