// Package backends is the registry of compiled-in aidot client backends.
// The config's backend name selects which one the daemon talks to.
package backends

import (
	"fmt"
	"sort"
	"sync"

	"aidotbridge/aidot"
	"aidotbridge/internal/sim"
)

var (
	mu       sync.Mutex
	compiled = make(map[string]aidot.Factory)
)

// Register adds a named backend factory. Later registrations with the
// same name win, so builds can shadow the defaults.
func Register(name string, factory aidot.Factory) {
	mu.Lock()
	defer mu.Unlock()
	compiled[name] = factory
}

// Open builds the named backend from the bootstrap login payload.
func Open(name string, login aidot.LoginInfo) (aidot.Client, error) {
	mu.Lock()
	factory, ok := compiled[name]
	mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown backend %q (have %v)", name, Names())
	}
	return factory(login)
}

// Names lists the registered backends, sorted.
func Names() []string {
	mu.Lock()
	defer mu.Unlock()
	names := make([]string, 0, len(compiled))
	for name := range compiled {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register("sim", func(login aidot.LoginInfo) (aidot.Client, error) {
		return sim.NewClient(login)
	})
}
