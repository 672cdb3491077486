package adapters

// Registry is the startup-populated map of platform name to Adapter
// implementation, replacing the dynamic module-name dispatch of the
// original Python implementation (§9 "Adapter registry"). Sync, status,
// and the chat-viewer all resolve adapters through this map rather than
// importing each platform package directly.
type Registry map[string]Adapter

// NewRegistry builds an empty registry. Callers append adapters with
// Register; internal/runtime.New wires all four built-in adapters at
// process start.
func NewRegistry() Registry {
	return make(Registry)
}

// Register adds an adapter under its own Name().
func (r Registry) Register(a Adapter) {
	r[a.Name()] = a
}

// Get resolves an adapter by platform name, reporting ok=false when no
// adapter is registered under that name.
func (r Registry) Get(name string) (Adapter, bool) {
	a, ok := r[name]
	return a, ok
}

// Names returns every registered platform name.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	return names
}
