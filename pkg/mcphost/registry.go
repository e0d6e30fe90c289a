package mcphost

import (
	"sort"
	"sync"
)

// registry is the concurrency-safe name -> Connection table and the sole
// owner of every Connection it holds. A single coarse mutex guards the whole
// map: operations are driven by user-initiated start/stop/call actions, so
// contention is negligible, and the atomic insert/remove discipline is what
// guarantees at most one live connection per name.
type registry struct {
	mu    sync.Mutex
	conns map[string]*Connection
}

func newRegistry() *registry {
	return &registry{conns: make(map[string]*Connection)}
}

// insert stores conn under name, silently replacing any prior entry. The
// caller is responsible for shutting down a connection before replacing it
// when that matters.
func (r *registry) insert(name string, conn *Connection) {
	r.mu.Lock()
	r.conns[name] = conn
	r.mu.Unlock()
}

// insertIfAbsent stores conn only when name has no entry yet and reports
// whether it did. Losing callers must shut down their connection themselves.
func (r *registry) insertIfAbsent(name string, conn *Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[name]; ok {
		return false
	}
	r.conns[name] = conn
	return true
}

// remove atomically deletes and returns the connection for name, transferring
// ownership to the caller so shutdown can run outside the lock. It returns
// nil when name has no entry.
func (r *registry) remove(name string) *Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn := r.conns[name]
	delete(r.conns, name)
	return conn
}

func (r *registry) get(name string) (*Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.conns[name]
	return conn, ok
}

func (r *registry) contains(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.conns[name]
	return ok
}

func (r *registry) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.conns))
	for name := range r.conns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
