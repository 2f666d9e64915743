package workspace

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/GoSim-25-26J-441/obras/internal/logging"
)

// Manager owns the live workspaces of the process.
type Manager struct {
	deps Deps
	idle time.Duration
	now  func() time.Time
	log  *logging.Logger

	mu    sync.Mutex
	items map[string]*Workspace
}

func NewManager(deps Deps, idle time.Duration) *Manager {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		deps:  deps,
		idle:  idle,
		now:   now,
		log:   logging.New("workspace"),
		items: make(map[string]*Workspace),
	}
}

func (m *Manager) Create() *Workspace {
	id := uuid.NewString()
	w := New(id, m.deps)

	m.mu.Lock()
	m.items[id] = w
	m.mu.Unlock()

	m.log.LogInfof("create", "workspace=%s", id)
	return w
}

// Get returns the workspace and marks it active.
func (m *Manager) Get(id string) (*Workspace, bool) {
	m.mu.Lock()
	w, ok := m.items[id]
	m.mu.Unlock()
	if ok {
		w.Touch(m.now())
	}
	return w, ok
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Reap closes workspaces idle for longer than the idle timeout that have
// no open change listeners. It returns how many were closed.
func (m *Manager) Reap() int {
	cutoff := m.now().Add(-m.idle)

	m.mu.Lock()
	var stale []*Workspace
	for id, w := range m.items {
		if w.Watchers() == 0 && w.LastSeen().Before(cutoff) {
			stale = append(stale, w)
			delete(m.items, id)
		}
	}
	m.mu.Unlock()

	for _, w := range stale {
		w.Close()
	}
	if len(stale) > 0 {
		m.log.LogInfof("reap", "closed=%d remaining=%d", len(stale), m.Len())
	}
	return len(stale)
}

// CloseAll tears down every workspace; used on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := make([]*Workspace, 0, len(m.items))
	for _, w := range m.items {
		all = append(all, w)
	}
	m.items = make(map[string]*Workspace)
	m.mu.Unlock()

	for _, w := range all {
		w.Close()
	}
}
