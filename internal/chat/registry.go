package chat

import (
	"sync"

	"github.com/google/uuid"
)

// Registry holds the independent sessions opened through the HTTP API.
type Registry struct {
	transport   Transport
	maxSessions int

	mu       sync.Mutex
	sessions map[string]*entry
	seq      uint64
}

type entry struct {
	session *Session
	seq     uint64
}

func NewRegistry(transport Transport, maxSessions int) *Registry {
	if maxSessions <= 0 {
		maxSessions = 100
	}
	return &Registry{
		transport:   transport,
		maxSessions: maxSessions,
		sessions:    make(map[string]*entry),
	}
}

// Create opens a session, selecting symbol when it is non-empty. The oldest
// session is dropped once the registry is full.
func (r *Registry) Create(symbol string) (string, *Session) {
	sess := NewSession(r.transport)
	if symbol != "" {
		sess.SelectSubject(symbol)
	}
	id := uuid.NewString()

	r.mu.Lock()
	defer r.mu.Unlock()
	for len(r.sessions) >= r.maxSessions {
		r.evictOldestLocked()
	}
	r.seq++
	r.sessions[id] = &entry{session: sess, seq: r.seq}
	return id, sess
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	return e.session, true
}

func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	return true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) evictOldestLocked() {
	var (
		oldestID  string
		oldestSeq uint64
	)
	for id, e := range r.sessions {
		if oldestID == "" || e.seq < oldestSeq {
			oldestID, oldestSeq = id, e.seq
		}
	}
	delete(r.sessions, oldestID)
}
