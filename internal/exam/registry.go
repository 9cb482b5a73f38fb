package exam

import (
	"context"
	"sync"
	"time"
)

// Registry holds the live session of every owner and runs their countdowns.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	factory  func(owner string) *Session

	ctx context.Context
	wg  sync.WaitGroup
}

// NewRegistry creates a registry whose countdown loops live until ctx is
// cancelled. factory builds a new uninitialized session for an owner.
func NewRegistry(ctx context.Context, factory func(owner string) *Session) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		factory:  factory,
		ctx:      ctx,
	}
}

func (r *Registry) GetOrCreate(owner string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[owner]; ok {
		return s
	}
	s := r.factory(owner)
	r.sessions[owner] = s
	return s
}

func (r *Registry) Get(owner string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[owner]
	return s, ok
}

// Sweep drops sessions that have been settled for longer than maxIdle and
// returns how many went. Their persisted state was already cleared on submit.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for owner, s := range r.sessions {
		if s.Settled(maxIdle) {
			delete(r.sessions, owner)
			n++
		}
	}
	return n
}

// adopt puts s back if a sweep removed it while a request was restarting it,
// so the owner keeps a single live session.
func (r *Registry) adopt(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.Owner()]; !ok {
		r.sessions[s.Owner()] = s
	}
}

// Start starts (or resumes) owner's exam and makes sure its countdown runs.
func (r *Registry) Start(ctx context.Context, owner string) (*Session, error) {
	s := r.GetOrCreate(owner)
	if err := s.Start(ctx); err != nil {
		return nil, err
	}
	r.adopt(s)
	r.watch(s)
	return s, nil
}

// Retry replaces owner's exam with a fresh one.
func (r *Registry) Retry(ctx context.Context, owner string) (*Session, error) {
	s := r.GetOrCreate(owner)
	if err := s.Retry(ctx); err != nil {
		return nil, err
	}
	r.adopt(s)
	r.watch(s)
	return s, nil
}

func (r *Registry) watch(s *Session) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		s.Run(r.ctx)
	}()
}

// Wait blocks until every countdown loop has exited.
func (r *Registry) Wait() {
	r.wg.Wait()
}
