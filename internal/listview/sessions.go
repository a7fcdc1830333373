package listview

import (
	"context"
	"net/url"
	"sync"
	"time"
)

// Registry keeps one live Controller per browser session so keystrokes sent
// by a session are debounced and cancelled the same way they would be in
// the browser. Idle sessions are closed by Sweep.
type Registry struct {
	newController func(Location) *Controller
	ttl           time.Duration
	now           func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	ctrl     *Controller
	lastSeen time.Time
}

// NewRegistry creates a Registry. newController builds the controller for a
// new session from its location.
func NewRegistry(newController func(Location) *Controller, ttl time.Duration) *Registry {
	return &Registry{
		newController: newController,
		ttl:           ttl,
		now:           time.Now,
		sessions:      make(map[string]*session),
	}
}

// Get returns the controller of session id, creating it from rawQuery on
// first use. An existing session navigates to rawQuery's state. Controllers
// are built outside the lock; when two first requests race, one controller
// wins and the other is closed.
func (r *Registry) Get(id, rawQuery string) *Controller {
	if ctrl, ok := r.touch(id); ok {
		values, _ := url.ParseQuery(rawQuery)
		ctrl.Navigate(Decode(values))
		return ctrl
	}

	ctrl := r.newController(NewMemoryLocation(rawQuery))

	r.mu.Lock()
	if s, ok := r.sessions[id]; ok {
		s.lastSeen = r.now()
		r.mu.Unlock()
		ctrl.Close()
		values, _ := url.ParseQuery(rawQuery)
		s.ctrl.Navigate(Decode(values))
		return s.ctrl
	}
	r.sessions[id] = &session{ctrl: ctrl, lastSeen: r.now()}
	r.mu.Unlock()
	return ctrl
}

func (r *Registry) touch(id string) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	s.lastSeen = r.now()
	return s.ctrl, true
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep closes sessions unused for longer than the TTL and returns how many
// were closed.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	var expired []*session
	for id, s := range r.sessions {
		if s.lastSeen.Before(cutoff) {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		s.ctrl.Close()
	}
	return len(expired)
}

// Run sweeps every interval until ctx is done, then closes all sessions.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.Sweep()
		case <-ctx.Done():
			r.CloseAll()
			return
		}
	}
}

// CloseAll closes every session.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.ctrl.Close()
	}
}
