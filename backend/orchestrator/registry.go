package orchestrator

import (
	"context"
	"sync"

	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/capture"
	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/model"
)

// Session is what the registry and the HTTP layer need from payment and enrollment sessions
type Session interface {
	ID() string
	Owner() string
	Kind() model.SessionKind
	State() State
	Snapshot() model.SessionSnapshot
	Outcome() (model.Outcome, bool)
	Stop(reason string)
	Done() <-chan struct{}
}

// BuildFunc creates a session reading frames from feed
type BuildFunc func(feed *capture.FeedDevice) Session

type entry struct {
	owner   string
	session Session
	feed    *capture.FeedDevice
}

// Registry tracks live sessions. Each owner has at most one live session;
// a new one is refused until the previous one finished its teardown.
type Registry struct {
	mu      sync.Mutex
	byID    map[string]*entry
	byOwner map[string]*entry
}

func NewRegistry() *Registry {
	return &Registry{
		byID:    make(map[string]*entry),
		byOwner: make(map[string]*entry),
	}
}

// Open builds and registers a session for owner, or returns ErrSessionBusy
func (r *Registry) Open(owner string, build BuildFunc) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.byOwner[owner]; ok {
		select {
		case <-prev.session.Done():
			r.removeLocked(prev)
		default:
			return nil, ErrSessionBusy
		}
	}

	e := &entry{owner: owner, feed: capture.NewFeedDevice()}
	e.session = build(e.feed)
	r.byID[e.session.ID()] = e
	r.byOwner[owner] = e

	go func() {
		<-e.session.Done()
		r.mu.Lock()
		r.removeLocked(e)
		r.mu.Unlock()
	}()

	return e.session, nil
}

// Get returns a live session
func (r *Registry) Get(id string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return e.session, true
}

// ByOwner returns the live session of owner
func (r *Registry) ByOwner(owner string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byOwner[owner]
	if !ok {
		return nil, false
	}
	return e.session, true
}

// Feed returns the frame feed of a live session
func (r *Registry) Feed(id string) (*capture.FeedDevice, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return e.feed, true
}

// Len returns the number of live sessions
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// StopAll stops every live session and waits for their teardown or ctx
func (r *Registry) StopAll(ctx context.Context, reason string) error {
	r.mu.Lock()
	sessions := make([]Session, 0, len(r.byID))
	for _, e := range r.byID {
		sessions = append(sessions, e.session)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		s.Stop(reason)
	}
	for _, s := range sessions {
		select {
		case <-s.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (r *Registry) removeLocked(e *entry) {
	if cur, ok := r.byID[e.session.ID()]; ok && cur == e {
		delete(r.byID, e.session.ID())
	}
	if cur, ok := r.byOwner[e.owner]; ok && cur == e {
		delete(r.byOwner, e.owner)
	}
}
