package service

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/config"
	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/model"
)

// SessionStore keeps snapshots of recent sessions so their outcome can be
// read after the live session is gone.
// In production, this should be replaced with a database
type SessionStore struct {
	sessions    map[string]*model.SessionSnapshot
	mu          sync.RWMutex
	maxSessions int // Maximum sessions to keep, 0 = unlimited
}

// NewSessionStore creates a store with the configured retention
func NewSessionStore(cfg *config.StoreConfig) *SessionStore {
	maxSessions := cfg.MaxSessions
	if maxSessions < 0 {
		maxSessions = 0
	}
	slog.Info("session store initialized", "max_sessions", maxSessions)
	return &SessionStore{
		sessions:    make(map[string]*model.SessionSnapshot),
		maxSessions: maxSessions,
	}
}

// Save stores a copy of snap, replacing any earlier snapshot of the same session
func (s *SessionStore) Save(snap model.SessionSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = time.Now()
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = snap.UpdatedAt
	}
	s.sessions[snap.ID] = cloneSnapshot(&snap)

	// Cleanup if exceeds max
	s.cleanupIfNeeded()
}

// Publish records a session outcome. It lets the store act as an outcome sink.
func (s *SessionStore) Publish(ctx context.Context, out model.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.sessions[out.SessionID]
	if !ok {
		snap = &model.SessionSnapshot{
			ID:        out.SessionID,
			Owner:     out.Owner,
			Kind:      out.Kind,
			CreatedAt: out.At,
		}
		s.sessions[out.SessionID] = snap
	}
	stored := cloneOutcomeValue(out)
	snap.Outcome = &stored
	snap.State = out.State
	snap.UpdatedAt = out.At
	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = time.Now()
	}

	s.cleanupIfNeeded()
	return nil
}

// Get returns a copy of the snapshot, or nil
func (s *SessionStore) Get(id string) *model.SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.sessions[id]
	if !ok {
		return nil
	}
	return cloneSnapshot(snap)
}

// GetByOwner returns the owner's sessions, newest first
func (s *SessionStore) GetByOwner(owner string) []*model.SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*model.SessionSnapshot
	for _, snap := range s.sessions {
		if snap.Owner == owner {
			result = append(result, cloneSnapshot(snap))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// cleanupIfNeeded removes oldest sessions if store exceeds maxSessions
// Must be called with lock held
func (s *SessionStore) cleanupIfNeeded() {
	if s.maxSessions <= 0 {
		return // Unlimited
	}

	if len(s.sessions) <= s.maxSessions {
		return
	}

	sessions := make([]*model.SessionSnapshot, 0, len(s.sessions))
	for _, snap := range s.sessions {
		sessions = append(sessions, snap)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})

	removeCount := len(sessions) - s.maxSessions
	for i := 0; i < removeCount; i++ {
		slog.Info("auto-cleaning old session",
			"session_id", sessions[i].ID,
			"created_at", sessions[i].CreatedAt,
		)
		delete(s.sessions, sessions[i].ID)
	}
}

// Count returns the number of sessions in the store
func (s *SessionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func cloneSnapshot(snap *model.SessionSnapshot) *model.SessionSnapshot {
	out := *snap
	if snap.Transaction != nil {
		rec := snap.Transaction.Clone()
		out.Transaction = &rec
	}
	if snap.Capture != nil {
		progress := *snap.Capture
		out.Capture = &progress
	}
	if snap.Outcome != nil {
		outcome := cloneOutcomeValue(*snap.Outcome)
		out.Outcome = &outcome
	}
	return &out
}

func cloneOutcomeValue(out model.Outcome) model.Outcome {
	if out.RiskScore != nil {
		score := *out.RiskScore
		out.RiskScore = &score
	}
	if out.Reasons != nil {
		out.Reasons = append([]string(nil), out.Reasons...)
	}
	return out
}
