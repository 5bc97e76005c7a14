package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sketchvote/sketchvote/go/internal/models"
)

// fakeStore is an in-memory GameStore with the same conditional-write
// semantics as the Postgres repository.
type fakeStore struct {
	mu           sync.Mutex
	games        map[uuid.UUID]*models.Game
	participants map[uuid.UUID]int
	submissions  map[uuid.UUID]int

	getErr        error
	findErr       error
	transitionErr error
	graceErr      error
	countErr      error

	transitions int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		games:        make(map[uuid.UUID]*models.Game),
		participants: make(map[uuid.UUID]int),
		submissions:  make(map[uuid.UUID]int),
	}
}

func (s *fakeStore) addGame(g *models.Game) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *g
	s.games[g.ID] = &copied
}

func (s *fakeStore) game(id uuid.UUID) models.Game {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.games[id]
}

func (s *fakeStore) GetGame(ctx context.Context, id uuid.UUID) (*models.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	g, ok := s.games[id]
	if !ok {
		return nil, errors.New("game not found")
	}
	copied := *g
	return &copied, nil
}

func (s *fakeStore) FindExpired(ctx context.Context, limit int32) ([]models.ExpiredGame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	now := time.Now().UTC()
	var expired []models.ExpiredGame
	for _, g := range s.games {
		if g.Status == models.GameStatusCompleted || g.Status == models.GameStatusCancelled {
			continue
		}
		if g.PhaseExpiresAt != nil && !g.PhaseExpiresAt.After(now) {
			expired = append(expired, models.ExpiredGame{ID: g.ID, Status: g.Status, PhaseExpiresAt: *g.PhaseExpiresAt})
		}
		if int32(len(expired)) >= limit {
			break
		}
	}
	return expired, nil
}

func (s *fakeStore) TransitionStatus(ctx context.Context, id uuid.UUID, fromStatus, toStatus models.GameStatus, phaseDuration int, expiresAt *time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transitionErr != nil {
		return false, s.transitionErr
	}
	g, ok := s.games[id]
	if !ok || g.Status != fromStatus {
		return false, nil
	}
	g.Status = toStatus
	g.PhaseDuration = phaseDuration
	g.PhaseExpiresAt = expiresAt
	g.GraceStartedAt = nil
	s.transitions++
	return true, nil
}

func (s *fakeStore) StartGrace(ctx context.Context, id uuid.UUID, startedAt time.Time, extendSec int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.graceErr != nil {
		return false, s.graceErr
	}
	g, ok := s.games[id]
	if !ok || g.Status != models.GameStatusDrawing || g.GraceStartedAt != nil {
		return false, nil
	}
	g.GraceStartedAt = &startedAt
	if g.PhaseExpiresAt != nil {
		t := g.PhaseExpiresAt.Add(time.Duration(extendSec) * time.Second)
		g.PhaseExpiresAt = &t
	}
	return true, nil
}

func (s *fakeStore) CountActiveParticipants(ctx context.Context, gameID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.countErr != nil {
		return 0, s.countErr
	}
	return s.participants[gameID], nil
}

func (s *fakeStore) CountSubmissions(ctx context.Context, gameID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.countErr != nil {
		return 0, s.countErr
	}
	return s.submissions[gameID], nil
}

// fakeNotifier records broadcast calls.
type fakeNotifier struct {
	mu    sync.Mutex
	calls []notifiedTransition
}

type notifiedTransition struct {
	GameID   uuid.UUID
	Previous models.GameStatus
	Next     models.GameStatus
}

func (n *fakeNotifier) PhaseChanged(ctx context.Context, gameID uuid.UUID, previous, next models.GameStatus, executionID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notifiedTransition{GameID: gameID, Previous: previous, Next: next})
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

// fakeLock is scriptable for mutual-exclusion tests.
type fakeLock struct {
	mu       sync.Mutex
	held     bool
	denyAll  bool
	acquires int
	releases int
}

func (l *fakeLock) Acquire(ctx context.Context, timeout time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.acquires++
	if l.denyAll || l.held {
		return false, nil
	}
	l.held = true
	return true, nil
}

func (l *fakeLock) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held = false
	l.releases++
	return nil
}
