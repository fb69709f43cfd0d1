package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/drstein77/storefront/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrNotFound = errors.New("session not found")

type Log interface {
	Info(string, ...zap.Field)
	Error(string, ...zap.Field)
}

// Keeper persists sessions beyond the process lifetime.
type Keeper interface {
	LoadSessions(ctx context.Context, since time.Time) ([]models.Session, error)
	SaveSession(ctx context.Context, s models.Session) error
	DeleteSession(ctx context.Context, id string) error
	Ping(context.Context) bool
	Close() bool
}

// MemoryStorage holds authenticated sessions in memory and mirrors
// them into the keeper when one is configured.
type MemoryStorage struct {
	mx       sync.RWMutex
	sessions map[string]models.Session
	ttl      time.Duration
	now      func() time.Time

	keeper Keeper
	log    Log
}

// NewMemoryStorage creates a storage and preloads unexpired sessions from keeper.
func NewMemoryStorage(ctx context.Context, keeper Keeper, ttl time.Duration, log Log) *MemoryStorage {
	s := &MemoryStorage{
		sessions: make(map[string]models.Session),
		ttl:      ttl,
		now:      time.Now,
		keeper:   keeper,
		log:      log,
	}

	if keeper != nil {
		loaded, err := keeper.LoadSessions(ctx, s.now().Add(-ttl))
		if err != nil {
			log.Error("cannot load sessions", zap.Error(err))
		}
		for _, sess := range loaded {
			s.sessions[sess.ID] = sess
		}
		log.Info("sessions loaded", zap.Int("count", len(loaded)))
	}

	return s
}

// Create starts a session for a logged in user.
func (s *MemoryStorage) Create(ctx context.Context, token, username string) (models.Session, error) {
	sess := models.Session{
		ID:        uuid.NewString(),
		Token:     token,
		Username:  username,
		CreatedAt: s.now().UTC(),
	}

	if s.keeper != nil {
		if err := s.keeper.SaveSession(ctx, sess); err != nil {
			return models.Session{}, err
		}
	}

	s.mx.Lock()
	s.sessions[sess.ID] = sess
	s.mx.Unlock()

	return sess, nil
}

// Get returns a live session. Expired sessions are removed and reported as ErrNotFound.
func (s *MemoryStorage) Get(ctx context.Context, id string) (models.Session, error) {
	s.mx.RLock()
	sess, ok := s.sessions[id]
	s.mx.RUnlock()

	if !ok {
		return models.Session{}, ErrNotFound
	}
	if s.ttl > 0 && s.now().Sub(sess.CreatedAt) > s.ttl {
		if err := s.Delete(ctx, id); err != nil {
			s.log.Error("cannot drop expired session", zap.Error(err))
		}
		return models.Session{}, ErrNotFound
	}
	return sess, nil
}

// Delete ends a session. Deleting an unknown session is not an error.
func (s *MemoryStorage) Delete(ctx context.Context, id string) error {
	s.mx.Lock()
	delete(s.sessions, id)
	s.mx.Unlock()

	if s.keeper != nil {
		return s.keeper.DeleteSession(ctx, id)
	}
	return nil
}

// Ping checks the keeper. Without one the storage is always healthy.
func (s *MemoryStorage) Ping(ctx context.Context) bool {
	if s.keeper == nil {
		return true
	}
	return s.keeper.Ping(ctx)
}

func (s *MemoryStorage) Close() {
	if s.keeper != nil {
		s.keeper.Close()
	}
}

type ctxKey struct{}

// NewContext returns a context carrying sess.
func NewContext(ctx context.Context, sess *models.Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, sess)
}

// FromContext returns the request session, or an anonymous one.
func FromContext(ctx context.Context) *models.Session {
	if sess, ok := ctx.Value(ctxKey{}).(*models.Session); ok && sess != nil {
		return sess
	}
	return &models.Session{}
}
