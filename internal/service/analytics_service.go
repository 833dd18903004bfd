package service

import (
	"errors"
	"sync"
	"time"

	"github.com/prepboard/examengine/internal/analytics"
	"github.com/prepboard/examengine/internal/errs"
	"github.com/prepboard/examengine/internal/repository"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const mostMissedLimit = 3

// AnalyticsService serves derived aggregates over completed sessions. The
// snapshot is not authoritative state, so a short TTL cache is safe: it only
// ever lags behind newly completed sessions.
type AnalyticsService interface {
	GetAnalytics(testID uint) (*analytics.Snapshot, error)
	GetInsights(testID uint) (*analytics.Insights, error)
}

type cachedSnapshot struct {
	snapshot analytics.Snapshot
	expires  time.Time
}

type analyticsService struct {
	testRepo    repository.TestRepository
	sessionRepo repository.SessionRepository
	params      analytics.Params
	ttl         time.Duration
	now         func() time.Time

	mu    sync.Mutex
	cache map[uint]cachedSnapshot
}

func NewAnalyticsService(
	testRepo repository.TestRepository,
	sessionRepo repository.SessionRepository,
	params analytics.Params,
	ttl time.Duration,
) AnalyticsService {
	return &analyticsService{
		testRepo:    testRepo,
		sessionRepo: sessionRepo,
		params:      params,
		ttl:         ttl,
		now:         time.Now,
		cache:       make(map[uint]cachedSnapshot),
	}
}

func (s *analyticsService) GetAnalytics(testID uint) (*analytics.Snapshot, error) {
	snap, err := s.snapshot(testID)
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *analyticsService) GetInsights(testID uint) (*analytics.Insights, error) {
	snap, err := s.snapshot(testID)
	if err != nil {
		return nil, err
	}
	ins := analytics.BuildInsights(*snap, mostMissedLimit)
	return &ins, nil
}

func (s *analyticsService) snapshot(testID uint) (*analytics.Snapshot, error) {
	s.mu.Lock()
	if cached, ok := s.cache[testID]; ok && s.now().Before(cached.expires) {
		s.mu.Unlock()
		return &cached.snapshot, nil
	}
	s.mu.Unlock()

	test, err := s.testRepo.FindByIDWithQuestions(testID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("test %d not found", testID)
		}
		return nil, err
	}

	// Only terminal sessions are read, so this is safe to run concurrently
	// with sessions completing: they simply show up on the next refresh.
	sessions, err := s.sessionRepo.FindCompletedByTest(testID)
	if err != nil {
		log.Error().Err(err).Uint("testID", testID).Msg("Analytics: failed to load completed sessions")
		return nil, err
	}

	snap := analytics.BuildSnapshot(test, sessions, s.params)

	s.mu.Lock()
	s.cache[testID] = cachedSnapshot{snapshot: snap, expires: s.now().Add(s.ttl)}
	s.mu.Unlock()

	return &snap, nil
}
