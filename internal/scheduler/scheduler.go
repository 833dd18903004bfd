package scheduler

import (
	"sync"
	"time"

	"github.com/prepboard/examengine/internal/model"
	"github.com/rs/zerolog/log"
)

// Submitter performs the timeout-triggered completion of a session. It is the
// session service in production; the indirection keeps the timer registry free
// of service dependencies and lets tests observe fires directly.
type Submitter interface {
	SubmitTimeout(sessionID uint) error
}

// Scheduler guarantees every in_progress session reaches completed even if
// the client disconnects: one timer per active session, keyed by session id,
// cancelled as part of the completed transition.
type Scheduler struct {
	mu        sync.Mutex
	timers    map[uint]*time.Timer
	submitter Submitter
	now       func() time.Time
}

func New() *Scheduler {
	return &Scheduler{
		timers: make(map[uint]*time.Timer),
		now:    time.Now,
	}
}

// SetSubmitter wires the submit callback after construction. The session
// service holds the scheduler (to arm and cancel timers) and the scheduler
// calls back into the service on fire, so one side has to be set late.
func (s *Scheduler) SetSubmitter(sub Submitter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitter = sub
}

// Arm schedules an auto-submit at deadline, replacing any existing timer for
// the session. A deadline already in the past fires immediately.
func (s *Scheduler) Arm(sessionID uint, deadline time.Time) {
	delay := deadline.Sub(s.now())
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.timers[sessionID]; ok {
		existing.Stop()
	}
	s.timers[sessionID] = time.AfterFunc(delay, func() { s.fire(sessionID) })
	log.Debug().Uint("sessionID", sessionID).Time("deadline", deadline).Msg("Scheduler: timer armed")
}

// Cancel drops the session's timer. Called by the manual-submit path as part
// of the completed transition; a raced fire is harmless because submit is
// idempotent.
func (s *Scheduler) Cancel(sessionID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, ok := s.timers[sessionID]; ok {
		timer.Stop()
		delete(s.timers, sessionID)
	}
}

// Active reports the number of armed timers.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels every timer. Used on shutdown; the recovery scan re-arms on
// the next start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}

// Recover reconciles the timer registry with the store after a restart:
// sessions past their deadline are submitted right away, the rest get their
// timers re-armed for the remaining interval. One poisoned session must not
// starve the others, so failures are logged and the scan continues.
func (s *Scheduler) Recover(sessions []model.ExamSession) {
	now := s.now()
	overdue, rearmed := 0, 0
	for _, session := range sessions {
		deadline := session.Deadline()
		if deadline.After(now) {
			s.Arm(session.ID, deadline)
			rearmed++
			continue
		}
		overdue++
		if err := s.submitSession(session.ID); err != nil {
			log.Error().Err(err).Uint("sessionID", session.ID).Msg("Scheduler: recovery submit failed, continuing scan")
		}
	}
	log.Info().Int("overdue", overdue).Int("rearmed", rearmed).Msg("Scheduler: recovery scan finished")
}

func (s *Scheduler) fire(sessionID uint) {
	s.mu.Lock()
	delete(s.timers, sessionID)
	s.mu.Unlock()

	if err := s.submitSession(sessionID); err != nil {
		log.Error().Err(err).Uint("sessionID", sessionID).Msg("Scheduler: timeout submit failed")
		return
	}
	log.Info().Uint("sessionID", sessionID).Msg("Scheduler: session auto-submitted on deadline")
}

func (s *Scheduler) submitSession(sessionID uint) error {
	s.mu.Lock()
	sub := s.submitter
	s.mu.Unlock()
	if sub == nil {
		log.Error().Uint("sessionID", sessionID).Msg("Scheduler: no submitter wired, dropping fire")
		return nil
	}
	return sub.SubmitTimeout(sessionID)
}
