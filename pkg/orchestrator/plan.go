package orchestrator

import (
	"sync"
	"time"

	"github.com/entrhq/formpilot/pkg/types"
)

// Plan is a proposed execution: the analyzed schema plus the safety
// verdict at analysis time, identified by the correlation ID that links
// phase one (propose) to phase two (confirmed execution) and to every
// audit entry of the run.
type Plan struct {
	CorrelationID string               `json:"correlation_id"`
	Schema        *types.FormSchema    `json:"schema"`
	Decision      types.SafetyDecision `json:"safety_decision"`
	CreatedAt     time.Time            `json:"created_at"`
}

// DefaultPlanTTL bounds how long a proposed plan stays executable. A
// stale schema must not be executed against a form that may have changed.
const DefaultPlanTTL = 15 * time.Minute

// planStore holds proposed plans awaiting confirmation. Plans are
// one-shot: take removes the plan so a correlation ID cannot be executed
// twice.
type planStore struct {
	mu    sync.Mutex
	plans map[string]*Plan
	ttl   time.Duration
	now   func() time.Time
}

func newPlanStore(ttl time.Duration) *planStore {
	if ttl <= 0 {
		ttl = DefaultPlanTTL
	}
	return &planStore{
		plans: make(map[string]*Plan),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (s *planStore) put(p *Plan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictExpired()
	s.plans[p.CorrelationID] = p
}

// take removes and returns the plan for id. Unknown and expired IDs both
// report false; the caller treats them identically (approval required).
func (s *planStore) take(id string) (*Plan, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.plans[id]
	if !ok {
		return nil, false
	}
	delete(s.plans, id)

	if s.now().Sub(p.CreatedAt) > s.ttl {
		return nil, false
	}
	return p, true
}

// evictExpired drops expired plans. Callers hold s.mu.
func (s *planStore) evictExpired() {
	cutoff := s.now().Add(-s.ttl)
	for id, p := range s.plans {
		if p.CreatedAt.Before(cutoff) {
			delete(s.plans, id)
		}
	}
}

func (s *planStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.plans)
}
