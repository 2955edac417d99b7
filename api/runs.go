package api

import (
	"sync"
	"time"

	"remarknews/orchestrator"
)

const (
	StateRunning  = "running"
	StateComplete = "complete"
	StateError    = "error"
)

// RunStatus is the externally visible state of one run.
type RunStatus struct {
	ID         string                  `json:"id"`
	State      string                  `json:"state"`
	Origin     string                  `json:"origin"`
	StartedAt  time.Time               `json:"started_at"`
	FinishedAt *time.Time              `json:"finished_at,omitempty"`
	Report     *orchestrator.RunReport `json:"report,omitempty"`
	Error      string                  `json:"error,omitempty"`
}

// runStore keeps the most recent runs in start order.
type runStore struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]*RunStatus
	max   int
}

func newRunStore(max int) *runStore {
	return &runStore{byID: make(map[string]*RunStatus), max: max}
}

func (s *runStore) start(id, origin string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[id] = &RunStatus{ID: id, State: StateRunning, Origin: origin, StartedAt: time.Now()}
	s.order = append(s.order, id)
	if len(s.order) > s.max {
		for _, old := range s.order[:len(s.order)-s.max] {
			delete(s.byID, old)
		}
		s.order = s.order[len(s.order)-s.max:]
	}
}

func (s *runStore) finish(id string, report *orchestrator.RunReport, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.byID[id]
	if !ok {
		return
	}
	now := time.Now()
	st.FinishedAt = &now
	st.Report = report
	st.State = StateComplete
	if err != nil {
		st.State = StateError
		st.Error = err.Error()
	}
}

// get returns a copy of the run's status.
func (s *runStore) get(id string) (RunStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.byID[id]
	if !ok {
		return RunStatus{}, false
	}
	return *st, true
}

// list returns the runs newest first.
func (s *runStore) list() []RunStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RunStatus, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, *s.byID[s.order[i]])
	}
	return out
}
