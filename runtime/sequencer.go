package runtime

import (
	"groupchat/domain"
	"sync"
)

// Sequencer hands out one lock per group.
// Holding a group's lock across "persist then broadcast" makes the order in
// which a connection receives that group's messages equal to the order of
// their identifiers. Two different groups never wait on each other.
type Sequencer struct {
	mu    sync.Mutex
	locks map[domain.GroupID]*groupLock
}

type groupLock struct {
	mu   sync.Mutex
	refs int
}

func NewSequencer() *Sequencer {
	return &Sequencer{locks: make(map[domain.GroupID]*groupLock)}
}

// Lock blocks until the caller owns groupID. The returned func releases it.
func (s *Sequencer) Lock(groupID domain.GroupID) (unlock func()) {
	s.mu.Lock()
	l, ok := s.locks[groupID]
	if !ok {
		l = &groupLock{}
		s.locks[groupID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		// Nobody waits on it any more
		if l.refs == 0 {
			delete(s.locks, groupID)
		}
		s.mu.Unlock()
	}
}

// Do runs fn while holding the lock of groupID.
func (s *Sequencer) Do(groupID domain.GroupID, fn func() error) error {
	unlock := s.Lock(groupID)
	defer unlock()
	return fn()
}

// Len is the number of groups currently locked or waited on.
func (s *Sequencer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}
