package sink

import (
	"context"
	"groupchat/domain"
	"groupchat/domain/event"
	"groupchat/errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// ConnectionSink is the outbound queue of one live connection.
// The room registry pushes into it, the transport writer drains it.
type ConnectionSink struct {
	id        string
	userID    domain.UserID
	events    chan event.DomainEvent
	done      chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
}

func NewConnectionSink(userID domain.UserID, bufferSize int) *ConnectionSink {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &ConnectionSink{
		id:     uuid.NewString(),
		userID: userID,
		events: make(chan event.DomainEvent, bufferSize),
		done:   make(chan struct{}),
	}
}

func (s *ConnectionSink) ID() string { return s.id }

func (s *ConnectionSink) UserID() domain.UserID { return s.userID }

// Consume never blocks.
// A full queue means the client can no longer keep up: rather than silently
// losing an event, the connection is closed and the client resyncs from its
// last cursor when it reconnects.
func (s *ConnectionSink) Consume(ctx context.Context, e event.DomainEvent) error {
	if s.closed.Load() {
		return errors.ErrSinkClosed
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	select {
	case s.events <- e:
		return nil
	default:
		s.Close()
		return errors.ErrSlowConsumer
	}
}

// Events is drained by the writer. It is never closed, select on Done too.
func (s *ConnectionSink) Events() <-chan event.DomainEvent { return s.events }

func (s *ConnectionSink) Done() <-chan struct{} { return s.done }

func (s *ConnectionSink) Closed() bool { return s.closed.Load() }

// Close stops every future delivery. Safe to call more than once.
func (s *ConnectionSink) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.done)
	})
}
