package sink

import (
	"context"
	"groupchat/domain/event"
	"groupchat/errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConnectionSink_Queues_Until_Full(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := NewConnectionSink("alice", 2)

	req.NotEmpty(s.ID())
	req.Equal("alice", string(s.UserID()))

	req.NoError(s.Consume(ctx, event.MessagePosted{ID: 1}))
	req.NoError(s.Consume(ctx, event.MessagePosted{ID: 2}))
	req.Equal(event.MessagePosted{ID: 1}, <-s.Events())

	req.NoError(s.Consume(ctx, event.MessagePosted{ID: 3}))

	// When the queue overflows, the sink closes itself
	err := s.Consume(ctx, event.MessagePosted{ID: 4})
	req.ErrorIs(err, errors.ErrSlowConsumer)
	req.True(s.Closed())

	select {
	case <-s.Done():
	default:
		req.Fail("done must be closed")
	}

	err = s.Consume(ctx, event.MessagePosted{ID: 5})
	req.ErrorIs(err, errors.ErrSinkClosed)
}

func TestConnectionSink_Close_Twice(t *testing.T) {
	req := require.New(t)
	s := NewConnectionSink("alice", 0)

	s.Close()
	s.Close()

	req.True(s.Closed())
	req.ErrorIs(s.Consume(context.Background(), event.GroupLeft{}), errors.ErrSinkClosed)
}

func TestConnectionSink_Canceled_Context(t *testing.T) {
	req := require.New(t)
	s := NewConnectionSink("alice", 4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req.ErrorIs(s.Consume(ctx, event.GroupLeft{}), context.Canceled)
	req.False(s.Closed())
}

func TestConnectionSinks_Have_Distinct_Ids(t *testing.T) {
	req := require.New(t)
	req.NotEqual(NewConnectionSink("alice", 1).ID(), NewConnectionSink("alice", 1).ID())
}
