package services

import (
	"groupchat/domain"
	"groupchat/domain/event"
	"groupchat/moderation"
	"groupchat/repositories"
	"groupchat/runtime"
	"groupchat/sink"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

// stack wires the real stores, registry and services on a temporary badger.
type stack struct {
	users    repositories.IUserRepository
	groups   repositories.IGroupRepository
	messages *repositories.MessageRepository
	registry *runtime.Registry
	chat     *ChatService
	group    *GroupService
}

func newStack(t *testing.T) *stack {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	messages, err := repositories.NewMessageRepository(db)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = messages.Close()
		_ = db.Close()
	})

	log := slog.Default()
	users := repositories.NewUserRepository(db)
	groups := repositories.NewGroupRepository(db)
	registry := runtime.NewRegistry(log)
	sequencer := runtime.NewSequencer()
	moderator, err := moderation.NewModerator([]string{"badger"}, '*')
	require.NoError(t, err)
	return &stack{
		users:    users,
		groups:   groups,
		messages: messages,
		registry: registry,
		chat: NewChatService(log, groups, messages, users, registry, sequencer, nil, moderator, nil,
			ChatConfig{MaxMessageLength: 20, BufferSize: 256}),
		group: NewGroupService(log, groups, users, registry, sequencer),
	}
}

func (s *stack) user(t *testing.T, name string) domain.Identity {
	t.Helper()
	u, err := s.users.CreateUser(name, name+"@example.com", "", "hash")
	require.NoError(t, err)
	return u.Identity()
}

// next waits briefly for the next event on a connection.
func next(t *testing.T, conn *sink.ConnectionSink) event.DomainEvent {
	t.Helper()
	select {
	case e := <-conn.Events():
		return e
	case <-time.After(time.Second):
		require.FailNow(t, "no event received")
		return nil
	}
}

func pending(conn *sink.ConnectionSink) int {
	return len(conn.Events())
}
