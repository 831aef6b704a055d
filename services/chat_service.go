package services

import (
	"context"
	"groupchat/contract"
	"groupchat/domain"
	"groupchat/domain/event"
	"groupchat/errors"
	"groupchat/moderation"
	"groupchat/observability"
	"groupchat/repositories"
	"groupchat/runtime"
	"groupchat/sink"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/samber/lo"
)

type IChatService interface {
	Send(ctx context.Context, cmd domain.SendMessageCommand) (domain.MessageView, error)
	SendFile(ctx context.Context, sender domain.Identity, groupID domain.GroupID, filename string, content io.Reader) (domain.MessageView, error)
	Read(ctx context.Context, cmd domain.ReadMessagesCommand) ([]domain.MessageView, error)
	Connect(identity domain.Identity) *sink.ConnectionSink
	Disconnect(s *sink.ConnectionSink)
	JoinGroup(ctx context.Context, s *sink.ConnectionSink, groupID domain.GroupID) error
	LeaveGroup(ctx context.Context, s *sink.ConnectionSink, groupID domain.GroupID) error
}

type ChatConfig struct {
	MaxMessageLength int
	BufferSize       int
}

// ChatService authorizes, persists and fans out messages.
// For a given group, persist and broadcast run under the group's lock in the
// sequencer: a connection sees that group's messages in identifier order.
type ChatService struct {
	log        *slog.Logger
	groups     repositories.IGroupRepository
	messages   repositories.IMessageRepository
	users      repositories.IUserRepository
	registry   contract.IRegistry
	sequencer  *runtime.Sequencer
	blobs      contract.BlobStore
	moderator  *moderation.Moderator
	monitoring *observability.MonitoringManager
	config     ChatConfig
}

func NewChatService(
	log *slog.Logger,
	groups repositories.IGroupRepository,
	messages repositories.IMessageRepository,
	users repositories.IUserRepository,
	registry contract.IRegistry,
	sequencer *runtime.Sequencer,
	blobs contract.BlobStore,
	moderator *moderation.Moderator,
	monitoring *observability.MonitoringManager,
	config ChatConfig,
) *ChatService {
	return &ChatService{
		log:        log,
		groups:     groups,
		messages:   messages,
		users:      users,
		registry:   registry,
		sequencer:  sequencer,
		blobs:      blobs,
		moderator:  moderator,
		monitoring: monitoring,
		config:     config,
	}
}

// authorize fails with NotFound for an unknown group and Unauthorized for a
// caller holding no membership. The global room is open to everyone.
func (s *ChatService) authorize(groupID domain.GroupID, userID domain.UserID) error {
	if groupID.IsGlobal() {
		return nil
	}
	if _, err := s.groups.GetMembership(groupID, userID); err != nil {
		return errors.Internal(err)
	}
	return nil
}

func (s *ChatService) validate(body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", errors.ErrEmptyMessage
	}
	if s.config.MaxMessageLength > 0 && utf8.RuneCountInString(body) > s.config.MaxMessageLength {
		return "", errors.ErrMessageTooLong
	}
	return body, nil
}

// Send stores the message then broadcasts it to the group room.
// Nothing is broadcast if the append fails, and the append itself re-checks
// the membership in its own transaction.
func (s *ChatService) Send(ctx context.Context, cmd domain.SendMessageCommand) (domain.MessageView, error) {
	if err := s.authorize(cmd.GroupID, cmd.Sender.UserID); err != nil {
		return domain.MessageView{}, err
	}
	body, err := s.validate(cmd.Body)
	if err != nil {
		return domain.MessageView{}, err
	}
	body, censored := s.moderator.Censor(body)
	if len(censored) > 0 {
		s.log.Debug("Message censored", "group", cmd.GroupID, "sender", cmd.Sender.UserID, "words", len(censored))
	}

	var message domain.Message
	err = s.sequencer.Do(cmd.GroupID, func() error {
		at := cmd.CreatedAt
		if at.IsZero() {
			at = time.Now()
		}
		message, err = s.messages.Append(cmd.GroupID, cmd.Sender.UserID, body, at)
		if err != nil {
			return err
		}
		// committed: fan-out no longer depends on the caller still waiting
		delivered := s.registry.Broadcast(context.WithoutCancel(ctx), cmd.GroupID, event.FromMessage(message, cmd.Sender.Name))
		if s.monitoring != nil {
			s.monitoring.IncrMessages()
			s.monitoring.IncrDeliveries(delivered)
		}
		return nil
	})
	if err != nil {
		if errors.KindOf(err) == errors.KindInternal {
			s.log.Error("Message not persisted", "group", cmd.GroupID, "sender", cmd.Sender.UserID, "error", err)
		}
		return domain.MessageView{}, errors.Internal(err)
	}
	observability.MessagesPersisted.WithLabelValues(scopeLabel(cmd.GroupID)).Inc()

	return toView(message, domain.SelfSender), nil
}

// SendFile stores the upload in the blob store and posts its URL as a message.
// Membership is checked before any byte is written.
func (s *ChatService) SendFile(ctx context.Context, sender domain.Identity, groupID domain.GroupID, filename string, content io.Reader) (domain.MessageView, error) {
	if err := s.authorize(groupID, sender.UserID); err != nil {
		return domain.MessageView{}, err
	}
	url, err := s.blobs.Put(ctx, filename, content)
	if err != nil {
		return domain.MessageView{}, errors.Internal(err)
	}
	return s.Send(ctx, domain.SendMessageCommand{GroupID: groupID, Sender: sender, Body: url})
}

// Read returns every message after the cursor, ascending, the reader's own
// messages relabeled as "you".
func (s *ChatService) Read(_ context.Context, cmd domain.ReadMessagesCommand) ([]domain.MessageView, error) {
	if err := s.authorize(cmd.GroupID, cmd.Reader.UserID); err != nil {
		return nil, err
	}
	messages, err := s.messages.ListAfter(cmd.GroupID, cmd.AfterID)
	if err != nil {
		return nil, errors.Internal(err)
	}

	senders := lo.Uniq(lo.Map(messages, func(m domain.Message, _ int) domain.UserID {
		return m.SenderID
	}))
	users, err := s.users.GetUsers(senders)
	if err != nil {
		return nil, errors.Internal(err)
	}

	return lo.Map(messages, func(m domain.Message, _ int) domain.MessageView {
		name := users[m.SenderID].Name
		if m.SenderID == cmd.Reader.UserID {
			name = domain.SelfSender
		}
		return toView(m, name)
	}), nil
}

// Connect registers a new live connection. Every connection is subscribed to
// the global room from the start.
func (s *ChatService) Connect(identity domain.Identity) *sink.ConnectionSink {
	conn := sink.NewConnectionSink(identity.UserID, s.config.BufferSize)
	s.registry.Join(conn, domain.GlobalGroup)
	observability.ActiveConnections.Inc()
	s.log.Debug("Connection opened", "connection", conn.ID(), "user", identity.UserID)
	return conn
}

// Disconnect closes the sink first, so nothing is attempted on the connection
// once teardown began, then drops all of its subscriptions.
func (s *ChatService) Disconnect(conn *sink.ConnectionSink) {
	conn.Close()
	s.registry.LeaveAll(conn.ID())
	observability.ActiveConnections.Dec()
	s.log.Debug("Connection closed", "connection", conn.ID(), "user", conn.UserID())
}

// JoinGroup subscribes the connection to a group room it is a member of.
// The check and the subscription run under the group's lock, so they cannot
// interleave with a removal.
func (s *ChatService) JoinGroup(ctx context.Context, conn *sink.ConnectionSink, groupID domain.GroupID) error {
	return s.sequencer.Do(groupID, func() error {
		if err := s.authorize(groupID, conn.UserID()); err != nil {
			return err
		}
		s.registry.Join(conn, groupID)
		// acknowledged before any later broadcast of the group
		_ = conn.Consume(ctx, event.GroupJoined{GroupID: groupID})
		return nil
	})
}

// LeaveGroup unsubscribes from a group room. The global room is held for the
// whole life of the connection, user notifications go through it.
func (s *ChatService) LeaveGroup(ctx context.Context, conn *sink.ConnectionSink, groupID domain.GroupID) error {
	if groupID.IsGlobal() {
		return errors.ErrLeaveGlobal
	}
	s.registry.Leave(conn.ID(), groupID)
	_ = conn.Consume(ctx, event.GroupLeft{GroupID: groupID})
	return nil
}

func toView(m domain.Message, sender string) domain.MessageView {
	return domain.MessageView{
		ID:        m.ID,
		Body:      m.Body,
		GroupID:   m.GroupID,
		Sender:    sender,
		SenderID:  m.SenderID,
		CreatedAt: m.CreatedAt,
		IsFile:    domain.IsFileURL(m.Body),
	}
}

func scopeLabel(groupID domain.GroupID) string {
	if groupID.IsGlobal() {
		return "global"
	}
	return "group"
}
