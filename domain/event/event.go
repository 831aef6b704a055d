package event

import (
	"groupchat/domain"
	"time"
)

// DomainEvent is anything pushed to a live connection.
type DomainEvent interface {
	Name() string
}

const (
	NameNewMessage  = "newMessage"
	NameUserInvited = "userInvited"
	NameJoined      = "joined"
	NameLeft        = "left"
	NameError       = "error"
)

// MessagePosted is emitted once per persisted message, after the commit.
type MessagePosted struct {
	ID       uint64
	Body     string
	GroupID  domain.GroupID
	Sender   string
	SenderID domain.UserID
	At       time.Time
}

func (MessagePosted) Name() string { return NameNewMessage }

func FromMessage(m domain.Message, senderName string) MessagePosted {
	return MessagePosted{
		ID:       m.ID,
		Body:     m.Body,
		GroupID:  m.GroupID,
		Sender:   senderName,
		SenderID: m.SenderID,
		At:       m.CreatedAt,
	}
}

type UserInvited struct {
	UserID  domain.UserID
	GroupID domain.GroupID
}

func (UserInvited) Name() string { return NameUserInvited }

// GroupJoined acknowledges a joinGroup request on the connection that sent it.
type GroupJoined struct {
	GroupID domain.GroupID
}

func (GroupJoined) Name() string { return NameJoined }

type GroupLeft struct {
	GroupID domain.GroupID
}

func (GroupLeft) Name() string { return NameLeft }

// Failure reports a rejected client request on the live channel.
type Failure struct {
	Kind    string
	Message string
}

func (Failure) Name() string { return NameError }
