package handler

import (
	"encoding/json"
	"groupchat/domain"
	"groupchat/domain/event"
	"time"
)

// Frames on the live channel are {"event": name, "data": payload}.
type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type outboundFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

const (
	inJoinGroup  = "joinGroup"
	inLeaveGroup = "leaveGroup"
)

type groupRef struct {
	GroupID domain.GroupID `json:"groupId"`
}

type newMessagePayload struct {
	ID        uint64          `json:"id"`
	Message   string          `json:"message"`
	GroupID   *domain.GroupID `json:"groupId"`
	Sender    string          `json:"sender"`
	UserID    domain.UserID   `json:"userId"`
	CreatedAt time.Time       `json:"createdAt"`
	IsFile    bool            `json:"isFile"`
}

type userInvitedPayload struct {
	UserID  domain.UserID  `json:"userId"`
	GroupID domain.GroupID `json:"groupId"`
}

type failurePayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// encodeEvent maps a domain event to its wire frame.
// Global messages carry a null groupId.
func encodeEvent(e event.DomainEvent) outboundFrame {
	switch evt := e.(type) {
	case event.MessagePosted:
		var gid *domain.GroupID
		if !evt.GroupID.IsGlobal() {
			gid = &evt.GroupID
		}
		return outboundFrame{Event: evt.Name(), Data: newMessagePayload{
			ID:        evt.ID,
			Message:   evt.Body,
			GroupID:   gid,
			Sender:    evt.Sender,
			UserID:    evt.SenderID,
			CreatedAt: evt.At,
			IsFile:    domain.IsFileURL(evt.Body),
		}}
	case event.UserInvited:
		return outboundFrame{Event: evt.Name(), Data: userInvitedPayload{UserID: evt.UserID, GroupID: evt.GroupID}}
	case event.GroupJoined:
		return outboundFrame{Event: evt.Name(), Data: groupRef{GroupID: evt.GroupID}}
	case event.GroupLeft:
		return outboundFrame{Event: evt.Name(), Data: groupRef{GroupID: evt.GroupID}}
	case event.Failure:
		return outboundFrame{Event: evt.Name(), Data: failurePayload{Kind: evt.Kind, Message: evt.Message}}
	default:
		return outboundFrame{Event: e.Name()}
	}
}
