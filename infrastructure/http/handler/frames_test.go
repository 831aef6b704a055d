package handler

import (
	"encoding/json"
	"groupchat/domain/event"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEncodeEvent_Global_Message_Has_Null_Group(t *testing.T) {
	req := require.New(t)
	at := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	raw, err := json.Marshal(encodeEvent(event.MessagePosted{ID: 7, Body: "hi", Sender: "Alice", SenderID: "u1", At: at}))
	req.NoError(err)
	req.JSONEq(`{"event":"newMessage","data":{"id":7,"message":"hi","groupId":null,"sender":"Alice","userId":"u1","createdAt":"2026-05-01T08:00:00Z","isFile":false}}`, string(raw))
}

func TestEncodeEvent_Group_Events(t *testing.T) {
	req := require.New(t)

	raw, err := json.Marshal(encodeEvent(event.MessagePosted{ID: 8, Body: "https://x/a.png", GroupID: "g1"}))
	req.NoError(err)
	var frame struct {
		Event string `json:"event"`
		Data  struct {
			GroupID *string `json:"groupId"`
			IsFile  bool    `json:"isFile"`
		} `json:"data"`
	}
	req.NoError(json.Unmarshal(raw, &frame))
	req.Equal("newMessage", frame.Event)
	req.Equal("g1", *frame.Data.GroupID)
	req.True(frame.Data.IsFile)

	raw, err = json.Marshal(encodeEvent(event.UserInvited{UserID: "u2", GroupID: "g1"}))
	req.NoError(err)
	req.JSONEq(`{"event":"userInvited","data":{"userId":"u2","groupId":"g1"}}`, string(raw))

	raw, err = json.Marshal(encodeEvent(event.Failure{Kind: "unauthorized", Message: "nope"}))
	req.NoError(err)
	req.JSONEq(`{"event":"error","data":{"kind":"unauthorized","message":"nope"}}`, string(raw))
}
