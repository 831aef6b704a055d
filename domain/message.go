// Package domain contains core concepts of the chat system.
// This file defines Message records and related rules.
// Messages are immutable once the store assigned their identifier.
package domain

import (
	"strings"
	"time"
)

// SelfSender replaces the sender name of the reader's own messages.
const SelfSender = "you"

// Message represents an immutable chat message.
// ID is assigned by the store, strictly increasing, and doubles as the read cursor.
type Message struct {
	ID        uint64    `json:"id"`
	Body      string    `json:"message"`
	SenderID  UserID    `json:"userId"`
	GroupID   GroupID   `json:"groupId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type ArchivedMessage struct {
	Message
	ArchivedAt time.Time `json:"archivedAt"`
}

// MessageView is a message as presented to one reader.
type MessageView struct {
	ID        uint64    `json:"id"`
	Body      string    `json:"message"`
	GroupID   GroupID   `json:"groupId,omitempty"`
	Sender    string    `json:"sender"`
	SenderID  UserID    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	IsFile    bool      `json:"isFile"`
}

// IsFileURL tells a renderer whether a body points at an uploaded file.
// It is a display hint, nothing is trusted based on it.
func IsFileURL(body string) bool {
	return strings.HasPrefix(body, "http://") || strings.HasPrefix(body, "https://")
}
