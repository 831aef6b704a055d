package domain

import "time"

type SendMessageCommand struct {
	GroupID   GroupID
	Sender    Identity
	Body      string
	CreatedAt time.Time
}

type ReadMessagesCommand struct {
	GroupID GroupID
	Reader  Identity
	AfterID uint64
}
