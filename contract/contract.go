//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"groupchat/domain"
	"groupchat/domain/event"
	"io"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is one live connection as seen by the room registry.
// Consume must never block: it is called while a group's send order is held.
type EventSink interface {
	ID() string
	UserID() domain.UserID
	Consume(ctx context.Context, e event.DomainEvent) error
	Close()
}

// IRegistry tracks which live connection is subscribed to which group room.
type IRegistry interface {
	Join(sink EventSink, groupID domain.GroupID)
	Leave(connectionID string, groupID domain.GroupID)
	LeaveAll(connectionID string)
	EvictUser(groupID domain.GroupID, userID domain.UserID)
	Broadcast(ctx context.Context, groupID domain.GroupID, e event.DomainEvent) int
	Notify(ctx context.Context, userID domain.UserID, e event.DomainEvent) int
}

// BlobStore keeps uploaded files out of band and hands back a public URL.
type BlobStore interface {
	Put(ctx context.Context, filename string, content io.Reader) (string, error)
}
