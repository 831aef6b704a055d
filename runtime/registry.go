package runtime

import (
	"context"
	stderrors "errors"
	"groupchat/contract"
	"groupchat/domain"
	"groupchat/domain/event"
	"groupchat/errors"
	"groupchat/observability"
	"log/slog"
	"sync"
)

type Set map[domain.GroupID]struct{}

// room is the set of live connections subscribed to one group.
type room struct {
	mu    sync.RWMutex
	sinks map[string]contract.EventSink // map connection -> Sink
}

// Registry is the in-memory room registry of one process.
// Lock order is always registry then room. Broadcast holds the room read lock
// while it hands the event to each sink, so once Leave or EvictUser returned
// no later broadcast of that group reaches the connection.
type Registry struct {
	log         *slog.Logger
	mu          sync.RWMutex
	rooms       map[domain.GroupID]*room
	connections map[string]Set                                  // map connection -> joined groups
	users       map[domain.UserID]map[string]contract.EventSink // map user -> live connections
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		log:         log,
		rooms:       make(map[domain.GroupID]*room),
		connections: make(map[string]Set),
		users:       make(map[domain.UserID]map[string]contract.EventSink),
	}
}

// Join subscribes the connection to groupID. Joining twice is a no-op.
// No membership check happens here.
func (r *Registry) Join(sink contract.EventSink, groupID domain.GroupID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[groupID]
	if !ok {
		rm = &room{sinks: make(map[string]contract.EventSink)}
		r.rooms[groupID] = rm
	}
	rm.mu.Lock()
	_, already := rm.sinks[sink.ID()]
	rm.sinks[sink.ID()] = sink
	rm.mu.Unlock()
	if already {
		return
	}

	if _, ok = r.connections[sink.ID()]; !ok {
		r.connections[sink.ID()] = make(Set)
	}
	r.connections[sink.ID()][groupID] = struct{}{}

	if _, ok = r.users[sink.UserID()]; !ok {
		r.users[sink.UserID()] = make(map[string]contract.EventSink)
	}
	r.users[sink.UserID()][sink.ID()] = sink
	observability.RoomSubscriptions.Inc()
}

// Leave unsubscribes the connection from groupID. Unknown pairs are ignored.
func (r *Registry) Leave(connectionID string, groupID domain.GroupID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leave(connectionID, groupID)
}

// LeaveAll drops every subscription of the connection, typically on disconnect.
// It is safe to call on a connection that is already gone.
func (r *Registry) LeaveAll(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for groupID := range r.connections[connectionID] {
		r.leave(connectionID, groupID)
	}
}

// EvictUser unsubscribes every connection of userID from groupID.
func (r *Registry) EvictUser(groupID domain.GroupID, userID domain.UserID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for connectionID := range r.users[userID] {
		r.leave(connectionID, groupID)
	}
}

// leave must be called with r.mu held.
func (r *Registry) leave(connectionID string, groupID domain.GroupID) {
	rm, ok := r.rooms[groupID]
	if !ok {
		return
	}
	rm.mu.Lock()
	sink, joined := rm.sinks[connectionID]
	delete(rm.sinks, connectionID)
	empty := len(rm.sinks) == 0
	rm.mu.Unlock()
	if !joined {
		return
	}
	observability.RoomSubscriptions.Dec()

	// If no one is left in the room, remove the room entry entirely
	if empty {
		delete(r.rooms, groupID)
	}

	if groups, ok := r.connections[connectionID]; ok {
		delete(groups, groupID)
		if len(groups) == 0 {
			delete(r.connections, connectionID)
			if conns, ok := r.users[sink.UserID()]; ok {
				delete(conns, connectionID)
				if len(conns) == 0 {
					delete(r.users, sink.UserID())
				}
			}
		}
	}
}

// Broadcast hands e to every connection joined to groupID, the sender's own
// connections included, and returns how many accepted it.
// An empty room is not an error.
func (r *Registry) Broadcast(ctx context.Context, groupID domain.GroupID, e event.DomainEvent) int {
	r.mu.RLock()
	rm, ok := r.rooms[groupID]
	if !ok {
		r.mu.RUnlock()
		return 0
	}
	rm.mu.RLock()
	r.mu.RUnlock()
	defer rm.mu.RUnlock()

	delivered := 0
	for _, sink := range rm.sinks {
		if r.deliver(ctx, sink, e) {
			delivered++
		}
	}
	observability.BroadcastDeliveries.Add(float64(delivered))
	return delivered
}

// Notify hands e to every live connection of userID, whatever room they joined.
func (r *Registry) Notify(ctx context.Context, userID domain.UserID, e event.DomainEvent) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	delivered := 0
	for _, sink := range r.users[userID] {
		if r.deliver(ctx, sink, e) {
			delivered++
		}
	}
	observability.BroadcastDeliveries.Add(float64(delivered))
	return delivered
}

func (r *Registry) deliver(ctx context.Context, sink contract.EventSink, e event.DomainEvent) bool {
	err := sink.Consume(ctx, e)
	switch {
	case err == nil:
		return true
	case stderrors.Is(err, errors.ErrSlowConsumer):
		observability.SlowConsumerEvictions.Inc()
		r.log.Warn("Connection dropped, outbound queue full",
			"connection", sink.ID(), "user", sink.UserID(), "event", e.Name())
	case stderrors.Is(err, errors.ErrSinkClosed):
		r.log.Debug("Skipping closed connection", "connection", sink.ID())
	default:
		r.log.Error("Delivery failed", "connection", sink.ID(), "event", e.Name(), "error", err)
	}
	return false
}

// CloseAll closes every live connection, used on server shutdown.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, conns := range r.users {
		for _, sink := range conns {
			sink.Close()
		}
	}
}

// IsJoined reports whether the connection is subscribed to groupID.
func (r *Registry) IsJoined(connectionID string, groupID domain.GroupID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.connections[connectionID][groupID]
	return ok
}

func (r *Registry) Stats() observability.RoomStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	subscriptions := 0
	for _, groups := range r.connections {
		subscriptions += len(groups)
	}
	return observability.RoomStats{
		Connections:   len(r.connections),
		Rooms:         len(r.rooms),
		Subscriptions: subscriptions,
	}
}
