package observability

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fixedRooms RoomStats

func (f fixedRooms) Stats() RoomStats { return RoomStats(f) }

func TestMonitoringManager_Snapshot(t *testing.T) {
	req := require.New(t)
	mm := NewMonitoringManager(slog.Default(), fixedRooms{Connections: 3, Rooms: 2, Subscriptions: 5}, 10*time.Millisecond)

	mm.IncrMessages()
	mm.IncrMessages()
	mm.IncrDeliveries(4)
	mm.IncrArchived(7)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mm.Run(ctx) }()

	req.Eventually(func() bool {
		return mm.GetLatest().MessagesTotal == 2
	}, time.Second, 10*time.Millisecond)

	stats := mm.GetLatest()
	req.Equal(3, stats.Connections)
	req.Equal(5, stats.Subscriptions)
	req.Equal(uint64(4), stats.DeliveriesTotal)
	req.Equal(uint64(7), stats.ArchivedTotal)
	req.Positive(stats.Goroutines)
	// the server samples its own process
	req.Positive(stats.RssBytes)
	req.GreaterOrEqual(stats.CPUPercent, float64(0))

	cancel()
	req.NoError(<-done)
}

func TestOutcome(t *testing.T) {
	req := require.New(t)
	req.Equal("applied", Outcome(nil))
	req.Equal("rejected", Outcome(context.Canceled))
}
