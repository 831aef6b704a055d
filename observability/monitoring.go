package observability

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/process"
)

// RoomStats is what the room registry reports about itself.
type RoomStats struct {
	Connections   int `json:"connections"`
	Rooms         int `json:"rooms"`
	Subscriptions int `json:"subscriptions"`
}

// RoomStatsSource is implemented by the room registry.
type RoomStatsSource interface {
	Stats() RoomStats
}

// MonitoringStats is the snapshot served on /stats.
type MonitoringStats struct {
	RoomStats

	MessagesPerSecond float64 `json:"messages_per_second"`
	MessagesTotal     uint64  `json:"messages_total"`
	DeliveriesTotal   uint64  `json:"deliveries_total"`
	ArchivedTotal     uint64  `json:"archived_total"`

	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float32 `json:"memory_percent"`
	RssBytes      uint64  `json:"rss_bytes"`

	AllocMemMb uint64    `json:"alloc_mem_mb"`
	NumGC      uint32    `json:"num_gc"`
	Goroutines int       `json:"goroutines"`
	SampledAt  time.Time `json:"sampled_at"`
}

// MonitoringManager keeps a live snapshot of the process for operators.
// Counters are bumped from hot paths with atomics, the snapshot itself is
// rebuilt once per tick.
type MonitoringManager struct {
	log      *slog.Logger
	rooms    RoomStatsSource
	interval time.Duration
	self     *process.Process

	mu          sync.RWMutex
	latestStats MonitoringStats
	lastCheck   time.Time

	messages      atomic.Uint64
	sinceLastTick atomic.Uint64
	deliveries    atomic.Uint64
	archived      atomic.Uint64
}

func NewMonitoringManager(log *slog.Logger, rooms RoomStatsSource, interval time.Duration) *MonitoringManager {
	if interval <= 0 {
		interval = time.Second
	}
	self, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		// the snapshot is still served, without process figures
		log.Warn("Process stats unavailable", "error", err)
		self = nil
	}
	return &MonitoringManager{
		log:       log,
		rooms:     rooms,
		interval:  interval,
		self:      self,
		lastCheck: time.Now(),
	}
}

func (mm *MonitoringManager) IncrMessages() {
	mm.messages.Add(1)
	mm.sinceLastTick.Add(1)
}

func (mm *MonitoringManager) IncrDeliveries(n int) {
	mm.deliveries.Add(uint64(n))
}

func (mm *MonitoringManager) IncrArchived(n int) {
	mm.archived.Add(uint64(n))
}

// Run samples until ctx is done. It is meant to run under the supervisor.
func (mm *MonitoringManager) Run(ctx context.Context) error {
	ticker := time.NewTicker(mm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			mm.log.Info("Monitoring manager stopped")
			return nil
		case <-ticker.C:
			mm.updateStats()
		}
	}
}

func (mm *MonitoringManager) updateStats() {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(mm.lastCheck).Seconds()
	count := mm.sinceLastTick.Swap(0)
	if elapsed > 0 {
		mm.latestStats.MessagesPerSecond = float64(count) / elapsed
	}
	mm.lastCheck = now

	if mm.rooms != nil {
		mm.latestStats.RoomStats = mm.rooms.Stats()
	}
	mm.latestStats.MessagesTotal = mm.messages.Load()
	mm.latestStats.DeliveriesTotal = mm.deliveries.Load()
	mm.latestStats.ArchivedTotal = mm.archived.Load()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	mm.latestStats.AllocMemMb = m.Alloc / 1024 / 1024
	mm.latestStats.NumGC = m.NumGC
	mm.latestStats.Goroutines = runtime.NumGoroutine()
	mm.latestStats.SampledAt = now.UTC()
	AllocatedMemory.Set(float64(m.Alloc))
	mm.sampleProcess()

	mm.log.Debug("Stats updated",
		"connections", mm.latestStats.Connections,
		"rooms", mm.latestStats.Rooms,
		"messages_per_second", mm.latestStats.MessagesPerSecond,
		"mem_mb", mm.latestStats.AllocMemMb,
	)
}

// sampleProcess must be called with mm.mu held.
func (mm *MonitoringManager) sampleProcess() {
	if mm.self == nil {
		return
	}
	if cpu, err := mm.self.CPUPercent(); err == nil {
		mm.latestStats.CPUPercent = cpu
		ProcessCPUPercent.Set(cpu)
	} else {
		mm.log.Debug("CPU sample failed", "error", err)
	}
	if mem, err := mm.self.MemoryPercent(); err == nil {
		mm.latestStats.MemoryPercent = mem
	}
	if info, err := mm.self.MemoryInfo(); err == nil {
		mm.latestStats.RssBytes = info.RSS
		ProcessResidentMemory.Set(float64(info.RSS))
	}
}

func (mm *MonitoringManager) GetLatest() MonitoringStats {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	return mm.latestStats
}
