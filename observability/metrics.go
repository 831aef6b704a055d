package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Messaging metrics
	MessagesPersisted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groupchat_messages_persisted_total",
			Help: "Total number of messages persisted by scope (group or global)",
		},
		[]string{"scope"},
	)

	BroadcastDeliveries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "groupchat_broadcast_deliveries_total",
			Help: "Total number of events handed to live connections",
		},
	)

	SlowConsumerEvictions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "groupchat_slow_consumer_evictions_total",
			Help: "Total number of connections closed because their outbound queue was full",
		},
	)

	// Connection metrics
	ActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "groupchat_active_connections",
			Help: "Number of live connections",
		},
	)

	RoomSubscriptions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "groupchat_room_subscriptions",
			Help: "Number of (connection, group) subscriptions held by the room registry",
		},
	)

	// Membership metrics
	MembershipTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groupchat_membership_transitions_total",
			Help: "Total number of membership operations by operation and outcome",
		},
		[]string{"op", "outcome"},
	)

	// Archive metrics
	ArchivedMessages = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "groupchat_archived_messages_total",
			Help: "Total number of messages moved to the archive",
		},
	)

	ArchiveRunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "groupchat_archive_run_duration_seconds",
			Help:    "Duration of one archive pass in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Process metrics
	AllocatedMemory = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "groupchat_alloc_memory_bytes",
			Help: "Bytes of allocated heap objects, sampled by the monitoring worker",
		},
	)
	ProcessCPUPercent = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "groupchat_process_cpu_percent",
			Help: "CPU usage of the server process since it started",
		},
	)
	ProcessResidentMemory = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "groupchat_process_resident_memory_bytes",
			Help: "Resident set size of the server process",
		},
	)
)

func init() {
	prometheus.MustRegister(MessagesPersisted)
	prometheus.MustRegister(BroadcastDeliveries)
	prometheus.MustRegister(SlowConsumerEvictions)
	prometheus.MustRegister(ActiveConnections)
	prometheus.MustRegister(RoomSubscriptions)
	prometheus.MustRegister(MembershipTransitions)
	prometheus.MustRegister(ArchivedMessages)
	prometheus.MustRegister(ArchiveRunDuration)
	prometheus.MustRegister(AllocatedMemory)
	prometheus.MustRegister(ProcessCPUPercent)
	prometheus.MustRegister(ProcessResidentMemory)
}

// Outcome labels a membership transition for MembershipTransitions.
func Outcome(err error) string {
	if err != nil {
		return "rejected"
	}
	return "applied"
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
