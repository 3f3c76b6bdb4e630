// Package metrics exposes Prometheus counters/gauges for respd, plus a
// gopsutil-backed system sampler used by the INFO command and the
// /metrics HTTP surface.
package metrics

import (
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/cpu"
)

var (
	ConnectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "respd_connections_total",
		Help: "Total client connections accepted.",
	})
	ConnectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "respd_connections_active",
		Help: "Currently open client connections.",
	})
	ConnectionsRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "respd_connections_rejected_total",
		Help: "Connections rejected because the listener was at capacity.",
	})

	CommandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "respd_commands_total",
		Help: "Commands processed, by command name and outcome.",
	}, []string{"command", "outcome"})

	ReplicaCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "respd_replicas_connected",
		Help: "Number of replicas currently attached to this master.",
	})
	ReplicationOffset = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "respd_replication_offset_bytes",
		Help: "Master replication offset in bytes.",
	})
	WaitRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "respd_wait_requests_total",
		Help: "Total WAIT commands served.",
	})

	PubSubMessagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "respd_pubsub_messages_total",
		Help: "Total messages published across all channels.",
	})
	PubSubDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "respd_pubsub_dropped_total",
		Help: "Messages dropped because a subscribed connection's delivery queue was full.",
	})

	ReplicationFanoutQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "respd_replication_fanout_queue_depth",
		Help: "Queued-but-unstarted replica broadcast tasks in the fan-out worker pool.",
	})
	ReplicationFanoutDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "respd_replication_fanout_dropped_total",
		Help: "Replica broadcast tasks dropped because the fan-out worker pool's queue was full.",
	})

	ReaperExpiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "respd_reaper_expired_total",
		Help: "Keys removed by the background expiration reaper.",
	})

	ProcessCPUPercent = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "respd_process_cpu_percent",
		Help: "Smoothed host-wide CPU usage percentage.",
	})
	ProcessMemoryBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "respd_process_memory_bytes",
		Help: "Process heap-in-use bytes.",
	})
)

func init() {
	prometheus.MustRegister(
		ConnectionsTotal, ConnectionsActive, ConnectionsRejected,
		CommandsTotal,
		ReplicaCount, ReplicationOffset, WaitRequestsTotal,
		PubSubMessagesTotal, PubSubDroppedTotal,
		ReplicationFanoutQueueDepth, ReplicationFanoutDroppedTotal,
		ReaperExpiredTotal,
		ProcessCPUPercent, ProcessMemoryBytes,
	)
}

// Handler returns the promhttp handler for the ambient /metrics route.
func Handler() http.Handler {
	return promhttp.Handler()
}

// System samples host-wide CPU usage (via gopsutil) and this process's
// Go heap-in-use bytes (via runtime.ReadMemStats) for the INFO command,
// with an exponential moving average to smooth CPU spikes.
type System struct {
	mu         sync.Mutex
	cpuPercent float64
	mem        runtime.MemStats
}

// NewSystem constructs a sampler with an initial reading taken.
func NewSystem() *System {
	sys := &System{}
	sys.Update()
	return sys
}

// Update refreshes the cached CPU and memory readings.
func (sys *System) Update() {
	sys.mu.Lock()
	defer sys.mu.Unlock()

	runtime.ReadMemStats(&sys.mem)

	percents, err := cpu.Percent(0, false)
	if err != nil || len(percents) == 0 {
		return
	}
	current := percents[0]
	if sys.cpuPercent == 0 {
		sys.cpuPercent = current
	} else {
		const alpha = 0.3
		sys.cpuPercent = alpha*current + (1-alpha)*sys.cpuPercent
	}
}

// CPUPercent returns the last smoothed CPU usage percentage.
func (sys *System) CPUPercent() float64 {
	sys.mu.Lock()
	defer sys.mu.Unlock()
	return sys.cpuPercent
}

// MemoryRSSBytes returns the process's heap-in-use as a proxy for RSS,
// reported by the INFO command's memory section.
func (sys *System) MemoryRSSBytes() uint64 {
	sys.mu.Lock()
	defer sys.mu.Unlock()
	return sys.mem.HeapInuse
}

// RunSampler periodically refreshes the system sampler and copies its
// readings into the ProcessCPUPercent/ProcessMemoryBytes gauges until
// done is closed.
func RunSampler(done <-chan struct{}, sys *System, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			sys.Update()
			ProcessCPUPercent.Set(sys.CPUPercent())
			ProcessMemoryBytes.Set(float64(sys.MemoryRSSBytes()))
		}
	}
}

// RunFanoutSampler periodically copies the replication fan-out worker
// pool's queue depth and drop counter into the ReplicationFanout*
// gauges/counter until done is closed. depth and dropped are typically
// workerpool.Pool's QueueDepth/Dropped methods, passed as closures to
// avoid a metrics->workerpool import.
func RunFanoutSampler(done <-chan struct{}, depth func() int, dropped func() int64, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var lastDropped int64
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			ReplicationFanoutQueueDepth.Set(float64(depth()))
			if d := dropped(); d > lastDropped {
				ReplicationFanoutDroppedTotal.Add(float64(d - lastDropped))
				lastDropped = d
			}
		}
	}
}
