package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/agentfloor/agentfloor/internal/types"
)

// Metrics holds all application metrics. It is constructed once in main
// and injected; there is no package-level instance.
type Metrics struct {
	mu sync.RWMutex

	// Event metrics
	FramesReceivedTotal  int64
	FramesImmediateTotal int64
	FramesBatchedTotal   int64
	FramesDroppedTotal   int64

	// RPC metrics
	RPCRequestsTotal int64
	RPCTimeoutsTotal int64
	RPCErrorsTotal   int64

	// Renderer WebSocket metrics
	RendererConnectionsTotal    int64
	RendererDisconnectionsTotal int64
	activeRenderers             int64

	// Broadcast metrics
	BroadcastCyclesTotal  int64
	BroadcastErrorsTotal  int64
	lastBroadcastDuration time.Duration

	// World metrics
	agentsByStatus map[types.AgentStatus]int
	agentsByZone   map[types.Zone]int
	totalAgents    int
	activeLinks    int
	heat           float64

	// Timing
	startTime time.Time
}

// New creates a metrics instance
func New() *Metrics {
	return &Metrics{
		agentsByStatus: make(map[types.AgentStatus]int),
		agentsByZone:   make(map[types.Zone]int),
		startTime:      time.Now(),
	}
}

// RecordFrameReceived increments the inbound frame counter
func (m *Metrics) RecordFrameReceived() {
	m.mu.Lock()
	m.FramesReceivedTotal++
	m.mu.Unlock()
}

// RecordFrameImmediate counts a high-priority delivery
func (m *Metrics) RecordFrameImmediate() {
	m.mu.Lock()
	m.FramesImmediateTotal++
	m.mu.Unlock()
}

// RecordFramesBatched counts one flushed batch
func (m *Metrics) RecordFramesBatched(n int) {
	m.mu.Lock()
	m.FramesBatchedTotal += int64(n)
	m.mu.Unlock()
}

// RecordFramesDropped counts frames lost to throttle overflow
func (m *Metrics) RecordFramesDropped(n int) {
	m.mu.Lock()
	m.FramesDroppedTotal += int64(n)
	m.mu.Unlock()
}

// RecordRPCRequest increments the RPC request counter
func (m *Metrics) RecordRPCRequest() {
	m.mu.Lock()
	m.RPCRequestsTotal++
	m.mu.Unlock()
}

// RecordRPCTimeout increments the RPC timeout counter
func (m *Metrics) RecordRPCTimeout() {
	m.mu.Lock()
	m.RPCTimeoutsTotal++
	m.mu.Unlock()
}

// RecordRPCError increments the RPC error counter
func (m *Metrics) RecordRPCError() {
	m.mu.Lock()
	m.RPCErrorsTotal++
	m.mu.Unlock()
}

// RecordRendererConnect increments renderer connection counters
func (m *Metrics) RecordRendererConnect() {
	m.mu.Lock()
	m.RendererConnectionsTotal++
	m.activeRenderers++
	m.mu.Unlock()
}

// RecordRendererDisconnect increments the disconnection counter
func (m *Metrics) RecordRendererDisconnect() {
	m.mu.Lock()
	m.RendererDisconnectionsTotal++
	m.activeRenderers--
	m.mu.Unlock()
}

// RecordBroadcastCycle records one snapshot broadcast
func (m *Metrics) RecordBroadcastCycle(duration time.Duration) {
	m.mu.Lock()
	m.BroadcastCyclesTotal++
	m.lastBroadcastDuration = duration
	m.mu.Unlock()
}

// RecordBroadcastError increments the broadcast error counter
func (m *Metrics) RecordBroadcastError() {
	m.mu.Lock()
	m.BroadcastErrorsTotal++
	m.mu.Unlock()
}

// UpdateWorldStats refreshes agent distribution metrics from a snapshot
func (m *Metrics) UpdateWorldStats(snapshot types.WorldSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.agentsByStatus = make(map[types.AgentStatus]int)
	m.agentsByZone = make(map[types.Zone]int)
	m.totalAgents = len(snapshot.Agents)
	m.activeLinks = len(snapshot.Links)
	m.heat = snapshot.Metrics.CollaborationHeat

	for _, agent := range snapshot.Agents {
		m.agentsByStatus[agent.Status]++
		m.agentsByZone[agent.Zone]++
	}
}

// ActiveRenderers returns the current renderer connection count
func (m *Metrics) ActiveRenderers() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeRenderers
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.mu.RLock()
		defer m.mu.RUnlock()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		// Helper to write metric
		write := func(name string, value interface{}, labels ...string) {
			labelStr := ""
			if len(labels) > 0 {
				labelStr = "{"
				for i := 0; i < len(labels); i += 2 {
					if i > 0 {
						labelStr += ","
					}
					labelStr += labels[i] + "=\"" + labels[i+1] + "\""
				}
				labelStr += "}"
			}

			switch v := value.(type) {
			case int:
				w.Write([]byte(name + labelStr + " " + strconv.Itoa(v) + "\n"))
			case int64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatInt(v, 10) + "\n"))
			case float64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatFloat(v, 'f', 6, 64) + "\n"))
			}
		}

		// System metrics
		write("agentfloor_uptime_seconds", time.Since(m.startTime).Seconds())

		// Event metrics
		write("agentfloor_frames_received_total", m.FramesReceivedTotal)
		write("agentfloor_frames_immediate_total", m.FramesImmediateTotal)
		write("agentfloor_frames_batched_total", m.FramesBatchedTotal)
		write("agentfloor_frames_dropped_total", m.FramesDroppedTotal)

		uptimeSeconds := time.Since(m.startTime).Seconds()
		if uptimeSeconds > 0 {
			write("agentfloor_frames_per_second", float64(m.FramesReceivedTotal)/uptimeSeconds)
		}

		// RPC metrics
		write("agentfloor_rpc_requests_total", m.RPCRequestsTotal)
		write("agentfloor_rpc_timeouts_total", m.RPCTimeoutsTotal)
		write("agentfloor_rpc_errors_total", m.RPCErrorsTotal)

		// Renderer metrics
		write("agentfloor_renderer_connections_total", m.RendererConnectionsTotal)
		write("agentfloor_renderer_disconnections_total", m.RendererDisconnectionsTotal)
		write("agentfloor_renderer_active_connections", m.activeRenderers)

		// Broadcast metrics
		write("agentfloor_broadcast_cycles_total", m.BroadcastCyclesTotal)
		write("agentfloor_broadcast_errors_total", m.BroadcastErrorsTotal)
		write("agentfloor_broadcast_duration_seconds", m.lastBroadcastDuration.Seconds())

		// World metrics
		write("agentfloor_agents_total", m.totalAgents)
		write("agentfloor_links_active", m.activeLinks)
		write("agentfloor_collaboration_heat", m.heat)

		for status, count := range m.agentsByStatus {
			write("agentfloor_agents_by_status", count, "status", string(status))
		}
		for zone, count := range m.agentsByZone {
			write("agentfloor_agents_by_zone", count, "zone", string(zone))
		}
	}
}
