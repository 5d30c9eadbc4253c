package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string          `json:"timestamp"`
	Version       string          `json:"version"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Runtime       RuntimeMetrics  `json:"runtime"`
	WebSocket     WSMetrics       `json:"websocket"`
	MQTT          MQTTMetrics     `json:"mqtt"`
	Bridge        BridgeMetrics   `json:"bridge"`
	Database      DatabaseMetrics `json:"database"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Connected     bool `json:"connected"`
	Subscriptions int  `json:"subscriptions"`
}

// BridgeMetrics contains hub bridge statistics.
type BridgeMetrics struct {
	Connected    bool   `json:"connected"`
	Reconnecting bool   `json:"reconnecting"`
	Status       string `json:"status"`
	LinesTx      uint64 `json:"lines_tx"`
	LinesRx      uint64 `json:"lines_rx"`
	Errors       uint64 `json:"errors"`
	Reconnects   uint64 `json:"reconnects"`
	Zones        int    `json:"zones"`
	Components   int    `json:"components"`
	WeekProfiles int    `json:"week_profiles"`
	Overrides    int    `json:"overrides"`
}

// DatabaseMetrics contains connection pool statistics and the schema
// migrations applied to the snapshot and command log tables.
type DatabaseMetrics struct {
	OpenConnections   int      `json:"open_connections"`
	InUse             int      `json:"in_use"`
	Idle              int      `json:"idle"`
	WaitCount         int64    `json:"wait_count"`
	SchemaVersion     string   `json:"schema_version"`
	Migrations        []string `json:"migrations"`
	PendingMigrations []string `json:"pending_migrations,omitempty"`
	SchemaError       string   `json:"schema_error,omitempty"`
}

// handleMetrics returns runtime, relay, bridge and database metrics.
//
// GET /metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	// Collect runtime stats
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	// Build metrics response
	metrics := SystemMetrics{
		Timestamp:     s.now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(s.now().Sub(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
		},
	}

	// MQTT metrics (if available)
	if s.mqtt != nil {
		metrics.MQTT = MQTTMetrics{
			Connected:     s.mqtt.IsConnected(),
			Subscriptions: s.mqtt.SubscriptionCount(),
		}
	}

	bm := s.bridge.GetMetrics()
	metrics.Bridge = BridgeMetrics{
		Connected:    bm.Connected,
		Reconnecting: bm.Reconnecting,
		Status:       bm.Status,
		LinesTx:      bm.LinesTx,
		LinesRx:      bm.LinesRx,
		Errors:       bm.Errors,
		Reconnects:   bm.Reconnects,
		Zones:        bm.Zones,
		Components:   bm.Components,
		WeekProfiles: bm.WeekProfiles,
		Overrides:    bm.Overrides,
	}

	// Database stats (if available)
	if s.db != nil {
		dbStats := s.db.Stats()
		metrics.Database = DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
		schema, err := s.db.SchemaStatus(r.Context())
		if err != nil {
			metrics.Database.SchemaError = err.Error()
		} else {
			metrics.Database.SchemaVersion = schema.Version
			metrics.Database.PendingMigrations = schema.Pending
			for _, m := range schema.Applied {
				metrics.Database.Migrations = append(metrics.Database.Migrations, m.Version+"_"+m.Name)
			}
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
