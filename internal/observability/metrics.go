package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu           sync.Mutex
	requestCount map[string]int64
	errorCount   map[string]int64
	sync         SyncCounters
}

// SyncCounters tracks the realtime sync client.
type SyncCounters struct {
	Reconnects    int64  `json:"reconnects"`
	GiveUps       int64  `json:"give_ups"`
	DroppedEvents int64  `json:"dropped_events"`
	Delivered     int64  `json:"delivered"`
	State         string `json:"state"`
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Requests map[string]int64 `json:"requests"`
	Errors   map[string]int64 `json:"errors"`
	Sync     SyncCounters     `json:"sync"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordSyncState stores the sync client's current state.
func (m *Metrics) RecordSyncState(state string) {
	m.updateSync(func(s *SyncCounters) { s.State = state })
}

// RecordReconnect counts a scheduled reconnect.
func (m *Metrics) RecordReconnect() {
	m.updateSync(func(s *SyncCounters) { s.Reconnects++ })
}

// RecordGiveUp counts a sync client giving up.
func (m *Metrics) RecordGiveUp() {
	m.updateSync(func(s *SyncCounters) { s.GiveUps++ })
}

// RecordDroppedEvent counts a malformed realtime event.
func (m *Metrics) RecordDroppedEvent() {
	m.updateSync(func(s *SyncCounters) { s.DroppedEvents++ })
}

// RecordDelivered counts a realtime event handed to subscribers.
func (m *Metrics) RecordDelivered() {
	m.updateSync(func(s *SyncCounters) { s.Delivered++ })
}

// Snapshot copies the counters.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := Snapshot{
		Requests: make(map[string]int64, len(m.requestCount)),
		Errors:   make(map[string]int64, len(m.errorCount)),
		Sync:     m.sync,
	}
	for k, v := range m.requestCount {
		snap.Requests[k] = v
	}
	for k, v := range m.errorCount {
		snap.Errors[k] = v
	}
	return snap
}

func (m *Metrics) updateSync(fn func(*SyncCounters)) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.sync)
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
