package web

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// TrackState is the solved mount state at one tracking tick: where the sun
// is, whether it is above the horizon, and the joint solution the mount was
// driven to.
type TrackState struct {
	Tick         int     `json:"tick"`
	Ticks        int     `json:"ticks"`
	AzimuthDeg   float64 `json:"az_deg"`
	ElevationDeg float64 `json:"el_deg"`
	SunUp        bool    `json:"sun_up"`
	Joint1Rad    float64 `json:"joint1_rad"`
	Joint2Rad    float64 `json:"joint2_rad"`
	Actuator1    float64 `json:"actuator1"`
	Actuator2    float64 `json:"actuator2"`
}

// StatusEvent is one telemetry event pushed to SSE clients: a log line from
// the running tracking sequence, optionally carrying the full mount state of
// the tick it reports.
type StatusEvent struct {
	Time  string      `json:"t"`
	Level string      `json:"l,omitempty"`
	Msg   string      `json:"msg"`
	Track *TrackState `json:"track,omitempty"`
}

// StatusBroadcaster fans tracking telemetry out to all connected SSE
// clients. Events are typed; the SSE handler marshals them on the way out.
type StatusBroadcaster struct {
	mu      sync.RWMutex
	clients map[chan StatusEvent]struct{}
}

// NewStatusBroadcaster creates a broadcaster with no clients.
func NewStatusBroadcaster() *StatusBroadcaster {
	return &StatusBroadcaster{
		clients: make(map[chan StatusEvent]struct{}),
	}
}

// Subscribe returns a channel that receives telemetry events and a cleanup
// function. The caller must call the returned cleanup when done (e.g. on
// client disconnect).
func (b *StatusBroadcaster) Subscribe() (<-chan StatusEvent, func()) {
	ch := make(chan StatusEvent, 64)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	unsub := func() {
		b.mu.Lock()
		delete(b.clients, ch)
		b.mu.Unlock()
		close(ch)
	}
	return ch, unsub
}

// send delivers an event to every client. Slow clients may miss events
// (non-blocking, buffered).
func (b *StatusBroadcaster) send(evt StatusEvent) {
	evt.Time = time.Now().Format(time.RFC3339)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- evt:
		default:
			// channel full, skip
		}
	}
}

// Broadcast sends a plain log event to all subscribed clients.
func (b *StatusBroadcaster) Broadcast(level, msg string) {
	b.send(StatusEvent{Level: level, Msg: msg})
}

// BroadcastMsg is a convenience for level "info".
func (b *StatusBroadcaster) BroadcastMsg(msg string) {
	b.Broadcast("info", msg)
}

// BroadcastTrack sends one tracking tick with its solved mount state. The
// human-readable Msg summarizes the state so plain log consumers stay useful.
func (b *StatusBroadcaster) BroadcastTrack(ts TrackState) {
	var msg string
	if ts.SunUp {
		msg = fmt.Sprintf("Tick %d/%d: sun az=%.2f° el=%.2f°, joints (%.4f, %.4f) rad, actuators (%.1f, %.1f)",
			ts.Tick, ts.Ticks, ts.AzimuthDeg, ts.ElevationDeg,
			ts.Joint1Rad, ts.Joint2Rad, ts.Actuator1, ts.Actuator2)
	} else {
		msg = fmt.Sprintf("Tick %d/%d: sun below horizon (el=%.2f°), holding position",
			ts.Tick, ts.Ticks, ts.ElevationDeg)
	}
	b.send(StatusEvent{Level: "info", Msg: msg, Track: &ts})
}

// BroadcastWriter implements io.Writer; each Write broadcasts the content to
// SSE clients as an info event.
func BroadcastWriter(b *StatusBroadcaster) *broadcastWriter {
	return &broadcastWriter{b: b}
}

// broadcastWriter wraps StatusBroadcaster as io.Writer for use with log.SetOutput.
type broadcastWriter struct {
	b *StatusBroadcaster
}

func (w *broadcastWriter) Write(p []byte) (n int, err error) {
	msg := strings.TrimSpace(string(p))
	if msg != "" {
		w.b.BroadcastMsg(msg)
	}
	return len(p), nil
}
