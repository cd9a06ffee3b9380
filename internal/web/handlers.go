package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log"
	"math"
	"net/http"
	"sync"
	"time"
)

// AimPointOverride replaces the configured aim point for one run
// (ENU coordinates, meters).
type AimPointOverride struct {
	E float64 `json:"e"`
	N float64 `json:"n"`
	U float64 `json:"u"`
}

// Overrides holds tracking parameters that can override config defaults.
// Zero values (nil for the aim point) mean "use config default".
type Overrides struct {
	MaxIterations  int               `json:"max_iterations"`
	TrackTicks     int               `json:"track_ticks"`
	TrackIntervalS int               `json:"track_interval_s"`
	AimPoint       *AimPointOverride `json:"aim_point,omitempty"`
}

// maxAimCoordM bounds each aim point coordinate override. Generous for any
// plausible tower distance, tight enough to reject junk input.
const maxAimCoordM = 100000.0

// ValidateOverrides checks user-supplied override values. Zero is always
// accepted (it selects the config default).
func ValidateOverrides(o Overrides) error {
	if o.MaxIterations < 0 || o.MaxIterations > 50 {
		return fmt.Errorf("max_iterations must be between 1 and 50")
	}
	if o.TrackTicks < 0 || o.TrackTicks > 100000 {
		return fmt.Errorf("track_ticks must be between 1 and 100000")
	}
	if o.TrackIntervalS < 0 || o.TrackIntervalS > 3600 {
		return fmt.Errorf("track_interval_s must be between 1 and 3600")
	}
	if a := o.AimPoint; a != nil {
		for _, v := range []float64{a.E, a.N, a.U} {
			if math.IsNaN(v) || math.Abs(v) > maxAimCoordM {
				return fmt.Errorf("aim point coordinates must be finite and within ±%g m", maxAimCoordM)
			}
		}
	}
	return nil
}

const (
	// maxRunBodyBytes caps the POST /run request body.
	maxRunBodyBytes = 1 << 20
	// runCooldown is the minimum delay between two tracking runs.
	runCooldown = 5 * time.Second
)

// RunTrackFunc runs a tracking sequence with the given overrides.
// It is called from the POST /run handler in a goroutine.
type RunTrackFunc func(ctx context.Context, overrides Overrides) error

// FormConfig holds default values for the tracking form (from config).
type FormConfig struct {
	AimPointE      float64 `json:"aim_point_e"`
	AimPointN      float64 `json:"aim_point_n"`
	AimPointU      float64 `json:"aim_point_u"`
	MaxIterations  int     `json:"max_iterations"`
	TrackTicks     int     `json:"track_ticks"`
	TrackIntervalS int     `json:"track_interval_s"`
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster  *StatusBroadcaster
	RunTrack     RunTrackFunc
	FormDefaults FormConfig
	runningMu    sync.Mutex
	running      bool
	lastStart    time.Time
	staticFS     fs.FS
}

// NewHandlers creates handlers with the given dependencies.
// If runTrack is nil, POST /run will return 503 Service Unavailable.
func NewHandlers(broadcaster *StatusBroadcaster, runTrack RunTrackFunc, formDefaults FormConfig, staticFS fs.FS) *Handlers {
	return &Handlers{
		Broadcaster:  broadcaster,
		RunTrack:     runTrack,
		FormDefaults: formDefaults,
		staticFS:     staticFS,
	}
}

// HandleConfig returns the form default values (from config) as JSON.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.FormDefaults)
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleRun handles POST /run to start a tracking sequence.
func (h *Handlers) HandleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRunBodyBytes)
	var overrides Overrides
	if err := json.NewDecoder(r.Body).Decode(&overrides); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if err := ValidateOverrides(overrides); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if h.RunTrack == nil {
		http.Error(w, "tracking not configured", http.StatusServiceUnavailable)
		return
	}

	h.runningMu.Lock()
	if h.running {
		h.runningMu.Unlock()
		http.Error(w, "tracking already in progress", http.StatusConflict)
		return
	}
	if time.Since(h.lastStart) < runCooldown {
		h.runningMu.Unlock()
		http.Error(w, "too many requests, wait before starting another run", http.StatusTooManyRequests)
		return
	}
	h.running = true
	h.lastStart = time.Now()
	h.runningMu.Unlock()

	// Run in goroutine; clear running when done
	go func() {
		defer func() {
			h.runningMu.Lock()
			h.running = false
			h.runningMu.Unlock()
		}()

		ctx := context.Background()
		if err := h.RunTrack(ctx, overrides); err != nil {
			h.Broadcaster.Broadcast("error", "Tracking failed: "+err.Error())
			log.Printf("tracking failed: %v", err)
		} else {
			h.Broadcaster.Broadcast("info", "Tracking complete")
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "started"})
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	// Send initial comment to establish connection
	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	// Heartbeat while idle
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			w.Write([]byte("data: " + string(data) + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
