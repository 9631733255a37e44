package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/turbofan3360/neom8-dash/internal/logger"
	"github.com/turbofan3360/neom8-dash/internal/neom8"
)

// Receiver is the slice of the driver the dashboard needs: fix polling plus
// the runtime commands exposed over the API.
type Receiver interface {
	Fix() (neom8.Fix, error)
	SetRate(rateHz float64, measurementsPerFix uint8) (neom8.AckResult, error)
	Setup() (neom8.AckResult, error)
	Start() (neom8.AckResult, error)
	Stop() (neom8.AckResult, error)
}

// Server coordinates receiver polling and broadcasts fixes to WebSocket
// clients.
type Server struct {
	cfg    *Config
	recv   Receiver
	webFS  fs.FS
	logger *logger.Logger

	clients   map[*wsClient]struct{}
	clientsMu sync.RWMutex

	upgrader websocket.Upgrader

	// Odometer — persistent distance tracking
	odoMu     sync.Mutex
	odoTotal  float64 // Total km
	odoTrip   float64 // Trip km (resettable)
	lastLat   float64
	lastLon   float64
	lastValid bool
	odoPath   string // File path for persistence
	odoTicker *time.Ticker
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Frame is the JSON structure sent to all WebSocket clients.
type Frame struct {
	GNSS  *neom8.Fix `json:"gnss,omitempty"`
	Odo   *OdoData   `json:"odo,omitempty"`
	Speed *SpeedData `json:"speed,omitempty"`
	Stamp int64      `json:"stamp"` // Unix ms
}

// OdoData is the odometer info sent to clients.
type OdoData struct {
	Total float64 `json:"total"` // km
	Trip  float64 `json:"trip"`  // km
}

// SpeedData is ground speed converted for display.
type SpeedData struct {
	Kph   float64 `json:"kph"`
	Knots float64 `json:"knots"`
}

// New creates a new Server.
func New(cfg *Config, recv Receiver, webFS fs.FS) *Server {
	odoPath := filepath.Join(filepath.Dir(cfg.path), "odometer.dat")
	if cfg.path == "" {
		odoPath = "/etc/neom8-dash/odometer.dat"
	}

	s := &Server{
		cfg:   cfg,
		recv:  recv,
		webFS: webFS,
		logger: logger.New(logger.Config{
			Enabled:    cfg.Logging.Enabled,
			Path:       cfg.Logging.Path,
			IntervalMs: cfg.Logging.Interval,
		}),
		clients: make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		odoPath: odoPath,
	}
	s.loadOdometer()
	return s
}

// Run starts the HTTP server and the polling loop.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()

	// Serve embedded web files
	mux.Handle("/", http.FileServer(http.FS(s.webFS)))

	// WebSocket endpoint
	mux.HandleFunc("/ws", s.handleWS)

	// Config API
	mux.HandleFunc("/api/config", s.handleConfig)

	// Receiver commands
	mux.HandleFunc("/api/rate", s.handleRate)
	mux.HandleFunc("/api/power", s.handlePower)
	mux.HandleFunc("/api/setup", s.handleSetup)

	// Odometer API
	mux.HandleFunc("/api/odo/reset-trip", s.handleResetTrip)

	go s.pollLoop(ctx)

	// Persist odometer every 30 seconds
	s.odoTicker = time.NewTicker(30 * time.Second)
	go func() {
		for {
			select {
			case <-ctx.Done():
				s.saveOdometer()
				return
			case <-s.odoTicker.C:
				s.saveOdometer()
			}
		}
	}()

	srv := &http.Server{
		Addr:    s.cfg.Server.ListenAddr,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		s.saveOdometer()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	log.Printf("[server] listening on %s", s.cfg.Server.ListenAddr)
	return srv.ListenAndServe()
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade error: %v", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 64),
	}

	s.clientsMu.Lock()
	s.clients[client] = struct{}{}
	s.clientsMu.Unlock()

	log.Printf("[ws] client connected (%d total)", len(s.clients))

	// Send the odometer up front so the display has it before the first fix
	s.odoMu.Lock()
	odo := &OdoData{Total: s.odoTotal, Trip: s.odoTrip}
	s.odoMu.Unlock()

	first := Frame{Odo: odo, Stamp: time.Now().UnixMilli()}
	if data, err := json.Marshal(first); err == nil {
		client.send <- data
	}

	// Writer goroutine
	go func() {
		defer conn.Close()
		for msg := range client.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
	}()

	// Reader goroutine (handle incoming messages / keep-alive)
	go func() {
		defer func() {
			s.clientsMu.Lock()
			delete(s.clients, client)
			s.clientsMu.Unlock()
			close(client.send)
			log.Printf("[ws] client disconnected (%d total)", len(s.clients))
		}()
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				break
			}
		}
	}()
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		data, err := s.cfg.ToJSON()
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)

	case http.MethodPost:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "bad request", 400)
			return
		}
		if err := s.cfg.UpdateFromJSON(body); err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		if err := s.cfg.Save(); err != nil {
			log.Printf("[config] save failed: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))

	default:
		http.Error(w, "method not allowed", 405)
	}
}

// handleRate applies a new receiver output rate: POST {"rate_hz": 10}.
func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", 405)
		return
	}
	var req struct {
		RateHz             float64 `json:"rate_hz"`
		MeasurementsPerFix uint8   `json:"measurements_per_fix"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", 400)
		return
	}
	if req.MeasurementsPerFix == 0 {
		req.MeasurementsPerFix = 1
	}
	res, err := s.recv.SetRate(req.RateHz, req.MeasurementsPerFix)
	if err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	writeAckResult(w, res)
}

// handlePower starts or stops the GNSS subsystem: POST {"state": "on"|"off"}.
func (s *Server) handlePower(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", 405)
		return
	}
	var req struct {
		State string `json:"state"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", 400)
		return
	}
	var (
		res neom8.AckResult
		err error
	)
	switch req.State {
	case "on":
		res, err = s.recv.Start()
	case "off":
		res, err = s.recv.Stop()
	default:
		http.Error(w, `state must be "on" or "off"`, 400)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeAckResult(w, res)
}

// handleSetup runs the full receiver configuration sequence.
func (s *Server) handleSetup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", 405)
		return
	}
	res, err := s.recv.Setup()
	if err != nil && res == neom8.AckTimeout {
		http.Error(w, err.Error(), 500)
		return
	}
	writeAckResult(w, res)
}

func writeAckResult(w http.ResponseWriter, res neom8.AckResult) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"result":%q}`, res.String())
}

func (s *Server) handleResetTrip(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", 405)
		return
	}
	s.odoMu.Lock()
	s.odoTrip = 0
	s.odoMu.Unlock()
	s.saveOdometer()
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// pollLoop polls the receiver for combined fixes and broadcasts them.
func (s *Server) pollLoop(ctx context.Context) {
	hz := s.cfg.GNSS.PollHz
	if hz <= 0 {
		hz = 5
	}
	ticker := time.NewTicker(time.Second / time.Duration(hz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Close()
			return
		case <-ticker.C:
			fix, err := s.recv.Fix()
			if err != nil {
				log.Printf("[server] fix poll failed: %v", err)
				continue
			}

			if fix.Valid && fix.SpeedKnots > 0.5 {
				s.updateOdometer(fix)
			}

			s.odoMu.Lock()
			odo := &OdoData{Total: math.Round(s.odoTotal*10) / 10, Trip: math.Round(s.odoTrip*10) / 10}
			s.odoMu.Unlock()

			frame := Frame{
				GNSS:  &fix,
				Odo:   odo,
				Speed: &SpeedData{Kph: fix.SpeedKnots * 1.852, Knots: fix.SpeedKnots},
				Stamp: time.Now().UnixMilli(),
			}
			s.broadcast(frame)

			s.logger.Record(&fix)
		}
	}
}

// updateOdometer accumulates distance from position changes.
func (s *Server) updateOdometer(fix neom8.Fix) {
	s.odoMu.Lock()
	defer s.odoMu.Unlock()

	if !s.lastValid {
		// First valid fix — seed position, don't accumulate
		s.lastLat = fix.Latitude
		s.lastLon = fix.Longitude
		s.lastValid = true
		return
	}

	// Haversine distance
	dist := haversineKm(s.lastLat, s.lastLon, fix.Latitude, fix.Longitude)

	// Sanity check: ignore jumps > 500m per tick (position glitch)
	if dist > 0.5 {
		s.lastLat = fix.Latitude
		s.lastLon = fix.Longitude
		return
	}

	// Minimum movement threshold: ~2 meters
	if dist > 0.002 {
		s.odoTotal += dist
		s.odoTrip += dist
		s.lastLat = fix.Latitude
		s.lastLon = fix.Longitude
	}
}

// haversineKm calculates the great-circle distance between two lat/lon points.
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371.0 // Earth radius km
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}

// loadOdometer reads persisted odometer values from disk.
func (s *Server) loadOdometer() {
	data, err := os.ReadFile(s.odoPath)
	if err != nil {
		log.Printf("[odo] no saved data at %s (starting at 0)", s.odoPath)
		return
	}
	parts := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(parts) >= 1 {
		if v, err := strconv.ParseFloat(parts[0], 64); err == nil {
			s.odoTotal = v
		}
	}
	if len(parts) >= 2 {
		if v, err := strconv.ParseFloat(parts[1], 64); err == nil {
			s.odoTrip = v
		}
	}
	log.Printf("[odo] loaded: total=%.1f km, trip=%.1f km", s.odoTotal, s.odoTrip)
}

// saveOdometer persists odometer values to disk.
func (s *Server) saveOdometer() {
	s.odoMu.Lock()
	total := s.odoTotal
	trip := s.odoTrip
	s.odoMu.Unlock()

	// Ensure directory exists
	os.MkdirAll(filepath.Dir(s.odoPath), 0755)

	data := fmt.Sprintf("%.6f\n%.6f\n", total, trip)
	if err := os.WriteFile(s.odoPath, []byte(data), 0644); err != nil {
		log.Printf("[odo] save failed: %v", err)
	}
}

func (s *Server) broadcast(frame Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for client := range s.clients {
		select {
		case client.send <- data:
		default:
			// Client too slow, skip
		}
	}
}
