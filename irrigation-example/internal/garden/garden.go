// Package garden is the example application's domain: named irrigation
// zones fed by sensor readings, a controller that turns each reading into
// a watering duration, and a bounded journal of every decision.
//
// The garden exposes HTTP handlers for:
//   - Zone creation
//   - Zone lookup by ID
//   - Posting a sensor reading for a zone
//   - Reading the decision journal
//
// All operations are safe for concurrent use.
package garden

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chosenoffset/mamdani/pkg/mamdani"
	"github.com/chosenoffset/mamdani/pkg/mamdani/irrigation"
)

var (
	ErrZoneExists   = errors.New("zone already exists")
	ErrZoneNotFound = errors.New("zone not found")
)

type Zone struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	LastReading *irrigation.Reading `json:"last_reading,omitempty"`
	LastMinutes float64             `json:"last_minutes"`
	Watered     time.Time           `json:"watered,omitempty"`
	TotalWater  float64             `json:"total_minutes"`
}

// Decision is one journal entry: what a zone reported and what the
// controller decided.
type Decision struct {
	ID      string         `json:"id"`
	Zone    string         `json:"zone"`
	At      time.Time      `json:"at"`
	Inputs  mamdani.Values `json:"inputs"`
	Minutes float64        `json:"minutes"`
	Error   string         `json:"error,omitempty"`
}

type Garden struct {
	mu         sync.RWMutex
	engine     *mamdani.Engine
	zones      map[string]*Zone
	journal    []Decision
	maxJournal int
	log        *zap.Logger
}

func New(engine *mamdani.Engine, maxJournal int, log *zap.Logger) *Garden {
	if log == nil {
		log = zap.NewNop()
	}
	if maxJournal <= 0 {
		maxJournal = 1000
	}
	return &Garden{
		engine:     engine,
		zones:      make(map[string]*Zone),
		journal:    make([]Decision, 0, maxJournal),
		maxJournal: maxJournal,
		log:        log,
	}
}

func (g *Garden) AddZone(id, name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.zones[id]; exists {
		return ErrZoneExists
	}
	g.zones[id] = &Zone{ID: id, Name: name}
	return nil
}

func (g *Garden) Zone(id string) (Zone, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	z, ok := g.zones[id]
	if !ok {
		return Zone{}, false
	}
	return *z, true
}

// Record runs the controller on a zone's inputs and journals the outcome,
// failed or not.
func (g *Garden) Record(zoneID string, inputs mamdani.Values) (Decision, error) {
	g.mu.RLock()
	_, ok := g.zones[zoneID]
	g.mu.RUnlock()
	if !ok {
		return Decision{}, ErrZoneNotFound
	}

	d := Decision{ID: uuid.NewString(), Zone: zoneID, At: time.Now(), Inputs: inputs}
	out, err := g.engine.Compute(inputs)
	if err != nil {
		d.Error = err.Error()
		g.log.Warn("no decision for zone", zap.String("zone", zoneID), zap.Error(err))
	} else {
		d.Minutes = out[irrigation.Duration]
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if err == nil {
		z := g.zones[zoneID]
		r := irrigation.Reading{
			SoilMoisture:   inputs[irrigation.SoilMoisture],
			AirTemperature: inputs[irrigation.AirTemperature],
			SolarRadiation: inputs[irrigation.SolarRadiation],
		}
		z.LastReading = &r
		z.LastMinutes = d.Minutes
		z.TotalWater += d.Minutes
		if d.Minutes > 0 {
			z.Watered = d.At
		}
	}

	if len(g.journal) == g.maxJournal {
		copy(g.journal, g.journal[1:])
		g.journal = g.journal[:g.maxJournal-1]
	}
	g.journal = append(g.journal, d)

	return d, err
}

// Journal returns up to limit most recent decisions, newest last,
// optionally filtered by zone.
func (g *Garden) Journal(zoneID string, limit int) []Decision {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []Decision
	for i := len(g.journal) - 1; i >= 0 && len(out) < limit; i-- {
		if zoneID == "" || g.journal[i].Zone == zoneID {
			out = append(out, g.journal[i])
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// CreateZoneRequest is the input for /zone
type CreateZoneRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (g *Garden) HandleCreateZone(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req CreateZoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if err := g.AddZone(req.ID, req.Name); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (g *Garden) HandleGetZone(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}

	z, ok := g.Zone(id)
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, z)
}

// ReadingRequest is the input for /reading. Absent sensors are left nil
// and reach the controller as missing inputs.
type ReadingRequest struct {
	Zone           string   `json:"zone"`
	SoilMoisture   *float64 `json:"soil_moisture"`
	AirTemperature *float64 `json:"air_temperature"`
	SolarRadiation *float64 `json:"solar_radiation"`
}

func (req ReadingRequest) Values() mamdani.Values {
	v := make(mamdani.Values, 3)
	if req.SoilMoisture != nil {
		v[irrigation.SoilMoisture] = *req.SoilMoisture
	}
	if req.AirTemperature != nil {
		v[irrigation.AirTemperature] = *req.AirTemperature
	}
	if req.SolarRadiation != nil {
		v[irrigation.SolarRadiation] = *req.SolarRadiation
	}
	return v
}

func (g *Garden) HandleReading(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ReadingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	d, err := g.Record(req.Zone, req.Values())
	switch {
	case errors.Is(err, ErrZoneNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case err != nil:
		writeJSON(w, http.StatusUnprocessableEntity, d)
	default:
		writeJSON(w, http.StatusOK, d)
	}
}

func (g *Garden) HandleJournal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	limit := 50
	if s := query.Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = min(n, 500)
		}
	}

	entries := g.Journal(query.Get("zone"), limit)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"decisions":   entries,
		"total_count": len(entries),
		"limit":       limit,
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
