package main

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/carfix-labs/carfix/engine/diagnose"
	"github.com/carfix-labs/carfix/engine/domain"
	"github.com/carfix-labs/carfix/engine/events"
	"github.com/carfix-labs/carfix/engine/fallback"
	"github.com/carfix-labs/carfix/engine/geo"
	"github.com/carfix-labs/carfix/engine/knowledge"
	"github.com/carfix-labs/carfix/pkg/metrics"
)

const defaultNearestK = 5

// insightProvider serves the auxiliary tips and related-issue lookups.
type insightProvider interface {
	MaintenanceTips(ctx context.Context, v domain.Vehicle) []string
	RelatedIssues(ctx context.Context, brand, model, primary string) []fallback.RelatedIssue
}

type server struct {
	diag     *diagnose.Service
	finder   *geo.Finder
	entities knowledge.EntityStore
	insights insightProvider
	sink     events.Sink
	reg      *metrics.Registry
	store    string
	logger   *slog.Logger
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/diagnose", s.handleDiagnose)
	mux.HandleFunc("GET /api/centers/nearest", s.handleNearestCenters)
	mux.HandleFunc("GET /api/tow/nearest", s.handleNearestTow)
	mux.HandleFunc("GET /api/maintenance-centers", s.handleCenters)
	mux.HandleFunc("POST /api/maintenance-tips", s.handleTips)
	mux.HandleFunc("POST /api/related-issues", s.handleRelated)
	mux.HandleFunc("POST /api/calls", s.handleCall)
	if s.reg != nil {
		mux.Handle("GET /metrics", s.reg.Handler())
	}
	return mux
}

// --- Responses ---

type errorResponse struct {
	Error string `json:"error"`
}

// locationResponse flattens an entity with its rounded distance.
type locationResponse struct {
	domain.LocatedEntity
	DistanceKm float64 `json:"distance_km"`
}

func toLocation(r domain.RankedLocation) locationResponse {
	return locationResponse{LocatedEntity: r.Entity, DistanceKm: geo.RoundKm(r.DistanceKm)}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// fail maps an error to a status. Input errors echo their message; anything
// else is logged and answered generically.
func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if domain.IsInputError(err) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Error("request failed", "path", r.URL.Path, "err", err)
	writeError(w, http.StatusInternalServerError, "An internal error occurred")
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// --- Handlers ---

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]string{"status": "ok", "store": s.store}
	if a, ok := s.insights.(*fallback.Adapter); ok {
		resp["fallback_circuit"] = a.BreakerState().String()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleDiagnose(w http.ResponseWriter, r *http.Request) {
	var q domain.Query
	if !decode(w, r, &q) {
		return
	}
	d, err := s.diag.Diagnose(r.Context(), q)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.sink.DiagnosisLogged(r.Context(), events.QueryLogFor(q, d)); err != nil {
		s.logger.Warn("diagnosis event dropped", "err", err)
	}
	writeJSON(w, http.StatusOK, d)
}

func parseCoords(r *http.Request) (lat, lon float64, err error) {
	q := r.URL.Query()
	lat, err = strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		return 0, 0, domain.NewValidationError("lat", q.Get("lat"), domain.ErrInvalidCoordinates)
	}
	lon, err = strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil {
		return 0, 0, domain.NewValidationError("lon", q.Get("lon"), domain.ErrInvalidCoordinates)
	}
	return lat, lon, nil
}

func (s *server) handleNearestCenters(w http.ResponseWriter, r *http.Request) {
	lat, lon, err := parseCoords(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	k := defaultNearestK
	if v := r.URL.Query().Get("k"); v != "" {
		if k, err = strconv.Atoi(v); err != nil || k < 0 {
			writeError(w, http.StatusBadRequest, "k must be a non-negative integer")
			return
		}
	}
	ranked, err := s.finder.NearestCenters(r.Context(), lat, lon, k)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]locationResponse, len(ranked))
	for i, rl := range ranked {
		out[i] = toLocation(rl)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) handleNearestTow(w http.ResponseWriter, r *http.Request) {
	lat, lon, err := parseCoords(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	nearest, err := s.finder.NearestTowOperator(r.Context(), lat, lon)
	if errors.Is(err, geo.ErrNoEntities) {
		writeError(w, http.StatusNotFound, "No tow operators found.")
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLocation(nearest))
}

func (s *server) handleCenters(w http.ResponseWriter, r *http.Request) {
	centers, err := s.entities.Entities(r.Context(), domain.KindCenter)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := slices.Clone(centers)
	if out == nil {
		out = []domain.LocatedEntity{}
	}
	slices.SortStableFunc(out, func(a, b domain.LocatedEntity) int {
		return cmp.Compare(b.Rating, a.Rating)
	})
	writeJSON(w, http.StatusOK, out)
}

func (s *server) handleTips(w http.ResponseWriter, r *http.Request) {
	var v domain.Vehicle
	if !decode(w, r, &v) {
		return
	}
	if err := domain.ValidateVehicle(v); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{
		"maintenance_tips": s.insights.MaintenanceTips(r.Context(), v),
	})
}

type relatedRequest struct {
	Brand string `json:"brand"`
	Model string `json:"model"`
	Issue string `json:"issue"`
}

func (s *server) handleRelated(w http.ResponseWriter, r *http.Request) {
	var req relatedRequest
	if !decode(w, r, &req) {
		return
	}
	if err := domain.ValidateVehicle(domain.Vehicle{Brand: req.Brand, Model: req.Model}); err != nil {
		s.fail(w, r, err)
		return
	}
	if strings.TrimSpace(req.Issue) == "" {
		writeError(w, http.StatusBadRequest, "issue is required")
		return
	}
	writeJSON(w, http.StatusOK, map[string][]fallback.RelatedIssue{
		"related_issues": s.insights.RelatedIssues(r.Context(), req.Brand, req.Model, req.Issue),
	})
}

type callRequest struct {
	CallerNumber string `json:"caller_number"`
	OwnerID      int64  `json:"owner_id"`
}

func (s *server) handleCall(w http.ResponseWriter, r *http.Request) {
	var req callRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.CallerNumber) == "" || req.OwnerID == 0 {
		writeError(w, http.StatusBadRequest, "caller_number and owner_id are required")
		return
	}
	l := domain.CallLog{CallerNumber: req.CallerNumber, OwnerID: req.OwnerID, At: time.Now().UTC()}
	if err := s.sink.CallLogged(r.Context(), l); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Call logged successfully"})
}
