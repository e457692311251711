package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"keystone-tracker/internal/cache"
	"keystone-tracker/internal/domain"
	"keystone-tracker/internal/service"
)

// TrackerServer is the thin JSON glue over the pipeline. All invariants
// live in the service layer; handlers only parse, delegate and encode.
type TrackerServer struct {
	keySvc     *service.KeyService
	compareSvc *service.CompareService
	cache      cache.Cache
	logger     zerolog.Logger
}

func NewTrackerServer(keySvc *service.KeyService, compareSvc *service.CompareService, c cache.Cache, logger zerolog.Logger) *TrackerServer {
	return &TrackerServer{keySvc: keySvc, compareSvc: compareSvc, cache: c, logger: logger}
}

func (s *TrackerServer) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/keys", s.handleKeys)
	mux.HandleFunc("GET /api/compare", s.handleCompare)
	mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	mux.HandleFunc("GET /health", s.handleHealth)
}

type keysResponse struct {
	Data []domain.Run `json:"data"`
	Time int64        `json:"time"` // pipeline wall time in ms
}

func (s *TrackerServer) handleKeys(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	runs, err := s.keySvc.Runs(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("pipeline failed")
		writeError(w, http.StatusBadGateway, "failed to load runs")
		return
	}

	writeJSON(w, http.StatusOK, keysResponse{
		Data: runs,
		Time: time.Since(start).Milliseconds(),
	})
}

func (s *TrackerServer) handleCompare(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	in := service.CompareInput{
		ReportID:    q.Get("report"),
		FightID:     intParam(q.Get("fight")),
		EncounterID: intParam(q.Get("encounter")),
		ClassSpec:   q.Get("spec"),
		SourceID:    intParam(q.Get("source")),
		MainAffix:   intParam(q.Get("affix")),
	}
	if in.ReportID == "" || in.FightID == 0 || in.EncounterID == 0 || in.ClassSpec == "" {
		writeError(w, http.StatusBadRequest, "report, fight, encounter and spec are required")
		return
	}

	url, err := s.compareSvc.CompareURL(r.Context(), in)
	if err != nil {
		var noRanking *domain.NoRankingFoundError
		if errors.As(err, &noRanking) {
			writeError(w, http.StatusNotFound, "no comparable run available")
			return
		}
		s.logger.Error().Err(err).Str("report", in.ReportID).Msg("compare failed")
		writeError(w, http.StatusBadGateway, "failed to build comparison")
		return
	}

	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

func (s *TrackerServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.cache.Flush(r.Context()); err != nil {
		s.logger.Error().Err(err).Msg("cache flush failed")
		writeError(w, http.StatusInternalServerError, "failed to flush cache")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *TrackerServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	if _, _, err := s.cache.Get(ctx, "health:probe"); err != nil {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

func intParam(v string) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
