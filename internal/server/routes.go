package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/bobmcallan/snaptrail/internal/common"
	"github.com/bobmcallan/snaptrail/internal/models"
	"github.com/bobmcallan/snaptrail/internal/storage/internaldb"
)

// routes builds the router. Every endpoint is read-only.
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(withRequestID)
	r.Use(recoverPanics(s.logger))
	r.Use(accessLog(s.logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/version", s.handleVersion)
		r.Get("/plan", s.handlePlan)
		r.Get("/signals", s.handleSignals)
		r.Get("/report", s.handleReport)
		r.Get("/snapshots/{dataset}/{account}", s.handleSnapshot)
		r.Get("/snapshots/{dataset}/{account}/dates", s.handleSnapshotDates)
		r.Get("/runs", s.handleRuns)
		r.Get("/runs/{id}", s.handleRun)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	info := common.GetVersionInfo()
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"version": info.Version,
		"build":   info.Build,
		"commit":  info.Commit,
		"uptime":  time.Since(s.app.StartupTime).Round(time.Second).String(),
	})
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	date, ok := s.dateParam(w, r)
	if !ok {
		return
	}
	plan, err := s.app.PlannerService.PlanFor(r.Context(), date)
	if err != nil {
		s.logger.Error().Err(err).Str("request_id", requestID(r.Context())).Str("date", date.String()).Msg("Plan failed")
		WriteError(w, http.StatusInternalServerError, "Plan failed: "+err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, plan)
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	date, ok := s.dateParam(w, r)
	if !ok {
		return
	}

	key := "signals:" + date.String()
	if cached, found := s.cache.Get(key); found {
		w.Header().Set("X-Cache", "HIT")
		WriteJSON(w, http.StatusOK, cached)
		return
	}

	set, err := s.app.SignalService.ComputeSignals(r.Context(), date)
	if err != nil {
		s.logger.Error().Err(err).Str("request_id", requestID(r.Context())).Str("date", date.String()).Msg("Signals failed")
		WriteError(w, http.StatusInternalServerError, "Signals failed: "+err.Error())
		return
	}
	s.cache.SetDefault(key, set)
	w.Header().Set("X-Cache", "MISS")
	WriteJSON(w, http.StatusOK, set)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	date, ok := s.dateParam(w, r)
	if !ok {
		return
	}
	snap, err := s.app.ReportService.Snapshot(r.Context(), date)
	if err != nil {
		s.logger.Error().Err(err).Str("request_id", requestID(r.Context())).Str("date", date.String()).Msg("Report failed")
		WriteError(w, http.StatusInternalServerError, "Report failed: "+err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, snap)
}

func (s *Server) datasetParam(w http.ResponseWriter, r *http.Request) (models.Dataset, bool) {
	ds := models.Dataset(chi.URLParam(r, "dataset"))
	if !ds.Valid() {
		WriteErrorWithCode(w, http.StatusBadRequest, "Unknown dataset: "+string(ds), "invalid_dataset")
		return "", false
	}
	return ds, true
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.datasetParam(w, r)
	if !ok {
		return
	}
	date, ok := s.dateParam(w, r)
	if !ok {
		return
	}
	account := chi.URLParam(r, "account")

	snap, err := s.app.Storage.SnapshotStore().Latest(r.Context(), ds, account, date)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Snapshot lookup failed: "+err.Error())
		return
	}
	if snap == nil {
		WriteErrorWithCode(w, http.StatusNotFound, "No snapshot on or before "+date.String(), "not_found")
		return
	}
	WriteJSON(w, http.StatusOK, snap)
}

func (s *Server) handleSnapshotDates(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.datasetParam(w, r)
	if !ok {
		return
	}
	account := chi.URLParam(r, "account")

	dates, err := s.app.Storage.SnapshotStore().ListDates(r.Context(), ds, account)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Date listing failed: "+err.Error())
		return
	}
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.String()
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"dataset": ds,
		"account": account,
		"dates":   out,
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := intParam(r, "limit", 20, 500)
	runs, err := s.app.Storage.RunStore().ListRuns(r.Context(), limit)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Run listing failed: "+err.Error())
		return
	}
	if runs == nil {
		runs = []*models.RunReport{}
	}
	WriteJSON(w, http.StatusOK, runs)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.app.Storage.RunStore().GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, internaldb.ErrRunNotFound) {
			WriteErrorWithCode(w, http.StatusNotFound, err.Error(), "not_found")
			return
		}
		WriteError(w, http.StatusInternalServerError, "Run lookup failed: "+err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, run)
}
