package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/lawnchairsociety/tunnelfight/internal/database"
	"github.com/lawnchairsociety/tunnelfight/internal/logger"
)

// withCORS allows any origin on the JSON routes and answers preflights.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	if locked, wait := s.abuse.IsLocked(ip); locked {
		rejectLocked(w, wait)
		return
	}

	var req SimulateRequest
	body := http.MaxBytesReader(w, r.Body, s.cfg.HTTP.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.reject(w, ip, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooBig.Limit))
			return
		}
		s.reject(w, ip, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	resp, err := s.simulate(r.Context(), &req, nil)
	if err != nil {
		status, msg := errorStatus(err)
		if status >= http.StatusInternalServerError {
			if status == http.StatusInternalServerError {
				logger.Error("Simulation failed", "remote_addr", r.RemoteAddr, "error", err)
			}
			writeError(w, status, msg)
			return
		}
		s.reject(w, ip, status, msg)
		return
	}

	s.abuse.RecordSuccess(ip)
	writeJSON(w, http.StatusOK, resp)
}

// reject answers a client mistake and counts it against ip.
func (s *Server) reject(w http.ResponseWriter, ip string, status int, msg string) {
	if locked, wait := s.abuse.RecordFailure(ip); locked {
		logger.Warning("Client locked out after repeated bad requests",
			"client_ip", ip,
			"lockout", wait)
	}
	writeError(w, status, msg)
}

func rejectLocked(w http.ResponseWriter, wait time.Duration) {
	secs := int(wait.Round(time.Second) / time.Second)
	w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
	writeError(w, http.StatusTooManyRequests, "too many bad requests, try again later")
}

// archive reports whether the report routes are available, answering 404
// when they are not.
func (s *Server) archive(w http.ResponseWriter) bool {
	if s.reports == nil {
		writeError(w, http.StatusNotFound, "report archive is not configured")
		return false
	}
	return true
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	if !s.archive(w) {
		return
	}

	q := r.URL.Query()
	filter := database.ReportFilter{
		EncounterName: q.Get("encounter"),
		Fingerprint:   q.Get("fingerprint"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}

	reports, err := s.reports.ListReports(r.Context(), filter)
	if err != nil {
		logger.Error("Failed to list reports", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	if !s.archive(w) {
		return
	}

	id := mux.Vars(r)["id"]
	report, err := s.reports.GetReport(r.Context(), id)
	switch {
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, "report not found")
	case err != nil:
		logger.Error("Failed to load report", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	default:
		writeJSON(w, http.StatusOK, report)
	}
}

func (s *Server) handleDeleteReport(w http.ResponseWriter, r *http.Request) {
	if !s.archive(w) {
		return
	}

	id := mux.Vars(r)["id"]
	err := s.reports.DeleteReport(r.Context(), id)
	switch {
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, "report not found")
	case err != nil:
		logger.Error("Failed to delete report", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	default:
		logger.Info("Report deleted", "id", id, "remote_addr", r.RemoteAddr)
		w.WriteHeader(http.StatusNoContent)
	}
}
