package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"warden-hq/taskwarden/pkg/ledger"
	"warden-hq/taskwarden/pkg/scheduler"
	"warden-hq/taskwarden/pkg/task"
)

// submitRequest is the POST /tasks payload. Priority is accepted by name
// so clients do not need to know the numeric scale.
type submitRequest struct {
	Name            string            `json:"name"`
	Category        task.Category     `json:"category"`
	Priority        string            `json:"priority"`
	Instructions    string            `json:"instructions"`
	Capabilities    []string          `json:"capabilities,omitempty"`
	EstimatedTokens int               `json:"estimated_tokens"`
	CreatedBy       string            `json:"created_by,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	priority, err := task.ParsePriority(req.Priority)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.scheduler.Submit(r.Context(), task.Spec{
		Name:            req.Name,
		Category:        req.Category,
		Priority:        priority,
		Instructions:    req.Instructions,
		Capabilities:    req.Capabilities,
		EstimatedTokens: req.EstimatedTokens,
		CreatedBy:       req.CreatedBy,
		Metadata:        req.Metadata,
	})
	if err != nil {
		var admissionErr *scheduler.AdmissionError
		if errors.As(err, &admissionErr) {
			writeError(w, http.StatusTooManyRequests, admissionErr.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	t, ok := s.scheduler.Task(id)
	if !ok {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if !s.scheduler.Cancel(id) {
		writeError(w, http.StatusNotFound, "task not found or already finished")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.scheduler.Status())
}

func (s *Server) handleUsageSummary(w http.ResponseWriter, r *http.Request) {
	rng := ledger.Range(r.URL.Query().Get("range"))
	switch rng {
	case ledger.RangeDay, ledger.RangeWeek, ledger.RangeMonth:
	case "":
		rng = ledger.RangeWeek
	default:
		writeError(w, http.StatusBadRequest, "range must be day, week or month")
		return
	}

	writeJSON(w, http.StatusOK, s.ledger.Summary(rng))
}

func (s *Server) handleUsageAlerts(w http.ResponseWriter, _ *http.Request) {
	alerts := s.ledger.Alerts()
	if alerts == nil {
		alerts = []ledger.Alert{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}

func (s *Server) handleUsageAnalytics(w http.ResponseWriter, r *http.Request) {
	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = n
	}

	report, err := s.ledger.Analytics(r.Context(), days)
	if err != nil {
		s.logger.Error("analytics query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "analytics unavailable")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
