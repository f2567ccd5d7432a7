package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/speedwagon-io/sensorwatch/internal/health"
	"github.com/speedwagon-io/sensorwatch/internal/history"
	"github.com/speedwagon-io/sensorwatch/internal/lib/logger/sl"
	"github.com/speedwagon-io/sensorwatch/internal/model"
	"github.com/speedwagon-io/sensorwatch/internal/state"
	"github.com/speedwagon-io/sensorwatch/internal/views"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
	maxSelectBody       = 1 << 10
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := health.Aggregate(ctx, s.checkers)

	statusCode := http.StatusOK
	if response.Status == health.StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	s.writeJSON(w, statusCode, response)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.Snapshot())
}

func (s *Server) handleReadings(w http.ResponseWriter, r *http.Request) {
	readings := s.store.Snapshot().Readings
	if readings == nil {
		readings = []model.Reading{}
	}
	s.writeJSON(w, http.StatusOK, readings)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary := s.store.Snapshot().Summary
	if summary == nil {
		summary = []model.SummaryEntry{}
	}
	s.writeJSON(w, http.StatusOK, summary)
}

type predictionResponse struct {
	Prediction *model.Prediction `json:"prediction"`
	Value      *float64          `json:"value"`
	Band       model.Band        `json:"band,omitempty"`
	Loading    bool              `json:"loading"`
}

func (s *Server) handlePrediction(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Snapshot()

	resp := predictionResponse{
		Prediction: snap.Prediction,
		Loading:    snap.LoadingPrediction,
	}
	if snap.Prediction != nil {
		resp.Value = snap.Prediction.Value
		resp.Band = snap.Prediction.Band()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, http.StatusNotFound, "history is disabled")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxHistoryLimit {
			s.writeError(w, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(maxHistoryLimit))
			return
		}
		limit = n
	}

	records, err := s.history.RecentReadings(r.Context(), limit)
	if err != nil {
		s.log.Error("failed to read history", sl.Err(err))
		s.writeError(w, http.StatusInternalServerError, "failed to read history")
		return
	}
	if records == nil {
		records = []history.Record{}
	}
	s.writeJSON(w, http.StatusOK, records)
}

type selectRequest struct {
	ID json.RawMessage `json:"id"`
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSelectBody)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, ok := model.ParseID(req.ID)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "id must be a number or a non-empty string")
		return
	}

	if err := s.store.Select(id); err != nil {
		if errors.Is(err, state.ErrRowNotFound) {
			s.writeError(w, http.StatusNotFound, "no reading with id "+id)
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"selected_id": id})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	data := views.BuildDashboard(s.store.Snapshot(), s.refresh)

	var buf bytes.Buffer
	if err := views.RenderDashboard(&buf, data); err != nil {
		s.log.Error("failed to render dashboard", sl.Err(err))
		s.writeError(w, http.StatusInternalServerError, "failed to render page")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
