package server

import (
	"net/http"
	"time"

	"github.com/ishaileshpant/secureagg-fl/pkg/roundstate"
)

type registerRequest struct {
	ClientID string `json:"client_id"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil || req.ClientID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"OK": false, "error_message": "client_id is required",
		})
		return
	}

	clients := s.state.Register(req.ClientID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"OK":      true,
		"clients": clients,
	})
}

func (s *Server) handleRoster(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"clients": s.state.Roster(),
	})
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	round, weights, featureWeight := s.state.Model()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"training_round":   round,
		"training_weights": weights,
		"feature_weight":   featureWeight,
	})
}

type configureRequest struct {
	Participants []string `json:"participants"`
}

func (s *Server) handleConfigure(w http.ResponseWriter, r *http.Request) {
	var req configureRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"OK": false, "error_message": "invalid request body",
		})
		return
	}

	participants := s.state.ConfigureRound(req.Participants)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"OK":           true,
		"participants": participants,
	})
}

type submitRequest struct {
	ClientID     string             `json:"client_id"`
	Round        int                `json:"round"`
	MaskedUpdate []float64          `json:"masked_update"`
	Metrics      map[string]float64 `json:"metrics,omitempty"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(r, &req); err != nil || req.ClientID == "" || req.MaskedUpdate == nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"OK": false, "error_message": "client_id, round, and masked_update are required",
		})
		return
	}

	received, allReceived, rejection, err := s.state.SubmitUpdate(req.ClientID, req.Round, req.MaskedUpdate, req.Metrics)
	if err != nil {
		s.metrics.SubmissionsRejected.WithLabelValues("shape_error").Inc()
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"OK": false, "error_message": err.Error(),
		})
		return
	}

	switch rejection {
	case roundstate.RejectRoundNotConfigured:
		s.metrics.SubmissionsRejected.WithLabelValues(string(rejection)).Inc()
		writeError(w, http.StatusConflict, string(rejection))
		return
	case roundstate.RejectNotExpected:
		s.metrics.SubmissionsRejected.WithLabelValues(string(rejection)).Inc()
		writeError(w, http.StatusConflict, string(rejection))
		return
	case roundstate.RejectWrongRound:
		s.metrics.SubmissionsRejected.WithLabelValues(string(rejection)).Inc()
		writeError(w, http.StatusBadRequest, string(rejection))
		return
	}

	s.metrics.SubmissionsTotal.Inc()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"OK":           true,
		"received":     received,
		"all_received": allReceived,
	})
}

func (s *Server) handleFinish(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	round, weight, err := s.state.FinishRound()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"OK": false, "error_message": "incomplete",
		})
		return
	}
	s.metrics.AggregationSeconds.Observe(time.Since(start).Seconds())
	s.metrics.RoundsCompleted.Inc()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"OK":     true,
		"round":  round,
		"weight": weight,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.statusSnapshot())
}

func (s *Server) statusSnapshot() map[string]interface{} {
	return map[string]interface{}{
		"round":      s.state.Round(),
		"registered": s.state.Roster(),
		"expected":   s.state.Expected(),
		"received":   s.state.Received(),
	}
}

// handleStatusStream upgrades to a websocket and pushes a status snapshot
// whenever the round number changes, saving clients from tight polling.
// This is purely additive: /status keeps working as a plain polling
// endpoint, and a client that never connects here is unaffected.
func (s *Server) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	lastRound := -1
	ticker := time.NewTicker(statusStreamPollInterval)
	defer ticker.Stop()

	for range ticker.C {
		round := s.state.Round()
		if round == lastRound {
			continue
		}
		lastRound = round
		if err := conn.WriteJSON(s.statusSnapshot()); err != nil {
			return
		}
	}
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	round, weights, featureWeight := s.state.Model()
	w.Header().Set("Content-Disposition", "attachment; filename=\"export.json\"")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"round":            round,
		"feature_weight":   featureWeight,
		"training_weights": weights,
		"history":          s.state.History(),
		"export_time":      time.Now().UTC(),
	})
}
