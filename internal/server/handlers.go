package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	apperrors "leverage-sim/internal/errors"
	"leverage-sim/internal/goalseek"
	"leverage-sim/internal/logging"
	"leverage-sim/internal/models"
	"leverage-sim/internal/valuation"
)

type evaluateRequest struct {
	// Price is accepted as a JSON number or string so free-form input reaches
	// the same parser as the CLI.
	Price   json.RawMessage `json:"price"`
	Refresh bool            `json:"refresh"`
}

type evaluateResponse struct {
	Snapshot models.Snapshot      `json:"snapshot"`
	Quotes   models.QuoteSnapshot `json:"quotes"`
}

type solveRequest struct {
	Mode          string   `json:"mode"`
	Value         *float64 `json:"value"`
	Low           *float64 `json:"low,omitempty"`
	High          *float64 `json:"high,omitempty"`
	Tolerance     *float64 `json:"tolerance,omitempty"`
	MaxIterations *int     `json:"max_iterations,omitempty"`
	Refresh       bool     `json:"refresh"`
}

type solveResponse struct {
	Result    models.Result        `json:"result"`
	Monotonic bool                 `json:"monotonic"`
	Quotes    models.QuoteSnapshot `json:"quotes"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"version": s.version,
		"service": "levsim",
	})
}

// handleEvaluate values the portfolio at a simulated underlying price.
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, snap, err := s.quotes.Price(r.Context(), s.portfolio, req.Refresh)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	result, err := s.model.EvaluateInput(p, rawPrice(req.Price))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	log := logging.WithSymbol(logging.WithOperation(logging.FromContext(r.Context()), "evaluate"), p.Underlying.Symbol)
	logging.LogValuation(log, result)

	s.writeJSON(w, http.StatusOK, evaluateResponse{Snapshot: result.Rounded(), Quotes: snap})
}

func rawPrice(raw json.RawMessage) string {
	v := strings.TrimSpace(string(raw))
	if v == "null" {
		return ""
	}
	if unquoted, err := strconv.Unquote(v); err == nil {
		return unquoted
	}
	return v
}

// handleSolve finds the underlying price that reaches a target.
func (s *Server) handleSolve(w http.ResponseWriter, r *http.Request) {
	var req solveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	mode, err := models.ParseMode(req.Mode)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Value == nil {
		s.writeError(w, http.StatusBadRequest, "value is required")
		return
	}

	cfg := s.solverCfg
	if req.Low != nil {
		cfg.Low = *req.Low
	}
	if req.High != nil {
		cfg.High = *req.High
	}
	if req.Tolerance != nil {
		cfg.Tolerance = *req.Tolerance
	}
	if req.MaxIterations != nil {
		cfg.MaxIterations = *req.MaxIterations
	}

	p, snap, err := s.quotes.Price(r.Context(), s.portfolio, req.Refresh)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	res, err := goalseek.NewSolver(s.model, cfg).Solve(p, models.Target{Mode: mode, Value: *req.Value})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	log := logging.WithSymbol(logging.WithOperation(logging.FromContext(r.Context()), "solve"), p.Underlying.Symbol)
	logging.LogGoalSeek(log, res)

	s.writeJSON(w, http.StatusOK, solveResponse{
		Result:    res,
		Monotonic: goalseek.AssumesMonotonic(s.model, p),
		Quotes:    snap,
	})
}

// handleAnalytics reports weights and insights at current prices.
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	p, _, err := s.quotes.Price(r.Context(), s.portfolio, queryBool(r, "refresh"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	a, err := valuation.Analyze(p)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, a)
}

// handleQuotes returns the reference quote snapshot.
func (s *Server) handleQuotes(w http.ResponseWriter, r *http.Request) {
	snap, err := s.quotes.Snapshot(r.Context(), s.portfolio.Symbols(), queryBool(r, "refresh"))
	if err != nil && len(snap.Quotes) == 0 {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

// handleQuoteHistory returns stored quotes of one symbol.
func (s *Server) handleQuoteHistory(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusNotImplemented, "quote history is not enabled")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	history, err := s.store.SymbolHistory(r.Context(), strings.ToUpper(chi.URLParam(r, "symbol")), limit)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if history == nil {
		history = []models.Quote{}
	}
	s.writeJSON(w, http.StatusOK, history)
}

// handleIntraday returns today's intraday series of one symbol.
func (s *Server) handleIntraday(w http.ResponseWriter, r *http.Request) {
	points, err := s.quotes.Intraday(r.Context(), strings.ToUpper(chi.URLParam(r, "symbol")))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, points)
}

func queryBool(r *http.Request, key string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return v
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// writeDomainError maps domain errors to HTTP status codes.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperrors.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, apperrors.ErrDivisionUndefined):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, apperrors.ErrNotConfigured):
		status = http.StatusNotImplemented
	case errors.Is(err, apperrors.ErrCircuitOpen):
		status = http.StatusServiceUnavailable
	case errors.Is(err, apperrors.ErrQuoteUnavailable), errors.Is(err, apperrors.ErrRateLimited):
		status = http.StatusBadGateway
	case errors.Is(err, apperrors.ErrDataNotFound), errors.Is(err, apperrors.ErrSymbolNotFound):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("request failed")
	}
	s.writeError(w, status, err.Error())
}
