// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/internal/decision"
	"github.com/pdiddy/evidence-engine/internal/gate"
	"github.com/pdiddy/evidence-engine/internal/journal"
	"github.com/pdiddy/evidence-engine/internal/search"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// AskRequest is the body of POST /api/ask.
type AskRequest struct {
	Query      string   `json:"query"`
	Type       string   `json:"type,omitempty"`
	MaxResults int      `json:"max_results,omitempty"`
	Domains    []string `json:"domains,omitempty"`
	Context    struct {
		Expertise string `json:"expertise,omitempty"`
		Urgent    bool   `json:"urgent,omitempty"`
	} `json:"context"`
	Strategy string `json:"strategy,omitempty"`
}

// OutcomeRequest is the body of POST /api/decisions/{id}/outcome.
type OutcomeRequest struct {
	Success bool `json:"success"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Providers int    `json:"providers"`
	Uptime    string `json:"uptime"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Version:   s.version,
		Providers: len(s.engine.Manager().Providers()),
		Uptime:    time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q, err := queryFromValues(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, string(search.KindInvalid), err)
		return
	}
	out, err := s.engine.Search(r.Context(), q)
	if err != nil {
		s.searchFailed(w, q.Text, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func queryFromValues(r *http.Request) (types.Query, error) {
	v := r.URL.Query()
	q := types.Query{
		Text:      strings.TrimSpace(v.Get("q")),
		Language:  v.Get("lang"),
		TimeRange: v.Get("time"),
	}
	if q.Text == "" {
		return q, errors.New("missing query parameter q")
	}
	if t := v.Get("type"); t != "" {
		qt, ok := types.ParseQueryType(t)
		if !ok {
			return q, fmt.Errorf("unknown query type %q", t)
		}
		q.Type = qt
	}
	if m := v.Get("max"); m != "" {
		n, err := strconv.Atoi(m)
		if err != nil || n < 0 {
			return q, fmt.Errorf("invalid max %q", m)
		}
		q.MaxResults = n
	}
	if d := v.Get("site"); d != "" {
		q.Domains = strings.Split(d, ",")
	}
	return q, nil
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	u := strings.TrimSpace(r.URL.Query().Get("url"))
	if u == "" {
		writeError(w, http.StatusBadRequest, string(search.KindInvalid), errors.New("missing query parameter url"))
		return
	}
	text, err := s.engine.FetchPageContent(r.Context(), u)
	if err != nil {
		kind := search.KindOf(err)
		s.log.Info("fetch failed", zap.String("url", u), zap.String("kind", string(kind)), zap.Error(err))
		writeError(w, statusFor(kind), string(kind), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"url": u, "content": text, "chars": len([]rune(text))})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, string(search.KindInvalid), fmt.Errorf("invalid JSON body: %w", err))
		return
	}
	q := types.Query{Text: strings.TrimSpace(req.Query), MaxResults: req.MaxResults, Domains: req.Domains}
	if q.Text == "" {
		writeError(w, http.StatusBadRequest, string(search.KindInvalid), errors.New("query is required"))
		return
	}
	if req.Type != "" {
		qt, ok := types.ParseQueryType(req.Type)
		if !ok {
			writeError(w, http.StatusBadRequest, string(search.KindInvalid), fmt.Errorf("unknown query type %q", req.Type))
			return
		}
		q.Type = qt
	}
	hints, err := gate.ParseHints(req.Context.Expertise, req.Strategy, req.Context.Urgent)
	if err != nil {
		writeError(w, http.StatusBadRequest, string(search.KindInvalid), err)
		return
	}

	answer, err := s.engine.Evaluate(r.Context(), q, hints)
	if err != nil {
		s.searchFailed(w, q.Text, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handleProviderReset(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if !s.engine.Manager().ResetProvider(name) {
		writeError(w, http.StatusNotFound, "not-found", fmt.Errorf("unknown provider %q", name))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"provider": name, "status": "reset"})
}

func (s *Server) handleOutcome(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req OutcomeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, string(search.KindInvalid), fmt.Errorf("invalid JSON body: %w", err))
		return
	}
	if err := s.engine.RecordOutcome(r.Context(), id, req.Success); err != nil {
		if errors.Is(err, decision.ErrUnknownDecision) {
			writeError(w, http.StatusNotFound, "not-found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "success": req.Success})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if !s.requireHistory(w) {
		return
	}
	v := r.URL.Query()
	opts := journal.QueryOptions{Text: v.Get("q")}
	if t := v.Get("type"); t != "" {
		qt, ok := types.ParseQueryType(t)
		if !ok {
			writeError(w, http.StatusBadRequest, string(search.KindInvalid), fmt.Errorf("unknown query type %q", t))
			return
		}
		opts.Type = qt
	}
	if l := v.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, string(search.KindInvalid), fmt.Errorf("invalid limit %q", l))
			return
		}
		opts.Limit = n
	}
	if rs := v.Get("responded"); rs != "" {
		b, err := strconv.ParseBool(rs)
		if err != nil {
			writeError(w, http.StatusBadRequest, string(search.KindInvalid), fmt.Errorf("invalid responded %q", rs))
			return
		}
		opts.Responded = &b
	}

	records, err := s.history.Recent(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "", err)
		return
	}
	if records == nil {
		records = []journal.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleHistoryGet(w http.ResponseWriter, r *http.Request) {
	if !s.requireHistory(w) {
		return
	}
	rec, err := s.history.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, journal.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not-found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleHistorySummary(w http.ResponseWriter, r *http.Request) {
	if !s.requireHistory(w) {
		return
	}
	sum, err := s.history.Summary(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "", err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) requireHistory(w http.ResponseWriter) bool {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "journal-disabled", errors.New("decision journal is not configured"))
		return false
	}
	return true
}

// searchFailed maps a search error to a status code by its kind.
func (s *Server) searchFailed(w http.ResponseWriter, query string, err error) {
	kind := search.KindOf(err)
	s.log.Info("search failed", zap.String("query", query), zap.String("kind", string(kind)), zap.Error(err))
	writeError(w, statusFor(kind), string(kind), fmt.Errorf("could not search: %w", err))
}

// statusFor maps an error kind to the HTTP status reported to clients.
func statusFor(kind search.ErrorKind) int {
	switch kind {
	case search.KindInvalid:
		return http.StatusBadRequest
	case search.KindNoProvider, search.KindBreakerOpen, search.KindRateLimited:
		return http.StatusServiceUnavailable
	case search.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind string, err error) {
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Kind: kind})
}
