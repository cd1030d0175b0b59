// Package server exposes the Kiroku assistant pipeline over a local HTTP
// API.
//
// The assistant flow is two-phase by construction. POST /api/assistant never
// mutates the diary: query-mode requests run guarded SELECTs, action-mode
// requests produce a pending proposal the client must confirm. Mutations
// happen only in POST /api/proposals/{id}/confirm (or the re-validating
// direct path POST /api/actions/execute).
//
// Endpoints:
//
//	GET    /healthz                          → liveness probe
//	GET    /status                           → StatusResponse
//	GET    /api/entries?workspace=&limit=    → recent diary entries
//	GET    /api/settings                     → settings key/value map
//	PUT    /api/settings                     → replace listed keys
//	GET    /api/audit?limit=                 → recent audit records
//	POST   /api/assistant                    → AssistantResponse
//	POST   /api/proposals/{id}/toggle        → ProposalView
//	POST   /api/proposals/{id}/edit          → ProposalView
//	POST   /api/proposals/{id}/select_all    → ProposalView
//	POST   /api/proposals/{id}/deselect_all  → ProposalView
//	POST   /api/proposals/{id}/confirm       → ExecuteResponse
//	DELETE /api/proposals/{id}               → 204 No Content
//	POST   /api/actions/execute              → ExecuteResponse
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kiroku-app/kiroku/common/trace"
	"github.com/kiroku-app/kiroku/common/version"
	"github.com/kiroku-app/kiroku/internal/kiroku/action"
	"github.com/kiroku-app/kiroku/internal/kiroku/audit"
	"github.com/kiroku-app/kiroku/internal/kiroku/batch"
	"github.com/kiroku-app/kiroku/internal/kiroku/catalog"
	"github.com/kiroku-app/kiroku/internal/kiroku/config"
	"github.com/kiroku-app/kiroku/internal/kiroku/confirm"
	"github.com/kiroku-app/kiroku/internal/kiroku/nlp"
	"github.com/kiroku-app/kiroku/internal/kiroku/observability"
	"github.com/kiroku-app/kiroku/internal/kiroku/query"
)

// rateLimitClient is the limiter key for all requests. Kiroku is a
// single-user service; the per-client keying of the limiter is kept so a
// future multi-session surface only has to change this constant.
const rateLimitClient = "local"

// defaultEntriesLimit bounds GET /api/entries when no limit is given.
const defaultEntriesLimit = 50

// Options bundles the dependencies of a Server.
type Options struct {
	// Catalog is the diary store. Required.
	Catalog *catalog.Store
	// Settings is the persisted key/value configuration store. Required.
	Settings config.Store
	// Provider generates actions and queries from text. When nil the
	// assistant endpoint answers 503 and everything else still works.
	Provider nlp.Provider
	// AuditLog records executed actions. Required.
	AuditLog *audit.Log
	// RateLimit is the local per-minute assistant call budget.
	// Zero means nlp.DefaultRateLimit.
	RateLimit int
	// ProposalTTL is how long unconfirmed proposals live. Zero means the
	// package default.
	ProposalTTL time.Duration
}

// Server is the Kiroku HTTP server.
type Server struct {
	addr      string
	catalog   *catalog.Store
	settings  config.Store
	provider  nlp.Provider
	runner    *query.Runner
	executor  *batch.Executor
	auditLog  *audit.Log
	limiter   *nlp.RateLimiter
	proposals *proposalStore
	server    *http.Server
	startedAt time.Time
}

// New creates a Server listening on addr.
func New(addr string, opts Options) *Server {
	s := &Server{
		addr:      addr,
		catalog:   opts.Catalog,
		settings:  opts.Settings,
		provider:  opts.Provider,
		runner:    query.NewRunner(opts.Catalog.DB()),
		executor:  batch.New(opts.Catalog, slog.Default()),
		auditLog:  opts.AuditLog,
		limiter:   nlp.NewRateLimiter(opts.RateLimit, 0),
		proposals: newProposalStore(opts.ProposalTTL),
		startedAt: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /api/entries", s.handleEntries)
	mux.HandleFunc("GET /api/settings", s.handleSettingsGet)
	mux.HandleFunc("PUT /api/settings", s.handleSettingsPut)
	mux.HandleFunc("GET /api/audit", s.handleAudit)
	mux.HandleFunc("POST /api/assistant", s.handleAssistant)
	mux.HandleFunc("POST /api/proposals/{id}/toggle", s.handleToggle)
	mux.HandleFunc("POST /api/proposals/{id}/edit", s.handleEdit)
	mux.HandleFunc("POST /api/proposals/{id}/select_all", s.handleSelectAll)
	mux.HandleFunc("POST /api/proposals/{id}/deselect_all", s.handleDeselectAll)
	mux.HandleFunc("POST /api/proposals/{id}/confirm", s.handleConfirm)
	mux.HandleFunc("DELETE /api/proposals/{id}", s.handleCancel)
	mux.HandleFunc("POST /api/actions/execute", s.handleExecuteDirect)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.traceMiddleware(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	return s
}

// traceMiddleware assigns a trace ID to every request, echoes it in the
// X-Trace-ID response header, and logs the request.
func (s *Server) traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := trace.GenerateID()
		ctx := trace.WithTraceID(r.Context(), traceID)
		w.Header().Set("X-Trace-ID", traceID)
		observability.WithTrace(ctx).Debug("request", "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Start begins listening. It returns once the listener is bound so callers
// can immediately start sending requests.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("server listen %s: %w", s.addr, err)
	}
	slog.Info("kiroku server listening", "addr", ln.Addr().String())
	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("kiroku server error", "err", err)
		}
	}()
	go func() {
		<-ctx.Done()
		s.server.Shutdown(context.Background())
	}()
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.server.Shutdown(ctx)
}

// --- assistant ---

func (s *Server) handleAssistant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if s.provider == nil {
		writeError(w, http.StatusServiceUnavailable, "assistant is disabled; no language model configured")
		return
	}
	if !s.limiter.Allow(rateLimitClient) {
		writeError(w, http.StatusTooManyRequests, nlp.RateLimitMessage)
		return
	}

	var req AssistantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		writeError(w, http.StatusBadRequest, "text must not be empty")
		return
	}
	ws := action.Workspace(req.Workspace)
	if !ws.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown workspace %q", req.Workspace))
		return
	}

	matches, err := s.catalog.Matches(ctx, ws, action.ResolveWindow)
	if err != nil {
		observability.WithTrace(ctx).Error("load recent entries", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load diary entries")
		return
	}
	titles := make([]string, len(matches))
	for i, m := range matches {
		titles[i] = m.Title
	}
	genReq := nlp.GenerateRequest{Text: text, Workspace: ws, RecentTitles: titles}

	if nlp.ClassifyIntent(text) == nlp.ModeQuery {
		s.answerQuery(ctx, w, genReq)
		return
	}
	s.answerAction(ctx, w, genReq, matches)
}

// answerQuery runs the text-to-SQL path: generation, guard, execution.
func (s *Server) answerQuery(ctx context.Context, w http.ResponseWriter, req nlp.GenerateRequest) {
	qr, err := s.provider.GenerateQuery(ctx, req)
	if err != nil {
		status, msg := nlpFailure(err)
		observability.WithTrace(ctx).Warn("query generation failed", "error", err)
		writeError(w, status, msg)
		return
	}

	result, err := s.runner.Run(ctx, qr.SQL, qr.Explanation)
	if err != nil {
		// A guard rejection means the model proposed something outside the
		// allow-list. The statement never ran; tell the user to rephrase.
		observability.WithTrace(ctx).Warn("query rejected", "sql", qr.SQL, "error", err)
		writeError(w, http.StatusUnprocessableEntity, "the generated query was not allowed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, AssistantResponse{Mode: string(nlp.ModeQuery), Query: result})
}

// answerAction runs the text-to-actions path up to (not including) execution:
// generation, validation, and registration of a pending proposal.
func (s *Server) answerAction(ctx context.Context, w http.ResponseWriter, req nlp.GenerateRequest, matches []action.MatchedEntry) {
	ar, err := s.provider.GenerateActions(ctx, req)
	if err != nil {
		status, msg := nlpFailure(err)
		observability.WithTrace(ctx).Warn("action generation failed", "error", err)
		writeError(w, status, msg)
		return
	}

	validated := action.ValidateAll(ar.Actions, matches)
	session := confirm.NewSession(validated, matches)
	p := s.proposals.create(req.Workspace, ar.Intent, session)

	observability.WithTrace(ctx).Info("proposal created",
		"proposal", p.id, "workspace", req.Workspace, "actions", len(validated))
	writeJSON(w, http.StatusOK, AssistantResponse{Mode: "action", Proposal: s.viewOf(p)})
}

// nlpFailure maps a provider error to an HTTP status and user-facing message.
func nlpFailure(err error) (int, string) {
	switch {
	case errors.Is(err, nlp.ErrRateLimit):
		return http.StatusTooManyRequests, nlp.APIRateLimitMessage
	case errors.Is(err, nlp.ErrMalformedOutput):
		return http.StatusBadGateway, nlp.MalformedOutputMessage
	default:
		return http.StatusBadGateway, "The assistant is unavailable right now."
	}
}

// --- proposals ---

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	p, ok := s.proposals.get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "proposal not found or expired")
		return
	}
	var req ToggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	if err := p.session.Toggle(req.Index); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.viewOf(p))
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	p, ok := s.proposals.get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "proposal not found or expired")
		return
	}
	var req EditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	if err := p.session.Edit(req.Index, req.Patch); err != nil {
		if errors.Is(err, confirm.ErrNotEditable) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.viewOf(p))
}

func (s *Server) handleSelectAll(w http.ResponseWriter, r *http.Request) {
	p, ok := s.proposals.get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "proposal not found or expired")
		return
	}
	p.session.SelectAll()
	writeJSON(w, http.StatusOK, s.viewOf(p))
}

func (s *Server) handleDeselectAll(w http.ResponseWriter, r *http.Request) {
	p, ok := s.proposals.get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "proposal not found or expired")
		return
	}
	p.session.DeselectAll()
	writeJSON(w, http.StatusOK, s.viewOf(p))
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	p, ok := s.proposals.get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "proposal not found or expired")
		return
	}

	confirmed, err := p.session.Confirm()
	if err != nil {
		// Nothing selected is a user-input problem; the proposal survives so
		// the user can adjust the selection and confirm again.
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	summary, results, err := s.executor.Run(ctx, confirmed)
	s.recordResults(ctx, results)
	if err != nil {
		observability.WithTrace(ctx).Error("batch aborted", "proposal", id, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// The proposal is consumed exactly once, whatever the per-item outcomes:
	// retrying failed items needs a fresh generation against fresh state.
	s.proposals.remove(id)
	observability.WithTrace(ctx).Info("proposal confirmed",
		"proposal", id, "succeeded", summary.Succeeded, "failed", summary.Failed)
	writeJSON(w, http.StatusOK, ExecuteResponse{Success: summary.Failed == 0, Summary: summary, Results: results})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if !s.proposals.remove(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "proposal not found or expired")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// viewOf renders the current session state of a proposal for the client.
func (s *Server) viewOf(p *proposal) *ProposalView {
	items := p.session.Items()
	view := &ProposalView{
		ID:        p.id,
		Workspace: p.workspace,
		Intent:    p.intent,
		ExpiresAt: p.expiresAt,
		Items:     make([]ProposalItem, len(items)),
	}
	for i, item := range items {
		view.Items[i] = ProposalItem{
			Index:      i,
			Action:     item.Action,
			Matched:    item.Matched,
			Validation: item.Verdict,
			Selected:   p.session.IsSelected(i),
		}
	}
	return view
}

// --- direct execution ---

// handleExecuteDirect executes caller-supplied actions without a stored
// proposal. Every action is re-validated against the current catalog first;
// an invalid action becomes a failed result and is never applied, while the
// valid remainder still runs. Failure isolation is per item on this path
// too, so one stale action cannot veto the rest of the batch.
func (s *Server) handleExecuteDirect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	ws := action.Workspace(req.Workspace)
	if !ws.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown workspace %q", req.Workspace))
		return
	}
	if len(req.Actions) == 0 {
		writeJSON(w, http.StatusOK, ExecuteResponse{Success: true, Results: []batch.Result{}})
		return
	}

	matches, err := s.catalog.Matches(ctx, ws, action.ResolveWindow)
	if err != nil {
		observability.WithTrace(ctx).Error("load recent entries", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load diary entries")
		return
	}

	for i := range req.Actions {
		req.Actions[i].Workspace = ws
	}
	validated := action.ValidateAll(req.Actions, matches)

	// Split the batch: invalid actions are recorded as failed results up
	// front, only the valid remainder reaches the executor. runIdx maps the
	// executor's results back to their request positions.
	results := make([]batch.Result, len(validated))
	summary := batch.Summary{Total: len(validated)}
	var runnable []action.Action
	var runIdx []int
	for i, v := range validated {
		results[i] = batch.Result{Action: v.Action}
		if v.Verdict.IsValid {
			runnable = append(runnable, v.Action)
			runIdx = append(runIdx, i)
			continue
		}
		results[i].Error = strings.Join(v.Verdict.Errors, "; ")
		summary.Failed++
	}

	runSummary, runResults, err := s.executor.Run(ctx, runnable)
	for j, res := range runResults {
		results[runIdx[j]] = res
	}
	summary.Succeeded = runSummary.Succeeded
	summary.Failed += runSummary.Failed
	s.recordResults(ctx, results)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ExecuteResponse{Success: summary.Failed == 0, Summary: summary, Results: results})
}

// recordResults writes one audit row per executed action. Audit failures are
// logged, never surfaced: the mutation already happened.
func (s *Server) recordResults(ctx context.Context, results []batch.Result) {
	traceID := trace.FromContext(ctx)
	for _, res := range results {
		target := res.NewID
		if target == "" {
			target = res.Action.TargetID
		}
		outcome := audit.ResultOK
		if !res.Success {
			outcome = audit.ResultFailed
		}
		if err := s.auditLog.Record(ctx, traceID, string(res.Action.Kind), target, outcome, res.Action.Payload, res.Error); err != nil {
			observability.WithTrace(ctx).Warn("audit record failed", "error", err)
		}
	}
}

// --- catalog, settings, audit, status ---

func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request) {
	ws := action.Workspace(r.URL.Query().Get("workspace"))
	if !ws.Valid() {
		writeError(w, http.StatusBadRequest, "workspace query parameter must be media or food")
		return
	}
	limit := defaultEntriesLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := s.catalog.Recent(r.Context(), ws, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load diary entries")
		return
	}
	if entries == nil {
		entries = []catalog.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleSettingsGet(w http.ResponseWriter, r *http.Request) {
	settings, err := s.settings.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// handleSettingsPut upserts the listed keys; an empty value deletes the key.
// Keys not present in the body are untouched.
func (s *Server) handleSettingsPut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req map[string]string
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	for key, value := range req {
		var err error
		if value == "" {
			err = s.settings.Delete(ctx, key)
			if errors.Is(err, config.ErrNotFound) {
				err = nil
			}
		} else {
			err = s.settings.Set(ctx, key, value)
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to store %q", key))
			return
		}
	}

	settings, err := s.settings.List(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	limit := defaultEntriesLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	records, err := s.auditLog.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load audit log")
		return
	}
	if records == nil {
		records = []audit.Entry{}
	}
	writeJSON(w, http.StatusOK, records)
}

// handleHealth reports liveness. The store ping makes the probe meaningful:
// a wedged or closed database turns the instance unhealthy.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.DB().PingContext(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	count, err := s.catalog.EntryCount(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count entries")
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{
		Status:    "ok",
		Version:   version.Info(),
		Entries:   count,
		StartedAt: s.startedAt,
		Uptime:    time.Since(s.startedAt).Seconds(),
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// TestHandler exposes the server's HTTP handler for use in httptest.NewServer.
// This is only intended for tests.
func (s *Server) TestHandler() http.Handler {
	return s.server.Handler
}
