package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/amiyaDev/perfguard/internal/collector"
	"github.com/amiyaDev/perfguard/internal/dispatch"
	"github.com/amiyaDev/perfguard/internal/engine"
	"github.com/amiyaDev/perfguard/internal/lifecycle"
	"github.com/amiyaDev/perfguard/internal/metrics"
	"github.com/amiyaDev/perfguard/internal/rules"
	"github.com/amiyaDev/perfguard/internal/storage"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	maxBodyBytes    = 4 << 20
	streamWriteWait = 10 * time.Second
	streamPingEvery = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
}

// Server is the HTTP API server
type Server struct {
	dispatcher *dispatch.Dispatcher
	collector  *collector.Collector
	issues     *lifecycle.Store
	validate   *validator.Validate
	server     *http.Server
}

// NewServer creates a new API server
func NewServer(d *dispatch.Dispatcher, c *collector.Collector, issues *lifecycle.Store, addr string) *Server {
	s := &Server{
		dispatcher: d,
		collector:  c,
		issues:     issues,
		validate:   validator.New(),
	}

	mux := http.NewServeMux()

	// Health endpoints
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	// Ingest endpoints
	mux.HandleFunc("/v1/renders", s.handleRenders)
	mux.HandleFunc("/v1/snapshots", s.handleSnapshots)
	mux.HandleFunc("/v1/evaluate", s.handleEvaluate)

	// Issue endpoints
	mux.HandleFunc("/v1/issues", s.handleIssues)
	mux.HandleFunc("/v1/issues/stream", s.handleIssueStream)
	mux.HandleFunc("/v1/issues/history", s.handleIssueHistory)

	// Rule endpoints
	mux.HandleFunc("/v1/rules", s.handleRuleList)
	mux.HandleFunc("/v1/rules/", s.handleRuleGet)

	// Engine endpoints
	mux.HandleFunc("/v1/stats", s.handleStats)
	mux.HandleFunc("/v1/reset", s.handleReset)

	// Audit endpoint
	mux.HandleFunc("/v1/audit", s.handleAudit)

	mux.Handle("/metrics", promhttp.Handler())

	s.server = &http.Server{
		Addr:         addr,
		Handler:      loggingMiddleware(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return s
}

// Handler returns the server's root handler
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Printf("Starting API server on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down API server...")
	return s.server.Shutdown(ctx)
}

// handleHealth handles GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	respondJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// handleReady handles GET /readyz
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	loaded := len(s.dispatcher.Rules())
	ready := s.dispatcher.Ready()
	reasons := []string{}

	if loaded == 0 {
		reasons = append(reasons, "no rules loaded")
	}
	if !ready {
		reasons = append(reasons, "worker not initialized")
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}

	respondJSON(w, status, ReadyResponse{
		Ready:       ready,
		RulesLoaded: loaded,
		Reasons:     reasons,
	})
}

// handleRenders handles POST /v1/renders
func (s *Server) handleRenders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RenderBatchRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	for _, sample := range req.Samples {
		s.collector.Collect(sample)
	}
	metrics.IngestedSamples.WithLabelValues("render").Add(float64(len(req.Samples)))

	respondJSON(w, http.StatusAccepted, IngestResponse{Accepted: len(req.Samples)})
}

// handleSnapshots handles POST /v1/snapshots
func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req SnapshotBatchRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	for _, p := range req.Snapshots {
		s.collector.Enqueue(p.Snapshot())
	}
	metrics.IngestedSamples.WithLabelValues("snapshot").Add(float64(len(req.Snapshots)))

	respondJSON(w, http.StatusAccepted, IngestResponse{Accepted: len(req.Snapshots)})
}

// handleEvaluate handles POST /v1/evaluate. An optional snapshot batch in
// the body is enqueued before the forced flush.
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	if len(strings.TrimSpace(string(body))) > 0 {
		var req SnapshotBatchRequest
		if err := json.Unmarshal(body, &req); err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
			return
		}
		if err := s.validate.Struct(req); err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("validation failed: %v", err))
			return
		}
		for _, p := range req.Snapshots {
			s.collector.Enqueue(p.Snapshot())
		}
	}

	batch, err := s.dispatcher.FlushNow(r.Context())
	if errors.Is(err, dispatch.ErrNotStarted) {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusBadGateway, fmt.Sprintf("evaluation failed: %v", err))
		return
	}

	resp := EvaluateResponse{Results: []engine.EntityResult{}, Timestamp: time.Now()}
	if batch != nil {
		resp = EvaluateResponse{
			BatchID:     batch.ID,
			Snapshots:   batch.Snapshots,
			Results:     batch.Entities,
			HasCritical: batch.HasCritical,
			Timestamp:   batch.Timestamp,
			Summary:     batch.Summary,
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleIssues handles GET /v1/issues
func (s *Server) handleIssues(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := r.URL.Query().Get("status")
	component := r.URL.Query().Get("component")

	rows := []lifecycle.Row{}
	for _, row := range s.issues.List() {
		if status != "" && string(row.Status) != status {
			continue
		}
		if component != "" && row.Component != component {
			continue
		}
		rows = append(rows, row)
	}

	respondJSON(w, http.StatusOK, IssueListResponse{Issues: rows, Total: len(rows)})
}

// handleIssueStream handles GET /v1/issues/stream. The full row list is sent
// on connect and after every change.
func (s *Server) handleIssueStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade issue stream: %v", err)
		return
	}
	defer ws.Close()
	ws.SetReadDeadline(time.Time{})

	updates := make(chan []lifecycle.Row, 1)
	unsubscribe := s.issues.Subscribe(func(rows []lifecycle.Row) {
		// keep only the latest list for slow readers
		select {
		case <-updates:
		default:
		}
		select {
		case updates <- rows:
		default:
		}
	})
	defer unsubscribe()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.NextReader(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(streamPingEvery)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case rows := <-updates:
			ws.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := ws.WriteJSON(IssueListResponse{Issues: rows, Total: len(rows)}); err != nil {
				log.Printf("Issue stream write failed: %v", err)
				return
			}
		case <-ping.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		}
	}
}

// handleIssueHistory handles GET /v1/issues/history
func (s *Server) handleIssueHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	auditStorage := s.dispatcher.GetAuditStorage()
	if auditStorage == nil {
		respondError(w, http.StatusServiceUnavailable, "audit storage not configured")
		return
	}

	query := r.URL.Query()
	filter := storage.IssueFilter{
		Component: query.Get("component"),
		Status:    query.Get("status"),
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	records, err := auditStorage.ListIssues(filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to query issues: %v", err))
		return
	}

	issues := make([]IssueRecordResponse, len(records))
	for i, record := range records {
		issues[i] = IssueRecordResponse{
			ID:           record.ID,
			Component:    record.Component,
			RuleID:       record.RuleID,
			Severity:     record.Severity,
			Confidence:   record.Confidence,
			BoundaryType: record.BoundaryType,
			Status:       record.Status,
			Reason:       record.Reason,
			FirstSeen:    record.FirstSeen,
			LastSeen:     record.LastSeen,
			ResolvedAt:   record.ResolvedAt,
		}
	}

	respondJSON(w, http.StatusOK, IssueHistoryResponse{Issues: issues, Total: len(issues)})
}

// handleRuleList handles GET /v1/rules
func (s *Server) handleRuleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	loaded := s.dispatcher.Rules()

	summaries := make([]RuleSummary, 0, len(loaded))
	for _, rule := range loaded {
		summaries = append(summaries, summarizeRule(rule))
	}

	respondJSON(w, http.StatusOK, RuleListResponse{Rules: summaries})
}

// handleRuleGet handles GET /v1/rules/{id}
func (s *Server) handleRuleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/rules/")
	if id == "" {
		respondError(w, http.StatusBadRequest, "rule ID required")
		return
	}

	for _, rule := range s.dispatcher.Rules() {
		if rule.ID == id {
			respondJSON(w, http.StatusOK, rule.Spec())
			return
		}
	}

	respondError(w, http.StatusNotFound, fmt.Sprintf("rule not found: %s", id))
}

// handleStats handles GET /v1/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats, err := s.dispatcher.Stats(r.Context())
	if errors.Is(err, dispatch.ErrNotStarted) {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusBadGateway, fmt.Sprintf("failed to get stats: %v", err))
		return
	}

	respondJSON(w, http.StatusOK, StatsResponse{Stats: stats, IssuesVisible: len(s.issues.List())})
}

// handleReset handles POST /v1/reset
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	err := s.dispatcher.Reset(r.Context())
	if errors.Is(err, dispatch.ErrNotStarted) {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusBadGateway, fmt.Sprintf("reset failed: %v", err))
		return
	}

	respondJSON(w, http.StatusOK, ResetResponse{Status: "history cleared"})
}

// handleAudit handles GET /v1/audit
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	auditStorage := s.dispatcher.GetAuditStorage()
	if auditStorage == nil {
		respondError(w, http.StatusServiceUnavailable, "audit storage not configured")
		return
	}

	// Parse query parameters
	query := r.URL.Query()
	filter := storage.AuditFilter{
		BatchID:   query.Get("batchId"),
		Component: query.Get("component"),
		RuleID:    query.Get("ruleId"),
		Severity:  query.Get("severity"),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	if startTimeStr := query.Get("startTime"); startTimeStr != "" {
		if startTime, err := time.Parse(time.RFC3339, startTimeStr); err == nil {
			filter.StartTime = &startTime
		}
	}

	if endTimeStr := query.Get("endTime"); endTimeStr != "" {
		if endTime, err := time.Parse(time.RFC3339, endTimeStr); err == nil {
			filter.EndTime = &endTime
		}
	}

	records, err := auditStorage.QueryAudit(filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to query audit: %v", err))
		return
	}

	responseRecords := make([]AuditRecordResponse, len(records))
	for i, record := range records {
		responseRecords[i] = AuditRecordResponse{
			ID:           record.ID,
			BatchID:      record.BatchID,
			Component:    record.Component,
			BoundaryType: record.BoundaryType,
			RuleID:       record.RuleID,
			Severity:     record.Severity,
			Confidence:   record.Confidence,
			Reason:       record.Reason,
			Metrics:      record.Metrics,
			Timestamp:    record.Timestamp,
			CreatedAt:    record.CreatedAt,
		}
	}

	respondJSON(w, http.StatusOK, AuditResponse{
		Records: responseRecords,
		Total:   len(responseRecords),
	})
}

func summarizeRule(rule rules.Rule) RuleSummary {
	return RuleSummary{
		ID:                  rule.ID,
		Category:            string(rule.Category),
		BaseSeverity:        string(rule.BaseSeverity),
		Kind:                rule.Kind(),
		ConfidenceThreshold: rule.Threshold(),
		Dominant:            rule.Dominant,
		Hint:                rule.Hint,
		MessageTemplate:     rule.MessageTemplate,
		DocURL:              rule.DocURL,
	}
}

// decodeAndValidate decodes a JSON body into v and validates it. On failure
// it writes the error response and returns false.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("validation failed: %v", err))
		return false
	}
	return true
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}

// statusRecorder captures the response status. It passes Hijack through so
// websocket upgrades keep working behind the middleware.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)
		// the mux records the matched pattern on r
		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequestDuration.
			WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).
			Observe(elapsed.Seconds())
		log.Printf("%s %s %d %s", r.Method, r.URL.Path, rec.status, elapsed)
	})
}
