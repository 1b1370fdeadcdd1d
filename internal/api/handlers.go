// Package api exposes the ingest and matching endpoints.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/grant-matcher/internal/domain"
	"github.com/jonesrussell/grant-matcher/internal/ingest"
	"github.com/jonesrussell/grant-matcher/internal/logger"
	"github.com/jonesrussell/grant-matcher/internal/matcher"
	"github.com/jonesrussell/grant-matcher/internal/metrics"
)

// IngestRunner applies a scraped batch for one source.
type IngestRunner interface {
	Run(ctx context.Context, source domain.Source, records []domain.Record) (*ingest.Outcome, *domain.ScrapeLog, error)
}

// Matcher runs project scoring and checklist generation.
type Matcher interface {
	MatchProject(ctx context.Context, project *matcher.Project, opts matcher.RunOptions) (*matcher.RunReport, error)
	GenerateChecklists(ctx context.Context, slug string, source domain.Source, kinds domain.KindSet, force bool) (domain.ChecklistSet, error)
}

// MatchReader lists stored match results.
type MatchReader interface {
	ListTop(ctx context.Context, limit int) ([]*domain.GrantMatch, error)
}

// ScrapeLogReader lists recent ingest runs.
type ScrapeLogReader interface {
	ListRecent(ctx context.Context, limit int) ([]*domain.ScrapeLog, error)
}

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

// Handler holds the endpoint dependencies.
type Handler struct {
	ingest     IngestRunner
	matcher    Matcher
	matches    MatchReader
	scrapeLogs ScrapeLogReader
	runs       *RunManager
	metrics    *metrics.Metrics
	log        logger.Logger
}

// NewHandler wires the API handler.
func NewHandler(
	ingestRunner IngestRunner,
	matcherSvc Matcher,
	matches MatchReader,
	scrapeLogs ScrapeLogReader,
	m *metrics.Metrics,
	log logger.Logger,
) *Handler {
	return &Handler{
		ingest:     ingestRunner,
		matcher:    matcherSvc,
		matches:    matches,
		scrapeLogs: scrapeLogs,
		runs:       NewRunManager(),
		metrics:    m,
		log:        log,
	}
}

// RegisterRoutes adds all API routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		v1.POST("/ingest/:source", h.ingestBatch)
		v1.GET("/scrape-logs", h.listScrapeLogs)

		v1.POST("/match/runs", h.startMatchRun)
		v1.GET("/match/runs/:id", h.getMatchRun)
		v1.DELETE("/match/runs/:id", h.cancelMatchRun)
		v1.GET("/matches", h.listMatches)

		v1.POST("/grants/:source/:slug/checklists", h.generateChecklists)
	}

	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}
}

type ingestRequest struct {
	Records []domain.Record `json:"records" binding:"required"`
}

type ingestResponse struct {
	Outcome *ingest.Outcome  `json:"outcome"`
	Run     *domain.ScrapeLog `json:"run"`
}

func (h *Handler) ingestBatch(c *gin.Context) {
	source := domain.Source(c.Param("source"))
	if !source.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown source"})
		return
	}

	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	start := time.Now()
	outcome, run, err := h.ingest.Run(c.Request.Context(), source, req.Records)
	if err != nil {
		h.recordIngest(source, run, time.Since(start))
		_ = c.Error(err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "run": run})
		return
	}
	h.recordIngest(source, run, time.Since(start))

	c.JSON(http.StatusOK, ingestResponse{Outcome: outcome, Run: run})
}

func (h *Handler) recordIngest(source domain.Source, run *domain.ScrapeLog, duration time.Duration) {
	if h.metrics == nil || run == nil {
		return
	}
	h.metrics.RecordIngest(string(source), string(run.Status),
		run.GrantsCreated, run.GrantsUpdated, run.GrantsSkipped, duration)
}

func (h *Handler) listScrapeLogs(c *gin.Context) {
	logs, err := h.scrapeLogs.ListRecent(c.Request.Context(), listLimit(c))
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list scrape logs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"scrape_logs": logs})
}

type matchRunRequest struct {
	Project matcher.Project `json:"project" binding:"required"`
	Limit   int             `json:"limit"`
}

func (h *Handler) startMatchRun(c *gin.Context) {
	var req matchRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Project.Name == "" && req.Project.Description == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "project name or description required"})
		return
	}

	run := h.runs.Create()

	// The run outlives the request, so it gets its own context.
	go h.executeMatchRun(run, &req.Project, req.Limit)

	c.JSON(http.StatusAccepted, run.snapshot())
}

func (h *Handler) executeMatchRun(run *Run, project *matcher.Project, limit int) {
	start := time.Now()
	report, err := h.matcher.MatchProject(context.Background(), project, matcher.RunOptions{
		Limit:       limit,
		OnProgress:  run.progress,
		IsCancelled: run.isCancelled,
	})

	switch {
	case err != nil:
		run.finish(RunFailed, nil, err)
		h.log.Error("matching run failed",
			logger.String("run_id", run.ID), logger.Error(err))
	case run.isCancelled():
		run.finish(RunCancelled, report, nil)
	default:
		run.finish(RunCompleted, report, nil)
	}

	if h.metrics != nil && report != nil {
		scores := make([]float64, 0, len(report.Matches))
		for _, m := range report.Matches {
			scores = append(scores, m.Score)
		}
		h.metrics.RecordMatchRun(report.Scored, report.Failed, report.Cancelled,
			scores, time.Since(start))
	}
}

func (h *Handler) getMatchRun(c *gin.Context) {
	run, ok := h.runs.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	c.JSON(http.StatusOK, run.snapshot())
}

func (h *Handler) cancelMatchRun(c *gin.Context) {
	if !h.runs.Cancel(c.Param("id")) {
		c.JSON(http.StatusConflict, gin.H{"error": "run not found or not running"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "cancelling"})
}

func (h *Handler) listMatches(c *gin.Context) {
	matches, err := h.matches.ListTop(c.Request.Context(), listLimit(c))
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list matches"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": matches})
}

type checklistRequest struct {
	Kinds []string `json:"kinds"`
	Force bool     `json:"force"`
}

func (h *Handler) generateChecklists(c *gin.Context) {
	source := domain.Source(c.Param("source"))
	if !source.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown source"})
		return
	}

	var req checklistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	kinds := make([]domain.ChecklistKind, 0, len(req.Kinds))
	for _, raw := range req.Kinds {
		kind, err := domain.ParseChecklistKind(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		kinds = append(kinds, kind)
	}

	checklists, err := h.matcher.GenerateChecklists(c.Request.Context(),
		c.Param("slug"), source, domain.NewKindSet(kinds...), req.Force)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"checklists": checklists})
}

func listLimit(c *gin.Context) int {
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit
}
