// Package api exposes the job-management REST surface: enqueue endpoints
// for the four job types and read access to job progress. Handlers only
// validate and enqueue; all scraping work happens in the worker.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/macsteckler/lightspeeed-scraper/internal/database"
	"github.com/macsteckler/lightspeeed-scraper/internal/domain"
	"github.com/macsteckler/lightspeeed-scraper/internal/logger"
)

// JobStore is the slice of the job repository the API needs.
type JobStore interface {
	Enqueue(ctx context.Context, jobType string, payload domain.JSONBMap) (int64, error)
	Get(ctx context.Context, id int64) (*domain.Job, error)
}

// Handler serves the job-management endpoints.
type Handler struct {
	jobs JobStore
	log  logger.Logger
}

// NewHandler creates an API handler backed by the given job store.
func NewHandler(jobs JobStore, log logger.Logger) *Handler {
	return &Handler{jobs: jobs, log: log}
}

// ScrapeArticle enqueues an ARTICLE job for a single URL.
func (h *Handler) ScrapeArticle(c *gin.Context) {
	var req ScrapeArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}

	payload := domain.ArticlePayload{URL: req.URL, SourceID: req.SourceID}
	if err := payload.Validate(); err != nil {
		badRequest(c, "invalid article request", err)
		return
	}
	h.enqueue(c, domain.JobTypeArticle, &payload)
}

// ScrapeSource enqueues a SOURCE job that crawls one source's links.
func (h *Handler) ScrapeSource(c *gin.Context) {
	var req ScrapeSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}

	payload := domain.SourcePayload{
		URL:         req.URL,
		SourceID:    req.SourceID,
		SourceTable: req.SourceTable,
		Limit:       req.Limit,
	}
	if err := payload.Validate(); err != nil {
		badRequest(c, "invalid source request", err)
		return
	}
	h.enqueue(c, domain.JobTypeSource, &payload)
}

// ProcessSources enqueues a BATCH job over the stalest sources.
func (h *Handler) ProcessSources(c *gin.Context) {
	var req ProcessSourcesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}

	payload := domain.BatchPayload{
		BatchSize: req.BatchSize,
		Query:     req.Query,
		DryRun:    req.DryRun,
	}
	if err := payload.Validate(); err != nil {
		badRequest(c, "invalid batch request", err)
		return
	}
	h.enqueue(c, domain.JobTypeBatch, &payload)
}

// ScrapeMultipleSources enqueues a MULTI_SOURCE job that fans out into
// one SOURCE job per listed source.
func (h *Handler) ScrapeMultipleSources(c *gin.Context) {
	var req ScrapeMultipleSourcesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}

	refs := make([]domain.SourceRef, 0, len(req.Sources))
	for _, src := range req.Sources {
		refs = append(refs, domain.SourceRef{
			SourceID:    src.SourceID,
			SourceTable: src.SourceTable,
			Limit:       src.Limit,
		})
	}
	payload := domain.MultiSourcePayload{Sources: refs, DryRun: req.DryRun}
	if err := payload.Validate(); err != nil {
		badRequest(c, "invalid multi-source request", err)
		return
	}
	h.enqueue(c, domain.JobTypeMultiSource, &payload)
}

// GetJob returns a job row with its live progress counters.
func (h *Handler) GetJob(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid job id",
			Code:    codeInvalidJobID,
			Message: "job id must be an integer",
		})
		return
	}

	job, err := h.jobs.Get(c.Request.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "job not found",
			Code:    codeNotFound,
			Message: "no job with id " + c.Param("id"),
		})
		return
	}
	if err != nil {
		h.log.Error("job lookup failed", logger.Int64("job_id", id), logger.Error(err))
		internalError(c)
		return
	}
	c.JSON(http.StatusOK, job)
}

// enqueue encodes the payload, inserts the job, and answers 202 with the
// new job id.
func (h *Handler) enqueue(c *gin.Context, jobType string, payload any) {
	raw, err := domain.EncodePayload(payload)
	if err != nil {
		h.log.Error("payload encoding failed", logger.String("job_type", jobType), logger.Error(err))
		internalError(c)
		return
	}

	jobID, err := h.jobs.Enqueue(c.Request.Context(), jobType, raw)
	if err != nil {
		h.log.Error("job enqueue failed", logger.String("job_type", jobType), logger.Error(err))
		internalError(c)
		return
	}

	h.log.Info("job enqueued",
		logger.Int64("job_id", jobID),
		logger.String("job_type", jobType),
	)
	c.JSON(http.StatusAccepted, EnqueueResponse{JobID: jobID})
}

func badRequest(c *gin.Context, summary string, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   summary,
		Code:    codeValidation,
		Message: err.Error(),
	})
}

func internalError(c *gin.Context) {
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "internal server error",
		Code:    codeInternal,
		Message: "the request could not be processed",
	})
}
