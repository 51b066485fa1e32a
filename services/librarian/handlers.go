// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package librarian

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/librarian/services/librarian/audit"
	"github.com/AleutianAI/librarian/services/librarian/telemetry"
)

// Handlers contains the HTTP handlers for the librarian service.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers for the given service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// HandleVerifyLines handles POST /v1/librarian/verify/lines.
//
// Description:
//
//	Checks that each referenced line exists and, when content is given,
//	still holds it. Missing files and moved lines are reported as issues
//	in a 200 response, never as request errors.
//
// Request Body: VerifyLinesRequest
//
// Response: astverify.Result
func (h *Handlers) HandleVerifyLines(c *gin.Context) {
	ctx, logger := h.begin(c, "HandleVerifyLines")

	var req VerifyLinesRequest
	if !bindJSON(c, logger, &req) {
		return
	}

	result, err := h.svc.VerifyLines(ctx, req)
	if err != nil {
		respondError(c, logger, "Line verification failed", err)
		return
	}

	logger.Info("Lines verified",
		"references", len(req.References),
		"verified", result.Verified,
		"accuracy", result.Accuracy)
	c.JSON(http.StatusOK, result)
}

// HandleVerifySymbol handles POST /v1/librarian/verify/symbol.
//
// Request Body: VerifySymbolRequest
//
// Response: astverify.Result
func (h *Handlers) HandleVerifySymbol(c *gin.Context) {
	ctx, logger := h.begin(c, "HandleVerifySymbol")

	var req VerifySymbolRequest
	if !bindJSON(c, logger, &req) {
		return
	}

	result, err := h.svc.VerifySymbol(ctx, req)
	if err != nil {
		respondError(c, logger, "Symbol verification failed", err)
		return
	}

	logger.Info("Symbol verified",
		"name", req.Name,
		"kind", req.Kind,
		"verified", result.Verified)
	c.JSON(http.StatusOK, result)
}

// HandleVerifyAnswerCitations handles POST /v1/librarian/verify/answer-citations.
//
// Request Body: VerifyAnswerRequest
//
// Response: astverify.Result
func (h *Handlers) HandleVerifyAnswerCitations(c *gin.Context) {
	ctx, logger := h.begin(c, "HandleVerifyAnswerCitations")

	var req VerifyAnswerRequest
	if !bindJSON(c, logger, &req) {
		return
	}

	result, err := h.svc.VerifyAnswerCitations(ctx, req)
	if err != nil {
		respondError(c, logger, "Answer citation verification failed", err)
		return
	}

	logger.Info("Answer citations verified",
		"references", len(result.References),
		"verified", result.Verified)
	c.JSON(http.StatusOK, result)
}

// HandleVerifyCitations handles POST /v1/librarian/verify/citations.
//
// Request Body: VerifyCitationsRequest
//
// Response: VerifyCitationsResponse
func (h *Handlers) HandleVerifyCitations(c *gin.Context) {
	ctx, logger := h.begin(c, "HandleVerifyCitations")

	var req VerifyCitationsRequest
	if !bindJSON(c, logger, &req) {
		return
	}

	resp, err := h.svc.VerifyCitations(ctx, req)
	if err != nil {
		respondError(c, logger, "Citation verification failed", err)
		return
	}

	logger.Info("Citations verified", "grounded", resp.Grounded, "total", resp.Total)
	c.JSON(http.StatusOK, resp)
}

// HandleVerifyCoVe handles POST /v1/librarian/verify/cove.
//
// Request Body: CoVeRequest
//
// Response: cove.Result
func (h *Handlers) HandleVerifyCoVe(c *gin.Context) {
	ctx, logger := h.begin(c, "HandleVerifyCoVe")

	var req CoVeRequest
	if !bindJSON(c, logger, &req) {
		return
	}

	result, err := h.svc.VerifyCoVe(ctx, req)
	if err != nil {
		respondError(c, logger, "Chain of verification failed", err)
		return
	}

	logger.Info("Chain of verification complete",
		"questions", len(result.Questions),
		"revised", result.Revised,
		"hedged", result.Hedged)
	c.JSON(http.StatusOK, result)
}

// HandleVariants handles POST /v1/librarian/consistency/variants.
//
// Request Body: VariantsRequest
//
// Response: consistency.QuerySet
func (h *Handlers) HandleVariants(c *gin.Context) {
	_, logger := h.begin(c, "HandleVariants")

	var req VariantsRequest
	if !bindJSON(c, logger, &req) {
		return
	}

	set := h.svc.GenerateVariants(req)
	logger.Debug("Variants generated", "set_id", set.ID, "variants", len(set.Variants))
	c.JSON(http.StatusOK, set)
}

// HandleCheck handles POST /v1/librarian/consistency/check.
//
// Request Body: CheckRequest
//
// Response: CheckResponse
func (h *Handlers) HandleCheck(c *gin.Context) {
	ctx, logger := h.begin(c, "HandleCheck")

	var req CheckRequest
	if !bindJSON(c, logger, &req) {
		return
	}

	resp := h.svc.CheckConsistency(ctx, req)
	logger.Info("Consistency checked", "answers", len(req.Answers), "consistent", resp.Consistent)
	c.JSON(http.StatusOK, resp)
}

// HandleRun handles POST /v1/librarian/consistency/run.
//
// Description:
//
//	Answers every variant with the configured provider. Returns 503
//	PROVIDER_UNAVAILABLE when no provider is configured.
//
// Request Body: RunRequest
//
// Response: RunResponse
func (h *Handlers) HandleRun(c *gin.Context) {
	ctx, logger := h.begin(c, "HandleRun")

	var req RunRequest
	if !bindJSON(c, logger, &req) {
		return
	}

	resp, err := h.svc.RunConsistency(ctx, req)
	if err != nil {
		respondError(c, logger, "Consistency run failed", err)
		return
	}

	logger.Info("Consistency run complete",
		"report_id", resp.Report.ID,
		"sets", resp.Report.TotalSets,
		"violations", len(resp.Report.Violations))
	c.JSON(http.StatusOK, resp)
}

// HandleStats handles GET /v1/librarian/stats.
func (h *Handlers) HandleStats(c *gin.Context) {
	getOrCreateRequestID(c)
	c.JSON(http.StatusOK, h.svc.Stats())
}

// HandleResetStats handles DELETE /v1/librarian/stats.
func (h *Handlers) HandleResetStats(c *gin.Context) {
	_, logger := h.begin(c, "HandleResetStats")
	h.svc.ResetStats()
	logger.Info("Statistics reset")
	c.Status(http.StatusNoContent)
}

// HandleListAudit handles GET /v1/librarian/audit.
//
// Query Parameters:
//
//	component - Keep only one component's records.
//	verified - "true" or "false".
//	limit - Maximum records, at most 500.
//
// Response: []audit.Record, newest first.
func (h *Handlers) HandleListAudit(c *gin.Context) {
	ctx, logger := h.begin(c, "HandleListAudit")

	var q audit.Query
	if err := c.ShouldBindQuery(&q); err != nil {
		logger.Warn("Invalid query", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid query parameters",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	records, err := h.svc.ListAudit(ctx, q)
	if err != nil {
		respondError(c, logger, "Audit listing failed", err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// HandleGetAudit handles GET /v1/librarian/audit/:id.
func (h *Handlers) HandleGetAudit(c *gin.Context) {
	ctx, logger := h.begin(c, "HandleGetAudit")

	record, err := h.svc.GetAudit(ctx, c.Param("id"))
	if err != nil {
		respondError(c, logger, "Audit lookup failed", err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// HandleHealth handles GET /v1/librarian/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Health())
}

// begin assigns the request ID and returns the request context carrying it
// and a logger tagged with it and the active trace.
func (h *Handlers) begin(c *gin.Context, handler string) (context.Context, *slog.Logger) {
	requestID := getOrCreateRequestID(c)
	ctx := ContextWithRequestID(c.Request.Context(), requestID)
	logger := telemetry.LoggerWithTrace(ctx, h.svc.logger.With("request_id", requestID, "handler", handler))
	return ctx, logger
}

func bindJSON(c *gin.Context, logger *slog.Logger, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request body",
			Code:    "INVALID_REQUEST",
			Details: err.Error(),
		})
		return false
	}
	return true
}

// respondError maps service errors to status codes.
func respondError(c *gin.Context, logger *slog.Logger, msg string, err error) {
	statusCode := http.StatusInternalServerError
	errCode := "INTERNAL_ERROR"

	switch {
	case errors.Is(err, ErrProviderUnavailable):
		statusCode = http.StatusServiceUnavailable
		errCode = "PROVIDER_UNAVAILABLE"
	case errors.Is(err, ErrAuditUnavailable):
		statusCode = http.StatusServiceUnavailable
		errCode = "AUDIT_UNAVAILABLE"
	case errors.Is(err, ErrUnknownSymbolKind):
		statusCode = http.StatusBadRequest
		errCode = "INVALID_REQUEST"
	case errors.Is(err, audit.ErrNotFound):
		statusCode = http.StatusNotFound
		errCode = "NOT_FOUND"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		statusCode = http.StatusRequestTimeout
		errCode = "CANCELED"
	}

	if statusCode >= http.StatusInternalServerError {
		logger.Error(msg, "error", err)
	} else {
		logger.Warn(msg, "error", err)
	}
	c.JSON(statusCode, ErrorResponse{
		Error:   msg,
		Code:    errCode,
		Details: err.Error(),
	})
}

// getOrCreateRequestID returns X-Request-ID, generating one when absent,
// and echoes it on the response.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
