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

import "github.com/gin-gonic/gin"

// RegisterRoutes registers the librarian routes under rg.
//
// Verification Endpoints:
//
//	POST /v1/librarian/verify/lines - Verify file and line references
//	POST /v1/librarian/verify/symbol - Verify a function or class claim
//	POST /v1/librarian/verify/answer-citations - Verify "path:line" citations in prose
//	POST /v1/librarian/verify/citations - Ground citations against a document
//	POST /v1/librarian/verify/cove - Run chain-of-verification
//
// Consistency Endpoints:
//
//	POST /v1/librarian/consistency/variants - Generate query variants
//	POST /v1/librarian/consistency/check - Check collected answers
//	POST /v1/librarian/consistency/run - Answer and check query sets
//
// Operational Endpoints:
//
//	GET    /v1/librarian/stats - Running statistics per verifier
//	DELETE /v1/librarian/stats - Reset statistics
//	GET    /v1/librarian/audit - List audited verdicts
//	GET    /v1/librarian/audit/:id - Get one audited verdict
//	GET    /v1/librarian/health - Health check
//
// Example:
//
//	svc, err := librarian.Build(cfg, logger)
//	handlers := librarian.NewHandlers(svc)
//
//	v1 := router.Group("/v1")
//	librarian.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	lib := rg.Group("/librarian")

	verify := lib.Group("/verify")
	verify.POST("/lines", handlers.HandleVerifyLines)
	verify.POST("/symbol", handlers.HandleVerifySymbol)
	verify.POST("/answer-citations", handlers.HandleVerifyAnswerCitations)
	verify.POST("/citations", handlers.HandleVerifyCitations)
	verify.POST("/cove", handlers.HandleVerifyCoVe)

	consistency := lib.Group("/consistency")
	consistency.POST("/variants", handlers.HandleVariants)
	consistency.POST("/check", handlers.HandleCheck)
	consistency.POST("/run", handlers.HandleRun)

	lib.GET("/stats", handlers.HandleStats)
	lib.DELETE("/stats", handlers.HandleResetStats)
	lib.GET("/audit", handlers.HandleListAudit)
	lib.GET("/audit/:id", handlers.HandleGetAudit)
	lib.GET("/health", handlers.HandleHealth)
}
