// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jfrank94/afroadv-chatbot/services/chatbot/events"
	"github.com/jfrank94/afroadv-chatbot/services/chatbot/retrieval"
	"github.com/jfrank94/afroadv-chatbot/services/chatbot/services"
	"github.com/jfrank94/afroadv-chatbot/services/llm"
)

// HealthCheck reports liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleStats reports catalog size, stored event count, live sessions,
// completed turns, and per-provider LLM usage.
func HandleStats(svc *services.ChatService, catalog *retrieval.Catalog, eventSearch *events.Search, chain *llm.FallbackChain) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := gin.H{
			"platforms":     catalog.Len(),
			"sessions":      svc.Sessions().Len(),
			"turns_total":   svc.TurnsTotal(),
			"llm_providers": chain.Stats(),
		}
		if count, err := eventSearch.Count(c.Request.Context()); err == nil {
			stats["events"] = count
		} else {
			stats["events_error"] = err.Error()
		}
		c.JSON(http.StatusOK, stats)
	}
}
