// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers contains the gin HTTP handlers for the chatbot API.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jfrank94/afroadv-chatbot/services/chatbot/datatypes"
	"github.com/jfrank94/afroadv-chatbot/services/chatbot/services"
)

// HandleChat runs one conversational turn.
//
// POST /v1/chat with a ChatRequest body. Input-validation failures come
// back as 400 with the error code; everything else is a 200 with a
// well-formed ChatResult, degraded responses included.
func HandleChat(svc *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			slog.Warn("Malformed chat request body", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		result := svc.Chat(c.Request.Context(), req)
		if result.Error != "" {
			c.JSON(http.StatusBadRequest, result)
			return
		}

		// Opting out of sources drops the raw records, events included; the
		// counts still report what retrieval found.
		if !req.WantSources() {
			result.Sources = nil
			result.Events = nil
		}
		c.JSON(http.StatusOK, result)
	}
}
