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
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jfrank94/afroadv-chatbot/services/chatbot/services"
)

// GetSessionHistory returns the retained turns for a session.
func GetSessionHistory(svc *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("sessionId")
		history, ok := svc.Sessions().History(sessionID)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown session"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"session_id": sessionID,
			"turns":      history,
		})
	}
}

// DeleteSession drops a session's memory.
func DeleteSession(svc *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("sessionId")
		slog.Info("Received a request to delete a session", "sessionId", sessionID)
		if !svc.Sessions().Delete(sessionID) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown session"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "deleted_session_id": sessionID})
	}
}
