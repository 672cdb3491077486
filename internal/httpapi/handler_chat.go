package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// chatTimeout bounds POST /api/chat's synchronous LLM round trip (§6
// "synchronous, <=5 min").
const chatTimeout = 5 * time.Minute

type chatRequest struct {
	Question string `json:"question" binding:"required"`
	Limit    int    `json:"limit"`
}

// handleChat serves POST /api/chat {question, limit}, the only write-
// adjacent endpoint that blocks synchronously (within chatTimeout) rather
// than spawning a background worker, since it produces no write — it is
// read-only against the memory tree like every other handler in this
// package.
func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), chatTimeout)
	defer cancel()

	answer, err := s.rt.Chat(ctx, req.Question, req.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"answer": answer})
}
