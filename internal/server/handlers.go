package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mportillo/dealerd/internal/types"
	"github.com/mportillo/dealerd/pkg/entities"
)

type createSessionRequest struct {
	PlayerID string `json:"player_id" binding:"required"`
}

type actionRequest struct {
	Action string `json:"action" binding:"required"`
}

type forceOutcomeRequest struct {
	Result string `json:"result" binding:"required"`
}

func (s *Server) createSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "player_id is required"})
		return
	}

	session, err := s.registry.CreateFor(req.PlayerID)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, session.Snapshot())
}

func (s *Server) getSession(c *gin.Context) {
	session, exists := s.registry.Get(c.Param("playerId"))
	if !exists {
		s.writeError(c, types.NewGameError(types.ErrSessionNotFound, "no session for player"))
		return
	}

	c.JSON(http.StatusOK, session.Snapshot())
}

func (s *Server) playAction(c *gin.Context) {
	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "action is required"})
		return
	}

	session, exists := s.registry.Get(c.Param("playerId"))
	if !exists {
		s.writeError(c, types.NewGameError(types.ErrSessionNotFound, "no session for player"))
		return
	}

	var snapshot interface{}
	var err error
	switch req.Action {
	case "hit":
		snapshot, err = session.Hit()
	case "stand":
		snapshot, err = session.Stand()
	default:
		s.writeError(c, types.NewGameError(types.ErrInvalidAction, "action must be hit or stand"))
		return
	}
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

func (s *Server) resetSession(c *gin.Context) {
	session, err := s.registry.Replace(c.Param("playerId"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, session.Snapshot())
}

// forceOutcome completes a live session as a win or loss. Development only.
func (s *Server) forceOutcome(c *gin.Context) {
	var req forceOutcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "result is required"})
		return
	}

	var result entities.Result
	switch req.Result {
	case "win":
		result = entities.ResultWin
	case "loss":
		result = entities.ResultLoss
	default:
		s.writeError(c, types.NewGameError(types.ErrInvalidAction, "result must be win or loss"))
		return
	}

	session, exists := s.registry.Get(c.Param("playerId"))
	if !exists {
		s.writeError(c, types.NewGameError(types.ErrSessionNotFound, "no session for player"))
		return
	}

	if err := session.ForceComplete(result); err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, session.Snapshot())
}

// introspect dumps registry and ledger contents. Development only.
func (s *Server) introspect(c *gin.Context) {
	completed, err := s.repo.ListCompleted(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	dedup, err := s.repo.ListDedup(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"registry":          s.registry.Snapshot(),
		"completed_entries": completed,
		"dedup_records":     dedup,
	})
}

// writeError maps the error taxonomy onto HTTP status codes
func (s *Server) writeError(c *gin.Context, err error) {
	code := types.Code(err)

	status := http.StatusInternalServerError
	switch code {
	case types.ErrInvalidIdentity, types.ErrInvalidBet, types.ErrInvalidAction:
		status = http.StatusBadRequest
	case types.ErrSessionAlreadyActive, types.ErrInvalidStateForAction, types.ErrSessionCompleted:
		status = http.StatusConflict
	case types.ErrSessionNotFound:
		status = http.StatusNotFound
	}

	if status == http.StatusInternalServerError {
		s.logger.LogError(err)
	}

	c.JSON(status, gin.H{"error": err.Error(), "code": string(code)})
}
