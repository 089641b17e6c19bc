package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeclash/backend/internal/domain"
	"github.com/codeclash/backend/internal/middleware"
	"github.com/codeclash/backend/internal/service"
)

// ContestHandler handles contest-related HTTP requests
type ContestHandler struct {
	contestService *service.ContestService
}

// NewContestHandler creates a new contest handler
func NewContestHandler(contestService *service.ContestService) *ContestHandler {
	return &ContestHandler{
		contestService: contestService,
	}
}

// endContestRequest is the body of POST /api/rooms/:code/contest/end
type endContestRequest struct {
	Forfeit bool `json:"forfeit"`
}

// StartContest creates and starts the contest for a room
// POST /api/rooms/:code/contest
func (h *ContestHandler) StartContest(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	contest, err := h.contestService.Start(c.Request.Context(), userID, c.Param("code"))
	if err != nil {
		switch err {
		case domain.ErrRoomNotFound:
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Room not found",
			})
		case domain.ErrNotRoomCreator:
			c.JSON(http.StatusForbidden, gin.H{
				"error": "Only the room creator can start the contest",
			})
		case domain.ErrRoomNotReady:
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Room needs exactly two participants to start",
			})
		case domain.ErrContestExists:
			c.JSON(http.StatusConflict, gin.H{
				"error": "A contest was already created for this room",
			})
		case domain.ErrNotEnoughProblems:
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Not enough problems available for the chosen difficulty",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to start contest",
			})
		}
		return
	}

	c.JSON(http.StatusCreated, contest)
}

// GetContest returns the contest for a room
// GET /api/rooms/:code/contest
func (h *ContestHandler) GetContest(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	contest, err := h.contestService.Get(c.Request.Context(), userID, c.Param("code"))
	if err != nil {
		switch err {
		case domain.ErrRoomNotFound:
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Room not found",
			})
		case domain.ErrContestNotFound:
			c.JSON(http.StatusNotFound, gin.H{
				"error": "No contest for this room",
			})
		case domain.ErrNotParticipant:
			c.JSON(http.StatusForbidden, gin.H{
				"error": "You are not a participant of this contest",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to retrieve contest",
			})
		}
		return
	}

	c.JSON(http.StatusOK, contest)
}

// SubmitCode judges a code submission against the problem's sample tests
// POST /api/rooms/:code/contest/submit
func (h *ContestHandler) SubmitCode(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	var req service.SubmitCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	result, err := h.contestService.Submit(c.Request.Context(), userID, c.Param("code"), &req)
	if err != nil {
		switch err {
		case domain.ErrMissingFields:
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "problem_id, code and language are required",
			})
		case domain.ErrUnsupportedLanguage:
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Unsupported language. Use cpp, java or python.",
			})
		case domain.ErrRoomNotFound, domain.ErrContestNotFound:
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Contest not found",
			})
		case domain.ErrNotParticipant:
			c.JSON(http.StatusForbidden, gin.H{
				"error": "You are not a participant of this contest",
			})
		case domain.ErrContestNotActive:
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Contest is not active",
			})
		case domain.ErrContestExpired:
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Contest time is over",
			})
		case domain.ErrParticipantDone:
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "You already finished this contest",
			})
		case domain.ErrProblemNotInContest:
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Problem is not part of this contest",
			})
		case domain.ErrConcurrencyConflict:
			c.JSON(http.StatusConflict, gin.H{
				"error": "Contest state changed, please retry",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to judge submission",
			})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

// EndContest finishes the calling participant, optionally forfeiting
// POST /api/rooms/:code/contest/end
func (h *ContestHandler) EndContest(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	// Body is optional; an empty body means a regular finish.
	var req endContestRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request body",
			})
			return
		}
	}

	contest, waiting, err := h.contestService.End(c.Request.Context(), userID, c.Param("code"), req.Forfeit)
	if err != nil {
		switch err {
		case domain.ErrRoomNotFound, domain.ErrContestNotFound:
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Contest not found",
			})
		case domain.ErrNotParticipant:
			c.JSON(http.StatusForbidden, gin.H{
				"error": "You are not a participant of this contest",
			})
		case domain.ErrContestNotActive:
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Contest is not active",
			})
		case domain.ErrParticipantDone:
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "You already finished this contest",
			})
		case domain.ErrConcurrencyConflict:
			c.JSON(http.StatusConflict, gin.H{
				"error": "Contest state changed, please retry",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to end contest",
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"contest":              contest,
		"waiting_for_opponent": waiting,
	})
}
