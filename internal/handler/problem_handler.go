package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/codeclash/backend/internal/domain"
	"github.com/codeclash/backend/internal/middleware"
	"github.com/codeclash/backend/internal/service"
)

// ProblemHandler handles problem-bank HTTP requests
type ProblemHandler struct {
	problemService *service.ProblemService
}

// NewProblemHandler creates a new problem handler
func NewProblemHandler(problemService *service.ProblemService) *ProblemHandler {
	return &ProblemHandler{
		problemService: problemService,
	}
}

// GetProblems returns every problem in the bank
// GET /api/problems
func (h *ProblemHandler) GetProblems(c *gin.Context) {
	if _, ok := middleware.RequireUser(c); !ok {
		return
	}

	problems, err := h.problemService.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve problems",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"problems": problems,
		"count":    len(problems),
	})
}

// GetProblem returns a specific problem by ID
// GET /api/problems/:id
func (h *ProblemHandler) GetProblem(c *gin.Context) {
	if _, ok := middleware.RequireUser(c); !ok {
		return
	}

	problemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid problem ID",
		})
		return
	}

	problem, err := h.problemService.GetByID(c.Request.Context(), problemID)
	if err != nil {
		switch err {
		case domain.ErrProblemNotFound:
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Problem not found",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to retrieve problem",
			})
		}
		return
	}

	c.JSON(http.StatusOK, problem)
}

// CreateProblem adds a problem to the bank
// POST /api/problems
func (h *ProblemHandler) CreateProblem(c *gin.Context) {
	if _, ok := middleware.RequireUser(c); !ok {
		return
	}

	var problem domain.Problem
	if err := c.ShouldBindJSON(&problem); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if err := h.problemService.Create(c.Request.Context(), &problem); err != nil {
		switch err {
		case domain.ErrMissingFields:
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "name, slug and sample_tests are required",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to create problem",
			})
		}
		return
	}

	c.JSON(http.StatusCreated, problem)
}
