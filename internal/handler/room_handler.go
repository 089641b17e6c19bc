package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeclash/backend/internal/domain"
	"github.com/codeclash/backend/internal/middleware"
	"github.com/codeclash/backend/internal/service"
)

// RoomHandler handles room-related HTTP requests
type RoomHandler struct {
	roomService *service.RoomService
}

// NewRoomHandler creates a new room handler
func NewRoomHandler(roomService *service.RoomService) *RoomHandler {
	return &RoomHandler{
		roomService: roomService,
	}
}

// CreateRoom opens a new room for the authenticated user
// POST /api/rooms
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	var req domain.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	room, err := h.roomService.Create(c.Request.Context(), userID, &req)
	if err != nil {
		switch err {
		case domain.ErrBadRequest:
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid difficulty band",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to create room",
			})
		}
		return
	}

	c.JSON(http.StatusCreated, room)
}

// GetRoom returns a room by its code
// GET /api/rooms/:code
func (h *RoomHandler) GetRoom(c *gin.Context) {
	if _, ok := middleware.RequireUser(c); !ok {
		return
	}

	room, err := h.roomService.Get(c.Request.Context(), c.Param("code"))
	if err != nil {
		switch err {
		case domain.ErrRoomNotFound:
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Room not found",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to retrieve room",
			})
		}
		return
	}

	c.JSON(http.StatusOK, room)
}

// ListPublicRooms returns joinable public rooms
// GET /api/rooms
func (h *RoomHandler) ListPublicRooms(c *gin.Context) {
	if _, ok := middleware.RequireUser(c); !ok {
		return
	}

	rooms, err := h.roomService.ListPublic(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list rooms",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"rooms": rooms,
	})
}

// JoinRoom seats the authenticated user in the room
// POST /api/rooms/:code/join
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	room, err := h.roomService.Join(c.Request.Context(), userID, c.Param("code"))
	if err != nil {
		switch err {
		case domain.ErrRoomNotFound:
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Room not found",
			})
		case domain.ErrAlreadyInRoom:
			c.JSON(http.StatusConflict, gin.H{
				"error": "You already joined this room",
			})
		case domain.ErrRoomNotWaiting:
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Room is no longer accepting participants",
			})
		case domain.ErrRoomFull:
			c.JSON(http.StatusConflict, gin.H{
				"error": "Room is full",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to join room",
			})
		}
		return
	}

	c.JSON(http.StatusOK, room)
}

// LeaveRoom removes the authenticated user from a waiting room
// POST /api/rooms/:code/leave
func (h *RoomHandler) LeaveRoom(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	err := h.roomService.Leave(c.Request.Context(), userID, c.Param("code"))
	if err != nil {
		switch err {
		case domain.ErrRoomNotFound:
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Room not found",
			})
		case domain.ErrNotParticipant:
			c.JSON(http.StatusForbidden, gin.H{
				"error": "You are not a participant of this room",
			})
		case domain.ErrRoomNotWaiting:
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Cannot leave a room once the contest started",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to leave room",
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Left room",
	})
}

// DeleteRoom removes a waiting room
// DELETE /api/rooms/:code
func (h *RoomHandler) DeleteRoom(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	err := h.roomService.Delete(c.Request.Context(), userID, c.Param("code"))
	if err != nil {
		switch err {
		case domain.ErrRoomNotFound:
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Room not found",
			})
		case domain.ErrNotRoomCreator:
			c.JSON(http.StatusForbidden, gin.H{
				"error": "Only the room creator can delete the room",
			})
		case domain.ErrRoomNotWaiting:
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Only waiting rooms can be deleted",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to delete room",
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Room deleted",
	})
}
