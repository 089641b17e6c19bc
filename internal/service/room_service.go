package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/codeclash/backend/internal/domain"
)

// Room codes are uppercase letters and digits, compared case-sensitively.
const (
	roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	roomCodeLength   = 6

	// codeGenAttempts bounds retries when a generated code collides with
	// an existing room.
	codeGenAttempts = 5

	publicRoomsLimit = 50
)

// RoomService manages the pre-contest lobby: creation, joining, listing.
type RoomService struct {
	roomRepo domain.RoomRepository
	tracer   trace.Tracer
	logger   *zap.Logger
}

// NewRoomService creates a new room service
func NewRoomService(roomRepo domain.RoomRepository, tracer trace.Tracer, logger *zap.Logger) *RoomService {
	return &RoomService{
		roomRepo: roomRepo,
		tracer:   tracer,
		logger:   logger,
	}
}

// Create opens a new room with the given contest settings. The creator is
// seated as the first participant.
func (s *RoomService) Create(ctx context.Context, userID uuid.UUID, req *domain.CreateRoomRequest) (*domain.Room, error) {
	ctx, span := s.tracer.Start(ctx, "RoomService.Create")
	defer span.End()

	span.SetAttributes(attribute.String("user.id", userID.String()))

	if !req.Difficulty.Valid() {
		return nil, domain.ErrBadRequest
	}

	var room *domain.Room
	for attempt := 0; attempt < codeGenAttempts; attempt++ {
		code, err := generateRoomCode()
		if err != nil {
			return nil, err
		}

		room = &domain.Room{
			Code:      code,
			CreatedBy: userID,
			IsPublic:  req.IsPublic,
			Status:    domain.RoomStatusWaiting,
			Settings: domain.RoomSettings{
				QuestionsCount:   req.QuestionsCount,
				TimeLimitMinutes: req.TimeLimit,
				Difficulty:       req.Difficulty,
			},
			Participants: []domain.RoomParticipant{
				{UserID: userID, JoinedAt: time.Now()},
			},
		}

		if err := s.roomRepo.Create(room); err != nil {
			// Unique index on code: regenerate and retry on collision.
			if attempt < codeGenAttempts-1 {
				s.logger.Debug("Room code collision, regenerating",
					zap.String("code", code))
				continue
			}
			return nil, err
		}
		break
	}

	s.logger.Info("Room created",
		zap.String("room_code", room.Code),
		zap.String("created_by", userID.String()),
		zap.Bool("is_public", room.IsPublic),
	)
	return room, nil
}

// Join seats the user in the room. Rejected when the room is full, no
// longer waiting, or the user already joined.
func (s *RoomService) Join(ctx context.Context, userID uuid.UUID, roomCode string) (*domain.Room, error) {
	ctx, span := s.tracer.Start(ctx, "RoomService.Join")
	defer span.End()

	span.SetAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("room.code", roomCode),
	)

	room, err := s.roomRepo.FindByCode(roomCode)
	if err != nil {
		return nil, err
	}
	if room.HasParticipant(userID) {
		return nil, domain.ErrAlreadyInRoom
	}
	if room.Status != domain.RoomStatusWaiting {
		return nil, domain.ErrRoomNotWaiting
	}
	if room.IsFull() {
		return nil, domain.ErrRoomFull
	}

	participant := &domain.RoomParticipant{
		UserID:   userID,
		JoinedAt: time.Now(),
	}
	if err := s.roomRepo.AddParticipant(room.ID, participant); err != nil {
		return nil, err
	}

	s.logger.Info("User joined room",
		zap.String("room_code", room.Code),
		zap.String("user_id", userID.String()),
	)
	return s.roomRepo.FindByCode(roomCode)
}

// Leave removes the user from a waiting room. When the creator leaves the
// room is dissolved entirely.
func (s *RoomService) Leave(ctx context.Context, userID uuid.UUID, roomCode string) error {
	ctx, span := s.tracer.Start(ctx, "RoomService.Leave")
	defer span.End()

	span.SetAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("room.code", roomCode),
	)

	room, err := s.roomRepo.FindByCode(roomCode)
	if err != nil {
		return err
	}
	if !room.HasParticipant(userID) {
		return domain.ErrNotParticipant
	}
	if room.Status != domain.RoomStatusWaiting {
		return domain.ErrRoomNotWaiting
	}

	if room.CreatedBy == userID {
		s.logger.Info("Creator left, dissolving room",
			zap.String("room_code", room.Code))
		return s.roomRepo.Delete(room.ID)
	}
	if err := s.roomRepo.RemoveParticipant(room.ID, userID); err != nil {
		return err
	}

	s.logger.Info("User left room",
		zap.String("room_code", room.Code),
		zap.String("user_id", userID.String()),
	)
	return nil
}

// Get returns the room by code.
func (s *RoomService) Get(ctx context.Context, roomCode string) (*domain.Room, error) {
	ctx, span := s.tracer.Start(ctx, "RoomService.Get")
	defer span.End()

	span.SetAttributes(attribute.String("room.code", roomCode))
	return s.roomRepo.FindByCode(roomCode)
}

// ListPublic returns joinable public rooms, newest first.
func (s *RoomService) ListPublic(ctx context.Context) ([]domain.Room, error) {
	ctx, span := s.tracer.Start(ctx, "RoomService.ListPublic")
	defer span.End()

	return s.roomRepo.FindPublicWaiting(publicRoomsLimit)
}

// Delete removes a waiting room. Only the creator may delete it.
func (s *RoomService) Delete(ctx context.Context, userID uuid.UUID, roomCode string) error {
	ctx, span := s.tracer.Start(ctx, "RoomService.Delete")
	defer span.End()

	span.SetAttributes(attribute.String("room.code", roomCode))

	room, err := s.roomRepo.FindByCode(roomCode)
	if err != nil {
		return err
	}
	if room.CreatedBy != userID {
		return domain.ErrNotRoomCreator
	}
	if room.Status != domain.RoomStatusWaiting {
		return domain.ErrRoomNotWaiting
	}
	return s.roomRepo.Delete(room.ID)
}

// generateRoomCode draws a 6-character code from crypto/rand.
func generateRoomCode() (string, error) {
	buf := make([]byte, roomCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate room code: %w", err)
	}
	code := make([]byte, roomCodeLength)
	for i, b := range buf {
		code[i] = roomCodeAlphabet[int(b)%len(roomCodeAlphabet)]
	}
	return string(code), nil
}
