package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/codeclash/backend/internal/domain"
)

// roomRepository implements domain.RoomRepository using GORM
type roomRepository struct {
	db *gorm.DB
}

// NewRoomRepository creates a new room repository
func NewRoomRepository(db *gorm.DB) domain.RoomRepository {
	return &roomRepository{db: db}
}

// Create creates a new room in the database
func (r *roomRepository) Create(room *domain.Room) error {
	return r.db.Create(room).Error
}

// FindByCode finds a room by its 6-character code
func (r *roomRepository) FindByCode(code string) (*domain.Room, error) {
	var room domain.Room
	result := r.db.
		Preload("Participants", func(db *gorm.DB) *gorm.DB {
			return db.Order("room_participants.joined_at ASC")
		}).
		Preload("Participants.User").
		Where("code = ?", code).
		First(&room)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrRoomNotFound
		}
		return nil, result.Error
	}
	return &room, nil
}

// FindByID finds a room by its ID
func (r *roomRepository) FindByID(id uuid.UUID) (*domain.Room, error) {
	var room domain.Room
	result := r.db.
		Preload("Participants").
		Preload("Participants.User").
		Where("id = ?", id).
		First(&room)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrRoomNotFound
		}
		return nil, result.Error
	}
	return &room, nil
}

// FindPublicWaiting lists joinable public rooms, newest first
func (r *roomRepository) FindPublicWaiting(limit int) ([]domain.Room, error) {
	var rooms []domain.Room
	result := r.db.
		Preload("Participants").
		Preload("Participants.User").
		Where("is_public = ? AND status = ?", true, domain.RoomStatusWaiting).
		Order("created_at DESC").
		Limit(limit).
		Find(&rooms)
	return rooms, result.Error
}

// AddParticipant appends a participant to the room
func (r *roomRepository) AddParticipant(roomID uuid.UUID, participant *domain.RoomParticipant) error {
	participant.RoomID = roomID
	return r.db.Create(participant).Error
}

// RemoveParticipant removes a participant from the room
func (r *roomRepository) RemoveParticipant(roomID, userID uuid.UUID) error {
	result := r.db.Delete(&domain.RoomParticipant{}, "room_id = ? AND user_id = ?", roomID, userID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotParticipant
	}
	return nil
}

// Update updates an existing room
func (r *roomRepository) Update(room *domain.Room) error {
	return r.db.Save(room).Error
}

// Delete deletes a room by its ID
func (r *roomRepository) Delete(id uuid.UUID) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&domain.RoomParticipant{}, "room_id = ?", id).Error; err != nil {
			return err
		}
		result := tx.Delete(&domain.Room{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrRoomNotFound
		}
		return nil
	})
}

// WithContext returns a repository with the given context for tracing
func (r *roomRepository) WithContext(ctx context.Context) domain.RoomRepository {
	return &roomRepository{db: r.db.WithContext(ctx)}
}
