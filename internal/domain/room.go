package domain

import (
	"time"

	"github.com/google/uuid"
)

// RoomStatus tracks the lobby lifecycle: waiting -> active -> completed.
type RoomStatus string

const (
	RoomStatusWaiting   RoomStatus = "waiting"
	RoomStatusActive    RoomStatus = "active"
	RoomStatusCompleted RoomStatus = "completed"
)

// RoomMaxParticipants is fixed: contests are strictly 1v1.
const RoomMaxParticipants = 2

// RoomSettings are the contest parameters chosen at room creation.
type RoomSettings struct {
	QuestionsCount   int            `json:"questions_count" gorm:"not null;default:3"`
	TimeLimitMinutes int            `json:"time_limit" gorm:"not null;default:60"`
	Difficulty       DifficultyBand `json:"difficulty" gorm:"type:varchar(12);not null;default:'800-1200'"`
}

// Room is the pre-contest lobby. A contest is created at most once per room.
type Room struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Code      string    `json:"room_code" gorm:"uniqueIndex;not null;size:6"`
	CreatedBy uuid.UUID `json:"created_by" gorm:"type:uuid;not null;index"`
	IsPublic  bool      `json:"is_public" gorm:"not null;default:false"`

	Participants []RoomParticipant `json:"participants" gorm:"foreignKey:RoomID"`
	Settings     RoomSettings      `json:"settings" gorm:"embedded;embeddedPrefix:settings_"`
	Status       RoomStatus        `json:"status" gorm:"type:varchar(20);not null;default:'waiting'"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Room) TableName() string {
	return "rooms"
}

// RoomParticipant records one user's membership in a room.
type RoomParticipant struct {
	ID       uuid.UUID `json:"-" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	RoomID   uuid.UUID `json:"-" gorm:"type:uuid;not null;index"`
	UserID   uuid.UUID `json:"user_id" gorm:"type:uuid;not null"`
	JoinedAt time.Time `json:"joined_at" gorm:"not null"`

	User User `json:"user" gorm:"foreignKey:UserID"`
}

// TableName specifies the table name for GORM
func (RoomParticipant) TableName() string {
	return "room_participants"
}

// HasParticipant reports whether the user already joined the room.
func (r *Room) HasParticipant(userID uuid.UUID) bool {
	for i := range r.Participants {
		if r.Participants[i].UserID == userID {
			return true
		}
	}
	return false
}

// IsFull reports whether the room reached its 1v1 capacity.
func (r *Room) IsFull() bool {
	return len(r.Participants) >= RoomMaxParticipants
}

// CreateRoomRequest represents the data needed to create a room.
type CreateRoomRequest struct {
	IsPublic       bool           `json:"is_public"`
	QuestionsCount int            `json:"questions_count" binding:"required,min=1,max=10"`
	TimeLimit      int            `json:"time_limit" binding:"required,min=10,max=180"`
	Difficulty     DifficultyBand `json:"difficulty" binding:"required"`
}

// RoomRepository defines the interface for room data access.
type RoomRepository interface {
	Create(room *Room) error
	FindByCode(code string) (*Room, error)
	FindByID(id uuid.UUID) (*Room, error)
	FindPublicWaiting(limit int) ([]Room, error)
	AddParticipant(roomID uuid.UUID, participant *RoomParticipant) error
	RemoveParticipant(roomID, userID uuid.UUID) error
	Update(room *Room) error
	Delete(id uuid.UUID) error
}
