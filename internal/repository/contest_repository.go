package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/codeclash/backend/internal/domain"
)

// contestRepository implements domain.ContestRepository using GORM
type contestRepository struct {
	db *gorm.DB
}

// NewContestRepository creates a new contest repository
func NewContestRepository(db *gorm.DB) domain.ContestRepository {
	return &contestRepository{db: db}
}

// preloaded attaches the full aggregate: problems in snapshot order,
// participants with their submission ledgers.
func (r *contestRepository) preloaded() *gorm.DB {
	return r.db.
		Preload("Problems", func(db *gorm.DB) *gorm.DB {
			return db.Order("contest_problems.order_index ASC")
		}).
		Preload("Participants", func(db *gorm.DB) *gorm.DB {
			return db.Order("contest_participants.created_at ASC, contest_participants.id ASC")
		}).
		Preload("Participants.User").
		Preload("Participants.Submissions", func(db *gorm.DB) *gorm.DB {
			return db.Order("contest_submissions.submitted_at ASC")
		})
}

// Create persists a new contest aggregate with its snapshot and participants
func (r *contestRepository) Create(contest *domain.Contest) error {
	return r.db.Create(contest).Error
}

// FindByID finds a contest by its ID with the full aggregate loaded
func (r *contestRepository) FindByID(id uuid.UUID) (*domain.Contest, error) {
	var contest domain.Contest
	result := r.preloaded().Where("id = ?", id).First(&contest)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrContestNotFound
		}
		return nil, result.Error
	}
	return &contest, nil
}

// FindByRoomID finds the contest for a room (1:1 relationship)
func (r *contestRepository) FindByRoomID(roomID uuid.UUID) (*domain.Contest, error) {
	var contest domain.Contest
	result := r.preloaded().Where("room_id = ?", roomID).First(&contest)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrContestNotFound
		}
		return nil, result.Error
	}
	return &contest, nil
}

// ExistsByRoomID reports whether a contest was already created for the room
func (r *contestRepository) ExistsByRoomID(roomID uuid.UUID) (bool, error) {
	var count int64
	result := r.db.Model(&domain.Contest{}).Where("room_id = ?", roomID).Count(&count)
	return count > 0, result.Error
}

// FindActiveExpired returns active contests whose end time has passed.
// Used by the expiry sweep.
func (r *contestRepository) FindActiveExpired(now time.Time) ([]domain.Contest, error) {
	var contests []domain.Contest
	result := r.preloaded().
		Where("status = ? AND end_time < ?", domain.ContestStatusActive, now).
		Find(&contests)
	return contests, result.Error
}

// Update persists the aggregate under the optimistic-lock discipline: the
// version column is compare-and-bumped first, and a stale version fails the
// whole transaction with ErrConcurrencyConflict so no partial write lands.
func (r *contestRepository) Update(contest *domain.Contest) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Contest{}).
			Where("id = ? AND version = ?", contest.ID, contest.Version).
			Update("version", gorm.Expr("version + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrConcurrencyConflict
		}
		contest.Version++

		return tx.Session(&gorm.Session{FullSaveAssociations: true}).Save(contest).Error
	})
}

// StatsByUser summarizes the user's contest history for the profile surface
func (r *contestRepository) StatsByUser(userID uuid.UUID) (*domain.UserContestStats, error) {
	var participants []domain.Participant
	result := r.db.
		Joins("JOIN contests ON contests.id = contest_participants.contest_id").
		Where("contest_participants.user_id = ? AND contests.status = ?", userID, domain.ContestStatusCompleted).
		Find(&participants)
	if result.Error != nil {
		return nil, result.Error
	}

	stats := &domain.UserContestStats{TotalContests: len(participants)}
	for i := range participants {
		p := &participants[i]
		if p.Forfeited {
			stats.Forfeits++
		}
		var contest domain.Contest
		if err := r.db.Select("winner_id").Where("id = ?", p.ContestID).First(&contest).Error; err != nil {
			continue
		}
		if contest.WinnerID != nil && *contest.WinnerID == userID {
			stats.Wins++
		} else {
			stats.Losses++
		}
	}
	return stats, nil
}

// WithContext returns a repository with the given context for tracing
func (r *contestRepository) WithContext(ctx context.Context) domain.ContestRepository {
	return &contestRepository{db: r.db.WithContext(ctx)}
}
