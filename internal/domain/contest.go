package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ContestStatus represents the current state of a contest.
// Transitions only move forward: scheduled -> active -> completed.
type ContestStatus string

const (
	ContestStatusScheduled ContestStatus = "scheduled"
	ContestStatusActive    ContestStatus = "active"
	ContestStatusCompleted ContestStatus = "completed"
)

// FinalScoreEpsilon is the noise threshold for score tie-breaks. Final
// scores within this distance are treated as equal so floating-point
// jitter never decides a contest.
const FinalScoreEpsilon = 0.1

// Contest is the live 1v1 match generated from a room. Problems are an
// immutable snapshot taken at creation; later edits to the problem bank
// never reach a running contest.
type Contest struct {
	ID     uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	RoomID uuid.UUID `json:"room_id" gorm:"type:uuid;not null;uniqueIndex"`

	Problems     []ContestProblem `json:"problems" gorm:"foreignKey:ContestID"`
	Participants []Participant    `json:"participants" gorm:"foreignKey:ContestID"`

	StartTime time.Time `json:"start_time" gorm:"not null"`
	// EndTime is fixed at creation (start + room time limit) and never
	// extended. The contest is expired once now > EndTime regardless of
	// status.
	EndTime         time.Time     `json:"end_time" gorm:"not null"`
	DurationMinutes int           `json:"duration_minutes" gorm:"not null"`
	Status          ContestStatus `json:"status" gorm:"type:varchar(20);not null;default:'scheduled'"`
	WinnerID        *uuid.UUID    `json:"winner_id" gorm:"type:uuid"`
	CompletedAt     *time.Time    `json:"completed_at"`

	// Version backs the optimistic-lock discipline in the contest store.
	Version   int64     `json:"-" gorm:"not null;default:0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Contest) TableName() string {
	return "contests"
}

// IsExpired reports whether the contest wall clock has run out.
func (c *Contest) IsExpired(now time.Time) bool {
	return now.After(c.EndTime)
}

// ParticipantByUser returns the participant record for the given user,
// or nil if the user is not part of this contest.
func (c *Contest) ParticipantByUser(userID uuid.UUID) *Participant {
	for i := range c.Participants {
		if c.Participants[i].UserID == userID {
			return &c.Participants[i]
		}
	}
	return nil
}

// ProblemByID returns the snapshot problem with the given bank id, or nil.
func (c *Contest) ProblemByID(problemID string) *ContestProblem {
	for i := range c.Problems {
		if c.Problems[i].ProblemID == problemID {
			return &c.Problems[i]
		}
	}
	return nil
}

// AllDone reports whether every participant has finished or forfeited.
func (c *Contest) AllDone() bool {
	for i := range c.Participants {
		if !c.Participants[i].Done() {
			return false
		}
	}
	return len(c.Participants) > 0
}

// Complete transitions the contest to completed and records the winner.
// It is idempotent: a contest that is already completed is left untouched.
func (c *Contest) Complete(now time.Time) {
	if c.Status == ContestStatusCompleted {
		return
	}
	c.Status = ContestStatusCompleted
	c.CompletedAt = &now
	if w := c.DetermineWinner(); w != nil {
		c.WinnerID = &w.UserID
	}
}

// DetermineWinner applies the total order over participants:
//  1. a forfeited participant always ranks below a non-forfeited one
//  2. questionsCompleted descending
//  3. finalScore descending, ignoring differences within FinalScoreEpsilon
//  4. earlier finishTime wins
//
// When both participants forfeited the earlier data-order participant is
// the documented fallback.
func (c *Contest) DetermineWinner() *Participant {
	if len(c.Participants) == 0 {
		return nil
	}
	order := make([]int, len(c.Participants))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(x, y int) bool {
		a, b := &c.Participants[order[x]], &c.Participants[order[y]]
		if a.Forfeited != b.Forfeited {
			return !a.Forfeited
		}
		if a.QuestionsCompleted != b.QuestionsCompleted {
			return a.QuestionsCompleted > b.QuestionsCompleted
		}
		if diff := a.FinalScore - b.FinalScore; diff > FinalScoreEpsilon || diff < -FinalScoreEpsilon {
			return a.FinalScore > b.FinalScore
		}
		return earlierFinish(a.FinishTime, b.FinishTime)
	})
	return &c.Participants[order[0]]
}

// earlierFinish treats a missing finish time as later than any recorded one.
func earlierFinish(a, b *time.Time) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return a.Before(*b)
	}
}

// Participant is a user's state within one contest. Submissions are
// append-only; the lifecycle flags finished and forfeited are terminal
// and mutually exclusive.
type Participant struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ContestID uuid.UUID `json:"contest_id" gorm:"type:uuid;not null;index"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`

	Submissions []Submission `json:"submissions" gorm:"foreignKey:ParticipantID"`

	FinalScore         float64    `json:"final_score" gorm:"not null;default:0"`
	QuestionsCompleted int        `json:"questions_completed" gorm:"not null;default:0"`
	Finished           bool       `json:"finished" gorm:"not null;default:false"`
	Forfeited          bool       `json:"forfeited" gorm:"not null;default:false"`
	FinishTime         *time.Time `json:"finish_time"`
	CreatedAt          time.Time  `json:"-"`

	// Relationships
	User User `json:"user" gorm:"foreignKey:UserID"`
}

// TableName specifies the table name for GORM
func (Participant) TableName() string {
	return "contest_participants"
}

// Done reports whether the participant has reached a terminal state.
func (p *Participant) Done() bool {
	return p.Finished || p.Forfeited
}

// RecomputeAggregates rederives questionsCompleted and finalScore from the
// submission ledger. A problem counts as completed once any submission for
// it passed every test; finalScore is the mean of score.total over accepted
// submissions only, so it is not monotonic.
func (p *Participant) RecomputeAggregates() {
	solved := make(map[string]bool)
	var acceptedTotal float64
	var acceptedCount int
	for i := range p.Submissions {
		sub := &p.Submissions[i]
		if sub.Accepted() {
			solved[sub.ProblemID] = true
			acceptedTotal += sub.Score.Total
			acceptedCount++
		}
	}
	p.QuestionsCompleted = len(solved)
	if acceptedCount > 0 {
		p.FinalScore = acceptedTotal / float64(acceptedCount)
	} else {
		p.FinalScore = 0
	}
}

// Submission is one judged attempt at a contest problem. Immutable once
// appended.
type Submission struct {
	ID            uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ParticipantID uuid.UUID `json:"-" gorm:"type:uuid;not null;index"`
	ProblemID     string    `json:"problem_id" gorm:"not null;index"`
	Code          string    `json:"code" gorm:"type:text;not null"`
	Language      Language  `json:"language" gorm:"type:varchar(10);not null"`
	SubmittedAt   time.Time `json:"submitted_at" gorm:"not null"`

	TestResults RunSummary `json:"test_results" gorm:"embedded;embeddedPrefix:result_"`
	Score       Score      `json:"score" gorm:"embedded;embeddedPrefix:score_"`

	// Error carries the judge failure message for attempts that never ran.
	Error string `json:"error,omitempty"`
}

// TableName specifies the table name for GORM
func (Submission) TableName() string {
	return "contest_submissions"
}

// Accepted reports whether the submission passed every sample test.
func (s *Submission) Accepted() bool {
	return s.TestResults.Total > 0 && s.TestResults.Passed == s.TestResults.Total
}

// ContestProblem is an immutable snapshot of a bank problem taken at
// contest creation.
type ContestProblem struct {
	ID        uuid.UUID `json:"-" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ContestID uuid.UUID `json:"-" gorm:"type:uuid;not null;index"`

	ProblemID     string         `json:"id" gorm:"not null"`
	Name          string         `json:"name" gorm:"not null"`
	Rating        int            `json:"rating"`
	Difficulty    string         `json:"difficulty"`
	Tags          pq.StringArray `json:"tags" gorm:"type:text[]"`
	TimeLimitMs   int            `json:"time_limit"`
	MemoryLimitMB int            `json:"memory_limit"`
	Statement     string         `json:"statement" gorm:"type:text"`
	InputFormat   string         `json:"input_format" gorm:"type:text"`
	OutputFormat  string         `json:"output_format" gorm:"type:text"`
	SampleTests   SampleTests    `json:"sample_tests" gorm:"type:jsonb"`
	OrderIndex    int            `json:"order_index" gorm:"not null"`
}

// TableName specifies the table name for GORM
func (ContestProblem) TableName() string {
	return "contest_problems"
}

// ContestRepository defines the interface for contest data access.
// Update must honor the optimistic-lock discipline: it fails with
// ErrConcurrencyConflict when the loaded version is stale.
type ContestRepository interface {
	Create(contest *Contest) error
	FindByID(id uuid.UUID) (*Contest, error)
	FindByRoomID(roomID uuid.UUID) (*Contest, error)
	ExistsByRoomID(roomID uuid.UUID) (bool, error)
	FindActiveExpired(now time.Time) ([]Contest, error)
	Update(contest *Contest) error
	StatsByUser(userID uuid.UUID) (*UserContestStats, error)
}

// UserContestStats summarizes a user's contest history.
type UserContestStats struct {
	TotalContests int `json:"total_contests"`
	Wins          int `json:"wins"`
	Losses        int `json:"losses"`
	Forfeits      int `json:"forfeits"`
}
