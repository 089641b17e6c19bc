package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/codeclash/backend/internal/domain"
	"github.com/codeclash/backend/internal/infrastructure"
	"github.com/codeclash/backend/internal/judge"
	"github.com/codeclash/backend/internal/scoring"
)

// ContestService owns the contest lifecycle: creation from a room, the
// submission pipeline, participant-initiated endings, and expiry. Two
// participants hit the same aggregate concurrently, so every mutation goes
// through an optimistic-lock commit loop; the long judge round-trip never
// holds the critical section.
type ContestService struct {
	contestRepo domain.ContestRepository
	roomRepo    domain.RoomRepository
	problemRepo domain.ProblemRepository
	runner      judge.Runner
	notifier    domain.Notifier
	metrics     *infrastructure.TelemetryMetrics
	tracer      trace.Tracer
	logger      *zap.Logger

	maxCommitRetries int
	now              func() time.Time
}

// NewContestService creates a new contest service
func NewContestService(
	contestRepo domain.ContestRepository,
	roomRepo domain.RoomRepository,
	problemRepo domain.ProblemRepository,
	runner judge.Runner,
	notifier domain.Notifier,
	metrics *infrastructure.TelemetryMetrics,
	config *infrastructure.ContestConfig,
	tracer trace.Tracer,
	logger *zap.Logger,
) *ContestService {
	return &ContestService{
		contestRepo:      contestRepo,
		roomRepo:         roomRepo,
		problemRepo:      problemRepo,
		runner:           runner,
		notifier:         notifier,
		metrics:          metrics,
		tracer:           tracer,
		logger:           logger,
		maxCommitRetries: config.MaxCommitRetries,
		now:              time.Now,
	}
}

// SubmitCodeRequest represents one code submission
type SubmitCodeRequest struct {
	ProblemID string          `json:"problem_id" binding:"required"`
	Code      string          `json:"code" binding:"required"`
	Language  domain.Language `json:"language" binding:"required"`
}

// SubmitCodeResult is returned to the submitting participant
type SubmitCodeResult struct {
	Submission         *domain.Submission `json:"submission"`
	QuestionsCompleted int                `json:"questions_completed"`
	Finished           bool               `json:"finished"`
	Contest            *domain.Contest    `json:"contest"`
}

// Start creates the contest for a room. Only the room creator may start it,
// the room must hold exactly two participants, and a room gets at most one
// contest ever.
func (s *ContestService) Start(ctx context.Context, userID uuid.UUID, roomCode string) (*domain.Contest, error) {
	ctx, span := s.tracer.Start(ctx, "ContestService.Start")
	defer span.End()

	span.SetAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("room.code", roomCode),
	)

	room, err := s.roomRepo.FindByCode(roomCode)
	if err != nil {
		return nil, err
	}
	if room.CreatedBy != userID {
		return nil, domain.ErrNotRoomCreator
	}
	if len(room.Participants) != domain.RoomMaxParticipants {
		return nil, domain.ErrRoomNotReady
	}

	exists, err := s.contestRepo.ExistsByRoomID(room.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.ErrContestExists
	}

	minRating, maxRating := room.Settings.Difficulty.RatingRange()
	problems, err := s.problemRepo.Sample(room.Settings.QuestionsCount, minRating, maxRating)
	if err != nil {
		return nil, err
	}
	if len(problems) < room.Settings.QuestionsCount {
		return nil, domain.ErrNotEnoughProblems
	}

	now := s.now()
	contest := &domain.Contest{
		RoomID:          room.ID,
		StartTime:       now,
		EndTime:         now.Add(time.Duration(room.Settings.TimeLimitMinutes) * time.Minute),
		DurationMinutes: room.Settings.TimeLimitMinutes,
		Status:          domain.ContestStatusActive,
	}
	for i := range problems {
		contest.Problems = append(contest.Problems, problems[i].Snapshot(i+1))
	}
	for i := range room.Participants {
		contest.Participants = append(contest.Participants, domain.Participant{
			UserID: room.Participants[i].UserID,
		})
	}

	if err := s.contestRepo.Create(contest); err != nil {
		return nil, err
	}

	room.Status = domain.RoomStatusActive
	if err := s.roomRepo.Update(room); err != nil {
		s.logger.Error("Failed to mark room active", zap.Error(err),
			zap.String("room_code", room.Code))
	}

	s.metrics.ActiveContests.Add(ctx, 1)
	s.logger.Info("Contest started",
		zap.String("contest_id", contest.ID.String()),
		zap.String("room_code", room.Code),
		zap.Int("problems", len(contest.Problems)),
		zap.Time("end_time", contest.EndTime),
	)

	return contest, nil
}

// Get returns the contest for a room. Only participants may view it. An
// active contest found past its end time is lazily completed on read.
func (s *ContestService) Get(ctx context.Context, userID uuid.UUID, roomCode string) (*domain.Contest, error) {
	ctx, span := s.tracer.Start(ctx, "ContestService.Get")
	defer span.End()

	span.SetAttributes(attribute.String("room.code", roomCode))

	room, err := s.roomRepo.FindByCode(roomCode)
	if err != nil {
		return nil, err
	}
	contest, err := s.contestRepo.FindByRoomID(room.ID)
	if err != nil {
		return nil, err
	}
	if contest.ParticipantByUser(userID) == nil {
		return nil, domain.ErrNotParticipant
	}

	if contest.Status == domain.ContestStatusActive && contest.IsExpired(s.now()) {
		return s.completeExpired(ctx, room)
	}
	return contest, nil
}

// Submit judges one code submission and records it on the participant's
// ledger. The judge round-trip happens before the commit loop; preconditions
// are re-validated at commit time because the contest may have completed or
// expired while the code was being judged. In that race the attempt is still
// recorded but never resurrects lifecycle transitions.
func (s *ContestService) Submit(ctx context.Context, userID uuid.UUID, roomCode string, req *SubmitCodeRequest) (*SubmitCodeResult, error) {
	ctx, span := s.tracer.Start(ctx, "ContestService.Submit")
	defer span.End()

	span.SetAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("room.code", roomCode),
		attribute.String("problem.id", req.ProblemID),
		attribute.String("language", string(req.Language)),
	)

	if req.ProblemID == "" || req.Code == "" || req.Language == "" {
		return nil, domain.ErrMissingFields
	}
	if !req.Language.Valid() {
		return nil, domain.ErrUnsupportedLanguage
	}

	room, err := s.roomRepo.FindByCode(roomCode)
	if err != nil {
		return nil, err
	}
	contest, err := s.contestRepo.FindByRoomID(room.ID)
	if err != nil {
		return nil, err
	}

	// Synchronous precondition checks, before the expensive judge call.
	if contest.Status != domain.ContestStatusActive {
		return nil, domain.ErrContestNotActive
	}
	if contest.IsExpired(s.now()) {
		if _, err := s.completeExpired(ctx, room); err != nil {
			s.logger.Error("Failed to lazily complete expired contest", zap.Error(err))
		}
		return nil, domain.ErrContestExpired
	}
	participant := contest.ParticipantByUser(userID)
	if participant == nil {
		return nil, domain.ErrNotParticipant
	}
	if participant.Done() {
		return nil, domain.ErrParticipantDone
	}
	problem := contest.ProblemByID(req.ProblemID)
	if problem == nil {
		return nil, domain.ErrProblemNotInContest
	}

	// The dominant latency source. No contest lock is held here.
	submission := s.judgeSubmission(ctx, req, problem)

	var (
		recorded        *domain.Submission
		completedNow    bool
		solvedNow       bool
		questionsSolved int
		finished        bool
	)

	updated, err := s.commit(ctx, room.ID, func(c *domain.Contest) ([]domain.Event, error) {
		completedNow, solvedNow, finished = false, false, false

		p := c.ParticipantByUser(userID)
		if p == nil {
			return nil, domain.ErrNotParticipant
		}

		now := s.now()
		// The contest may have moved on during the judge round-trip. The
		// attempt is still appended, but a closed lifecycle stays closed.
		lifecycleOpen := c.Status == domain.ContestStatusActive && !c.IsExpired(now) && !p.Done()

		sub := submission
		sub.SubmittedAt = now
		p.Submissions = append(p.Submissions, sub)
		before := p.QuestionsCompleted
		p.RecomputeAggregates()
		solvedNow = p.QuestionsCompleted > before
		questionsSolved = p.QuestionsCompleted
		recorded = &p.Submissions[len(p.Submissions)-1]

		events := []domain.Event{domain.SubmissionReceivedEvent{
			Room:      room.Code,
			UserID:    userID.String(),
			ProblemID: req.ProblemID,
		}}

		if lifecycleOpen && p.QuestionsCompleted == len(c.Problems) {
			p.Finished = true
			p.FinishTime = &now
			finished = true
			events = append(events, domain.ParticipantFinishedEvent{
				Room:   room.Code,
				UserID: userID.String(),
			})
			if c.AllDone() {
				c.Complete(now)
				completedNow = true
				events = append(events, domain.ContestEndedEvent{Room: room.Code, Contest: c})
			}
		}
		return events, nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.SubmissionsJudged.Add(ctx, 1)
	if solvedNow {
		s.metrics.ProblemsSolved.Add(ctx, 1)
	}
	if completedNow {
		s.metrics.ActiveContests.Add(ctx, -1)
		s.completeRoom(room)
	}

	s.logger.Info("Submission recorded",
		zap.String("contest_id", updated.ID.String()),
		zap.String("user_id", userID.String()),
		zap.String("problem_id", req.ProblemID),
		zap.String("verdict", string(recorded.TestResults.Verdict)),
		zap.Float64("score", recorded.Score.Total),
		zap.Bool("finished", finished),
	)

	return &SubmitCodeResult{
		Submission:         recorded,
		QuestionsCompleted: questionsSolved,
		Finished:           finished,
		Contest:            updated,
	}, nil
}

// judgeSubmission runs the sample tests and grades the run. A judge outage
// degrades to a zero-score failed submission so the attempt is never
// silently dropped.
func (s *ContestService) judgeSubmission(ctx context.Context, req *SubmitCodeRequest, problem *domain.ContestProblem) domain.Submission {
	submission := domain.Submission{
		ProblemID: req.ProblemID,
		Code:      req.Code,
		Language:  req.Language,
	}

	summary, err := s.runner.RunTestCases(ctx, req.Code, req.Language, problem.SampleTests)
	if err != nil {
		s.logger.Warn("Judge unavailable for submission",
			zap.String("problem_id", req.ProblemID),
			zap.Error(err),
		)
		submission.TestResults = domain.RunSummary{
			Total:   len(problem.SampleTests),
			Verdict: domain.VerdictUnknown,
		}
		submission.Score = scoring.Zero()
		submission.Error = err.Error()
		return submission
	}

	submission.TestResults = *summary
	submission.Score = scoring.Score(summary, req.Code, req.Language)
	return submission
}

// End finishes the calling participant. With forfeit the contest completes
// immediately and the opponent wins unconditionally; without it the contest
// completes only once everyone is finished or forfeited. Calling End twice
// is rejected without touching the recorded finish time.
func (s *ContestService) End(ctx context.Context, userID uuid.UUID, roomCode string, forfeit bool) (*domain.Contest, bool, error) {
	ctx, span := s.tracer.Start(ctx, "ContestService.End")
	defer span.End()

	span.SetAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("room.code", roomCode),
		attribute.Bool("forfeit", forfeit),
	)

	room, err := s.roomRepo.FindByCode(roomCode)
	if err != nil {
		return nil, false, err
	}

	var completedNow bool
	updated, err := s.commit(ctx, room.ID, func(c *domain.Contest) ([]domain.Event, error) {
		completedNow = false

		if c.Status != domain.ContestStatusActive {
			return nil, domain.ErrContestNotActive
		}
		p := c.ParticipantByUser(userID)
		if p == nil {
			return nil, domain.ErrNotParticipant
		}
		if p.Done() {
			return nil, domain.ErrParticipantDone
		}

		now := s.now()
		events := []domain.Event{domain.ParticipantFinishedEvent{
			Room:    room.Code,
			UserID:  userID.String(),
			Forfeit: forfeit,
		}}

		if forfeit {
			p.Forfeited = true
			p.FinishTime = &now
			c.Complete(now)
			completedNow = true
			events = append(events, domain.ContestEndedEvent{Room: room.Code, Contest: c})
			return events, nil
		}

		p.Finished = true
		p.FinishTime = &now
		if c.AllDone() {
			c.Complete(now)
			completedNow = true
			events = append(events, domain.ContestEndedEvent{Room: room.Code, Contest: c})
		}
		return events, nil
	})
	if err != nil {
		return nil, false, err
	}

	if completedNow {
		s.metrics.ActiveContests.Add(ctx, -1)
		s.completeRoom(room)
	}

	s.logger.Info("Participant ended contest",
		zap.String("contest_id", updated.ID.String()),
		zap.String("user_id", userID.String()),
		zap.Bool("forfeit", forfeit),
		zap.Bool("contest_completed", completedNow),
	)

	waiting := updated.Status != domain.ContestStatusCompleted
	return updated, waiting, nil
}

// ExpireOverdue force-completes every active contest past its end time.
// It is the idempotent reconciliation behind the periodic sweep and shares
// the commit discipline with interactive operations.
func (s *ContestService) ExpireOverdue(ctx context.Context) (int, error) {
	ctx, span := s.tracer.Start(ctx, "ContestService.ExpireOverdue")
	defer span.End()

	overdue, err := s.contestRepo.FindActiveExpired(s.now())
	if err != nil {
		return 0, err
	}

	var swept int
	for i := range overdue {
		room, err := s.roomRepo.FindByID(overdue[i].RoomID)
		if err != nil {
			s.logger.Error("Expiry sweep: room lookup failed",
				zap.String("contest_id", overdue[i].ID.String()),
				zap.Error(err),
			)
			continue
		}
		if _, err := s.completeExpired(ctx, room); err != nil {
			s.logger.Error("Expiry sweep: completion failed",
				zap.String("contest_id", overdue[i].ID.String()),
				zap.Error(err),
			)
			continue
		}
		swept++
	}

	if swept > 0 {
		s.logger.Info("Expiry sweep completed contests", zap.Int("count", swept))
	}
	return swept, nil
}

// completeExpired transitions one overdue contest to completed, computing
// the winner from whatever state the participants are in.
func (s *ContestService) completeExpired(ctx context.Context, room *domain.Room) (*domain.Contest, error) {
	var completedNow bool
	updated, err := s.commit(ctx, room.ID, func(c *domain.Contest) ([]domain.Event, error) {
		completedNow = false
		if c.Status == domain.ContestStatusCompleted {
			return nil, nil
		}
		c.Complete(s.now())
		completedNow = true
		return []domain.Event{domain.ContestEndedEvent{Room: room.Code, Contest: c}}, nil
	})
	if err != nil {
		return nil, err
	}
	if completedNow {
		s.metrics.ActiveContests.Add(ctx, -1)
		s.completeRoom(room)
	}
	return updated, nil
}

// completeRoom flips the room record once its contest is over. Best-effort.
func (s *ContestService) completeRoom(room *domain.Room) {
	room.Status = domain.RoomStatusCompleted
	if err := s.roomRepo.Update(room); err != nil {
		s.logger.Error("Failed to mark room completed",
			zap.String("room_code", room.Code),
			zap.Error(err),
		)
	}
}

// commit runs one load-mutate-persist round under the optimistic lock,
// retrying on version conflicts by reloading and reapplying the mutation.
// Events are published only after a successful persist, and never block it.
func (s *ContestService) commit(ctx context.Context, roomID uuid.UUID, mutate func(*domain.Contest) ([]domain.Event, error)) (*domain.Contest, error) {
	var lastErr error
	for attempt := 0; attempt < s.maxCommitRetries; attempt++ {
		contest, err := s.contestRepo.FindByRoomID(roomID)
		if err != nil {
			return nil, err
		}

		events, err := mutate(contest)
		if err != nil {
			return nil, err
		}

		if err := s.contestRepo.Update(contest); err != nil {
			if errors.Is(err, domain.ErrConcurrencyConflict) {
				lastErr = err
				s.logger.Debug("Contest commit conflict, retrying",
					zap.String("contest_id", contest.ID.String()),
					zap.Int("attempt", attempt+1),
				)
				continue
			}
			return nil, err
		}

		for _, event := range events {
			s.notifier.Publish(ctx, event)
		}
		return contest, nil
	}
	return nil, lastErr
}
