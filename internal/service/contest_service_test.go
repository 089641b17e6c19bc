package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/codeclash/backend/internal/domain"
	"github.com/codeclash/backend/internal/infrastructure"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeContestRepo keeps a single contest in memory and emulates the
// optimistic-lock discipline of the real store: Update fails with
// ErrConcurrencyConflict when the loaded version is stale, plus any
// injected conflicts.
type fakeContestRepo struct {
	contest   *domain.Contest
	conflicts int
	updates   int
}

func cloneContest(c *domain.Contest) *domain.Contest {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Problems = append([]domain.ContestProblem(nil), c.Problems...)
	clone.Participants = make([]domain.Participant, len(c.Participants))
	for i := range c.Participants {
		clone.Participants[i] = c.Participants[i]
		clone.Participants[i].Submissions = append([]domain.Submission(nil), c.Participants[i].Submissions...)
	}
	return &clone
}

func (r *fakeContestRepo) Create(contest *domain.Contest) error {
	if contest.ID == uuid.Nil {
		contest.ID = uuid.New()
	}
	r.contest = cloneContest(contest)
	return nil
}

func (r *fakeContestRepo) FindByID(id uuid.UUID) (*domain.Contest, error) {
	if r.contest == nil || r.contest.ID != id {
		return nil, domain.ErrContestNotFound
	}
	return cloneContest(r.contest), nil
}

func (r *fakeContestRepo) FindByRoomID(roomID uuid.UUID) (*domain.Contest, error) {
	if r.contest == nil || r.contest.RoomID != roomID {
		return nil, domain.ErrContestNotFound
	}
	return cloneContest(r.contest), nil
}

func (r *fakeContestRepo) ExistsByRoomID(roomID uuid.UUID) (bool, error) {
	return r.contest != nil && r.contest.RoomID == roomID, nil
}

func (r *fakeContestRepo) FindActiveExpired(now time.Time) ([]domain.Contest, error) {
	if r.contest != nil && r.contest.Status == domain.ContestStatusActive && r.contest.IsExpired(now) {
		return []domain.Contest{*cloneContest(r.contest)}, nil
	}
	return nil, nil
}

func (r *fakeContestRepo) Update(contest *domain.Contest) error {
	r.updates++
	if r.conflicts > 0 {
		r.conflicts--
		return domain.ErrConcurrencyConflict
	}
	if r.contest == nil || contest.Version != r.contest.Version {
		return domain.ErrConcurrencyConflict
	}
	contest.Version++
	r.contest = cloneContest(contest)
	return nil
}

func (r *fakeContestRepo) StatsByUser(userID uuid.UUID) (*domain.UserContestStats, error) {
	return &domain.UserContestStats{}, nil
}

type fakeRoomRepo struct {
	rooms map[string]*domain.Room
}

func (r *fakeRoomRepo) Create(room *domain.Room) error { r.rooms[room.Code] = room; return nil }

func (r *fakeRoomRepo) FindByCode(code string) (*domain.Room, error) {
	room, ok := r.rooms[code]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return room, nil
}

func (r *fakeRoomRepo) FindByID(id uuid.UUID) (*domain.Room, error) {
	for _, room := range r.rooms {
		if room.ID == id {
			return room, nil
		}
	}
	return nil, domain.ErrRoomNotFound
}

func (r *fakeRoomRepo) FindPublicWaiting(limit int) ([]domain.Room, error) { return nil, nil }

func (r *fakeRoomRepo) AddParticipant(roomID uuid.UUID, p *domain.RoomParticipant) error {
	return nil
}

func (r *fakeRoomRepo) RemoveParticipant(roomID, userID uuid.UUID) error {
	for _, room := range r.rooms {
		if room.ID != roomID {
			continue
		}
		for i, p := range room.Participants {
			if p.UserID == userID {
				room.Participants = append(room.Participants[:i], room.Participants[i+1:]...)
				return nil
			}
		}
	}
	return domain.ErrNotParticipant
}

func (r *fakeRoomRepo) Update(room *domain.Room) error { return nil }

func (r *fakeRoomRepo) Delete(id uuid.UUID) error {
	for code, room := range r.rooms {
		if room.ID == id {
			delete(r.rooms, code)
			return nil
		}
	}
	return domain.ErrRoomNotFound
}

type fakeProblemRepo struct {
	problems  []domain.Problem
	minRating int
	maxRating int
}

func (r *fakeProblemRepo) Create(problem *domain.Problem) error { return nil }

func (r *fakeProblemRepo) CreateBatch(problems []domain.Problem) error { return nil }

func (r *fakeProblemRepo) FindByID(id uuid.UUID) (*domain.Problem, error) {
	return nil, domain.ErrProblemNotFound
}

func (r *fakeProblemRepo) FindAll() ([]domain.Problem, error) { return r.problems, nil }

func (r *fakeProblemRepo) Sample(count, minRating, maxRating int) ([]domain.Problem, error) {
	r.minRating, r.maxRating = minRating, maxRating
	if count > len(r.problems) {
		count = len(r.problems)
	}
	return r.problems[:count], nil
}

func (r *fakeProblemRepo) Count() (int64, error) { return int64(len(r.problems)), nil }

// fakeRunner returns a scripted summary. onRun fires before returning so a
// test can mutate shared state mid-judging.
type fakeRunner struct {
	summary *domain.RunSummary
	err     error
	onRun   func()
}

func (f *fakeRunner) RunTestCases(ctx context.Context, code string, language domain.Language, tests []domain.SampleTest) (*domain.RunSummary, error) {
	if f.onRun != nil {
		f.onRun()
	}
	if f.err != nil {
		return nil, f.err
	}
	clone := *f.summary
	return &clone, nil
}

type recordingNotifier struct {
	events []domain.Event
}

func (n *recordingNotifier) Publish(ctx context.Context, event domain.Event) {
	n.events = append(n.events, event)
}

func (n *recordingNotifier) kinds() []string {
	kinds := make([]string, len(n.events))
	for i, e := range n.events {
		kinds[i] = e.Kind()
	}
	return kinds
}

func noopMetrics(t *testing.T) *infrastructure.TelemetryMetrics {
	t.Helper()
	tel := &infrastructure.Telemetry{
		Tracer: otel.Tracer("test"),
		Meter:  otel.Meter("test"),
	}
	metrics, err := tel.CreateMetrics()
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}
	return metrics
}

type fixture struct {
	service  *ContestService
	contests *fakeContestRepo
	rooms    *fakeRoomRepo
	problems *fakeProblemRepo
	runner   *fakeRunner
	notifier *recordingNotifier

	room  *domain.Room
	alice uuid.UUID
	bob   uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	alice := uuid.New()
	bob := uuid.New()
	room := &domain.Room{
		ID:        uuid.New(),
		Code:      "AB12CD",
		CreatedBy: alice,
		Status:    domain.RoomStatusWaiting,
		Settings: domain.RoomSettings{
			QuestionsCount:   1,
			TimeLimitMinutes: 60,
			Difficulty:       domain.Band800to1200,
		},
		Participants: []domain.RoomParticipant{
			{UserID: alice},
			{UserID: bob},
		},
	}

	f := &fixture{
		contests: &fakeContestRepo{},
		rooms:    &fakeRoomRepo{rooms: map[string]*domain.Room{room.Code: room}},
		problems: &fakeProblemRepo{problems: []domain.Problem{
			{
				ID:     uuid.New(),
				Name:   "Sum of Two Numbers",
				Slug:   "sum-of-two-numbers",
				Rating: 800,
				SampleTests: domain.SampleTests{
					{Input: "2 3", Output: "5"},
					{Input: "-7 7", Output: "0"},
				},
				Verified:     true,
				QualityScore: 5,
			},
		}},
		runner: &fakeRunner{summary: &domain.RunSummary{
			Passed: 2, Total: 2,
			ExecutionTime: 0.5,
			MemoryKB:      8000,
			Verdict:       domain.VerdictAccepted,
		}},
		notifier: &recordingNotifier{},
		room:     room,
		alice:    alice,
		bob:      bob,
	}

	f.service = NewContestService(
		f.contests, f.rooms, f.problems,
		f.runner, f.notifier, noopMetrics(t),
		&infrastructure.ContestConfig{SweepInterval: time.Minute, MaxCommitRetries: 3},
		otel.Tracer("test"), zap.NewNop(),
	)
	f.service.now = func() time.Time { return fixedNow }
	return f
}

// started creates a fixture with the contest already running.
func started(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t)
	if _, err := f.service.Start(context.Background(), f.alice, f.room.Code); err != nil {
		t.Fatalf("failed to start contest: %v", err)
	}
	return f
}

func submitRequest(f *fixture) *SubmitCodeRequest {
	return &SubmitCodeRequest{
		ProblemID: f.contests.contest.Problems[0].ProblemID,
		Code:      "int main() {}",
		Language:  domain.LanguageCPP,
	}
}

func TestStartContest(t *testing.T) {
	f := newFixture(t)

	contest, err := f.service.Start(context.Background(), f.alice, f.room.Code)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if contest.Status != domain.ContestStatusActive {
		t.Fatalf("expected active contest, got %s", contest.Status)
	}
	if len(contest.Problems) != 1 {
		t.Fatalf("expected 1 snapshot problem, got %d", len(contest.Problems))
	}
	if len(contest.Participants) != 2 {
		t.Fatalf("expected 2 participants, got %d", len(contest.Participants))
	}
	if !contest.EndTime.Equal(fixedNow.Add(60 * time.Minute)) {
		t.Fatalf("expected end time 60 minutes out, got %v", contest.EndTime)
	}
	if f.problems.minRating != 800 || f.problems.maxRating != 1200 {
		t.Fatalf("expected sampling band 800-1200, got %d-%d", f.problems.minRating, f.problems.maxRating)
	}
	if f.room.Status != domain.RoomStatusActive {
		t.Fatalf("expected room flipped to active, got %s", f.room.Status)
	}
}

func TestStartContestRejections(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(f *fixture)
		caller  func(f *fixture) uuid.UUID
		want    error
	}{
		{
			name:   "only the creator may start",
			caller: func(f *fixture) uuid.UUID { return f.bob },
			want:   domain.ErrNotRoomCreator,
		},
		{
			name: "room must have exactly two participants",
			prepare: func(f *fixture) {
				f.room.Participants = f.room.Participants[:1]
			},
			caller: func(f *fixture) uuid.UUID { return f.alice },
			want:   domain.ErrRoomNotReady,
		},
		{
			name: "one contest per room",
			prepare: func(f *fixture) {
				if _, err := f.service.Start(context.Background(), f.alice, f.room.Code); err != nil {
					t.Fatalf("first start failed: %v", err)
				}
			},
			caller: func(f *fixture) uuid.UUID { return f.alice },
			want:   domain.ErrContestExists,
		},
		{
			name: "bank too small for the requested count",
			prepare: func(f *fixture) {
				f.room.Settings.QuestionsCount = 5
			},
			caller: func(f *fixture) uuid.UUID { return f.alice },
			want:   domain.ErrNotEnoughProblems,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.prepare != nil {
				tt.prepare(f)
			}
			_, err := f.service.Start(context.Background(), tt.caller(f), f.room.Code)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestSubmitAcceptedFinishesParticipant(t *testing.T) {
	f := started(t)

	result, err := f.service.Submit(context.Background(), f.alice, f.room.Code, submitRequest(f))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Submission.Accepted() {
		t.Fatalf("expected accepted submission")
	}
	if result.QuestionsCompleted != 1 {
		t.Fatalf("expected 1 question completed, got %d", result.QuestionsCompleted)
	}
	if !result.Finished {
		t.Fatalf("participant who solved every problem must be finished")
	}
	if result.Contest.Status != domain.ContestStatusActive {
		t.Fatalf("contest must stay active while the opponent is running")
	}

	p := f.contests.contest.ParticipantByUser(f.alice)
	if !p.Finished || p.FinishTime == nil {
		t.Fatalf("finish not persisted: %+v", p)
	}
	if p.FinalScore <= 0 {
		t.Fatalf("expected positive final score, got %v", p.FinalScore)
	}

	wantKinds := []string{domain.EventSubmissionReceived, domain.EventParticipantFinished}
	got := f.notifier.kinds()
	if len(got) != len(wantKinds) || got[0] != wantKinds[0] || got[1] != wantKinds[1] {
		t.Fatalf("expected events %v, got %v", wantKinds, got)
	}
}

func TestSubmitWrongAnswerRecordedWithoutFinishing(t *testing.T) {
	f := started(t)
	f.runner.summary = &domain.RunSummary{
		Passed: 1, Total: 2,
		Verdict: domain.VerdictWrongAnswer,
	}

	result, err := f.service.Submit(context.Background(), f.alice, f.room.Code, submitRequest(f))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Finished {
		t.Fatalf("rejected submission must not finish the participant")
	}
	if result.QuestionsCompleted != 0 {
		t.Fatalf("expected 0 questions completed, got %d", result.QuestionsCompleted)
	}

	p := f.contests.contest.ParticipantByUser(f.alice)
	if len(p.Submissions) != 1 {
		t.Fatalf("rejected attempt must still be recorded")
	}
	if p.FinalScore != 0 {
		t.Fatalf("rejected attempts must not contribute to the final score, got %v", p.FinalScore)
	}
}

func TestSubmitJudgeOutageRecordsZeroScore(t *testing.T) {
	f := started(t)
	f.runner.err = domain.ErrJudgeUnavailable

	result, err := f.service.Submit(context.Background(), f.alice, f.room.Code, submitRequest(f))
	if err != nil {
		t.Fatalf("judge outage must degrade, not fail the request: %v", err)
	}

	sub := result.Submission
	if sub.Error == "" {
		t.Fatalf("expected judge error recorded on the submission")
	}
	if sub.Score.Total != 0 {
		t.Fatalf("unjudged submission must score zero, got %v", sub.Score.Total)
	}
	if sub.Accepted() {
		t.Fatalf("unjudged submission must not be accepted")
	}
	if result.Finished {
		t.Fatalf("unjudged submission must not finish the participant")
	}
}

func TestSubmitValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *fixture, req *SubmitCodeRequest) uuid.UUID
		want   error
	}{
		{
			name: "missing fields",
			mutate: func(f *fixture, req *SubmitCodeRequest) uuid.UUID {
				req.Code = ""
				return f.alice
			},
			want: domain.ErrMissingFields,
		},
		{
			name: "unsupported language",
			mutate: func(f *fixture, req *SubmitCodeRequest) uuid.UUID {
				req.Language = "rust"
				return f.alice
			},
			want: domain.ErrUnsupportedLanguage,
		},
		{
			name: "non-participant",
			mutate: func(f *fixture, req *SubmitCodeRequest) uuid.UUID {
				return uuid.New()
			},
			want: domain.ErrNotParticipant,
		},
		{
			name: "problem outside the snapshot",
			mutate: func(f *fixture, req *SubmitCodeRequest) uuid.UUID {
				req.ProblemID = uuid.NewString()
				return f.alice
			},
			want: domain.ErrProblemNotInContest,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			f := started(t)
			req := submitRequest(f)
			caller := tt.mutate(f, req)
			_, err := f.service.Submit(context.Background(), caller, f.room.Code, req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestSubmitAfterExpiryRejectedAndCompletes(t *testing.T) {
	f := started(t)
	f.service.now = func() time.Time { return fixedNow.Add(2 * time.Hour) }

	_, err := f.service.Submit(context.Background(), f.alice, f.room.Code, submitRequest(f))
	if !errors.Is(err, domain.ErrContestExpired) {
		t.Fatalf("expected ErrContestExpired, got %v", err)
	}
	if f.contests.contest.Status != domain.ContestStatusCompleted {
		t.Fatalf("expired contest must be lazily completed")
	}
}

func TestSubmitAfterFinishRejected(t *testing.T) {
	f := started(t)
	if _, err := f.service.Submit(context.Background(), f.alice, f.room.Code, submitRequest(f)); err != nil {
		t.Fatalf("first submission failed: %v", err)
	}

	_, err := f.service.Submit(context.Background(), f.alice, f.room.Code, submitRequest(f))
	if !errors.Is(err, domain.ErrParticipantDone) {
		t.Fatalf("expected ErrParticipantDone, got %v", err)
	}
}

func TestSubmitDuringCompletionRecordsButNeverResurrects(t *testing.T) {
	f := started(t)

	// Opponent forfeits while the judge round-trip is in flight. The contest
	// completes; the late submission must land on the ledger without
	// reopening the lifecycle.
	f.runner.onRun = func() {
		f.runner.onRun = nil
		if _, _, err := f.service.End(context.Background(), f.bob, f.room.Code, true); err != nil {
			t.Fatalf("forfeit failed: %v", err)
		}
	}

	result, err := f.service.Submit(context.Background(), f.alice, f.room.Code, submitRequest(f))
	if err != nil {
		t.Fatalf("late submission must still be recorded: %v", err)
	}

	if result.Contest.Status != domain.ContestStatusCompleted {
		t.Fatalf("contest must stay completed")
	}
	if result.Finished {
		t.Fatalf("closed lifecycle must not emit a finish")
	}

	p := f.contests.contest.ParticipantByUser(f.alice)
	if len(p.Submissions) != 1 {
		t.Fatalf("late submission must be appended to the ledger")
	}
	if p.Finished {
		t.Fatalf("participant must not be finished after lifecycle closed")
	}
	if winner := f.contests.contest.WinnerID; winner == nil || *winner != f.alice {
		t.Fatalf("forfeit winner must be unchanged by the late submission")
	}
}

func TestSubmitRetriesOnConflict(t *testing.T) {
	f := started(t)
	f.contests.conflicts = 2

	if _, err := f.service.Submit(context.Background(), f.alice, f.room.Code, submitRequest(f)); err != nil {
		t.Fatalf("commit must retry past transient conflicts: %v", err)
	}
	if f.contests.updates != 3 {
		t.Fatalf("expected 3 update attempts, got %d", f.contests.updates)
	}

	p := f.contests.contest.ParticipantByUser(f.alice)
	if len(p.Submissions) != 1 {
		t.Fatalf("retried commit must record the submission exactly once, got %d", len(p.Submissions))
	}
}

func TestSubmitFailsAfterRetriesExhausted(t *testing.T) {
	f := started(t)
	f.contests.conflicts = 10

	_, err := f.service.Submit(context.Background(), f.alice, f.room.Code, submitRequest(f))
	if !errors.Is(err, domain.ErrConcurrencyConflict) {
		t.Fatalf("expected ErrConcurrencyConflict after exhausted retries, got %v", err)
	}
}

func TestEndForfeitCompletesImmediately(t *testing.T) {
	f := started(t)

	contest, waiting, err := f.service.End(context.Background(), f.alice, f.room.Code, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if waiting {
		t.Fatalf("forfeit must not wait for the opponent")
	}
	if contest.Status != domain.ContestStatusCompleted {
		t.Fatalf("forfeit must complete the contest, got %s", contest.Status)
	}
	if contest.WinnerID == nil || *contest.WinnerID != f.bob {
		t.Fatalf("opponent must win on forfeit")
	}
	if f.room.Status != domain.RoomStatusCompleted {
		t.Fatalf("room must be flipped to completed")
	}

	got := f.notifier.kinds()
	want := []string{domain.EventParticipantFinished, domain.EventContestEnded}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("expected events %v, got %v", want, got)
	}
}

func TestEndWithoutForfeitWaitsForOpponent(t *testing.T) {
	f := started(t)

	contest, waiting, err := f.service.End(context.Background(), f.alice, f.room.Code, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !waiting {
		t.Fatalf("first finisher must wait for the opponent")
	}
	if contest.Status != domain.ContestStatusActive {
		t.Fatalf("contest must stay active until everyone is done")
	}

	contest, waiting, err = f.service.End(context.Background(), f.bob, f.room.Code, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if waiting {
		t.Fatalf("last finisher must not wait")
	}
	if contest.Status != domain.ContestStatusCompleted {
		t.Fatalf("contest must complete once everyone is done")
	}
}

func TestEndTwiceRejected(t *testing.T) {
	f := started(t)

	if _, _, err := f.service.End(context.Background(), f.alice, f.room.Code, false); err != nil {
		t.Fatalf("first end failed: %v", err)
	}
	_, _, err := f.service.End(context.Background(), f.alice, f.room.Code, false)
	if !errors.Is(err, domain.ErrParticipantDone) {
		t.Fatalf("expected ErrParticipantDone, got %v", err)
	}
}

func TestExpireOverdue(t *testing.T) {
	f := started(t)
	f.service.now = func() time.Time { return fixedNow.Add(2 * time.Hour) }

	swept, err := f.service.ExpireOverdue(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if swept != 1 {
		t.Fatalf("expected 1 swept contest, got %d", swept)
	}
	if f.contests.contest.Status != domain.ContestStatusCompleted {
		t.Fatalf("swept contest must be completed")
	}
	if f.contests.contest.WinnerID == nil {
		t.Fatalf("swept contest must still determine a winner")
	}

	// A second sweep finds nothing.
	swept, err = f.service.ExpireOverdue(context.Background())
	if err != nil || swept != 0 {
		t.Fatalf("expected idempotent sweep, got %d (%v)", swept, err)
	}
}

func TestGetLazilyCompletesExpired(t *testing.T) {
	f := started(t)
	f.service.now = func() time.Time { return fixedNow.Add(2 * time.Hour) }

	contest, err := f.service.Get(context.Background(), f.alice, f.room.Code)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if contest.Status != domain.ContestStatusCompleted {
		t.Fatalf("expired contest must be completed on read")
	}
}

func TestGetRequiresParticipant(t *testing.T) {
	f := started(t)

	_, err := f.service.Get(context.Background(), uuid.New(), f.room.Code)
	if !errors.Is(err, domain.ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
}
