package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func timePtr(t time.Time) *time.Time { return &t }

func acceptedSubmission(problemID string, total float64) Submission {
	return Submission{
		ProblemID:   problemID,
		TestResults: RunSummary{Passed: 2, Total: 2, Verdict: VerdictAccepted},
		Score:       Score{Total: total},
	}
}

func rejectedSubmission(problemID string) Submission {
	return Submission{
		ProblemID:   problemID,
		TestResults: RunSummary{Passed: 1, Total: 2, Verdict: VerdictWrongAnswer},
		Score:       Score{Total: 42},
	}
}

func TestDetermineWinner(t *testing.T) {
	t.Parallel()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	alice := uuid.New()
	bob := uuid.New()

	tests := []struct {
		name string
		a    Participant
		b    Participant
		want uuid.UUID
	}{
		{
			name: "forfeited ranks below non-forfeited regardless of score",
			a:    Participant{UserID: alice, Forfeited: true, QuestionsCompleted: 3, FinalScore: 99},
			b:    Participant{UserID: bob, Finished: true, QuestionsCompleted: 0, FinalScore: 0},
			want: bob,
		},
		{
			name: "more questions completed wins",
			a:    Participant{UserID: alice, Finished: true, QuestionsCompleted: 2, FinalScore: 50},
			b:    Participant{UserID: bob, Finished: true, QuestionsCompleted: 1, FinalScore: 95},
			want: alice,
		},
		{
			name: "higher score wins on equal questions",
			a:    Participant{UserID: alice, Finished: true, QuestionsCompleted: 2, FinalScore: 80},
			b:    Participant{UserID: bob, Finished: true, QuestionsCompleted: 2, FinalScore: 90},
			want: bob,
		},
		{
			name: "score difference within epsilon falls through to finish time",
			a: Participant{UserID: alice, Finished: true, QuestionsCompleted: 2, FinalScore: 80.05,
				FinishTime: timePtr(base.Add(10 * time.Minute))},
			b: Participant{UserID: bob, Finished: true, QuestionsCompleted: 2, FinalScore: 80,
				FinishTime: timePtr(base.Add(5 * time.Minute))},
			want: bob,
		},
		{
			name: "earlier finish time wins the tie",
			a: Participant{UserID: alice, Finished: true, QuestionsCompleted: 1, FinalScore: 70,
				FinishTime: timePtr(base.Add(3 * time.Minute))},
			b: Participant{UserID: bob, Finished: true, QuestionsCompleted: 1, FinalScore: 70,
				FinishTime: timePtr(base.Add(8 * time.Minute))},
			want: alice,
		},
		{
			name: "recorded finish time beats missing one",
			a:    Participant{UserID: alice, Finished: true, QuestionsCompleted: 1, FinalScore: 70},
			b: Participant{UserID: bob, Finished: true, QuestionsCompleted: 1, FinalScore: 70,
				FinishTime: timePtr(base)},
			want: bob,
		},
		{
			name: "both forfeited falls back to first participant",
			a:    Participant{UserID: alice, Forfeited: true},
			b:    Participant{UserID: bob, Forfeited: true},
			want: alice,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := &Contest{Participants: []Participant{tt.a, tt.b}}
			winner := c.DetermineWinner()
			if winner == nil {
				t.Fatalf("expected a winner")
			}
			if winner.UserID != tt.want {
				t.Fatalf("expected winner %s, got %s", tt.want, winner.UserID)
			}
		})
	}
}

func TestDetermineWinnerEmpty(t *testing.T) {
	t.Parallel()
	c := &Contest{}
	if w := c.DetermineWinner(); w != nil {
		t.Fatalf("expected no winner for empty contest, got %+v", w)
	}
}

func TestRecomputeAggregates(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name          string
		submissions   []Submission
		wantCompleted int
		wantScore     float64
	}{
		{
			name:          "no submissions",
			wantCompleted: 0,
			wantScore:     0,
		},
		{
			name:          "rejected submissions never count",
			submissions:   []Submission{rejectedSubmission("p1"), rejectedSubmission("p2")},
			wantCompleted: 0,
			wantScore:     0,
		},
		{
			name:          "accepted submissions averaged",
			submissions:   []Submission{acceptedSubmission("p1", 80), acceptedSubmission("p2", 90)},
			wantCompleted: 2,
			wantScore:     85,
		},
		{
			name: "resubmission of solved problem counts once for questions",
			submissions: []Submission{
				acceptedSubmission("p1", 80),
				acceptedSubmission("p1", 60),
			},
			wantCompleted: 1,
			wantScore:     70,
		},
		{
			name: "rejected attempt does not dilute the mean",
			submissions: []Submission{
				acceptedSubmission("p1", 90),
				rejectedSubmission("p2"),
			},
			wantCompleted: 1,
			wantScore:     90,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := Participant{Submissions: tt.submissions}
			p.RecomputeAggregates()
			if p.QuestionsCompleted != tt.wantCompleted {
				t.Fatalf("questions completed: expected %d, got %d", tt.wantCompleted, p.QuestionsCompleted)
			}
			if p.FinalScore != tt.wantScore {
				t.Fatalf("final score: expected %v, got %v", tt.wantScore, p.FinalScore)
			}
		})
	}
}

func TestCompleteIdempotent(t *testing.T) {
	t.Parallel()
	alice := uuid.New()
	bob := uuid.New()
	c := &Contest{
		Status: ContestStatusActive,
		Participants: []Participant{
			{UserID: alice, Finished: true, QuestionsCompleted: 2},
			{UserID: bob, Finished: true, QuestionsCompleted: 1},
		},
	}

	first := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.Complete(first)

	if c.Status != ContestStatusCompleted {
		t.Fatalf("expected completed status")
	}
	if c.WinnerID == nil || *c.WinnerID != alice {
		t.Fatalf("expected alice to win")
	}
	if c.CompletedAt == nil || !c.CompletedAt.Equal(first) {
		t.Fatalf("expected completion time recorded")
	}

	// A second completion must not move the completion time or winner.
	c.Participants[1].QuestionsCompleted = 5
	c.Complete(first.Add(time.Hour))

	if !c.CompletedAt.Equal(first) {
		t.Fatalf("completion time must not move on repeat completion")
	}
	if *c.WinnerID != alice {
		t.Fatalf("winner must not change on repeat completion")
	}
}

func TestIsExpired(t *testing.T) {
	t.Parallel()
	end := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)
	c := &Contest{EndTime: end}

	if c.IsExpired(end.Add(-time.Second)) {
		t.Fatalf("contest should not be expired before end time")
	}
	if c.IsExpired(end) {
		t.Fatalf("contest should not be expired exactly at end time")
	}
	if !c.IsExpired(end.Add(time.Second)) {
		t.Fatalf("contest should be expired after end time")
	}
}

func TestAllDone(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name         string
		participants []Participant
		want         bool
	}{
		{name: "no participants", want: false},
		{
			name:         "one still running",
			participants: []Participant{{Finished: true}, {}},
			want:         false,
		},
		{
			name:         "finished and forfeited both count",
			participants: []Participant{{Finished: true}, {Forfeited: true}},
			want:         true,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := &Contest{Participants: tt.participants}
			if got := c.AllDone(); got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestSubmissionAccepted(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		summary RunSummary
		want    bool
	}{
		{name: "all passed", summary: RunSummary{Passed: 3, Total: 3}, want: true},
		{name: "partial", summary: RunSummary{Passed: 2, Total: 3}, want: false},
		{name: "zero tests never accepted", summary: RunSummary{Passed: 0, Total: 0}, want: false},
	}
	for _, tt := range tests {
		s := Submission{TestResults: tt.summary}
		if got := s.Accepted(); got != tt.want {
			t.Fatalf("%s: expected %v, got %v", tt.name, tt.want, got)
		}
	}
}
