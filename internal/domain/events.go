package domain

import "context"

// Event kinds published on the room channel. Delivery is best-effort,
// at most once per triggering state transition.
const (
	EventParticipantFinished = "participant-finished"
	EventSubmissionReceived  = "submission-received"
	EventContestEnded        = "contest-ended"
)

// Event is a realtime notification tied to one state-machine transition.
type Event interface {
	Kind() string
	RoomCode() string
}

// ParticipantFinishedEvent signals that a participant finished or forfeited.
type ParticipantFinishedEvent struct {
	Room    string `json:"room_code"`
	UserID  string `json:"user_id"`
	Forfeit bool   `json:"forfeit"`
}

func (e ParticipantFinishedEvent) Kind() string     { return EventParticipantFinished }
func (e ParticipantFinishedEvent) RoomCode() string { return e.Room }

// SubmissionReceivedEvent signals that a submission was judged and recorded.
type SubmissionReceivedEvent struct {
	Room      string `json:"room_code"`
	UserID    string `json:"user_id"`
	ProblemID string `json:"problem_id"`
}

func (e SubmissionReceivedEvent) Kind() string     { return EventSubmissionReceived }
func (e SubmissionReceivedEvent) RoomCode() string { return e.Room }

// ContestEndedEvent carries the final contest state to connected clients.
type ContestEndedEvent struct {
	Room    string   `json:"room_code"`
	Contest *Contest `json:"contest"`
}

func (e ContestEndedEvent) Kind() string     { return EventContestEnded }
func (e ContestEndedEvent) RoomCode() string { return e.Room }

// Notifier fans state-machine transitions out to connected clients.
// Implementations must never block or fail the transition that produced
// the event; errors are swallowed after logging.
type Notifier interface {
	Publish(ctx context.Context, event Event)
}
