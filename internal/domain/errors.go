package domain

import "errors"

// Domain errors - these are business logic errors that should be translated
// to appropriate HTTP status codes by the handler layer

var (
	// User errors
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")

	// Room errors
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomFull       = errors.New("room is full")
	ErrRoomNotWaiting = errors.New("room is no longer accepting participants")
	ErrAlreadyInRoom  = errors.New("user already joined this room")
	ErrNotRoomCreator = errors.New("only the room creator can start the contest")
	ErrRoomNotReady   = errors.New("room needs exactly two participants to start a contest")
	ErrNotParticipant = errors.New("user is not a participant in this contest")

	// Problem errors
	ErrProblemNotFound     = errors.New("problem not found")
	ErrNotEnoughProblems   = errors.New("not enough problems available in this rating band")
	ErrProblemNotInContest = errors.New("problem not found in this contest")

	// Contest lifecycle errors
	ErrContestNotFound  = errors.New("contest not found")
	ErrContestExists    = errors.New("contest already started for this room")
	ErrContestNotActive = errors.New("contest is not active")
	ErrContestExpired   = errors.New("contest has expired")
	ErrParticipantDone  = errors.New("participant already finished or forfeited")

	// Submission errors
	ErrMissingFields       = errors.New("problem id, code and language are required")
	ErrUnsupportedLanguage = errors.New("unsupported submission language")
	ErrJudgeUnavailable    = errors.New("remote judge unavailable")
	ErrConcurrencyConflict = errors.New("contest was modified concurrently")

	// General errors
	ErrInternalServer = errors.New("internal server error")
	ErrBadRequest     = errors.New("bad request")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
)

// DomainError wraps an error with additional context
type DomainError struct {
	Err     error
	Message string
	Code    string
}

func (e *DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError with the given error and message
func NewDomainError(err error, message string) *DomainError {
	return &DomainError{
		Err:     err,
		Message: message,
	}
}

// WrapError wraps an error with additional context
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return &DomainError{
		Err:     err,
		Message: message,
	}
}
