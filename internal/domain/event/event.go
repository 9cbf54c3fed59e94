package event

// Kind is the discriminant carried by every server push in the notificationType field.
type Kind string

const (
	MatchStarted          Kind = "MATCH_STARTED"
	MatchCompleted        Kind = "MATCH_COMPLETED"
	UserResigned          Kind = "USER_RESIGNED"
	SubmissionReceived    Kind = "SUBMISSION_RECEIVED"
	SubmissionResult      Kind = "SUBMISSION_RESULT"
	FriendRequestReceived Kind = "FRIEND_REQUEST_RECEIVED"
	FriendRequestAccepted Kind = "FRIEND_REQUEST_ACCEPTED"
)

// SubmissionAccepted is the grading verdict that turns a result into a success.
const SubmissionAccepted = "ACCEPTED"

// Eventer is the closed set of decoded server pushes. Every implementation keeps the
// original payload so consumers can still read fields the client does not model.
type Eventer interface {
	GetKind() Kind
	GetRaw() Raw
	isEvent()
}

// Correlated is implemented by events that belong to a single match.
type Correlated interface {
	GetMatchID() int64
}

// Sender is implemented by events triggered by another user.
type Sender interface {
	GetSender() string
}

type base struct {
	raw Raw
}

func (b base) GetRaw() Raw { return b.raw }
func (base) isEvent()      {}

type MatchStartedEvent struct {
	base
	MatchID   int64
	ProblemID int64
}

func (e *MatchStartedEvent) GetKind() Kind     { return MatchStarted }
func (e *MatchStartedEvent) GetMatchID() int64 { return e.MatchID }

type MatchCompletedEvent struct {
	base
	MatchID int64
}

func (e *MatchCompletedEvent) GetKind() Kind     { return MatchCompleted }
func (e *MatchCompletedEvent) GetMatchID() int64 { return e.MatchID }

type UserResignedEvent struct {
	base
	MatchID        int64
	SenderUsername string
}

func (e *UserResignedEvent) GetKind() Kind     { return UserResigned }
func (e *UserResignedEvent) GetMatchID() int64 { return e.MatchID }
func (e *UserResignedEvent) GetSender() string { return e.SenderUsername }

type SubmissionReceivedEvent struct {
	base
	MatchID        int64
	SenderUsername string
}

func (e *SubmissionReceivedEvent) GetKind() Kind     { return SubmissionReceived }
func (e *SubmissionReceivedEvent) GetMatchID() int64 { return e.MatchID }
func (e *SubmissionReceivedEvent) GetSender() string { return e.SenderUsername }

type SubmissionResultEvent struct {
	base
	MatchID          int64
	SenderUsername   string
	SubmissionStatus string
	PassedCases      int
	TotalCases       int
}

func (e *SubmissionResultEvent) GetKind() Kind     { return SubmissionResult }
func (e *SubmissionResultEvent) GetMatchID() int64 { return e.MatchID }
func (e *SubmissionResultEvent) GetSender() string { return e.SenderUsername }

// Accepted reports whether the grader accepted the submission.
func (e *SubmissionResultEvent) Accepted() bool {
	return e.SubmissionStatus == SubmissionAccepted
}

type FriendRequestReceivedEvent struct {
	base
	SenderUsername string
}

func (e *FriendRequestReceivedEvent) GetKind() Kind     { return FriendRequestReceived }
func (e *FriendRequestReceivedEvent) GetSender() string { return e.SenderUsername }

type FriendRequestAcceptedEvent struct {
	base
	AccepterUsername string
}

func (e *FriendRequestAcceptedEvent) GetKind() Kind     { return FriendRequestAccepted }
func (e *FriendRequestAcceptedEvent) GetSender() string { return e.AccepterUsername }

// UnknownEvent is the fallback variant for discriminants this client does not model.
type UnknownEvent struct {
	base
	Type    Kind
	Title   string
	Message string
}

func (e *UnknownEvent) GetKind() Kind { return e.Type }

// MatchIDOf returns the correlated match id, or 0 when the event is not match scoped.
func MatchIDOf(ev Eventer) int64 {
	if c, ok := ev.(Correlated); ok {
		return c.GetMatchID()
	}
	return 0
}

// SenderOf returns the username of the user who caused the event, if any.
func SenderOf(ev Eventer) string {
	if s, ok := ev.(Sender); ok {
		return s.GetSender()
	}
	return ""
}
