package arena

import "github.com/codeduel/live-delivery/internal/domain/model"

type Participant struct {
	UserID     int64 `json:"userId"`
	Rank       int   `json:"rank"`
	RateChange int   `json:"rateChange"`
	NewRating  int   `json:"newRating"`
}

type MatchDetails struct {
	ID           int64            `json:"id"`
	StartAt      string           `json:"startAt"`
	Duration     int              `json:"duration"`
	GameMode     string           `json:"gameMode,omitempty"`
	MatchState   model.MatchState `json:"matchState"`
	ProblemID    int64            `json:"problemId"`
	Participants []Participant    `json:"participants"`
}

type SubmissionLogEntry struct {
	SubmissionID int64  `json:"submissionId"`
	Status       string `json:"status"`
	SubmittedAt  string `json:"submittedAt"`
	Passed       int    `json:"numberOfPassedTestCases"`
	Total        int    `json:"numberOfTotalTestCases"`
	Current      *int   `json:"numberOfCurrentTestCase,omitempty"`
}

// SubmissionLog is one player's side of a match.
type SubmissionLog struct {
	Username    string               `json:"username"`
	AvatarURL   string               `json:"avatarUrl"`
	Rank        string               `json:"rank"`
	Submissions []SubmissionLogEntry `json:"submissions"`
}

func (l SubmissionLog) Player() model.Player {
	return model.Player{Username: l.Username, AvatarURL: l.AvatarURL, Rank: l.Rank}
}

// NotificationRecord is a persisted notification as served by the history endpoint.
type NotificationRecord struct {
	ID             int64  `json:"id"`
	Type           string `json:"type"`
	SenderID       int64  `json:"senderId"`
	SenderUsername string `json:"senderUsername"`
	RecipientID    int64  `json:"recipientId"`
	Title          string `json:"title"`
	Message        string `json:"message"`
	CreatedAt      string `json:"createdAt"`
	Read           bool   `json:"read"`
	MatchID        *int64 `json:"matchId,omitempty"`
}

type Page[T any] struct {
	Content       []T  `json:"content"`
	TotalElements int  `json:"totalElements"`
	TotalPages    int  `json:"totalPages"`
	Size          int  `json:"size"`
	Number        int  `json:"number"`
	First         bool `json:"first"`
	Last          bool `json:"last"`
}

// NotificationCategory filters the history endpoint.
type NotificationCategory string

const (
	CategoryAll    NotificationCategory = "all"
	CategoryMatch  NotificationCategory = "match"
	CategoryFriend NotificationCategory = "friend"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}
