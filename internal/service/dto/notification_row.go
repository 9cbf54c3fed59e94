package dto

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/codeduel/live-delivery/infra/client/arena"
)

var (
	statusPattern = regexp.MustCompile(`(?i)got\s+(\w+)|status[:\s]+(\w+)`)
	casesPattern  = regexp.MustCompile(`\((\d+)/(\d+)\)|(\d+)/(\d+)`)
)

// NotificationRow is one line of the notification history.
type NotificationRow struct {
	ID               int64     `json:"id"`
	Type             string    `json:"type"`
	Badge            string    `json:"badge"`
	SenderUsername   string    `json:"sender_username"`
	Title            string    `json:"title"`
	Message          string    `json:"message"`
	CreatedAt        time.Time `json:"created_at"`
	Read             bool      `json:"read"`
	MatchID          int64     `json:"match_id,omitempty"`
	SubmissionStatus string    `json:"submission_status,omitempty"`
	PassedCases      *int      `json:"passed_cases,omitempty"`
	TotalCases       *int      `json:"total_cases,omitempty"`
}

// NewNotificationRow converts a persisted record. The server only renders submission
// details into the message text, so status and case counts are recovered from it.
func NewNotificationRow(rec arena.NotificationRecord) NotificationRow {
	row := NotificationRow{
		ID:             rec.ID,
		Type:           rec.Type,
		Badge:          BadgeOf(rec.Type),
		SenderUsername: rec.SenderUsername,
		Title:          rec.Title,
		Message:        rec.Message,
		Read:           rec.Read,
	}
	if rec.MatchID != nil {
		row.MatchID = *rec.MatchID
	}
	if t, err := time.Parse(time.RFC3339Nano, rec.CreatedAt); err == nil {
		row.CreatedAt = t
	} else if t, err := time.ParseInLocation("2006-01-02T15:04:05.999999999", rec.CreatedAt, time.Local); err == nil {
		row.CreatedAt = t
	}

	if m := statusPattern.FindStringSubmatch(rec.Message); m != nil {
		row.SubmissionStatus = firstNonEmpty(m[1], m[2])
	}
	if m := casesPattern.FindStringSubmatch(rec.Message); m != nil {
		passed, _ := strconv.Atoi(firstNonEmpty(m[1], m[3]))
		total, _ := strconv.Atoi(firstNonEmpty(m[2], m[4]))
		row.PassedCases, row.TotalCases = &passed, &total
	}

	return row
}

// BadgeOf groups a history type into Match, Friend or Other.
func BadgeOf(typ string) string {
	switch typ {
	case "MATCH_INVITE", "MATCH_STARTED", "MATCH_ENDED", "SUBMISSION_RECEIVED", "SUBMISSION_RESULT", "OPPONENT_RESIGNED":
		return "Match"
	case "FRIEND_REQUEST", "FRIEND_ACCEPTED":
		return "Friend"
	default:
		return "Other"
	}
}

// TypeLabel renders MATCH_STARTED as "Match Started".
func TypeLabel(typ string) string {
	words := strings.Split(typ, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = w[:1] + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

// TimeAgo renders t relative to now the way the history list does.
func TimeAgo(t, now time.Time) string {
	diff := now.Sub(t)
	switch {
	case diff < time.Minute:
		return "Just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff/time.Minute))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff/time.Hour))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff/(24*time.Hour)))
	default:
		return t.Format("2006-01-02")
	}
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
