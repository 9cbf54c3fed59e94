package mapper

import (
	"fmt"

	"github.com/codeduel/live-delivery/internal/domain/event"
	"github.com/codeduel/live-delivery/internal/domain/model"
)

const (
	fallbackTitle   = "Notification"
	fallbackMessage = "You have a new notification"
)

// ToNotification classifies a server event into category, title and message.
// It never fails: unrecognised or nil events become a generic info notification.
// Identity, timestamp and read state are assigned by the store on ingestion.
func ToNotification(ev event.Eventer) model.Notification {
	n := model.Notification{Metadata: ev}

	switch e := ev.(type) {
	case *event.MatchStartedEvent:
		n.Category, n.Title, n.Message = model.CategorySuccess, "Match Started!", "Your match has begun. Good luck!"

	case *event.MatchCompletedEvent:
		n.Category, n.Title, n.Message = model.CategoryInfo, "Match Completed", "The match has ended. Check your results!"

	case *event.UserResignedEvent:
		n.Category, n.Title = model.CategorySuccess, "Opponent Resigned"
		n.Message = fmt.Sprintf("%s has resigned from the match.", e.SenderUsername)

	case *event.SubmissionReceivedEvent:
		n.Category, n.Title = model.CategoryInfo, "Code Submitted"
		n.Message = fmt.Sprintf("%s submitted a solution", e.SenderUsername)

	case *event.SubmissionResultEvent:
		verb := "failed"
		n.Category, n.Title = model.CategoryError, "Submission Failed"
		if e.Accepted() {
			verb = "passed"
			n.Category, n.Title = model.CategorySuccess, "Solution Accepted"
		}
		n.Message = fmt.Sprintf("%s %s %d/%d test cases", e.SenderUsername, verb, e.PassedCases, e.TotalCases)

	case *event.FriendRequestReceivedEvent:
		n.Category, n.Title = model.CategoryInfo, "New Friend Request"
		n.Message = fmt.Sprintf("%s sent you a friend request", e.SenderUsername)

	case *event.FriendRequestAcceptedEvent:
		n.Category, n.Title = model.CategorySuccess, "Friend Request Accepted"
		n.Message = fmt.Sprintf("%s accepted your friend request", e.AccepterUsername)

	case *event.UnknownEvent:
		n.Category, n.Title, n.Message = model.CategoryInfo, orDefault(e.Title, fallbackTitle), orDefault(e.Message, fallbackMessage)

	default:
		// nil or a variant added without a mapping
		n.Category, n.Title, n.Message = model.CategoryInfo, fallbackTitle, fallbackMessage
		if ev == nil {
			n.Metadata = &event.UnknownEvent{}
		}
	}

	return n
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
