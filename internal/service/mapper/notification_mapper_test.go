package mapper

import (
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/codeduel/live-delivery/internal/domain/event"
	"github.com/codeduel/live-delivery/internal/domain/model"
)

func decode(t *testing.T, body string) event.Eventer {
	t.Helper()
	ev, err := event.Decode([]byte(body))
	assert.Equal(t, err, nil)
	return ev
}

func TestToNotification(t *testing.T) {
	cases := []struct {
		body     string
		category model.Category
		title    string
		message  string
	}{
		{`{"notificationType":"MATCH_STARTED","matchId":1}`, model.CategorySuccess, "Match Started!", "Your match has begun. Good luck!"},
		{`{"notificationType":"MATCH_COMPLETED","matchId":1}`, model.CategoryInfo, "Match Completed", "The match has ended. Check your results!"},
		{`{"notificationType":"USER_RESIGNED","matchId":1,"senderUsername":"bob"}`, model.CategorySuccess, "Opponent Resigned", "bob has resigned from the match."},
		{`{"notificationType":"SUBMISSION_RECEIVED","matchId":1,"senderUsername":"bob"}`, model.CategoryInfo, "Code Submitted", "bob submitted a solution"},
		{`{"notificationType":"SUBMISSION_RESULT","senderUsername":"bob","submissionStatus":"ACCEPTED","passedCases":5,"totalCases":5}`, model.CategorySuccess, "Solution Accepted", "bob passed 5/5 test cases"},
		{`{"notificationType":"SUBMISSION_RESULT","senderUsername":"bob","submissionStatus":"WRONG_ANSWER","passedCases":2,"totalCases":5}`, model.CategoryError, "Submission Failed", "bob failed 2/5 test cases"},
		{`{"notificationType":"FRIEND_REQUEST_RECEIVED","senderUsername":"carol"}`, model.CategoryInfo, "New Friend Request", "carol sent you a friend request"},
		{`{"notificationType":"FRIEND_REQUEST_ACCEPTED","accepterUsername":"carol"}`, model.CategorySuccess, "Friend Request Accepted", "carol accepted your friend request"},
		{`{"notificationType":"SEASON_ENDED","title":"Season over"}`, model.CategoryInfo, "Season over", fallbackMessage},
		{`{}`, model.CategoryInfo, fallbackTitle, fallbackMessage},
	}

	for _, tc := range cases {
		n := ToNotification(decode(t, tc.body))
		assert.Equal(t, n.Category, tc.category)
		assert.Equal(t, n.Title, tc.title)
		assert.Equal(t, n.Message, tc.message)
		assert.Equal(t, n.ID, "")
		assert.Equal(t, n.Read, false)
	}
}

func TestToNotificationNil(t *testing.T) {
	n := ToNotification(nil)
	assert.Equal(t, n.Title, fallbackTitle)
	assert.NotEqual(t, n.Metadata, nil)
	assert.Equal(t, n.Kind(), event.Kind(""))
}
