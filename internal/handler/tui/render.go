package tui

import (
	"fmt"
	"time"

	"github.com/codeduel/live-delivery/internal/domain/model"
	"github.com/codeduel/live-delivery/internal/service/consumer"
	"github.com/codeduel/live-delivery/internal/service/dto"
)

const maxListed = 10

// Frame is everything the dashboard draws, computed without touching the terminal.
type Frame struct {
	// Indicator is empty while connected; the bar only speaks up when something is wrong.
	Indicator     string
	Badge         string
	Toasts        []string
	Matchmaking   string
	MatchPage     string
	Notifications []string
}

// FrameInput gathers the consumer states of one redraw.
type FrameInput struct {
	State       model.ConnectionState
	Snapshot    model.Snapshot
	Toasts      []consumer.Toast
	Matchmaking consumer.MatchmakingView
	MatchPage   consumer.MatchPageView
	Now         time.Time
}

func BuildFrame(in FrameInput) Frame {
	f := Frame{Badge: consumer.BadgeLabel(in.Snapshot.Unread())}
	if in.State != model.Connected {
		f.Indicator = in.State.Label()
	}

	for _, t := range in.Toasts {
		f.Toasts = append(f.Toasts, fmt.Sprintf("[%s](fg:%s) %s: %s", t.Title, colorOf(t.Category), t.Sender, t.Message))
	}

	f.Matchmaking = matchmakingLine(in.Matchmaking)
	f.MatchPage = matchPageLine(in.MatchPage)

	for i, n := range in.Snapshot.Notifications {
		if i == maxListed {
			break
		}
		mark := " "
		if !n.Read {
			mark = "*"
		}
		f.Notifications = append(f.Notifications,
			fmt.Sprintf("%s %-24s %s (%s)", mark, n.Title, n.Message, dto.TimeAgo(n.CreatedAt, in.Now)))
	}
	return f
}

func matchmakingLine(v consumer.MatchmakingView) string {
	var line string
	switch v.State {
	case consumer.Searching:
		line = "Searching for an opponent..."
		if v.Mode == consumer.ModeFriend {
			line = fmt.Sprintf("Waiting for %s to accept...", v.Invitee)
		}
	case consumer.Found:
		if v.Match != nil {
			line = fmt.Sprintf("Match #%d: %s vs %s (%s)",
				v.Match.MatchID, v.Match.Player1.Username, v.Match.Player2.Username, v.Match.Player2.Rank)
		}
	default:
		line = "Press s to find an opponent"
	}
	if v.Err != "" {
		line += " | error: " + v.Err
	}
	return line
}

func matchPageLine(v consumer.MatchPageView) string {
	var line string
	switch v.Phase {
	case consumer.PhaseOngoing:
		line = fmt.Sprintf("Match #%d in progress", v.MatchID)
	case consumer.PhaseCompleted:
		line = fmt.Sprintf("Match #%d completed", v.MatchID)
		if v.Result != nil {
			line += fmt.Sprintf(": %s, rating %d (%+d)", v.Result.Outcome(), v.Result.NewRating, v.Result.RateChange)
		} else {
			line += ", waiting for results..."
		}
	default:
		return "No match open"
	}
	if v.Err != "" {
		line += " | error: " + v.Err
	}
	return line
}

func colorOf(c model.Category) string {
	switch c {
	case model.CategorySuccess:
		return "green"
	case model.CategoryError:
		return "red"
	case model.CategoryWarning:
		return "yellow"
	default:
		return "cyan"
	}
}
