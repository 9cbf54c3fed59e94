package model

// MatchState is the server-side lifecycle reported by the match detail endpoint.
type MatchState string

const (
	MatchOngoing   MatchState = "ONGOING"
	MatchCompleted MatchState = "COMPLETED"
	MatchResigned  MatchState = "RESIGNED"
)

// Terminal reports whether no further play is possible.
func (s MatchState) Terminal() bool {
	return s == MatchCompleted || s == MatchResigned
}

// Player is one side of a match as displayed in the intro.
type Player struct {
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url"`
	Rank      string `json:"rank"`
}

// MatchFound is what the matchmaking flow hands to navigation.
type MatchFound struct {
	MatchID   int64  `json:"match_id"`
	ProblemID int64  `json:"problem_id"`
	Player1   Player `json:"player1"`
	Player2   Player `json:"player2"`
}

// MatchResult is the per-user outcome of a finished match.
type MatchResult struct {
	Rated      bool   `json:"rated"`
	Username   string `json:"username"`
	AvatarURL  string `json:"avatarUrl"`
	Rank       int    `json:"rank"`
	RateChange int    `json:"rateChange"`
	NewRating  int    `json:"newRating"`
}

// Outcome renders the rank the way match history does.
func (r MatchResult) Outcome() string {
	switch r.Rank {
	case 1:
		return "WON"
	case 0:
		return "DRAW"
	default:
		return "LOST"
	}
}
