package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotObject is returned when a frame body is valid JSON but not an object.
var ErrNotObject = errors.New("event: payload is not a JSON object")

// Raw is the untyped server payload, retained as notification metadata.
type Raw map[string]any

// String returns the string value of key, or "" when absent or not a string.
func (r Raw) String(key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}

// Int returns the integer value of key, or 0 when absent or not numeric.
func (r Raw) Int(key string) int64 {
	switch v := r[key].(type) {
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			f, ferr := v.Float64()
			if ferr != nil {
				return 0
			}
			return int64(f)
		}
		return n
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

// Decode parses a frame body into its typed variant. Any JSON object decodes
// successfully; unrecognised discriminants yield *UnknownEvent.
func Decode(body []byte) (Eventer, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var raw Raw
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("event: decode: %w", err)
	}
	if raw == nil {
		return nil, ErrNotObject
	}

	return FromRaw(raw), nil
}

// FromRaw classifies an already parsed payload.
func FromRaw(raw Raw) Eventer {
	if raw == nil {
		raw = Raw{}
	}
	b := base{raw: raw}

	switch kind := Kind(raw.String("notificationType")); kind {
	case MatchStarted:
		return &MatchStartedEvent{base: b, MatchID: raw.Int("matchId"), ProblemID: raw.Int("problemId")}
	case MatchCompleted:
		return &MatchCompletedEvent{base: b, MatchID: raw.Int("matchId")}
	case UserResigned:
		return &UserResignedEvent{base: b, MatchID: raw.Int("matchId"), SenderUsername: raw.String("senderUsername")}
	case SubmissionReceived:
		return &SubmissionReceivedEvent{base: b, MatchID: raw.Int("matchId"), SenderUsername: raw.String("senderUsername")}
	case SubmissionResult:
		return &SubmissionResultEvent{
			base:             b,
			MatchID:          raw.Int("matchId"),
			SenderUsername:   raw.String("senderUsername"),
			SubmissionStatus: raw.String("submissionStatus"),
			PassedCases:      int(raw.Int("passedCases")),
			TotalCases:       int(raw.Int("totalCases")),
		}
	case FriendRequestReceived:
		return &FriendRequestReceivedEvent{base: b, SenderUsername: raw.String("senderUsername")}
	case FriendRequestAccepted:
		return &FriendRequestAcceptedEvent{base: b, AccepterUsername: raw.String("accepterUsername")}
	default:
		return &UnknownEvent{base: b, Type: kind, Title: raw.String("title"), Message: raw.String("message")}
	}
}
