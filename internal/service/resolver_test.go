package service

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/codeduel/live-delivery/infra/client/arena"
	"github.com/codeduel/live-delivery/internal/domain/model"
)

type fakeMatches struct {
	calls   atomic.Int32
	logs    []arena.SubmissionLog
	details arena.MatchDetails
	err     error
}

func (f *fakeMatches) GetMatchDetails(context.Context, int64) (arena.MatchDetails, error) {
	f.calls.Add(1)
	return f.details, f.err
}

func (f *fakeMatches) GetMatchSubmissionLog(context.Context, int64) ([]arena.SubmissionLog, error) {
	f.calls.Add(1)
	return f.logs, nil
}

func TestResolveIdentifiesOpponent(t *testing.T) {
	api := &fakeMatches{
		details: arena.MatchDetails{ID: 9, ProblemID: 31},
		logs: []arena.SubmissionLog{
			{Username: "bob", Rank: "SILVER"},
			{Username: "alice", AvatarURL: "a.png", Rank: "GOLD"},
		},
	}
	r := NewResolverMiddleware(NewMatchResolver(api), slog.Default())

	found, err := r.Resolve(context.Background(), 9, "alice")
	assert.Equal(t, err, nil)
	assert.Equal(t, found, model.MatchFound{
		MatchID:   9,
		ProblemID: 31,
		Player1:   model.Player{Username: "alice", AvatarURL: "a.png", Rank: "GOLD"},
		Player2:   model.Player{Username: "bob", AvatarURL: defaultAvatar, Rank: "SILVER"},
	})

	// cached
	_, err = r.Resolve(context.Background(), 9, "alice")
	assert.Equal(t, err, nil)
	assert.Equal(t, api.calls.Load(), int32(2))
}

func TestResolveWithoutOwnLogDefaultsRank(t *testing.T) {
	api := &fakeMatches{logs: []arena.SubmissionLog{{Username: "bob", AvatarURL: "b.png", Rank: "GOLD"}}}

	found, err := NewMatchResolver(api).Resolve(context.Background(), 1, "alice")
	assert.Equal(t, err, nil)
	assert.Equal(t, found.Player1, model.Player{Username: "alice", Rank: defaultRank})
	assert.Equal(t, found.Player2.AvatarURL, "b.png")
}

func TestResolveFailures(t *testing.T) {
	lonely := &fakeMatches{logs: []arena.SubmissionLog{{Username: "alice"}}}
	_, err := NewMatchResolver(lonely).Resolve(context.Background(), 1, "alice")
	assert.Equal(t, errors.Is(err, ErrOpponentNotFound), true)

	boom := errors.New("boom")
	broken := &fakeMatches{err: boom, logs: []arena.SubmissionLog{{Username: "bob"}}}
	r := NewMatchResolver(broken)
	_, err = r.Resolve(context.Background(), 1, "alice")
	assert.Equal(t, errors.Is(err, boom), true)

	// failures are not cached
	broken.err = nil
	_, err = r.Resolve(context.Background(), 1, "alice")
	assert.Equal(t, err, nil)
}
