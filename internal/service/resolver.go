package service

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/codeduel/live-delivery/infra/client/arena"
	"github.com/codeduel/live-delivery/internal/domain/model"
)

const (
	defaultRank   = "BRONZE"
	defaultAvatar = "/default-avatar.png"
)

// ErrOpponentNotFound means the submission log has no participant other than the user.
var ErrOpponentNotFound = errors.New("resolver: opponent not found in submission log")

// Resolver turns a match id into the pairing shown by the match intro.
type Resolver interface {
	Resolve(ctx context.Context, matchID int64, me string) (model.MatchFound, error)
}

// MatchReader is the slice of the match API the resolver needs.
type MatchReader interface {
	GetMatchDetails(ctx context.Context, matchID int64) (arena.MatchDetails, error)
	GetMatchSubmissionLog(ctx context.Context, matchID int64) ([]arena.SubmissionLog, error)
}

type MatchResolver struct {
	api   MatchReader
	cache *lru.Cache[string, model.MatchFound]
}

// NewMatchResolver provides a thread-safe resolver with an internal LRU cache.
func NewMatchResolver(api MatchReader) *MatchResolver {
	// pairings never change once a match exists
	cache, _ := lru.New[string, model.MatchFound](256)

	return &MatchResolver{
		api:   api,
		cache: cache,
	}
}

// Resolve fetches the submission log and the match details in parallel.
// Both must succeed for the pairing to be returned.
func (r *MatchResolver) Resolve(ctx context.Context, matchID int64, me string) (model.MatchFound, error) {
	key := fmt.Sprintf("%d/%s", matchID, me)
	if cached, ok := r.cache.Get(key); ok {
		return cached, nil
	}

	g, gCtx := errgroup.WithContext(ctx)

	var (
		logs    []arena.SubmissionLog
		details arena.MatchDetails
	)

	g.Go(func() error {
		var err error
		logs, err = r.api.GetMatchSubmissionLog(gCtx, matchID)
		return err
	})

	g.Go(func() error {
		var err error
		details, err = r.api.GetMatchDetails(gCtx, matchID)
		return err
	})

	if err := g.Wait(); err != nil {
		return model.MatchFound{}, fmt.Errorf("resolve match %d: %w", matchID, err)
	}

	found, err := pairing(matchID, details.ProblemID, logs, me)
	if err != nil {
		return model.MatchFound{}, err
	}

	r.cache.Add(key, found)
	return found, nil
}

func pairing(matchID, problemID int64, logs []arena.SubmissionLog, me string) (model.MatchFound, error) {
	found := model.MatchFound{
		MatchID:   matchID,
		ProblemID: problemID,
		Player1:   model.Player{Username: me, Rank: defaultRank},
	}

	var opponent *arena.SubmissionLog
	for i := range logs {
		if logs[i].Username == me {
			found.Player1 = logs[i].Player()
			if found.Player1.Rank == "" {
				found.Player1.Rank = defaultRank
			}
			continue
		}
		if opponent == nil {
			opponent = &logs[i]
		}
	}
	if opponent == nil {
		return model.MatchFound{}, fmt.Errorf("match %d: %w", matchID, ErrOpponentNotFound)
	}

	found.Player2 = opponent.Player()
	if found.Player2.AvatarURL == "" {
		found.Player2.AvatarURL = defaultAvatar
	}
	return found, nil
}
