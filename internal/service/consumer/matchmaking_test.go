package consumer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"github.com/codeduel/live-delivery/infra/client/arena"
	"github.com/codeduel/live-delivery/internal/domain/model"
	"github.com/codeduel/live-delivery/internal/domain/store"
)

// fakeArena serves both the matchmaking and the match page flows.
type fakeArena struct {
	mu sync.Mutex

	searchErr     error
	searches      int
	cancels       int
	inviteID      int64
	inviteCancels []int64
	ongoing       int64
	accepted      arena.MatchDetails

	details      arena.MatchDetails
	results      model.MatchResult
	resultsCalls int
	resignErr    error
	resigns      int
}

func (f *fakeArena) SearchOpponent(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches++
	return f.searchErr
}

func (f *fakeArena) CancelOpponentSearch(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
	return nil
}

func (f *fakeArena) GetOngoingMatch(context.Context) (int64, bool, error) {
	return f.ongoing, f.ongoing != 0, nil
}

func (f *fakeArena) SendMatchInvite(context.Context, string) (int64, error) {
	return f.inviteID, nil
}

func (f *fakeArena) CancelMatchInvite(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inviteCancels = append(f.inviteCancels, id)
	return nil
}

func (f *fakeArena) AcceptMatchInvite(context.Context, int64) (arena.MatchDetails, error) {
	return f.accepted, nil
}

func (f *fakeArena) GetMatchDetails(context.Context, int64) (arena.MatchDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.details, nil
}

func (f *fakeArena) GetMatchResults(context.Context, int64) (model.MatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resultsCalls++
	return f.results, nil
}

func (f *fakeArena) GetMatchSubmissionLog(context.Context, int64) ([]arena.SubmissionLog, error) {
	return nil, nil
}

func (f *fakeArena) ResignMatch(context.Context, int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resigns++
	return f.resignErr
}

type fakeResolver struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (r *fakeResolver) Resolve(_ context.Context, matchID int64, me string) (model.MatchFound, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return model.MatchFound{}, r.err
	}
	return model.MatchFound{
		MatchID: matchID,
		Player1: model.Player{Username: me},
		Player2: model.Player{Username: "bob"},
	}, nil
}

func (r *fakeResolver) fail(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

type recordingEntrant struct {
	mu      sync.Mutex
	entered []int64
	err     error
}

func (e *recordingEntrant) Enter(_ context.Context, matchID int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entered = append(e.entered, matchID)
	return e.err
}

func (e *recordingEntrant) matches() []int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]int64(nil), e.entered...)
}

type matchmakingFixture struct {
	clock    *fakeClock
	api      *fakeArena
	resolver *fakeResolver
	entrant  *recordingEntrant
	st       *store.Store
	mm       *Matchmaking
}

func newMatchmakingFixture(opts ...func(*matchmakingFixture)) *matchmakingFixture {
	f := &matchmakingFixture{
		clock:    newFakeClock(),
		api:      &fakeArena{inviteID: 42},
		resolver: &fakeResolver{},
		entrant:  &recordingEntrant{},
	}
	for _, opt := range opts {
		opt(f)
	}
	f.st = newStore(f.clock)
	f.mm = NewMatchmaking(f.api, f.resolver, f.st, func() string { return "alice" },
		WithMatchmakingClock(f.clock.Now),
		WithMatchEntrant(f.entrant),
	)
	return f
}

// push ingests body and lets the flow reconcile, as the hub would.
func (f *matchmakingFixture) push(t *testing.T, body string) model.Notification {
	t.Helper()
	n := ingest(t, f.st, body)
	f.mm.Reconcile(context.Background(), f.st.Snapshot())
	return n
}

func (f *matchmakingFixture) notification(id string) model.Notification {
	n, _ := f.st.Get(id)
	return n
}

const matchStarted = `{"notificationType":"MATCH_STARTED","matchId":7,"problemId":3}`

func TestSearchFindsMatch(t *testing.T) {
	f := newMatchmakingFixture()
	mm := f.mm

	assert.Equal(t, mm.Search(context.Background()), nil)
	assert.Equal(t, mm.State(), Searching)

	n := f.push(t, matchStarted)

	view := mm.View()
	assert.Equal(t, view.State, Found)
	assert.Equal(t, view.Match.MatchID, int64(7))
	assert.Equal(t, view.Match.ProblemID, int64(3))
	assert.Equal(t, view.Match.Player1.Username, "alice")
	assert.Equal(t, view.Match.Player2.Username, "bob")
	assert.Equal(t, f.notification(n.ID).Read, true)
}

func TestSearchFailureRevertsToIdle(t *testing.T) {
	f := newMatchmakingFixture(func(f *matchmakingFixture) {
		f.api.searchErr = errors.New("queue closed")
	})

	err := f.mm.Search(context.Background())
	assert.NotEqual(t, err, nil)
	assert.Equal(t, f.mm.State(), Idle)
	assert.Equal(t, f.mm.View().Err, "queue closed")
}

func TestSearchTwiceRejected(t *testing.T) {
	f := newMatchmakingFixture()

	assert.Equal(t, f.mm.Search(context.Background()), nil)
	assert.Equal(t, errors.Is(f.mm.Search(context.Background()), ErrAlreadySearching), true)
	assert.Equal(t, f.api.searches, 1)
}

func TestStaleMatchStartIgnored(t *testing.T) {
	f := newMatchmakingFixture()

	f.push(t, matchStarted)
	f.clock.Advance(time.Second)

	assert.Equal(t, f.mm.Search(context.Background()), nil)
	f.mm.Reconcile(context.Background(), f.st.Snapshot())
	assert.Equal(t, f.mm.State(), Searching)
	assert.Equal(t, f.resolver.calls, 0)
}

func TestCancelLosesRaceToMatchStart(t *testing.T) {
	f := newMatchmakingFixture()
	assert.Equal(t, f.mm.Search(context.Background()), nil)

	// ingested but not yet reconciled when cancel is pressed
	ingest(t, f.st, matchStarted)

	assert.Equal(t, f.mm.Cancel(context.Background()), nil)
	assert.Equal(t, f.mm.State(), Found)
	assert.Equal(t, f.mm.View().Match.MatchID, int64(7))
	assert.Equal(t, f.api.cancels, 0)

	// the late reconcile is a no-op
	f.mm.Reconcile(context.Background(), f.st.Snapshot())
	assert.Equal(t, f.resolver.calls, 1)
}

func TestCancelSearch(t *testing.T) {
	f := newMatchmakingFixture()

	assert.Equal(t, errors.Is(f.mm.Cancel(context.Background()), ErrNotSearching), true)

	assert.Equal(t, f.mm.Search(context.Background()), nil)
	assert.Equal(t, f.mm.Cancel(context.Background()), nil)
	assert.Equal(t, f.mm.State(), Idle)
	assert.Equal(t, f.api.cancels, 1)

	// a match start after the cancel does not revive the search
	f.push(t, matchStarted)
	assert.Equal(t, f.mm.State(), Idle)
}

func TestCancelFriendInvite(t *testing.T) {
	f := newMatchmakingFixture()

	assert.Equal(t, f.mm.InviteFriend(context.Background(), "bob"), nil)
	assert.Equal(t, f.mm.View().Mode, ModeFriend)
	assert.Equal(t, f.mm.View().Invitee, "bob")

	assert.Equal(t, f.mm.Cancel(context.Background()), nil)
	assert.Equal(t, f.api.inviteCancels, []int64{42})
	assert.Equal(t, f.api.cancels, 0)
}

func TestResolutionFailureKeepsNotification(t *testing.T) {
	f := newMatchmakingFixture()
	f.resolver.fail(errors.New("details unavailable"))

	assert.Equal(t, f.mm.Search(context.Background()), nil)
	n := f.push(t, matchStarted)

	assert.Equal(t, f.mm.State(), Searching)
	assert.Equal(t, f.mm.View().Err, "details unavailable")
	assert.Equal(t, f.notification(n.ID).Read, false)

	// no automatic retry while the failure is shown
	f.mm.Reconcile(context.Background(), f.st.Snapshot())
	assert.Equal(t, f.resolver.calls, 1)

	f.resolver.fail(nil)
	assert.Equal(t, f.mm.Retry(context.Background()), nil)
	assert.Equal(t, f.mm.State(), Found)
	assert.Equal(t, f.notification(n.ID).Read, true)
}

func TestResumeOngoingMatch(t *testing.T) {
	f := newMatchmakingFixture(func(f *matchmakingFixture) { f.api.ongoing = 5 })

	ok, err := f.mm.Resume(context.Background())
	assert.Equal(t, err, nil)
	assert.Equal(t, ok, true)
	assert.Equal(t, f.mm.View().Match.MatchID, int64(5))

	f.mm.Reset()
	assert.Equal(t, f.mm.State(), Idle)
	assert.Equal(t, f.mm.View().Match == nil, true)
}

func TestResumeWithoutMatch(t *testing.T) {
	f := newMatchmakingFixture()

	ok, err := f.mm.Resume(context.Background())
	assert.Equal(t, err, nil)
	assert.Equal(t, ok, false)
	assert.Equal(t, f.mm.State(), Idle)
}

func TestAcceptInvite(t *testing.T) {
	f := newMatchmakingFixture(func(f *matchmakingFixture) {
		f.api.accepted = arena.MatchDetails{ID: 11}
	})

	assert.Equal(t, f.mm.AcceptInvite(context.Background(), 99), nil)
	assert.Equal(t, f.mm.State(), Found)
	assert.Equal(t, f.mm.View().Match.MatchID, int64(11))
}

func TestCloseCancelsPendingSearch(t *testing.T) {
	f := newMatchmakingFixture()

	assert.Equal(t, f.mm.Close(context.Background()), nil)
	assert.Equal(t, f.api.cancels, 0)

	assert.Equal(t, f.mm.Search(context.Background()), nil)
	assert.Equal(t, f.mm.Close(context.Background()), nil)
	assert.Equal(t, f.api.cancels, 1)
}

func TestFoundMatchIsHandedOver(t *testing.T) {
	f := newMatchmakingFixture(func(f *matchmakingFixture) {
		f.api.ongoing = 11
		f.api.accepted = arena.MatchDetails{ID: 12}
	})
	ctx := context.Background()

	assert.Equal(t, f.mm.Search(ctx), nil)
	assert.Equal(t, len(f.entrant.matches()), 0)
	f.push(t, matchStarted)

	resumed, err := f.mm.Resume(ctx)
	assert.Equal(t, err, nil)
	assert.Equal(t, resumed, true)

	assert.Equal(t, f.mm.AcceptInvite(ctx, 5), nil)
	assert.Equal(t, f.entrant.matches(), []int64{7, 11, 12})
}

func TestHandOverFailureKeepsFound(t *testing.T) {
	f := newMatchmakingFixture(func(f *matchmakingFixture) {
		f.entrant.err = errors.New("details unavailable")
	})

	assert.Equal(t, f.mm.Search(context.Background()), nil)
	f.push(t, matchStarted)

	assert.Equal(t, f.mm.State(), Found)
	assert.Equal(t, f.entrant.matches(), []int64{7})
}

func TestFailedResolutionIsNotHandedOver(t *testing.T) {
	f := newMatchmakingFixture()
	f.resolver.fail(errors.New("log unavailable"))

	assert.Equal(t, f.mm.Search(context.Background()), nil)
	f.push(t, matchStarted)

	assert.Equal(t, f.mm.State(), Searching)
	assert.Equal(t, len(f.entrant.matches()), 0)
}
