package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/codeduel/live-delivery/infra/client/arena"
	"github.com/codeduel/live-delivery/internal/domain/event"
	"github.com/codeduel/live-delivery/internal/domain/model"
	"github.com/codeduel/live-delivery/internal/domain/registry"
	"github.com/codeduel/live-delivery/internal/service"
)

var (
	ErrNotSearching     = errors.New("matchmaking: not searching")
	ErrAlreadySearching = errors.New("matchmaking: already searching")
)

type MatchmakingState string

const (
	Idle      MatchmakingState = "idle"
	Searching MatchmakingState = "searching"
	Found     MatchmakingState = "found"
)

type SearchMode string

const (
	ModeOpponent SearchMode = "opponent"
	ModeFriend   SearchMode = "friend"
)

// MatchmakingAPI is the REST surface of the matchmaking flow.
type MatchmakingAPI interface {
	SearchOpponent(ctx context.Context) error
	CancelOpponentSearch(ctx context.Context) error
	GetOngoingMatch(ctx context.Context) (int64, bool, error)
	SendMatchInvite(ctx context.Context, username string) (int64, error)
	CancelMatchInvite(ctx context.Context, notificationID int64) error
	AcceptMatchInvite(ctx context.Context, notificationID int64) (arena.MatchDetails, error)
}

// MatchEntrant opens the page of a match once the flow has found it.
type MatchEntrant interface {
	Enter(ctx context.Context, matchID int64) error
}

// MatchmakingView is what the outer surfaces render.
type MatchmakingView struct {
	State   MatchmakingState  `json:"state"`
	Mode    SearchMode        `json:"mode,omitempty"`
	Invitee string            `json:"invitee,omitempty"`
	Match   *model.MatchFound `json:"match,omitempty"`
	Err     string            `json:"error,omitempty"`
}

// Interface guard
var _ registry.Consumer = (*Matchmaking)(nil)

// Matchmaking moves idle -> searching on a user request and searching -> found on the
// first MATCH_STARTED notification created after the search began.
type Matchmaking struct {
	api      MatchmakingAPI
	resolver service.Resolver
	store    Store
	username func() string
	entrant  MatchEntrant
	now      func() time.Time
	logger   *slog.Logger
	changes  listeners

	mu        sync.Mutex
	state     MatchmakingState
	mode      SearchMode
	invitee   string
	inviteID  int64
	startedAt time.Time
	claiming  string
	found     *model.MatchFound
	err       error
}

type MatchmakingOption func(*Matchmaking)

func WithMatchmakingClock(now func() time.Time) MatchmakingOption {
	return func(m *Matchmaking) { m.now = now }
}

// WithMatchEntrant hands every found match over to e.
func WithMatchEntrant(e MatchEntrant) MatchmakingOption {
	return func(m *Matchmaking) { m.entrant = e }
}

func WithMatchmakingLogger(l *slog.Logger) MatchmakingOption {
	return func(m *Matchmaking) { m.logger = l }
}

func NewMatchmaking(api MatchmakingAPI, resolver service.Resolver, st Store, username func() string, opts ...MatchmakingOption) *Matchmaking {
	m := &Matchmaking{
		api:      api,
		resolver: resolver,
		store:    st,
		username: username,
		now:      time.Now,
		logger:   slog.Default(),
		state:    Idle,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Matchmaking) Name() string { return "matchmaking" }

// Reconcile claims the correlated MATCH_STARTED notification while searching.
// A failed resolution leaves the notification untouched so Retry can re-examine it.
func (m *Matchmaking) Reconcile(ctx context.Context, snap model.Snapshot) {
	m.mu.Lock()
	if m.state != Searching || m.err != nil {
		m.mu.Unlock()
		return
	}
	n, ok := m.correlatedLocked(snap)
	m.mu.Unlock()

	if ok {
		m.claim(ctx, n)
	}
}

// correlatedLocked finds the match start belonging to the running search. The toast
// feed marks every displayed notification read at once, so the flow correlates by
// creation time instead of the read flag.
func (m *Matchmaking) correlatedLocked(snap model.Snapshot) (model.Notification, bool) {
	since := m.startedAt
	return snap.Find(func(n model.Notification) bool {
		return n.Kind() == event.MatchStarted && !n.CreatedAt.Before(since)
	})
}

func (m *Matchmaking) claim(ctx context.Context, n model.Notification) error {
	m.mu.Lock()
	if m.state != Searching || m.claiming != "" {
		m.mu.Unlock()
		return nil
	}
	m.claiming = n.ID
	m.mu.Unlock()

	found, err := m.resolve(ctx, n)

	m.mu.Lock()
	m.claiming = ""
	if m.state != Searching {
		m.mu.Unlock()
		return nil
	}
	if err != nil {
		m.err = err
		m.mu.Unlock()
		m.logger.Warn("MATCH_FOUND_RESOLUTION_FAILED", slog.String("notification", n.ID), slog.Any("err", err))
		m.changes.fire()
		return err
	}
	m.state, m.found, m.err = Found, &found, nil
	m.mu.Unlock()

	m.store.MarkRead(n.ID)
	m.logger.Info("MATCH_FOUND", slog.Int64("match_id", found.MatchID), slog.String("opponent", found.Player2.Username))
	m.changes.fire()
	m.handOff(ctx, found)
	return nil
}

// handOff opens the match page. A failed page load stays on the page, so the flow
// keeps its found state either way.
func (m *Matchmaking) handOff(ctx context.Context, found model.MatchFound) {
	if m.entrant == nil {
		return
	}
	if err := m.entrant.Enter(ctx, found.MatchID); err != nil {
		m.logger.Warn("MATCH_PAGE_ENTER_FAILED", slog.Int64("match_id", found.MatchID), slog.Any("err", err))
	}
}

func (m *Matchmaking) resolve(ctx context.Context, n model.Notification) (model.MatchFound, error) {
	found, err := m.resolver.Resolve(ctx, n.MatchID(), m.username())
	if err != nil {
		return model.MatchFound{}, err
	}
	// the push carries the problem even when the details omit it
	if started, ok := n.Metadata.(*event.MatchStartedEvent); ok && found.ProblemID == 0 {
		found.ProblemID = started.ProblemID
	}
	return found, nil
}

// Search starts an opponent search.
func (m *Matchmaking) Search(ctx context.Context) error {
	if err := m.begin(ModeOpponent, ""); err != nil {
		return err
	}
	if err := m.api.SearchOpponent(ctx); err != nil {
		m.abort(err)
		return fmt.Errorf("search opponent: %w", err)
	}
	m.logger.Info("MATCHMAKING_SEARCH_STARTED")
	return nil
}

// InviteFriend searches by inviting username; the invite is cancelled with the search.
func (m *Matchmaking) InviteFriend(ctx context.Context, username string) error {
	if err := m.begin(ModeFriend, username); err != nil {
		return err
	}
	id, err := m.api.SendMatchInvite(ctx, username)
	if err != nil {
		m.abort(err)
		return fmt.Errorf("invite %s: %w", username, err)
	}

	m.mu.Lock()
	m.inviteID = id
	m.mu.Unlock()
	m.logger.Info("MATCHMAKING_INVITE_SENT", slog.String("invitee", username), slog.Int64("notification_id", id))
	return nil
}

// AcceptInvite joins the match a friend invited us to.
func (m *Matchmaking) AcceptInvite(ctx context.Context, notificationID int64) error {
	details, err := m.api.AcceptMatchInvite(ctx, notificationID)
	if err != nil {
		return fmt.Errorf("accept invite: %w", err)
	}
	found, err := m.resolver.Resolve(ctx, details.ID, m.username())
	if err != nil {
		return err
	}
	m.enter(ctx, found)
	return nil
}

func (m *Matchmaking) begin(mode SearchMode, invitee string) error {
	m.mu.Lock()
	if m.state == Searching {
		m.mu.Unlock()
		return ErrAlreadySearching
	}
	m.state, m.mode, m.invitee, m.inviteID = Searching, mode, invitee, 0
	m.startedAt, m.found, m.err = m.now(), nil, nil
	m.mu.Unlock()

	m.changes.fire()
	return nil
}

func (m *Matchmaking) abort(err error) {
	m.mu.Lock()
	m.state, m.mode, m.invitee = Idle, "", ""
	m.err = err
	m.mu.Unlock()
	m.changes.fire()
}

// Cancel aborts the search. If the match start was already ingested the transition to
// found wins and nothing is cancelled server side.
func (m *Matchmaking) Cancel(ctx context.Context) error {
	m.mu.Lock()
	switch {
	case m.state == Found:
		m.mu.Unlock()
		return nil
	case m.state != Searching:
		m.mu.Unlock()
		return ErrNotSearching
	case m.claiming != "":
		m.mu.Unlock()
		return nil
	}

	if n, ok := m.correlatedLocked(m.store.Snapshot()); ok {
		m.err = nil
		m.mu.Unlock()
		m.logger.Info("MATCHMAKING_CANCEL_LOST_RACE", slog.Int64("match_id", n.MatchID()))
		return m.claim(ctx, n)
	}

	mode, inviteID := m.mode, m.inviteID
	m.state, m.mode, m.invitee, m.inviteID, m.err = Idle, "", "", 0, nil
	m.mu.Unlock()
	m.changes.fire()

	var err error
	if mode == ModeFriend {
		if inviteID != 0 {
			err = m.api.CancelMatchInvite(ctx, inviteID)
		}
	} else {
		err = m.api.CancelOpponentSearch(ctx)
	}
	if err != nil {
		return fmt.Errorf("cancel search: %w", err)
	}
	m.logger.Info("MATCHMAKING_CANCELLED", slog.String("mode", string(mode)))
	return nil
}

// Resume enters found directly when the server reports a match in progress.
func (m *Matchmaking) Resume(ctx context.Context) (bool, error) {
	matchID, ok, err := m.api.GetOngoingMatch(ctx)
	if err != nil || !ok {
		return false, err
	}
	found, err := m.resolver.Resolve(ctx, matchID, m.username())
	if err != nil {
		return false, err
	}
	m.enter(ctx, found)
	return true, nil
}

// Retry re-runs a failed resolution against the current store contents.
func (m *Matchmaking) Retry(ctx context.Context) error {
	m.mu.Lock()
	if m.state != Searching {
		m.mu.Unlock()
		return ErrNotSearching
	}
	m.err = nil
	n, ok := m.correlatedLocked(m.store.Snapshot())
	m.mu.Unlock()

	if !ok {
		return nil
	}
	return m.claim(ctx, n)
}

func (m *Matchmaking) enter(ctx context.Context, found model.MatchFound) {
	m.mu.Lock()
	m.state, m.found, m.err = Found, &found, nil
	m.mu.Unlock()
	m.changes.fire()
	m.handOff(ctx, found)
}

// Reset returns to idle once the found match has been handed over.
func (m *Matchmaking) Reset() {
	m.mu.Lock()
	m.state, m.mode, m.invitee, m.inviteID = Idle, "", "", 0
	m.found, m.err = nil, nil
	m.mu.Unlock()
	m.changes.fire()
}

// Close cancels a pending search.
func (m *Matchmaking) Close(ctx context.Context) error {
	if m.State() != Searching {
		return nil
	}
	return m.Cancel(ctx)
}

func (m *Matchmaking) State() MatchmakingState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Matchmaking) View() MatchmakingView {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := MatchmakingView{State: m.state, Mode: m.mode, Invitee: m.invitee}
	if m.found != nil {
		found := *m.found
		v.Match = &found
	}
	if m.err != nil {
		v.Err = m.err.Error()
	}
	return v
}

func (m *Matchmaking) OnChange(fn func()) { m.changes.add(fn) }
