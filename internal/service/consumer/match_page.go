package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/codeduel/live-delivery/infra/client/arena"
	"github.com/codeduel/live-delivery/internal/domain/event"
	"github.com/codeduel/live-delivery/internal/domain/model"
	"github.com/codeduel/live-delivery/internal/domain/registry"
)

const DefaultResultsDelay = time.Second

type MatchPhase string

const (
	PhaseNone      MatchPhase = ""
	PhaseOngoing   MatchPhase = "ongoing"
	PhaseCompleted MatchPhase = "completed"
)

// MatchPageAPI is the REST surface of a live match.
type MatchPageAPI interface {
	GetMatchDetails(ctx context.Context, matchID int64) (arena.MatchDetails, error)
	GetMatchResults(ctx context.Context, matchID int64) (model.MatchResult, error)
	ResignMatch(ctx context.Context, matchID int64) error
}

type MatchPageView struct {
	MatchID int64               `json:"match_id,omitempty"`
	Phase   MatchPhase          `json:"phase,omitempty"`
	Details *arena.MatchDetails `json:"details,omitempty"`
	Result  *model.MatchResult  `json:"result,omitempty"`
	Err     string              `json:"error,omitempty"`
}

// Interface guard
var _ registry.Consumer = (*MatchPage)(nil)

// MatchPage tracks one match from ongoing to completed. It never goes back.
type MatchPage struct {
	api          MatchPageAPI
	active       *ActiveMatch
	resultsDelay time.Duration
	afterFunc    AfterFunc
	logger       *slog.Logger
	changes      listeners

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	matchID int64
	phase   MatchPhase
	details *arena.MatchDetails
	result  *model.MatchResult
	timer   Timer
	handled map[string]struct{}
	err     error
}

type MatchPageOption func(*MatchPage)

func WithResultsDelay(d time.Duration) MatchPageOption {
	return func(p *MatchPage) {
		if d >= 0 {
			p.resultsDelay = d
		}
	}
}

func WithMatchPageTimers(after AfterFunc) MatchPageOption {
	return func(p *MatchPage) { p.afterFunc = after }
}

func WithMatchPageLogger(l *slog.Logger) MatchPageOption {
	return func(p *MatchPage) { p.logger = l }
}

func NewMatchPage(api MatchPageAPI, active *ActiveMatch, opts ...MatchPageOption) *MatchPage {
	p := &MatchPage{
		api:          api,
		active:       active,
		resultsDelay: DefaultResultsDelay,
		afterFunc:    realAfterFunc,
		logger:       slog.Default(),
		handled:      make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *MatchPage) Name() string { return "match_page" }

// Enter opens matchID, marks it active and loads its details.
func (p *MatchPage) Enter(ctx context.Context, matchID int64) error {
	p.mu.Lock()
	p.stopLocked()
	p.ctx, p.cancel = context.WithCancel(context.WithoutCancel(ctx))
	p.matchID, p.phase = matchID, PhaseOngoing
	p.details, p.result, p.err = nil, nil, nil
	p.handled = make(map[string]struct{})
	p.mu.Unlock()

	p.active.Set(matchID)
	p.changes.fire()

	return p.Load(ctx)
}

// Load fetches the authoritative state. A terminal state completes the page and
// fetches the results at once.
func (p *MatchPage) Load(ctx context.Context) error {
	matchID := p.MatchID()
	if matchID == 0 {
		return nil
	}

	details, err := p.api.GetMatchDetails(ctx, matchID)
	if err != nil {
		p.fail(matchID, err)
		return fmt.Errorf("load match %d: %w", matchID, err)
	}

	p.mu.Lock()
	if p.matchID != matchID {
		p.mu.Unlock()
		return nil
	}
	p.details = &details
	p.mu.Unlock()
	p.changes.fire()

	if details.MatchState.Terminal() {
		p.complete(matchID, "details")
		return p.FetchResults(ctx)
	}
	return nil
}

// Reconcile completes the page on a MATCH_COMPLETED or USER_RESIGNED push for the open
// match. Completion also schedules the results fetch.
func (p *MatchPage) Reconcile(_ context.Context, snap model.Snapshot) {
	p.mu.Lock()
	matchID := p.matchID
	if matchID == 0 {
		p.mu.Unlock()
		return
	}

	var hits []model.Notification
	for _, n := range snap.Notifications {
		if n.MatchID() != matchID {
			continue
		}
		if k := n.Kind(); k != event.MatchCompleted && k != event.UserResigned {
			continue
		}
		if _, ok := p.handled[n.ID]; ok {
			continue
		}
		p.handled[n.ID] = struct{}{}
		hits = append(hits, n)
	}
	p.mu.Unlock()

	for _, n := range hits {
		p.complete(matchID, string(n.Kind()))
		if n.Kind() == event.MatchCompleted {
			p.scheduleResults(matchID)
		}
	}
}

func (p *MatchPage) complete(matchID int64, cause string) {
	p.mu.Lock()
	if p.matchID != matchID || p.phase == PhaseCompleted {
		p.mu.Unlock()
		return
	}
	p.phase = PhaseCompleted
	p.mu.Unlock()

	p.logger.Info("MATCH_COMPLETED", slog.Int64("match_id", matchID), slog.String("cause", cause))
	p.changes.fire()
}

func (p *MatchPage) scheduleResults(matchID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.matchID != matchID || p.timer != nil || p.result != nil {
		return
	}
	ctx := p.ctx
	p.timer = p.afterFunc(p.resultsDelay, func() {
		p.mu.Lock()
		p.timer = nil
		p.mu.Unlock()
		if err := p.FetchResults(ctx); err != nil {
			p.logger.Warn("MATCH_RESULTS_FAILED", slog.Int64("match_id", matchID), slog.Any("err", err))
		}
	})
}

// FetchResults loads the user's outcome and releases the active match.
func (p *MatchPage) FetchResults(ctx context.Context) error {
	matchID := p.MatchID()
	if matchID == 0 {
		return nil
	}

	res, err := p.api.GetMatchResults(ctx, matchID)
	if err != nil {
		p.fail(matchID, err)
		return fmt.Errorf("results of match %d: %w", matchID, err)
	}

	p.mu.Lock()
	if p.matchID != matchID {
		p.mu.Unlock()
		return nil
	}
	p.result, p.err = &res, nil
	p.mu.Unlock()

	p.complete(matchID, "results")
	p.active.Clear()
	p.changes.fire()
	return nil
}

// Resign gives the match up. On failure the page is left as it was.
func (p *MatchPage) Resign(ctx context.Context) error {
	matchID := p.MatchID()
	if matchID == 0 {
		return fmt.Errorf("resign: no match open")
	}
	if err := p.api.ResignMatch(ctx, matchID); err != nil {
		return fmt.Errorf("resign match %d: %w", matchID, err)
	}

	p.complete(matchID, "resigned")
	p.active.Clear()
	return nil
}

// Leave closes the page. An ongoing match stays active so the user can come back.
func (p *MatchPage) Leave() {
	p.mu.Lock()
	p.stopLocked()
	completed := p.phase == PhaseCompleted
	p.matchID, p.phase = 0, PhaseNone
	p.details, p.result, p.err = nil, nil, nil
	p.mu.Unlock()

	if completed {
		p.active.Clear()
	}
	p.changes.fire()
}

// Reset closes the page on logout.
func (p *MatchPage) Reset() {
	p.mu.Lock()
	p.stopLocked()
	p.matchID, p.phase = 0, PhaseNone
	p.details, p.result, p.err = nil, nil, nil
	p.mu.Unlock()
	p.changes.fire()
}

// Close cancels the pending results fetch.
func (p *MatchPage) Close() {
	p.mu.Lock()
	p.stopLocked()
	p.mu.Unlock()
}

func (p *MatchPage) stopLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

func (p *MatchPage) fail(matchID int64, err error) {
	p.mu.Lock()
	if p.matchID == matchID {
		p.err = err
	}
	p.mu.Unlock()
	p.changes.fire()
}

func (p *MatchPage) MatchID() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.matchID
}

func (p *MatchPage) Phase() MatchPhase {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.phase
}

func (p *MatchPage) View() MatchPageView {
	p.mu.Lock()
	defer p.mu.Unlock()

	v := MatchPageView{MatchID: p.matchID, Phase: p.phase}
	if p.details != nil {
		d := *p.details
		v.Details = &d
	}
	if p.result != nil {
		r := *p.result
		v.Result = &r
	}
	if p.err != nil {
		v.Err = p.err.Error()
	}
	return v
}

func (p *MatchPage) OnChange(fn func()) { p.changes.add(fn) }
