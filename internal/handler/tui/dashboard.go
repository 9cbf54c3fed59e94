// Package tui renders the live consumers in the terminal.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/codeduel/live-delivery/internal/domain/model"
	"github.com/codeduel/live-delivery/internal/service/consumer"
)

type Session interface {
	Status() model.ConnectionState
	OnStatus(fn func(model.ConnectionState))
	Logout() error
}

type Store interface {
	Snapshot() model.Snapshot
	MarkAllRead()
}

// Dashboard is the terminal view over the toast feed, the badge, matchmaking and the open match.
type Dashboard struct {
	session Session
	store   Store
	toasts  *consumer.ToastFeed
	badge   *consumer.Badge
	mm      *consumer.Matchmaking
	page    *consumer.MatchPage
	logger  *slog.Logger

	header  *widgets.Paragraph
	toastUI *widgets.List
	matchUI *widgets.Paragraph
	pageUI  *widgets.Paragraph
	listUI  *widgets.List
}

func NewDashboard(session Session, st Store, toasts *consumer.ToastFeed, badge *consumer.Badge, mm *consumer.Matchmaking, page *consumer.MatchPage, logger *slog.Logger) *Dashboard {
	return &Dashboard{
		session: session,
		store:   st,
		toasts:  toasts,
		badge:   badge,
		mm:      mm,
		page:    page,
		logger:  logger,
	}
}

// Run takes over the terminal until q is pressed, the user logs out or ctx ends.
func (d *Dashboard) Run(ctx context.Context) error {
	if err := ui.Init(); err != nil {
		return fmt.Errorf("init terminal: %w", err)
	}
	defer ui.Close()

	d.build()
	w, h := ui.TerminalDimensions()
	d.resize(w, h)

	redraw := make(chan struct{}, 1)
	signal := func() {
		select {
		case redraw <- struct{}{}:
		default:
		}
	}
	d.toasts.OnChange(signal)
	d.badge.OnChange(signal)
	d.mm.OnChange(signal)
	d.page.OnChange(signal)
	d.session.OnStatus(func(model.ConnectionState) { signal() })

	// relative times move even when nothing happens
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	events := ui.PollEvents()
	for {
		d.draw()

		select {
		case <-ctx.Done():
			return nil
		case <-redraw:
		case <-ticker.C:
		case e := <-events:
			switch e.ID {
			case "q", "<C-c>":
				return nil
			case "a":
				d.store.MarkAllRead()
			case "d":
				if shown := d.toasts.Toasts(); len(shown) > 0 {
					d.toasts.Dismiss(shown[len(shown)-1].ID)
				}
			case "s":
				go d.act(ctx, "search", d.mm.Search)
			case "c":
				go d.act(ctx, "cancel", d.mm.Cancel)
			case "r":
				go d.act(ctx, "resign", d.page.Resign)
			case "x":
				d.page.Leave()
			case "l":
				if err := d.session.Logout(); err != nil {
					d.logger.Warn("DASHBOARD_LOGOUT_FAILED", slog.Any("err", err))
					continue
				}
				return nil
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.resize(payload.Width, payload.Height)
				ui.Clear()
			}
		}
	}
}

// act runs a matchmaking request off the event loop; failures surface in the view.
func (d *Dashboard) act(ctx context.Context, name string, fn func(context.Context) error) {
	if err := fn(ctx); err != nil {
		d.logger.Debug("DASHBOARD_ACTION_FAILED", slog.String("action", name), slog.Any("err", err))
	}
}

func (d *Dashboard) build() {
	d.header = widgets.NewParagraph()
	d.header.Title = "codeduel"

	d.toastUI = widgets.NewList()
	d.toastUI.Title = "Toasts"
	d.toastUI.WrapText = false

	d.matchUI = widgets.NewParagraph()
	d.matchUI.Title = "Matchmaking"

	d.pageUI = widgets.NewParagraph()
	d.pageUI.Title = "Match  [r] resign  [x] leave"

	d.listUI = widgets.NewList()
	d.listUI.Title = "Notifications  [a] read all  [d] dismiss  [s] search  [c] cancel  [l] logout  [q] quit"
	d.listUI.WrapText = false
}

func (d *Dashboard) resize(w, h int) {
	d.header.SetRect(0, 0, w, 3)
	d.toastUI.SetRect(0, 3, w, 3+consumer.DefaultVisibleToasts+2)
	d.matchUI.SetRect(0, 8, w, 11)
	d.pageUI.SetRect(0, 11, w, 14)
	d.listUI.SetRect(0, 14, w, h)
}

func (d *Dashboard) draw() {
	frame := BuildFrame(FrameInput{
		State:       d.session.Status(),
		Snapshot:    d.store.Snapshot(),
		Toasts:      d.toasts.Toasts(),
		Matchmaking: d.mm.View(),
		MatchPage:   d.page.View(),
		Now:         time.Now(),
	})

	d.header.Text = headerText(frame)
	d.toastUI.Rows = frame.Toasts
	d.matchUI.Text = frame.Matchmaking
	d.pageUI.Text = frame.MatchPage
	d.listUI.Rows = frame.Notifications

	ui.Render(d.header, d.toastUI, d.matchUI, d.pageUI, d.listUI)
}

func headerText(f Frame) string {
	text := "Notifications"
	if f.Badge != "" {
		text += fmt.Sprintf(" [%s](fg:white,bg:red)", f.Badge)
	}
	if f.Indicator != "" {
		text += fmt.Sprintf("   [%s](fg:yellow)", f.Indicator)
	}
	return text
}
