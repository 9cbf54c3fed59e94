// Package httpapi is the local status API of a running session: notification list,
// read state mutations, long-poll, websocket stream and metrics.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/codeduel/live-delivery/infra/metrics"
	"github.com/codeduel/live-delivery/internal/domain/model"
	"github.com/codeduel/live-delivery/internal/domain/store"
	"github.com/codeduel/live-delivery/internal/handler/lp"
	"github.com/codeduel/live-delivery/internal/handler/marshaller"
	"github.com/codeduel/live-delivery/internal/handler/ws"
	"github.com/codeduel/live-delivery/internal/service/consumer"
)

// SessionState is the part of the session the status and logout endpoints use.
type SessionState interface {
	Status() model.ConnectionState
	Username() string
	Logout() error
}

type ConsumerLister interface {
	Consumers() []string
}

type ActiveMatchReader interface {
	Get() (int64, bool)
}

// API serves the local endpoints. Apart from logout it only reads and mutates the
// store; it never talks to the remote platform.
type API struct {
	session   SessionState
	store     *store.Store
	consumers ConsumerLister
	active    ActiveMatchReader
	metrics   *metrics.Metrics
	poll      *lp.LPHandler
	stream    *ws.WSHandler
	logger    *slog.Logger
}

func NewAPI(
	session SessionState,
	st *store.Store,
	consumers ConsumerLister,
	active ActiveMatchReader,
	m *metrics.Metrics,
	poll *lp.LPHandler,
	stream *ws.WSHandler,
	logger *slog.Logger,
) *API {
	return &API{
		session:   session,
		store:     st,
		consumers: consumers,
		active:    active,
		metrics:   m,
		poll:      poll,
		stream:    stream,
		logger:    logger,
	}
}

// Routes builds the chi router.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(a.logRequests)

	r.Get("/status", a.status)
	r.Post("/logout", a.logout)
	r.Route("/notifications", func(r chi.Router) {
		r.Get("/", a.list)
		r.Get("/unread-count", a.unreadCount)
		r.Get("/poll", a.poll.Poll)
		r.Get("/stream", a.stream.ServeHTTP)
		r.Post("/read-all", a.markAllRead)
		r.Post("/{id}/read", a.markRead)
		r.Delete("/{id}", a.remove)
	})
	r.Method(http.MethodGet, "/metrics", a.metrics.Handler())

	return r
}

func (a *API) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		a.logger.Debug("HTTP_REQUEST",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (a *API) status(w http.ResponseWriter, _ *http.Request) {
	stats := a.store.Stats()
	res := model.HubStats{
		State:        a.session.Status(),
		Username:     a.session.Username(),
		Total:        stats.Total,
		Unread:       stats.Unread,
		DedupEntries: stats.DedupEntries,
		Version:      stats.Version,
		Consumers:    a.consumers.Consumers(),
	}
	if id, ok := a.active.Get(); ok {
		res.ActiveMatchID = id
	}
	writeJSON(w, http.StatusOK, res)
}

// logout ends the session: the channel closes, the store empties, the credential
// and every session value are forgotten.
func (a *API) logout(w http.ResponseWriter, _ *http.Request) {
	if err := a.session.Logout(); err != nil {
		a.logger.Error("LOGOUT_FAILED", slog.Any("err", err))
		http.Error(w, "logout failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) list(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, marshaller.MarshallSnapshot(a.store.Snapshot()))
}

func (a *API) unreadCount(w http.ResponseWriter, _ *http.Request) {
	n := a.store.UnreadCount()
	writeJSON(w, http.StatusOK, map[string]any{"unread": n, "label": consumer.BadgeLabel(n)})
}

func (a *API) markRead(w http.ResponseWriter, r *http.Request) {
	if !a.store.MarkRead(chi.URLParam(r, "id")) {
		http.Error(w, "notification not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) markAllRead(w http.ResponseWriter, _ *http.Request) {
	a.store.MarkAllRead()
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) remove(w http.ResponseWriter, r *http.Request) {
	if !a.store.Remove(chi.URLParam(r, "id")) {
		http.Error(w, "notification not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
