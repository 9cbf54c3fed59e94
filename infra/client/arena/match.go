package arena

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/codeduel/live-delivery/internal/domain/model"
)

// MatchAPI is the match surface used by the live consumers.
type MatchAPI interface {
	SearchOpponent(ctx context.Context) error
	CancelOpponentSearch(ctx context.Context) error
	GetOngoingMatch(ctx context.Context) (int64, bool, error)
	GetMatchDetails(ctx context.Context, matchID int64) (MatchDetails, error)
	GetMatchResults(ctx context.Context, matchID int64) (model.MatchResult, error)
	GetMatchSubmissionLog(ctx context.Context, matchID int64) ([]SubmissionLog, error)
	ResignMatch(ctx context.Context, matchID int64) error
	SendMatchInvite(ctx context.Context, username string) (int64, error)
	CancelMatchInvite(ctx context.Context, notificationID int64) error
	AcceptMatchInvite(ctx context.Context, notificationID int64) (MatchDetails, error)
}

// Interface guard
var _ MatchAPI = (*Client)(nil)

func (c *Client) SearchOpponent(ctx context.Context) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		route:  "/matches/search-opponent",
		path:   "/matches/search-opponent",
	}, nil)
}

func (c *Client) CancelOpponentSearch(ctx context.Context) error {
	return c.do(ctx, request{
		method: http.MethodDelete,
		route:  "/matches/search-opponent/cancel",
		path:   "/matches/search-opponent/cancel",
	}, nil)
}

// GetOngoingMatch reports the match the user is currently playing, if any.
func (c *Client) GetOngoingMatch(ctx context.Context) (int64, bool, error) {
	var id *int64
	err := c.do(ctx, request{
		method: http.MethodGet,
		route:  "/matches/on-going",
		path:   "/matches/on-going",
	}, &id)
	if err != nil || id == nil {
		return 0, false, err
	}
	return *id, true, nil
}

func (c *Client) GetMatchDetails(ctx context.Context, matchID int64) (MatchDetails, error) {
	var out MatchDetails
	err := c.do(ctx, request{
		method: http.MethodGet,
		route:  "/matches/{id}",
		path:   fmt.Sprintf("/matches/%d", matchID),
	}, &out)
	return out, err
}

func (c *Client) GetMatchResults(ctx context.Context, matchID int64) (model.MatchResult, error) {
	var out model.MatchResult
	err := c.do(ctx, request{
		method: http.MethodGet,
		route:  "/matches/{id}/results",
		path:   fmt.Sprintf("/matches/%d/results", matchID),
	}, &out)
	return out, err
}

func (c *Client) GetMatchSubmissionLog(ctx context.Context, matchID int64) ([]SubmissionLog, error) {
	var out []SubmissionLog
	err := c.do(ctx, request{
		method: http.MethodGet,
		route:  "/matches/{id}/submission-log",
		path:   fmt.Sprintf("/matches/%d/submission-log", matchID),
	}, &out)
	return out, err
}

func (c *Client) ResignMatch(ctx context.Context, matchID int64) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		route:  "/matches/{id}/resign",
		path:   fmt.Sprintf("/matches/%d/resign", matchID),
	}, nil)
}

// SendMatchInvite returns the id of the invite notification, needed to cancel it.
func (c *Client) SendMatchInvite(ctx context.Context, username string) (int64, error) {
	var id int64
	err := c.do(ctx, request{
		method: http.MethodPost,
		route:  "/matches/invite/{username}",
		path:   "/matches/invite/" + url.PathEscape(username),
	}, &id)
	return id, err
}

func (c *Client) CancelMatchInvite(ctx context.Context, notificationID int64) error {
	return c.do(ctx, request{
		method: http.MethodPatch,
		route:  "/matches/invite/{id}/cancel",
		path:   fmt.Sprintf("/matches/invite/%d/cancel", notificationID),
	}, nil)
}

func (c *Client) AcceptMatchInvite(ctx context.Context, notificationID int64) (MatchDetails, error) {
	var out MatchDetails
	err := c.do(ctx, request{
		method: http.MethodPost,
		route:  "/matches/invite/{id}/accept",
		path:   fmt.Sprintf("/matches/invite/%d/accept", notificationID),
	}, &out)
	return out, err
}
