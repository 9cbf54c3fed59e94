package arena

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// NotificationAPI serves the persisted notification history.
type NotificationAPI interface {
	FetchNotifications(ctx context.Context, category NotificationCategory, page, size int) (Page[NotificationRecord], error)
	GetUnreadCount(ctx context.Context) (int, error)
	MarkNotificationRead(ctx context.Context, id int64) error
}

// Interface guard
var _ NotificationAPI = (*Client)(nil)

func (c *Client) FetchNotifications(ctx context.Context, category NotificationCategory, page, size int) (Page[NotificationRecord], error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))
	if category != "" && category != CategoryAll {
		q.Set("category", string(category))
	}

	var out Page[NotificationRecord]
	err := c.do(ctx, request{
		method: http.MethodGet,
		route:  "/notifications",
		path:   "/notifications",
		query:  q,
	}, &out)
	return out, err
}

func (c *Client) GetUnreadCount(ctx context.Context) (int, error) {
	var n int
	err := c.do(ctx, request{
		method: http.MethodGet,
		route:  "/notifications/unread-count",
		path:   "/notifications/unread-count",
	}, &n)
	return n, err
}

func (c *Client) MarkNotificationRead(ctx context.Context, id int64) error {
	return c.do(ctx, request{
		method: http.MethodPatch,
		route:  "/notifications/{id}/read",
		path:   fmt.Sprintf("/notifications/%d/read", id),
	}, nil)
}

// Login exchanges email and password for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var out loginResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		route:  "/auth/login",
		path:   "/auth/login",
		body:   loginRequest{Email: email, Password: password},
	}, &out)
	if err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", &APIError{Status: http.StatusOK, Message: "login response carried no token"}
	}
	return out.Token, nil
}
