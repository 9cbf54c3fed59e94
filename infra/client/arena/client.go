package arena

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/codeduel/live-delivery/infra/client/arena"

// TokenFunc returns the bearer token to attach, or an error when none is stored.
type TokenFunc func() (string, error)

type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client is the resilient REST client of the arena platform.
type Client struct {
	base    *url.URL
	http    *http.Client
	token   TokenFunc
	breaker *gobreaker.CircuitBreaker
	tracer  trace.Tracer
	logger  *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		if tp != nil {
			c.tracer = tp.Tracer(tracerName)
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func New(cfg Config, token TokenFunc, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	c := &Client{
		base:   base,
		http:   &http.Client{Timeout: cfg.Timeout},
		token:  token,
		tracer: otel.Tracer(tracerName),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	// [RESILIENCE] Consecutive transport or server failures open the circuit; client
	// errors (4xx) are answers, not outages.
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "arena-api",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return !apiErr.Temporary()
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("CIRCUIT_BREAKER_STATE_CHANGED",
				slog.String("name", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})

	return c, nil
}

// request describes one REST call. route is the templated path used for span names.
type request struct {
	method string
	route  string
	path   string
	query  url.Values
	body   any
}

// do executes req through the breaker and decodes a JSON answer into out when non-nil.
func (c *Client) do(ctx context.Context, req request, out any) error {
	ctx, span := c.tracer.Start(ctx, req.method+" "+req.route,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", req.method),
			attribute.String("http.route", req.route),
		),
	)
	defer span.End()

	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.roundTrip(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = &APIError{Message: NetworkErrorMessage, Err: err}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if status := StatusOf(err); status != 0 {
			span.SetAttributes(attribute.Int("http.status_code", status))
		}
		return err
	}

	body, _ := res.([]byte)
	span.SetAttributes(attribute.Int("http.response_size", len(body)))

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		span.RecordError(err)
		return fmt.Errorf("decode %s %s: %w", req.method, req.route, err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, req request) ([]byte, error) {
	u := *c.base
	u.Path = c.base.Path + req.path
	if len(req.query) > 0 {
		u.RawQuery = req.query.Encode()
	}

	var payload io.Reader
	if req.body != nil {
		data, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u.String(), payload)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	// [AUTH] the login and signup endpoints must not carry a stale bearer
	if c.token != nil && !strings.Contains(req.path, "/auth") {
		if token, err := c.token(); err == nil && token != "" && token != "undefined" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &APIError{Message: NetworkErrorMessage, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Status: resp.StatusCode, Message: NetworkErrorMessage, Err: err}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &APIError{Status: resp.StatusCode, Message: messageFrom(body)}
	}

	return body, nil
}
