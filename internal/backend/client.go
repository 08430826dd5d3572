// Package backend is the REST client for the tracking service.
//
// Every call carries the operator's bearer token and a fresh X-Request-ID,
// runs inside an OpenTelemetry client span named backend.<Operation>, and
// maps failures onto dErrors codes:
//
//   - network errors, timeouts and 5xx responses: CodeTransport
//   - 401: CodeUnauthorized, after invoking the unauthorized hook
//   - 404: CodeNotFound
//   - other 4xx: CodeBadRequest
//   - undecodable bodies: CodeValidation (list calls degrade to empty)
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"fleetwatch/internal/platform/metrics"
	dErrors "fleetwatch/pkg/domain-errors"
	"fleetwatch/pkg/requestcontext"
)

const (
	// DefaultTimeout bounds every request.
	DefaultTimeout = 30 * time.Second

	// HeaderRequestID correlates console and backend logs.
	HeaderRequestID = "X-Request-ID"

	tracerName = "fleetwatch/internal/backend"

	// maxErrorBody bounds how much of an error response is read.
	maxErrorBody = 64 << 10
)

// TokenSource supplies the bearer token. An empty token sends the request
// unauthenticated.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenSourceFunc adapts a function to TokenSource.
type TokenSourceFunc func(ctx context.Context) (string, error)

func (f TokenSourceFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// Client talks to the tracking service.
type Client struct {
	baseURL        *url.URL
	http           *http.Client
	tokens         TokenSource
	onUnauthorized func(ctx context.Context)
	tracer         trace.Tracer
	logger         *slog.Logger
	metrics        *metrics.Metrics
}

type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) {
		c.tokens = ts
	}
}

// WithUnauthorizedHook registers fn to run whenever an authenticated call
// is answered with 401.
func WithUnauthorizedHook(fn func(ctx context.Context)) Option {
	return func(c *Client) {
		c.onUnauthorized = fn
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		if tp != nil {
			c.tracer = tp.Tracer(tracerName)
		}
	}
}

// New constructs a Client for baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("invalid backend URL %q", baseURL))
	}
	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: DefaultTimeout},
		tracer:  otel.Tracer(tracerName),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type call struct {
	operation string
	method    string
	path      string
	query     url.Values
	body      any
	out       any
	anonymous bool
}

func (c *Client) do(ctx context.Context, cl call) error {
	ctx, requestID := requestcontext.EnsureRequestID(ctx)
	ctx, span := c.tracer.Start(ctx, "backend."+cl.operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", cl.method),
			attribute.String("url.path", cl.path),
			attribute.String("request_id", requestID),
		),
	)
	defer span.End()

	err := c.roundTrip(ctx, cl, requestID, span)
	code := "ok"
	if err != nil {
		code = string(dErrors.CodeOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, code)
		level := slog.LevelDebug
		if dErrors.HasCode(err, dErrors.CodeValidation) {
			level = slog.LevelWarn
		}
		c.logger.Log(ctx, level, "backend call failed",
			"operation", cl.operation,
			"request_id", requestID,
			"error", err,
		)
	}
	c.metrics.IncrementBackendRequest(cl.operation, code)
	return err
}

func (c *Client) roundTrip(ctx context.Context, cl call, requestID string, span trace.Span) error {
	req, err := c.newRequest(ctx, cl, requestID)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeTransport, cl.operation+": request failed")
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode >= http.StatusBadRequest {
		return c.statusError(ctx, cl, resp)
	}
	if cl.out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(cl.out); err != nil {
		c.metrics.IncrementValidationError(cl.operation)
		return dErrors.Wrap(err, dErrors.CodeValidation, cl.operation+": malformed response")
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, cl call, requestID string) (*http.Request, error) {
	u := c.baseURL.JoinPath(cl.path)
	if len(cl.query) > 0 {
		u.RawQuery = cl.query.Encode()
	}

	var body io.Reader
	if cl.body != nil {
		raw, err := json.Marshal(cl.body)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, cl.operation+": encode request")
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, u.String(), body)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, cl.operation+": build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderRequestID, requestID)

	if !cl.anonymous && c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, cl.operation+": read token")
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return req, nil
}

type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
}

// errorMessage extracts "detail" (string form) or "message" from an error
// response.
func errorMessage(raw []byte) string {
	var eb errorBody
	if err := json.Unmarshal(raw, &eb); err != nil {
		return ""
	}
	var detail string
	if len(eb.Detail) > 0 && json.Unmarshal(eb.Detail, &detail) == nil && detail != "" {
		return detail
	}
	return eb.Message
}

// StatusError is the cause of every non-2xx failure. Message holds the
// backend's own explanation, if it gave one.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend returned %d", e.StatusCode)
}

func (c *Client) statusError(ctx context.Context, cl call, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	cause := &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(raw)}
	msg := cause.Message
	if msg == "" {
		msg = cl.operation + ": " + cause.Error()
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		if !cl.anonymous && c.onUnauthorized != nil {
			c.onUnauthorized(ctx)
		}
		return dErrors.Wrap(cause, dErrors.CodeUnauthorized, msg)
	case resp.StatusCode == http.StatusNotFound:
		return dErrors.Wrap(cause, dErrors.CodeNotFound, msg)
	case resp.StatusCode >= http.StatusInternalServerError:
		return dErrors.Wrap(cause, dErrors.CodeTransport, msg)
	default:
		return dErrors.Wrap(cause, dErrors.CodeBadRequest, msg)
	}
}
