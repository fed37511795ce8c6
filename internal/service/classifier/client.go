// Package classifier is the HTTP client for the emotion classification and
// recommendation endpoint.
package classifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/moodcine/backend/internal/config"
	"github.com/moodcine/backend/internal/metrics"
	"github.com/moodcine/backend/internal/model/chat"
	"github.com/moodcine/backend/internal/model/recommend"
	"github.com/moodcine/backend/internal/resilience"
)

// ErrNetworkFailure is wrapped by every error the client returns.
var ErrNetworkFailure = errors.New("classifier request failed")

const (
	maxBodySize      = 1 << 20
	maxErrorBodySize = 4 << 10
)

// FailureKind says at which stage a request failed.
type FailureKind string

const (
	FailureTransport FailureKind = "transport"
	FailureStatus    FailureKind = "status"
	FailureDecode    FailureKind = "decode"
	FailureRejected  FailureKind = "rejected"
)

// RequestError describes a failed classifier call. errors.Is(err, ErrNetworkFailure) holds.
type RequestError struct {
	Kind       FailureKind
	StatusCode int
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("classifier %s failure (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("classifier %s failure: %v", e.Kind, e.Err)
}

func (e *RequestError) Unwrap() []error {
	return []error{ErrNetworkFailure, e.Err}
}

// Client posts turns to the classifier through a circuit breaker.
type Client struct {
	url        string
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[[]byte]
}

// NewClient builds a client for cfg. httpClient may be nil.
func NewClient(cfg config.ClassifierConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		url:        cfg.URL,
		baseURL:    cfg.BaseURL(),
		httpClient: httpClient,
		breaker:    resilience.NewBreaker[[]byte]("classifier", resilience.DefaultBreakerSettings()),
	}
}

// wireResponse distinguishes a missing reply from an empty one.
type wireResponse struct {
	Reply      *string      `json:"reply"`
	Final      bool         `json:"final"`
	Summary    string       `json:"summary"`
	Emotion    string       `json:"emotion"`
	SubEmotion string       `json:"sub_emotion"`
	Movies     []chat.Movie `json:"movies"`
}

// Classify sends one turn. Transport errors, non-2xx statuses and bodies without
// a reply are all reported as *RequestError.
func (c *Client) Classify(ctx context.Context, req chat.ClassifyRequest) (chat.ClassifyResponse, error) {
	op := "classify"
	if req.IsChat() {
		op = "chat"
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return chat.ClassifyResponse{}, fmt.Errorf("encode classify request: %w", err)
	}

	body, err := c.do(ctx, op, http.MethodPost, c.url, payload)
	if err != nil {
		return chat.ClassifyResponse{}, err
	}

	var wire wireResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return chat.ClassifyResponse{}, c.fail(op, &RequestError{Kind: FailureDecode, Err: err})
	}
	if wire.Reply == nil {
		return chat.ClassifyResponse{}, c.fail(op, &RequestError{Kind: FailureDecode, Err: errors.New("response has no reply")})
	}

	return chat.ClassifyResponse{
		Reply:      *wire.Reply,
		Final:      wire.Final,
		Summary:    wire.Summary,
		Emotion:    wire.Emotion,
		SubEmotion: wire.SubEmotion,
		Movies:     wire.Movies,
	}, nil
}

// Stats fetches the per-emotion counters published next to the classify endpoint.
func (c *Client) Stats(ctx context.Context) ([]recommend.EmotionStat, error) {
	var stats []recommend.EmotionStat
	if err := c.getJSON(ctx, "stats", &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// Top10 fetches the most recommended titles.
func (c *Client) Top10(ctx context.Context) ([]recommend.MovieStat, error) {
	var top []recommend.MovieStat
	if err := c.getJSON(ctx, "top10", &top); err != nil {
		return nil, err
	}
	return top, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	body, err := c.do(ctx, path, http.MethodGet, c.baseURL+"/"+path, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return c.fail(path, &RequestError{Kind: FailureDecode, Err: err})
	}
	return nil
}

func (c *Client) do(ctx context.Context, op, method, url string, payload []byte) ([]byte, error) {
	start := time.Now()
	defer func() {
		metrics.UpstreamDuration.WithLabelValues("classifier", op).Observe(time.Since(start).Seconds())
	}()

	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.roundTrip(ctx, method, url, payload)
	})
	if err != nil {
		if resilience.IsRejection(err) {
			err = &RequestError{Kind: FailureRejected, Err: err}
		}
		return nil, c.fail(op, err)
	}

	metrics.UpstreamRequests.WithLabelValues("classifier", op, "success").Inc()
	return body, nil
}

func (c *Client) roundTrip(ctx context.Context, method, url string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, &RequestError{Kind: FailureTransport, Err: err}
	}
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			err = fmt.Errorf("%w: %w", resilience.ErrCallerCanceled, err)
		}
		return nil, &RequestError{Kind: FailureTransport, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return nil, &RequestError{
			Kind:       FailureStatus,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status: %s", strings.TrimSpace(string(snippet))),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &RequestError{Kind: FailureTransport, Err: err}
	}
	return body, nil
}

func (c *Client) fail(op string, err error) error {
	kind := FailureTransport
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		kind = reqErr.Kind
	} else {
		err = &RequestError{Kind: kind, Err: err}
	}
	metrics.UpstreamRequests.WithLabelValues("classifier", op, string(kind)).Inc()
	return err
}
