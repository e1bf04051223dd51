package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"tg2fa-relay/internal/config"
	"tg2fa-relay/internal/domain"
	"tg2fa-relay/internal/domain/model"
	"tg2fa-relay/internal/domain/ports/adapter"
	"tg2fa-relay/internal/infra/metrics"
)

var _ adapter.BackendClient = (*Client)(nil)

const maxResponseBytes = 1 << 20

// Client talks to the website's bot API. Every request carries the shared
// secret header; failed attempts are retried with exponential backoff.
type Client struct {
	baseURL      string
	secret       string
	secretHeader string
	paths        config.BackendPaths
	maxRetries   int
	backoffStart time.Duration
	backoffMax   time.Duration
	http         *http.Client
	log          *zerolog.Logger
}

func NewClient(cfg config.BackendConfig, logger *zerolog.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("backend base url is empty")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid backend base url: %w", err)
	}
	if cfg.Secret == "" {
		return nil, errors.New("backend secret is empty")
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	compLog := logger.With().Str("component", "BackendClient").Logger()

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultTimeout
	}
	header := cfg.SecretHeader
	if header == "" {
		header = "X-Bot-Secret"
	}
	return &Client{
		baseURL:      base,
		secret:       cfg.Secret,
		secretHeader: header,
		paths:        cfg.Paths,
		maxRetries:   max(cfg.MaxRetries, 0),
		backoffStart: cfg.RetryBackoff,
		backoffMax:   cfg.RetryMaxWait,
		http:         &http.Client{Timeout: timeout},
		log:          &compLog,
	}, nil
}

// Call performs method on path with body encoded as JSON (nil sends no payload)
// and decodes the response into out when out is non-nil.
func (c *Client) Call(ctx context.Context, op, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return &domain.ValidationError{Field: "body", Err: err}
		}
		payload = b
	}
	target := c.baseURL + path

	start := time.Now()
	attempts := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		if attempts > 1 {
			metrics.IncBackendRetry(op)
		}
		return struct{}{}, c.do(ctx, op, method, target, payload, out)
	},
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(uint(c.maxRetries+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.log.Debug().Err(err).Str("op", op).Int("attempt", attempts).Dur("retry_in", next).Msg("backend call failed, retrying")
		}),
	)
	err = classify(op, err)

	result := "ok"
	switch {
	case err == nil:
	case domain.IsProtocol(err):
		result = "protocol"
	default:
		result = "transport"
	}
	metrics.ObserveBackendCall(op, result, time.Since(start).Seconds())
	c.log.Debug().
		Str("op", op).
		Str("method", method).
		Str("path", path).
		Int("attempts", attempts).
		Dur("duration", time.Since(start)).
		Str("result", result).
		Msg("backend call")
	return err
}

func (c *Client) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if c.backoffStart > 0 {
		b.InitialInterval = c.backoffStart
	}
	if c.backoffMax > 0 {
		b.MaxInterval = c.backoffMax
	}
	b.Multiplier = 2
	b.RandomizationFactor = 0.2
	b.Reset()
	return b
}

func (c *Client) do(ctx context.Context, op, method, target string, payload []byte, out any) error {
	var rdr io.Reader
	if payload != nil {
		rdr = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rdr)
	if err != nil {
		return backoff.Permanent(&domain.TransportError{Op: op, Reason: err.Error()})
	}
	req.Header.Set(c.secretHeader, c.secret)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		te := &domain.TransportError{Op: op, Reason: networkReason(err)}
		if ctx.Err() != nil {
			return backoff.Permanent(te)
		}
		return te
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &domain.TransportError{Op: op, Reason: "read body: " + networkReason(err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		te := &domain.TransportError{Op: op, StatusCode: resp.StatusCode, Reason: snippet(raw)}
		if !te.Retryable() {
			return backoff.Permanent(te)
		}
		return te
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return backoff.Permanent(&domain.ProtocolError{Op: op, Err: err})
	}
	return nil
}

// classify makes sure every failure leaving Call belongs to the error taxonomy.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Unwrap()
	}
	if domain.IsTransport(err) || domain.IsProtocol(err) || domain.IsValidation(err) {
		return err
	}
	return &domain.TransportError{Op: op, Reason: err.Error()}
}

func networkReason(err error) string {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return "timeout"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err.Error()
	}
	return err.Error()
}

func snippet(b []byte) string {
	s := strings.Join(strings.Fields(string(b)), " ")
	if r := []rune(s); len(r) > 120 {
		s = string(r[:120]) + "…"
	}
	if s == "" {
		return "empty body"
	}
	return s
}

type ackResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func (r ackResponse) err(op string) error {
	if r.OK {
		return nil
	}
	if r.Error != "" {
		return fmt.Errorf("%s: %w: %s", op, domain.ErrBackendRejected, snippet([]byte(r.Error)))
	}
	return fmt.Errorf("%s: %w", op, domain.ErrBackendRejected)
}

func (c *Client) Bind(ctx context.Context, req model.BindingRequest) error {
	var resp ackResponse
	if err := c.Call(ctx, "bind", http.MethodPost, c.paths.Bind, req, &resp); err != nil {
		return err
	}
	return resp.err("bind")
}

func (c *Client) Pull(ctx context.Context, limit int) ([]model.PendingApproval, error) {
	if limit <= 0 {
		limit = config.DefaultBatchSize
	}
	path := c.paths.Pull
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	path += sep + "limit=" + strconv.Itoa(limit)

	var resp struct {
		OK    *bool             `json:"ok"`
		Error string            `json:"error,omitempty"`
		Items []json.RawMessage `json:"items"`
	}
	if err := c.Call(ctx, "pull", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	if resp.OK != nil && !*resp.OK {
		return nil, ackResponse{Error: resp.Error}.err("pull")
	}
	if len(resp.Items) > limit {
		resp.Items = resp.Items[:limit]
	}
	items := make([]model.PendingApproval, 0, len(resp.Items))
	for i, raw := range resp.Items {
		item, ok := c.decodeItem(i, raw)
		if ok {
			items = append(items, item)
		}
	}
	return items, nil
}

// decodeItem decodes one queue item on its own so a malformed item cannot
// hide the rest of the batch. An item whose id is readable but whose other
// fields are not is returned with only the id set; delivery then reports it
// as an error. An item without a readable id is dropped.
func (c *Client) decodeItem(index int, raw json.RawMessage) (model.PendingApproval, bool) {
	var item model.PendingApproval
	err := json.Unmarshal(raw, &item)
	if err == nil {
		return item, true
	}
	var idOnly struct {
		ID model.FlexString `json:"id"`
	}
	if idErr := json.Unmarshal(raw, &idOnly); idErr != nil || idOnly.ID == "" {
		c.log.Warn().Err(err).Int("index", index).Msg("queue item without readable id skipped")
		return model.PendingApproval{}, false
	}
	c.log.Warn().Err(err).Str("queue_id", idOnly.ID.String()).Msg("malformed queue item, passing id only")
	return model.PendingApproval{ID: idOnly.ID}, true
}

func (c *Client) Mark(ctx context.Context, outcome model.DeliveryOutcome) error {
	var resp ackResponse
	if err := c.Call(ctx, "mark", http.MethodPost, c.paths.Mark, outcome, &resp); err != nil {
		return err
	}
	return resp.err("mark")
}

func (c *Client) Decide(ctx context.Context, decision model.SessionDecision) error {
	var resp ackResponse
	if err := c.Call(ctx, "decide", http.MethodPost, c.paths.Decide, decision, &resp); err != nil {
		return err
	}
	return resp.err("decide")
}
