package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/sirupsen/logrus"

	"github.com/joelkehle/breast-mri-extract/internal/fields"
	"github.com/joelkehle/breast-mri-extract/internal/logging"
	"github.com/joelkehle/breast-mri-extract/internal/metrics"
)

// ErrTransport marks a generator call that never produced a response.
var ErrTransport = errors.New("structured generator transport failure")

var statusCodeRe = regexp.MustCompile(`(?:status(?:\s+code)?[:=\s]+)(\d{3})`)

type failureClass int

const (
	failureNone failureClass = iota
	failureTimeout
	failureRateLimit
	failureServer
	failureClient
)

func (f failureClass) String() string {
	switch f {
	case failureTimeout:
		return "timeout"
	case failureRateLimit:
		return "rate_limit"
	case failureServer:
		return "server"
	case failureClient:
		return "client"
	}
	return "none"
}

// Client turns a prompt and a schema into a validated field result.
type Client struct {
	caller   Caller
	attempts int
	timeout  time.Duration
	backoff  func(attempt int) time.Duration
	log      *logrus.Logger
	metrics  *metrics.Metrics
}

type Option func(*Client)

func WithAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.attempts = n
		}
	}
}

// WithTimeout bounds each attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithBackoff(fn func(attempt int) time.Duration) Option {
	return func(c *Client) { c.backoff = fn }
}

func WithLogger(l *logrus.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func NewClient(caller Caller, opts ...Option) *Client {
	c := &Client{
		caller:   caller,
		attempts: 3,
		backoff:  backoffDelay,
		log:      logging.Discard(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) ModelName() string {
	if c == nil || c.caller == nil {
		return DefaultModel
	}
	return c.caller.ModelName()
}

// Extract asks the generator for the fields in schema. Transport errors are
// retried with backoff; empty, malformed or schema-violating responses are
// retried with feedback. After the last attempt a parse failure wraps
// fields.ErrMalformedOutput and a schema failure is returned as the
// *fields.SchemaViolationError together with the keys that did validate.
func (c *Client) Extract(ctx context.Context, prompt string, schema *fields.Schema) (fields.Result, error) {
	schemaJSON, err := json.Marshal(schema.JSON())
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}
	base := prompt + "\n\nThe JSON object must validate against this schema:\n" + string(schemaJSON)
	feedback := ""

	for attempt := 1; attempt <= c.attempts; attempt++ {
		full := base
		if feedback != "" {
			full += "\n\n" + feedback
		}
		last := attempt == c.attempts
		entry := c.log.WithFields(logrus.Fields{"attempt": attempt, "model": c.ModelName(), "keys": len(schema.Keys())})
		start := time.Now()
		entry.Debug("llm_attempt_start")

		raw, err := c.generate(ctx, full)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			class := classifyTransportError(err)
			c.metrics.IncLLMAttempt("transport")
			entry.WithFields(logrus.Fields{"class": class.String(), "elapsed_ms": time.Since(start).Milliseconds()}).
				WithError(err).Warn("llm_attempt_transport_error")
			if !last && (class == failureTimeout || class == failureRateLimit || class == failureServer) {
				if err := sleep(ctx, c.backoff(attempt)); err != nil {
					return nil, err
				}
				continue
			}
			return nil, fmt.Errorf("%w: %w", ErrTransport, err)
		}

		raw = strings.TrimSpace(raw)
		if raw == "" {
			c.metrics.IncLLMAttempt("empty")
			entry.WithField("elapsed_ms", time.Since(start).Milliseconds()).Warn("llm_attempt_empty")
			if !last {
				feedback = "Your previous response was empty. Return valid JSON only."
				continue
			}
			return nil, fmt.Errorf("%w: empty response", fields.ErrMalformedOutput)
		}

		clean := stripCodeFences(raw)
		res, err := schema.Decode([]byte(clean))
		if err != nil {
			var sv *fields.SchemaViolationError
			if errors.As(err, &sv) {
				c.metrics.IncLLMAttempt("schema")
				entry.WithField("elapsed_ms", time.Since(start).Milliseconds()).WithError(err).Warn("llm_attempt_validation_error")
				if !last {
					feedback = fmt.Sprintf("Your response failed validation: %s. Fix and return valid JSON only.", sv)
					continue
				}
				return res, sv
			}
			c.metrics.IncLLMAttempt("malformed")
			entry.WithField("elapsed_ms", time.Since(start).Milliseconds()).WithError(err).Warn("llm_attempt_json_error")
			if !last {
				feedback = "Your previous response was not valid JSON. Return valid JSON only."
				continue
			}
			return nil, err
		}

		c.metrics.IncLLMAttempt("ok")
		entry.WithFields(logrus.Fields{"elapsed_ms": time.Since(start).Milliseconds(), "response_chars": len(clean)}).Debug("llm_attempt_success")
		return res, nil
	}
	return nil, fmt.Errorf("%w: no attempts configured", ErrTransport)
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return c.caller.GenerateJSON(ctx, prompt)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		parts := strings.SplitN(s, "\n", 2)
		if len(parts) == 2 {
			s = parts[1]
		}
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	return s
}

func classifyTransportError(err error) failureClass {
	if errors.Is(err, context.DeadlineExceeded) {
		return failureTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return failureTimeout
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.StatusCode)
	}
	msg := strings.ToLower(err.Error())
	if m := statusCodeRe.FindStringSubmatch(msg); len(m) == 2 {
		if code, err := strconv.Atoi(m[1]); err == nil && code >= 100 && code < 600 {
			return classifyStatus(code)
		}
	}
	switch {
	case strings.Contains(msg, "rate limit"):
		return failureRateLimit
	case strings.Contains(msg, "server error"), strings.Contains(msg, "overloaded"):
		return failureServer
	default:
		return failureServer
	}
}

func classifyStatus(code int) failureClass {
	switch {
	case code == 429:
		return failureRateLimit
	case code == 408:
		return failureTimeout
	case code >= 500:
		return failureServer
	case code >= 400:
		return failureClient
	}
	return failureServer
}

func backoffDelay(attempt int) time.Duration {
	switch attempt {
	case 1:
		return 1 * time.Second
	case 2:
		return 2 * time.Second
	default:
		return 4 * time.Second
	}
}
