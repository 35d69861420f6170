// Client - resilient wrapper around providers.
//
// Information Hiding:
// - Retry, backoff and rate limiting hidden behind one SendTurn call
// - Token estimation heuristic hidden

package llm

import (
	"context"
	"encoding/json"
	"time"

	"github.com/warden-agent/warden/audit"
	"github.com/warden-agent/warden/netx"
)

// Client wraps a Provider with retry, rate limiting and usage
// accounting. All network resilience lives here: providers send one
// request, the Client decides whether and when to send another.
type Client struct {
	provider Provider
	retrier  *netx.Retrier
	limiter  *netx.RateLimiter
	sink     audit.Sink
	session  string
}

// NewClient creates a resilient client from a provider.
func NewClient(provider Provider) *Client {
	return &Client{
		provider: provider,
		retrier:  netx.NewRetrier(netx.DefaultMaxRetries),
		sink:     audit.NopSink{},
	}
}

// WithRetrier sets the retry policy.
func (c *Client) WithRetrier(retrier *netx.Retrier) *Client {
	c.retrier = retrier
	return c
}

// WithLimiter sets the request/token pacing limiter.
func (c *Client) WithLimiter(limiter *netx.RateLimiter) *Client {
	c.limiter = limiter
	c.retrier.WithLimiter(limiter)
	return c
}

// WithAudit routes retry events to the given sink under a session ID.
func (c *Client) WithAudit(sink audit.Sink, session string) *Client {
	c.sink = sink
	c.session = session
	return c
}

// SendTurn sends one chat turn through the resilience layer. Returned
// errors are classified: netx.TransientError never escapes (it either
// resolves through retry or becomes netx.ExhaustedError), permanent
// failures return immediately.
func (c *Client) SendTurn(ctx context.Context, messages []ChatMessage, tools []ToolDefinition) (ModelReply, error) {
	c.retrier.OnRetry = func(attempt int, err error, delay time.Duration) {
		ev := audit.New(audit.EventRetry, c.session)
		ev.Reason = err.Error()
		ev.Detail = c.provider.Name() + "/" + c.provider.Model()
		c.sink.Record(ctx, ev)
	}

	var reply ModelReply
	err := c.retrier.Do(ctx, estimateTokens(messages), func(ctx context.Context) error {
		var sendErr error
		reply, sendErr = c.provider.SendTurn(ctx, messages, tools)
		return sendErr
	})
	if err != nil {
		return ModelReply{}, err
	}

	if c.limiter != nil && reply.Usage != nil {
		c.limiter.Record(int(reply.Usage.PromptTokens), int(reply.Usage.CompletionTokens))
	}

	return reply, nil
}

// Totals returns cumulative usage recorded by the limiter, zero
// totals when no limiter is configured.
func (c *Client) Totals() netx.UsageTotals {
	if c.limiter == nil {
		return netx.UsageTotals{}
	}
	return c.limiter.Totals()
}

// Provider returns the underlying provider.
func (c *Client) Provider() Provider {
	return c.provider
}

// estimateTokens approximates the prompt size for pacing before the
// provider reports real usage. Roughly four bytes per token.
func estimateTokens(messages []ChatMessage) int {
	total := 0
	for _, msg := range messages {
		total += len(msg.Content)
		for _, tc := range msg.ToolCalls {
			total += len(tc.Name) + len(tc.Arguments)
		}
	}
	if raw, err := json.Marshal(messages); err == nil && len(raw) > total {
		total = len(raw)
	}
	return total/4 + 1
}
