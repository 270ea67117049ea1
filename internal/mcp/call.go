package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/thellimist/mcphost/internal/toolfilter"
)

// Retry defaults.
const (
	DefaultMaxAttempts    = 3
	DefaultRetryDelay     = time.Second
	DefaultAttemptTimeout = 30 * time.Second
)

// RetryPolicy bounds how a call is retried.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// Delay is the fixed pause between attempts.
	Delay time.Duration
	// AttemptTimeout bounds each attempt. Zero disables the bound.
	AttemptTimeout time.Duration
}

// DefaultRetryPolicy returns three attempts one second apart, each bounded
// by thirty seconds.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    DefaultMaxAttempts,
		Delay:          DefaultRetryDelay,
		AttemptTimeout: DefaultAttemptTimeout,
	}
}

// Caller issues tool calls and resource reads on an initialized session
// against a fixed capability snapshot.
type Caller struct {
	session *Session
	caps    Capabilities
	policy  RetryPolicy
	logger  *slog.Logger
	sleep   func(context.Context, time.Duration) error
}

// CallerOption configures a Caller.
type CallerOption func(*Caller)

// WithCallerLogger sets the caller logger.
func WithCallerLogger(l *slog.Logger) CallerOption {
	return func(c *Caller) { c.logger = l }
}

// withSleep replaces the pause between attempts.
func withSleep(fn func(context.Context, time.Duration) error) CallerOption {
	return func(c *Caller) { c.sleep = fn }
}

// NewCaller returns a caller over session. caps is the tool snapshot used to
// reject unknown tools without touching the channel.
func NewCaller(session *Session, caps Capabilities, policy RetryPolicy, opts ...CallerOption) *Caller {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	c := &Caller{
		session: session,
		caps:    caps,
		policy:  policy,
		logger:  slog.Default(),
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// InvokeTool calls the named tool and returns the text of the first content
// item, or "" when the result has no content. A result flagged isError is
// still a result: its text is returned without error. Use CallTool to see
// the flag.
//
// A tool that was not discovered fails with *UnknownToolError before any
// traffic. Every other failure is retried per the policy; the last one is
// returned as *ToolError.
func (c *Caller) InvokeTool(ctx context.Context, name string, args map[string]any) (string, error) {
	res, err := c.CallTool(ctx, name, args)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// CallTool is InvokeTool returning the whole result.
func (c *Caller) CallTool(ctx context.Context, name string, args map[string]any) (*ToolResult, error) {
	if !c.session.Initialized() {
		return nil, &UnknownToolError{Name: name, Err: ErrNotInitialized}
	}
	if _, ok := c.caps.Tool(name); !ok {
		return nil, &UnknownToolError{
			Name:       name,
			Suggestion: toolfilter.SuggestTool(name, c.caps.ToolNames()),
		}
	}
	if args == nil {
		args = map[string]any{}
	}

	params := CallToolParams{Name: name, Arguments: args}
	res, attempts, err := call(ctx, c, MethodToolsCall, params, toolResult)
	if err != nil {
		msg, code := failureDetail(err)
		return nil, &ToolError{Tool: name, Message: msg, Code: code, Attempts: attempts, Err: err}
	}
	res.Tool = name
	return res, nil
}

// ReadResource reads uri and returns the text of its first content item,
// or "" when the peer returned no contents.
func (c *Caller) ReadResource(ctx context.Context, uri string) (string, error) {
	if !c.session.Initialized() {
		return "", fmt.Errorf("read resource %s: %w", uri, ErrNotInitialized)
	}

	params := ReadResourceParams{URI: uri}
	text, attempts, err := call(ctx, c, MethodResourcesRead, params, resourceText)
	if err != nil {
		msg, code := failureDetail(err)
		return "", &ResourceError{URI: uri, Message: msg, Code: code, Attempts: attempts, Err: err}
	}
	return text, nil
}

// call runs attempts until one returns a result, the attempts are
// exhausted or ctx is done. It returns the number of attempts made.
func call[T any](ctx context.Context, c *Caller, method string, params any, extract func(json.RawMessage) (T, error)) (T, int, error) {
	var zero T
	for attempt := 1; ; attempt++ {
		v, err := attemptOnce(ctx, c, method, params, extract)
		if err == nil {
			return v, attempt, nil
		}
		if ctx.Err() != nil || attempt >= c.policy.MaxAttempts {
			return zero, attempt, err
		}

		c.logger.Warn("call attempt failed, retrying",
			"method", method,
			"attempt", attempt,
			"max_attempts", c.policy.MaxAttempts,
			"delay", c.policy.Delay,
			"error", err)

		if serr := c.sleep(ctx, c.policy.Delay); serr != nil {
			return zero, attempt, errors.Join(err, serr)
		}
	}
}

func attemptOnce[T any](ctx context.Context, c *Caller, method string, params any, extract func(json.RawMessage) (T, error)) (T, error) {
	if c.policy.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.policy.AttemptTimeout)
		defer cancel()
	}

	var zero T
	resp, err := c.session.Request(ctx, method, params)
	if err != nil {
		return zero, err
	}
	if resp.Error != nil {
		return zero, resp.Error
	}
	return extract(resp.Result)
}

func toolResult(raw json.RawMessage) (*ToolResult, error) {
	if isAbsent(raw) {
		return nil, fmt.Errorf("%w: empty tool result", ErrMalformedMessage)
	}
	var result CallToolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("%w: tool result: %w", ErrMalformedMessage, err)
	}
	res := &ToolResult{IsError: result.IsError}
	if len(result.Content) > 0 {
		res.Text = result.Content[0].Text
	}
	return res, nil
}

func resourceText(raw json.RawMessage) (string, error) {
	if isAbsent(raw) {
		return "", fmt.Errorf("%w: empty resource result", ErrMalformedMessage)
	}
	var result ReadResourceResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("%w: resource result: %w", ErrMalformedMessage, err)
	}
	if len(result.Contents) == 0 {
		return "", nil
	}
	return result.Contents[0].Text, nil
}

// sleepContext pauses for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
