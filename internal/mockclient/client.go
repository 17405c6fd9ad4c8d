// Package mockclient provides a stand-in for the blockchain RPC client.
//
// Every call goes through the network simulator and is reported to the call
// tracker. The value a call returns is resolved, in order, from:
//
//  1. an error registered with MockError
//  2. the oldest value queued with MockResponseOnce
//  3. the persistent value set with MockResponse
//  4. the method's faker-derived default
//
// Resolution happens only after the simulator admits the call, so a
// simulated failure never consumes a one-shot value.
package mockclient

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/roach88/rpcsim/internal/faker"
	"github.com/roach88/rpcsim/internal/simulator"
	"github.com/roach88/rpcsim/internal/tracker"
)

// SpanName is the name of the span opened for every call.
const SpanName = "rpcsim.call"

// Span attribute keys.
const (
	AttrMethod  = "rpcsim.method"
	AttrOutcome = "rpcsim.outcome"
	AttrSource  = "rpcsim.source"
)

// Outcomes recorded on call spans.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Sources of a resolved value, recorded on call spans.
const (
	SourceError   = "mock_error"
	SourceOnce    = "mock_once"
	SourceMock    = "mock"
	SourceDefault = "default"
)

// DefaultFunc produces the response for an unmocked call.
type DefaultFunc func(f *faker.Faker, method string, args []any) any

// Client is the mock RPC client. Safe for concurrent use.
type Client struct {
	mu        sync.Mutex
	responses map[string]any
	once      map[string][]any
	errs      map[string]error
	defaults  map[string]DefaultFunc

	faker     *faker.Faker
	simulator *simulator.Simulator
	tracker   *tracker.Tracker
	tracer    trace.Tracer
	logger    *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTracerProvider sets the provider call spans are created from.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		if tp != nil {
			c.tracer = tp.Tracer("github.com/roach88/rpcsim/internal/mockclient")
		}
	}
}

// New wires a client to its collaborators. All three are required.
func New(f *faker.Faker, sim *simulator.Simulator, tr *tracker.Tracker, opts ...Option) *Client {
	c := &Client{
		responses: make(map[string]any),
		once:      make(map[string][]any),
		errs:      make(map[string]error),
		defaults:  builtinDefaults(),
		faker:     f,
		simulator: sim,
		tracker:   tr,
		tracer:    noop.NewTracerProvider().Tracer(""),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MockResponse sets the persistent value returned by method.
func (c *Client) MockResponse(method string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses[method] = value
}

// MockResponseOnce queues a value returned by the next admitted call to
// method, ahead of the persistent value. Queued values are consumed FIFO.
func (c *Client) MockResponseOnce(method string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.once[method] = append(c.once[method], value)
}

// MockError makes every admitted call to method fail with err until
// ClearMocks. It takes precedence over queued and persistent values.
func (c *Client) MockError(method string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs[method] = err
}

// ClearMocks removes every registered response, one-shot queue, and error.
// Defaults set with SetDefault are kept.
func (c *Client) ClearMocks() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses = make(map[string]any)
	c.once = make(map[string][]any)
	c.errs = make(map[string]error)
}

// SetDefault overrides the faker-derived default for method.
func (c *Client) SetDefault(method string, fn DefaultFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaults[method] = fn
}

// Pending returns the number of queued one-shot values for method.
func (c *Client) Pending(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.once[method])
}

// Call invokes method with args. Simulator failures are returned exactly as
// the simulator produced them. The call is recorded whether it succeeds or
// fails.
//
// A submitTransaction call with a single payload argument is validated
// first, as SubmitTransaction does.
func (c *Client) Call(ctx context.Context, method string, args ...any) (any, error) {
	if err := precheck(method, args); err != nil {
		c.reject(ctx, method, args, err)
		return nil, err
	}
	return c.invoke(ctx, method, args, nil)
}

// invoke runs one call. decode, when set, converts the resolved value to the
// method's result type; a decode failure fails the call.
func (c *Client) invoke(ctx context.Context, method string, args []any, decode func(any) (any, error)) (any, error) {
	ctx, span := c.tracer.Start(ctx, SpanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String(AttrMethod, method)),
	)
	defer span.End()

	var source string
	result, err := c.simulator.Apply(ctx, method, func(context.Context) (any, error) {
		v, src, err := c.resolve(method, args)
		source = src
		if err != nil || decode == nil {
			return v, err
		}
		return decode(v)
	})

	c.finish(span, method, args, result, source, err)
	return result, err
}

// reject records a call that failed before reaching the simulator.
func (c *Client) reject(ctx context.Context, method string, args []any, err error) {
	_, span := c.tracer.Start(ctx, SpanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String(AttrMethod, method)),
	)
	defer span.End()
	c.finish(span, method, args, nil, "", err)
}

func (c *Client) finish(span trace.Span, method string, args []any, result any, source string, err error) {
	c.tracker.RecordResult(method, args, result, err)

	if source != "" {
		span.SetAttributes(attribute.String(AttrSource, source))
	}
	if err != nil {
		span.SetAttributes(attribute.String(AttrOutcome, OutcomeError))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Debug("call failed", "method", method, "error", err)
		return
	}
	span.SetAttributes(attribute.String(AttrOutcome, OutcomeOK))
	span.SetStatus(codes.Ok, "")
	c.logger.Debug("call", "method", method, "source", source)
}

func (c *Client) resolve(method string, args []any) (any, string, error) {
	c.mu.Lock()
	if err, ok := c.errs[method]; ok {
		c.mu.Unlock()
		return nil, SourceError, err
	}
	if q := c.once[method]; len(q) > 0 {
		v := q[0]
		if len(q) == 1 {
			delete(c.once, method)
		} else {
			c.once[method] = q[1:]
		}
		c.mu.Unlock()
		return v, SourceOnce, nil
	}
	if v, ok := c.responses[method]; ok {
		c.mu.Unlock()
		return v, SourceMock, nil
	}
	fn, ok := c.defaults[method]
	c.mu.Unlock()

	if !ok {
		fn = defaultTransaction
	}
	return fn(c.faker, method, args), SourceDefault, nil
}
