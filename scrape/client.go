package scrape

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

var tracer = otel.Tracer("electionjobs/scrape")

type attemptKey struct{}

// attempt is the span of one try of a request.
type attempt struct {
	parent context.Context
	span   trace.Span
}

type ClientOptions struct {
	Timeout   time.Duration
	Retries   int
	UserAgent string
	// RequestsPerSecond limits outgoing requests. Zero means unlimited.
	RequestsPerSecond float64
}

func (o *ClientOptions) withDefaults() ClientOptions {
	opts := *o
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	return opts
}

func newClient(opts ClientOptions) *resty.Client {
	opts = opts.withDefaults()

	client := resty.New()
	client.SetTimeout(opts.Timeout)
	client.SetHeader("User-Agent", opts.UserAgent)
	client.SetRetryCount(opts.Retries)
	client.SetRetryWaitTime(500 * time.Millisecond)
	client.SetRetryMaxWaitTime(5 * time.Second)
	client.AddRetryCondition(func(res *resty.Response, err error) bool {
		if err != nil {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		}
		if res == nil {
			return false
		}
		return res.StatusCode() == 429 || res.StatusCode() >= 500
	})

	if opts.RequestsPerSecond > 0 {
		limiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
		client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return limiter.Wait(req.Context())
		})
	}

	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		parent := req.Context()
		// Retries run the request hooks again. Close the previous attempt's
		// span and start the next one as its sibling.
		if prev, ok := parent.Value(attemptKey{}).(*attempt); ok {
			prev.span.End()
			parent = prev.parent
		}

		ctx, span := tracer.Start(parent, "http "+req.Method, trace.WithAttributes(attribute.String("url", req.URL)))
		req.SetContext(context.WithValue(ctx, attemptKey{}, &attempt{parent: parent, span: span}))
		return nil
	})
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		span := trace.SpanFromContext(res.Request.Context())
		defer span.End()

		span.SetAttributes(attribute.Int("status", res.StatusCode()))
		if res.IsError() {
			span.SetStatus(codes.Error, res.Status())
		}
		return nil
	})
	client.OnError(func(req *resty.Request, err error) {
		span := trace.SpanFromContext(req.Context())
		defer span.End()

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	})

	return client
}
