// Package telemetry wires Sentry tracing and error reporting into the
// service layer.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

const flushTimeout = 5 * time.Second

// Config selects the Sentry project and how many transactions are kept.
type Config struct {
	DSN              string
	Environment      string
	Release          string
	TracesSampleRate float64
	Debug            bool
}

// Init installs the global Sentry client. The returned func flushes buffered
// events and must run before the process exits. An empty DSN disables
// reporting and returns a no-op flush.
func Init(cfg Config) (func(), error) {
	if cfg.DSN == "" {
		return func() {}, nil
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	rate := cfg.TracesSampleRate
	if rate <= 0 || rate > 1 {
		rate = 1
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:           cfg.DSN,
		Environment:   cfg.Environment,
		Release:       cfg.Release,
		ServerName:    "ticketassistd",
		Debug:         cfg.Debug,
		EnableTracing: true,
		TracesSampler: func(sc sentry.SamplingContext) float64 {
			return sampleRate(sc, rate)
		},
	})
	if err != nil {
		return func() {}, fmt.Errorf("init sentry: %w", err)
	}

	return func() { sentry.Flush(flushTimeout) }, nil
}

// sampleRate drops /health checks and keeps child spans with their parent.
func sampleRate(sc sentry.SamplingContext, rate float64) float64 {
	if sc.Span == nil {
		return rate
	}
	if sc.Span.Name == "GET /health" {
		return 0
	}
	if sc.Parent != nil {
		if sc.Parent.Sampled.Bool() {
			return 1
		}
		return 0
	}
	return rate
}

// SpanAttributes are the identifiers a service span is tagged with.
type SpanAttributes struct {
	TicketID   string
	ChunkID    string
	DocumentID string
	Operation  string
}

func (a SpanAttributes) apply(span *sentry.Span) {
	for tag, v := range map[string]string{
		"ticket_id":   a.TicketID,
		"chunk_id":    a.ChunkID,
		"document_id": a.DocumentID,
	} {
		if v != "" {
			span.SetTag(tag, v)
		}
	}
	if a.Operation != "" {
		span.SetData("operation", a.Operation)
	}
}

// Span is a service-level span. The zero value is safe to use.
type Span struct {
	inner *sentry.Span
}

// StartSpan opens a child of the span already in ctx, or a new transaction
// when ctx carries none.
func StartSpan(ctx context.Context, name string, attrs SpanAttributes) (context.Context, *Span) {
	var span *sentry.Span
	if parent := sentry.SpanFromContext(ctx); parent != nil {
		span = parent.StartChild(name)
	} else {
		span = sentry.StartSpan(ctx, name, sentry.WithTransactionName(name))
	}
	attrs.apply(span)
	return span.Context(), &Span{inner: span}
}

func (s *Span) End() {
	if s != nil && s.inner != nil {
		s.inner.Finish()
	}
}

// SetError marks the span failed and reports err on the span's hub.
func (s *Span) SetError(err error) {
	if s == nil || s.inner == nil || err == nil {
		return
	}
	s.inner.Status = sentry.SpanStatusInternalError
	hubFor(s.inner.Context()).CaptureException(err)
}

// CaptureWarning reports a warning-level message with extra key/values.
func CaptureWarning(ctx context.Context, message string, extras map[string]interface{}) {
	hub := hubFor(ctx)
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelWarning)
		for k, v := range extras {
			scope.SetExtra(k, v)
		}
		hub.CaptureMessage(message)
	})
}

func hubFor(ctx context.Context) *sentry.Hub {
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		return hub
	}
	return sentry.CurrentHub()
}
