// Package tracing wraps an OpenTelemetry span and a gocore stat around one unit of work.
package tracing

import (
	"context"
	"fmt"
	"time"

	"github.com/bsv-blockchain/shardledger/ulogger"
	"github.com/ordishs/gocore"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "github.com/bsv-blockchain/shardledger"

type Options func(s *TraceOptions)

type TraceOptions struct {
	ParentStat *gocore.Stat
	Histogram  prometheus.Histogram
	Counter    prometheus.Counter
	Tags       []attribute.KeyValue
	Logger     ulogger.Logger
	LogMessage string
	LogArgs    []interface{}
}

func WithParentStat(stat *gocore.Stat) Options {
	return func(s *TraceOptions) {
		s.ParentStat = stat
	}
}

// WithHistogram sets the histogram observed, in seconds, when the span ends.
func WithHistogram(histogram prometheus.Histogram) Options {
	return func(s *TraceOptions) {
		s.Histogram = histogram
	}
}

// WithCounter sets the counter incremented when the span ends.
func WithCounter(counter prometheus.Counter) Options {
	return func(s *TraceOptions) {
		s.Counter = counter
	}
}

func WithTag(key, value string) Options {
	return func(s *TraceOptions) {
		s.Tags = append(s.Tags, attribute.String(key, value))
	}
}

// WithLogMessage logs the formatted message at INFO when the span starts and again, with the
// elapsed time, when it ends. Use it on request boundaries only.
func WithLogMessage(logger ulogger.Logger, format string, args ...interface{}) Options {
	return func(s *TraceOptions) {
		s.Logger = logger
		s.LogMessage = format
		s.LogArgs = args
	}
}

// StartTracing starts a span named name and returns the context carrying it, the stat for the
// operation and a function that ends both. An error passed to the end function is recorded on
// the span.
func StartTracing(ctx context.Context, name string, setOptions ...Options) (context.Context, *gocore.Stat, func(...error)) {
	options := &TraceOptions{}
	for _, opt := range setOptions {
		opt(options)
	}

	spanCtx, span := otel.Tracer(tracerName).Start(ctx, name)
	if len(options.Tags) > 0 {
		span.SetAttributes(options.Tags...)
	}

	var (
		start time.Time
		stat  *gocore.Stat
	)

	if options.ParentStat != nil {
		start, stat, ctx = NewStatFromContext(spanCtx, name, options.ParentStat)
	} else {
		start, stat, ctx = StartStatFromContext(spanCtx, name)
	}

	if options.Logger != nil && options.LogMessage != "" {
		options.Logger.Infof(options.LogMessage, options.LogArgs...)
	}

	return ctx, stat, func(errs ...error) {
		for _, err := range errs {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
		}

		span.End()
		stat.AddTime(start)

		if options.Histogram != nil {
			options.Histogram.Observe(time.Since(start).Seconds())
		}

		if options.Counter != nil {
			options.Counter.Inc()
		}

		if options.Logger != nil && options.LogMessage != "" {
			done := fmt.Sprintf(" DONE in %s", time.Since(start))
			options.Logger.Infof(options.LogMessage+done, options.LogArgs...)
		}
	}
}
