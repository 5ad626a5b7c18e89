package otelhelper

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrorKindKey classifies why an execution span failed.
const ErrorKindKey = "rentflow.error.kind"

// ErrorKind values recorded under ErrorKindKey.
const (
	ErrorKindPrecondition = "precondition"
	ErrorKindStorage      = "storage"
	ErrorKindAction       = "action"
)

// SetError marks span as failed with kind and records err as an exception
// event carrying attrs. A nil err leaves the span untouched.
func SetError(span trace.Span, err error, kind string, attrs ...attribute.KeyValue) {
	if err == nil {
		return
	}

	span.SetAttributes(attribute.String(ErrorKindKey, kind))
	span.RecordError(err, trace.WithAttributes(attrs...))
	span.SetStatus(codes.Error, err.Error())
}
