// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package initrdpluginlib

import (
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	OtelTracerName = "initrdpluginlib"
)

// finishSpanWithError ends the span, recording the error that the surrounding function is about to return.
func finishSpanWithError(span trace.Span, errPtr *error) {
	if errPtr != nil && *errPtr != nil {
		err := *errPtr

		var pluginError *InitrdPluginError
		if errors.As(err, &pluginError) {
			span.SetAttributes(attribute.String("error.name", pluginError.Name()))
		}

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	span.End()
}
