// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package telemetry

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/google/uuid"
	"github.com/microsoft/kernel-initrd-tools/toolkit/tools/internal/logger"
	"github.com/microsoft/kernel-initrd-tools/toolkit/tools/internal/osinfo"
	autoexport "go.opentelemetry.io/contrib/exporters/autoexport"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

const (
	otlpEndpointEnvVar = "OTEL_EXPORTER_OTLP_ENDPOINT"
	serviceName        = "initrdplugin"
)

var shutdownFn func(ctx context.Context) error

// InitTelemetry installs a tracer provider that exports to the OTLP endpoint from the environment.
// It returns the invocation id attached to every span of this run.
func InitTelemetry(disableTelemetry bool, toolVersion string) (string, error) {
	invocationId := uuid.NewString()

	if disableTelemetry {
		logger.Log.Info("Disabled telemetry collection")
		return invocationId, nil
	} else if os.Getenv(otlpEndpointEnvVar) == "" {
		logger.Log.Debug("No OTLP endpoint set, telemetry will not be collected")
		return invocationId, nil
	}

	exporter, err := autoexport.NewSpanExporter(context.Background())
	if err != nil {
		return "", fmt.Errorf("failed to create OTLP exporter:\n%w", err)
	}

	distro, version := osinfo.GetDistroAndVersion()

	res, _ := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(toolVersion),
			attribute.String("invocation.id", invocationId),
			attribute.String("host.architecture", runtime.GOARCH),
			attribute.String("host.os", distro),
			attribute.String("host.os.version", version),
		),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	shutdownFn = tp.Shutdown

	logger.Log.Debugf("Telemetry enabled (invocation id: %s)", invocationId)
	return invocationId, nil
}

func ShutdownTelemetry(ctx context.Context) error {
	if shutdownFn == nil {
		return nil
	}

	tp, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	if ok {
		err := tp.ForceFlush(ctx)
		if err != nil {
			logger.Log.Warnf("Failed to flush telemetry spans: %v", err)
		}
	}

	err := shutdownFn(ctx)
	shutdownFn = nil
	return err
}
