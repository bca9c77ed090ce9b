// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package telemetry

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/microsoft/kernel-initrd-tools/toolkit/tools/internal/logger"
	"github.com/stretchr/testify/assert"
)

func TestInitTelemetryDisabled(t *testing.T) {
	logger.InitStderrLog()

	invocationId, err := InitTelemetry(true, "0.1.0")
	assert.NoError(t, err)

	_, err = uuid.Parse(invocationId)
	assert.NoError(t, err)
	assert.Nil(t, shutdownFn)
	assert.NoError(t, ShutdownTelemetry(context.Background()))
}

func TestInitTelemetryNoEndpoint(t *testing.T) {
	logger.InitStderrLog()
	t.Setenv(otlpEndpointEnvVar, "")

	invocationId, err := InitTelemetry(false, "0.1.0")
	assert.NoError(t, err)
	assert.NotEmpty(t, invocationId)
	assert.Nil(t, shutdownFn)
}
