// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetStderrLogLevelValid(t *testing.T) {
	InitStderrLog()

	err := SetStderrLogLevel("debug")
	assert.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, stderrHook.level)
}

func TestSetStderrLogLevelInvalid(t *testing.T) {
	InitStderrLog()

	err := SetStderrLogLevel("loud")
	assert.ErrorContains(t, err, "invalid log level (loud)")
	assert.Equal(t, defaultStderrLevel, stderrHook.level)
}

func TestInitBestEffortLogFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "initrdplugin.log")
	level := "warn"
	colorSetting := ColorNever

	InitBestEffort(&LogFlags{
		LogColor: &colorSetting,
		LogFile:  &logFile,
		LogLevel: &level,
	})

	Log.Debugf("written to file only")

	contents, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(contents), "written to file only")
	assert.Equal(t, logrus.WarnLevel, stderrHook.level)
}

func TestMemoryLogHookConsumeMessages(t *testing.T) {
	InitStderrLog()

	hook := NewMemoryLogHook()
	Log.Hooks.Add(hook)

	Log.Infof("first")
	Log.Warnf("second")

	messages := hook.ConsumeMessages()
	assert.Equal(t, []MemoryLogMessage{
		{Message: "first", Level: logrus.InfoLevel},
		{Message: "second", Level: logrus.WarnLevel},
	}, messages)
	assert.Empty(t, hook.ConsumeMessages())
}

func TestLevelsAndColors(t *testing.T) {
	assert.Contains(t, Levels(), "trace")
	assert.Contains(t, Levels(), "panic")
	assert.Equal(t, []string{"always", "auto", "never"}, Colors())
}
