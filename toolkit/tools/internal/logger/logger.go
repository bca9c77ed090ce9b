// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

const (
	ColorFlag         = "log-color"
	ColorFlagHelp     = "Color setting for log terminal output."
	ColorsPlaceholder = "(always|auto|never)"

	FileFlag     = "log-file"
	FileFlagHelp = "Path to a file where the log will be written, in addition to stderr."

	LevelsFlag        = "log-level"
	LevelsHelp        = "The minimum log level to output."
	LevelsPlaceholder = "(panic|fatal|error|warn|info|debug|trace)"

	ColorAlways = "always"
	ColorAuto   = "auto"
	ColorNever  = "never"

	defaultStderrLevel = logrus.InfoLevel
	defaultFileLevel   = logrus.DebugLevel
	logFilePerm        = 0o664
)

var (
	// Log is the shared logger used across the tools.
	Log *logrus.Logger

	stderrHook *writerHook
)

type LogFlags struct {
	LogColor *string
	LogFile  *string
	LogLevel *string
}

// writerHook forwards entries at or above a minimum level to a writer with its own formatter.
type writerHook struct {
	writer    io.Writer
	level     logrus.Level
	formatter logrus.Formatter
}

func (h *writerHook) Levels() []logrus.Level {
	return logrus.AllLevels[:h.level+1]
}

func (h *writerHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}

	_, err = h.writer.Write(line)
	return err
}

func Levels() []string {
	levels := make([]string, 0, len(logrus.AllLevels))
	for _, level := range logrus.AllLevels {
		levels = append(levels, level.String())
	}
	return levels
}

func Colors() []string {
	return []string{ColorAlways, ColorAuto, ColorNever}
}

// InitStderrLog sets up a logger that only writes to stderr.
func InitStderrLog() {
	Log = logrus.New()
	Log.SetOutput(io.Discard)
	Log.SetLevel(logrus.TraceLevel)

	stderrHook = &writerHook{
		writer:    os.Stderr,
		level:     defaultStderrLevel,
		formatter: newTextFormatter(ColorAuto),
	}
	Log.Hooks.Add(stderrHook)
}

// InitBestEffort sets up the logger using the provided flags.
// Any error in configuring the log file is reported but does not stop the logger from being created.
func InitBestEffort(flags *LogFlags) {
	InitStderrLog()

	if flags == nil {
		return
	}

	if flags.LogColor != nil && *flags.LogColor != "" {
		stderrHook.formatter = newTextFormatter(*flags.LogColor)
	}

	if flags.LogLevel != nil && *flags.LogLevel != "" {
		err := SetStderrLogLevel(*flags.LogLevel)
		if err != nil {
			Log.Warnf("Failed to set log level:\n%v", err)
		}
	}

	if flags.LogFile != nil && *flags.LogFile != "" {
		err := addFileHook(*flags.LogFile)
		if err != nil {
			Log.Warnf("Failed to open log file (%s):\n%v", *flags.LogFile, err)
		}
	}
}

func SetStderrLogLevel(level string) error {
	parsedLevel, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level (%s): must be one of [%s]", level, strings.Join(Levels(), ", "))
	}

	stderrHook.level = parsedLevel
	return nil
}

func addFileHook(logFile string) error {
	err := os.MkdirAll(filepath.Dir(logFile), os.ModePerm)
	if err != nil {
		return err
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePerm)
	if err != nil {
		return err
	}

	Log.Hooks.Add(&writerHook{
		writer: file,
		level:  defaultFileLevel,
		formatter: &logrus.TextFormatter{
			DisableColors: true,
			FullTimestamp: true,
		},
	})
	return nil
}

func newTextFormatter(colorSetting string) *logrus.TextFormatter {
	formatter := &logrus.TextFormatter{
		FullTimestamp: true,
	}

	switch colorSetting {
	case ColorAlways:
		formatter.ForceColors = true
		color.NoColor = false
	case ColorNever:
		formatter.DisableColors = true
		color.NoColor = true
	}

	return formatter
}
