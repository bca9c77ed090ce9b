// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package exekong holds the kong flag groups shared by the command line tools.
package exekong

import (
	"maps"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/microsoft/kernel-initrd-tools/toolkit/tools/internal/logger"
)

type LogFlags struct {
	LogColor string `name:"log-color" placeholder:"(always|auto|never)" help:"${logcolorhelp}" enum:"${logcolorvalues}" default:""`
	LogFile  string `name:"log-file" help:"${logfilehelp}"`
	LogLevel string `name:"log-level" placeholder:"(panic|fatal|error|warn|info|debug|trace)" help:"${loglevelhelp}" enum:"${loglevelvalues}" default:""`
}

type TelemetryFlags struct {
	DisableTelemetry bool `name:"disable-telemetry" help:"Disable OpenTelemetry trace collection." env:"INITRD_PLUGIN_DISABLE_TELEMETRY"`
}

// Vars returns the kong variables referenced by the shared flag groups, merged with the tool's own variables.
func Vars(toolVars kong.Vars) kong.Vars {
	vars := kong.Vars{
		"logcolorhelp":   logger.ColorFlagHelp,
		"logcolorvalues": strings.Join(logger.Colors(), ", ") + ",",
		"logfilehelp":    logger.FileFlagHelp,
		"loglevelhelp":   logger.LevelsHelp,
		"loglevelvalues": strings.Join(logger.Levels(), ", ") + ",",
	}
	maps.Copy(vars, toolVars)
	return vars
}

func (f LogFlags) AsLoggerFlags() logger.LogFlags {
	return logger.LogFlags{
		LogColor: &f.LogColor,
		LogFile:  &f.LogFile,
		LogLevel: &f.LogLevel,
	}
}
