// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Tool that exposes the initrd part plugin to a snap build orchestrator

package main

import (
	"context"
	"log"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/microsoft/kernel-initrd-tools/toolkit/tools/initrdpluginapi"
	"github.com/microsoft/kernel-initrd-tools/toolkit/tools/internal/exekong"
	"github.com/microsoft/kernel-initrd-tools/toolkit/tools/internal/logger"
	"github.com/microsoft/kernel-initrd-tools/toolkit/tools/internal/ptrutils"
	"github.com/microsoft/kernel-initrd-tools/toolkit/tools/internal/telemetry"
	"github.com/microsoft/kernel-initrd-tools/toolkit/tools/pkg/initrdpluginlib"
	"golang.org/x/sys/unix"
)

const (
	defaultBase = "core24"
)

type InitrdPluginCmd struct {
	Validate        ValidateCmd        `cmd:"" help:"Validate the initrd properties of a part."`
	Packages        PackagesCmd        `cmd:"" help:"Print the host packages needed to build the part."`
	Snaps           SnapsCmd           `cmd:"" help:"Print the snaps needed to build the part."`
	Environment     EnvironmentCmd     `cmd:"" help:"Print the environment of the part's build commands."`
	Commands        CommandsCmd        `cmd:"" help:"Print the shell commands that build the initrd."`
	RegisterSources RegisterSourcesCmd `cmd:"" name:"register-sources" help:"Register the package sources the part needs on this host."`
	Schema          SchemaCmd          `cmd:"" help:"Print the JSON schema of the initrd part properties."`
	Verify          VerifyCmd          `cmd:"" help:"Check the contents of a built initrd image."`

	Json    bool             `name:"json" help:"Print output as JSON instead of YAML."`
	Version kong.VersionFlag `name:"version" help:"Print the tool version and exit."`
	exekong.LogFlags
	exekong.TelemetryFlags
}

func main() {
	ctx := context.Background()

	cli := &InitrdPluginCmd{}

	vars := exekong.Vars(kong.Vars{
		"version":  initrdpluginlib.ToolVersion,
		"hostarch": hostArch(),
		"base":     defaultBase,
		"archs":    strings.Join(initrdpluginapi.SupportedArchitectures(), ", "),
	})

	kongCtx := kong.Parse(cli,
		kong.Name("initrdplugin"),
		kong.Description("Builds the initrd of a kernel snap part."),
		vars,
		kong.HelpOptions{
			Compact:   true,
			FlagsLast: true,
		},
		kong.UsageOnError())

	logger.InitBestEffort(ptrutils.PtrTo(cli.LogFlags.AsLoggerFlags()))

	invocationId, err := telemetry.InitTelemetry(cli.DisableTelemetry, initrdpluginlib.ToolVersion)
	if err != nil {
		logger.Log.Warnf("Failed to initialize telemetry:\n%v", err)
	}
	logger.Log.Debugf("Invocation id: %s", invocationId)

	err = kongCtx.Run(&runContext{
		ctx:    ctx,
		stdout: os.Stdout,
		json:   cli.Json,
	})

	shutdownErr := telemetry.ShutdownTelemetry(ctx)
	if shutdownErr != nil {
		logger.Log.Warnf("Failed to shut down telemetry:\n%v", shutdownErr)
	}

	if err != nil {
		log.Fatalf("%s failed:\n%v", kongCtx.Command(), err)
	}
}

// hostArch returns the machine name reported by the kernel.
func hostArch() string {
	var uname unix.Utsname
	err := unix.Uname(&uname)
	if err != nil {
		return ""
	}

	return unix.ByteSliceToString(uname.Machine[:])
}
