// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package initrdpluginlib

import (
	"context"
	"fmt"

	"github.com/microsoft/kernel-initrd-tools/toolkit/tools/initrdpluginapi"
	"github.com/microsoft/kernel-initrd-tools/toolkit/tools/internal/logger"
	"github.com/microsoft/kernel-initrd-tools/toolkit/tools/pkg/initrdbuild"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sys/unix"
)

var (
	// Validation errors
	ErrInvalidProperties = NewInitrdPluginError("Validation:InvalidProperties", "invalid initrd plugin properties")
	ErrInvalidPartInfo   = NewInitrdPluginError("Validation:InvalidPartInfo", "invalid part info")

	// Build errors
	ErrGenerateBuildCommands    = NewInitrdPluginError("Build:GenerateBuildCommands", "failed to generate initrd build commands")
	ErrRegisterPackageSource    = NewInitrdPluginError("Build:RegisterPackageSource", "failed to register package source")
	ErrNoPackageSourceRegistrar = NewInitrdPluginError("Build:NoPackageSourceRegistrar", "package sources required but no registrar was provided")
)

const (
	// Shell expressions expanded by the build orchestrator when the commands run.
	craftPartSrcDir     = "${CRAFT_PART_SRC}"
	craftPartBuildDir   = "${CRAFT_PART_BUILD}"
	craftPartInstallDir = "${CRAFT_PART_INSTALL}"
	craftStageDir       = "${CRAFT_STAGE}"
)

// Version specifies the version of the initrd plugin tools.
// The value of this string is inserted during compilation via a linker flag.
var ToolVersion = ""

// getUid is replaced in tests.
var getUid = unix.Getuid

// InitrdPlugin turns the initrd properties of a kernel snap part into the packages, environment and commands the build
// orchestrator needs to build the part.
type InitrdPlugin struct {
	properties initrdpluginapi.InitrdPluginProperties
	partInfo   initrdpluginapi.PartInfo
	generator  initrdbuild.Generator
}

// NewInitrdPlugin validates the properties and part info and creates the plugin.
// If generator is nil, the default initrd build command generator is used.
func NewInitrdPlugin(properties *initrdpluginapi.InitrdPluginProperties, partInfo initrdpluginapi.PartInfo,
	generator initrdbuild.Generator,
) (*InitrdPlugin, error) {
	if properties == nil {
		properties = &initrdpluginapi.InitrdPluginProperties{}
	}

	err := properties.IsValid()
	if err != nil {
		return nil, fmt.Errorf("%w:\n%w", ErrInvalidProperties, err)
	}

	err = partInfo.IsValid()
	if err != nil {
		return nil, fmt.Errorf("%w:\n%w", ErrInvalidPartInfo, err)
	}

	if generator == nil {
		generator = initrdbuild.NewDefaultGenerator()
	}

	plugin := &InitrdPlugin{
		properties: *properties,
		partInfo:   partInfo,
		generator:  generator,
	}

	logger.Log.Debugf("Created initrd plugin (target=%s, host=%s, base=%s, cross=%t)", partInfo.TargetDebArch(),
		partInfo.HostDebArch(), partInfo.Base, partInfo.IsCrossBuilding())

	return plugin, nil
}

func (p *InitrdPlugin) Properties() initrdpluginapi.InitrdPluginProperties {
	return p.properties
}

func (p *InitrdPlugin) PartInfo() initrdpluginapi.PartInfo {
	return p.partInfo
}

func (p *InitrdPlugin) BuildSnaps() []string {
	return []string{}
}

// OutOfSourceBuild reports that the plugin writes its outputs outside the part's source tree.
func (p *InitrdPlugin) OutOfSourceBuild() bool {
	return true
}

// BuildCommands returns the shell commands that build the initrd, in execution order.
func (p *InitrdPlugin) BuildCommands(ctx context.Context) (commands []string, err error) {
	_, span := otel.GetTracerProvider().Tracer(OtelTracerName).Start(ctx, "build_commands")
	span.SetAttributes(
		attribute.String("target_arch", p.partInfo.TargetDebArch()),
		attribute.String("compression", string(p.properties.Compression)),
		attribute.Int("modules_count", len(p.properties.Modules)),
		attribute.Bool("build_efi_image", p.properties.BuildEfiImage),
	)
	defer finishSpanWithError(span, &err)

	logger.Log.Infof("Getting build commands...")

	commands, err = p.generator.GetBuildCommands(initrdbuild.BuildOptions{
		Modules:            p.properties.Modules,
		ConfiguredModules:  p.properties.ConfiguredModules,
		Firmware:           p.properties.Firmware,
		Compression:        p.properties.Compression,
		CompressionOptions: p.properties.CompressionOptions,
		DefaultCompression: initrdpluginapi.DefaultCompressionCommand,
		Overlay:            p.properties.Overlay,
		Addons:             p.properties.Addons,
		StageFirmware:      p.properties.StageFirmware,
		BuildEfiImage:      p.properties.BuildEfiImage,
		EfiImageKey:        p.properties.EfiImageKey,
		EfiImageCert:       p.properties.EfiImageCert,
		TargetArch:         p.partInfo.TargetDebArch(),
		InstallDir:         craftPartInstallDir,
		StageDir:           craftStageDir,
		BuildDir:           craftPartBuildDir,
	})
	if err != nil {
		return nil, fmt.Errorf("%w:\n%w", ErrGenerateBuildCommands, err)
	}

	span.SetAttributes(attribute.Int("commands_count", len(commands)))
	return commands, nil
}
