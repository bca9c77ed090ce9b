// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package initrdbuild

import (
	"fmt"
	"strings"

	"github.com/microsoft/kernel-initrd-tools/toolkit/tools/initrdpluginapi"
)

// BuildOptions is everything the generator needs to produce the initrd build commands.
// The directory fields are shell expressions (e.g. "${CRAFT_STAGE}") that are expanded when the commands run.
type BuildOptions struct {
	Modules            []string
	ConfiguredModules  []string
	Firmware           []string
	Compression        initrdpluginapi.InitrdCompression
	CompressionOptions []string
	DefaultCompression string
	Overlay            string
	Addons             []string
	StageFirmware      bool
	BuildEfiImage      bool
	EfiImageKey        string
	EfiImageCert       string

	TargetArch string
	InstallDir string
	StageDir   string
	BuildDir   string
}

func (o *BuildOptions) IsValid() error {
	if o.TargetArch == "" {
		return fmt.Errorf("target architecture must be specified")
	}

	if o.InstallDir == "" || o.StageDir == "" || o.BuildDir == "" {
		return fmt.Errorf("install, stage and build directories must be specified")
	}

	err := o.Compression.IsValid()
	if err != nil {
		return err
	}

	if o.Compression == initrdpluginapi.InitrdCompressionUnspecified && strings.TrimSpace(o.DefaultCompression) == "" {
		return fmt.Errorf("default compression must be specified when no compression is selected")
	}

	if o.BuildEfiImage {
		_, err := efiArch(o.TargetArch)
		if err != nil {
			return err
		}
	}

	return nil
}

// compressionCommand returns the compressor invocation, without quoting, that reads stdin and writes stdout.
func (o *BuildOptions) compressionCommand() []string {
	if o.Compression == initrdpluginapi.InitrdCompressionUnspecified {
		command := strings.Fields(o.DefaultCompression)
		return append(command, "-c")
	}

	options := o.CompressionOptions
	if len(options) == 0 {
		options = o.Compression.DefaultOptions()
	}

	command := []string{o.Compression.Compressor()}
	command = append(command, options...)
	return append(command, "-c")
}

func (o *BuildOptions) allModules() []string {
	properties := initrdpluginapi.InitrdPluginProperties{
		Modules:           o.Modules,
		ConfiguredModules: o.ConfiguredModules,
	}
	return properties.AllModules()
}

var efiArchitectures = map[string]string{
	"amd64":   "x64",
	"arm64":   "aa64",
	"armhf":   "arm",
	"riscv64": "riscv64",
}

func efiArch(debArch string) (string, error) {
	arch, found := efiArchitectures[debArch]
	if !found {
		return "", fmt.Errorf("EFI images are not supported on architecture (%s)", debArch)
	}

	return arch, nil
}
