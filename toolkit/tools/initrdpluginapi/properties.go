// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package initrdpluginapi

import (
	"fmt"
	"strings"
)

// InitrdPluginProperties are the 'initrd-*' options of a part that uses the initrd plugin.
type InitrdPluginProperties struct {
	BuildEfiImage      bool              `yaml:"initrd-build-efi-image" json:"initrd-build-efi-image,omitempty"`
	EfiImageKey        string            `yaml:"initrd-efi-image-key" json:"initrd-efi-image-key,omitempty"`
	EfiImageCert       string            `yaml:"initrd-efi-image-cert" json:"initrd-efi-image-cert,omitempty"`
	Modules            []string          `yaml:"initrd-modules" json:"initrd-modules,omitempty"`
	ConfiguredModules  []string          `yaml:"initrd-configured-modules" json:"initrd-configured-modules,omitempty"`
	Firmware           []string          `yaml:"initrd-firmware" json:"initrd-firmware,omitempty"`
	Compression        InitrdCompression `yaml:"initrd-compression" json:"initrd-compression,omitempty" jsonschema:"enum=lz4,enum=xz,enum=gz,enum=zstd"`
	CompressionOptions []string          `yaml:"initrd-compression-options" json:"initrd-compression-options,omitempty"`
	Overlay            string            `yaml:"initrd-overlay" json:"initrd-overlay,omitempty"`
	Addons             []string          `yaml:"initrd-addons" json:"initrd-addons,omitempty"`
	StageFirmware      bool              `yaml:"initrd-stage-firmware" json:"initrd-stage-firmware,omitempty"`
	AddPpa             bool              `yaml:"initrd-add-ppa" json:"initrd-add-ppa,omitempty"`
}

func (p *InitrdPluginProperties) IsValid() error {
	err := p.Compression.IsValid()
	if err != nil {
		return fmt.Errorf("invalid 'initrd-compression' field:\n%w", err)
	}

	if len(p.CompressionOptions) > 0 && p.Compression == InitrdCompressionUnspecified {
		return fmt.Errorf("'initrd-compression-options' requires 'initrd-compression' to also be set")
	}

	for i, option := range p.CompressionOptions {
		if strings.TrimSpace(option) == "" {
			return fmt.Errorf("invalid 'initrd-compression-options' item at index %d: value is empty", i)
		}
	}

	if p.EfiImageKey != "" || p.EfiImageCert != "" {
		if p.EfiImageKey == "" || p.EfiImageCert == "" {
			return fmt.Errorf("'initrd-efi-image-key' and 'initrd-efi-image-cert' must both be set if either is set")
		}

		if !p.BuildEfiImage {
			return fmt.Errorf("'initrd-efi-image-key' and 'initrd-efi-image-cert' require 'initrd-build-efi-image' to be enabled")
		}
	}

	err = validateModuleNames("initrd-modules", p.Modules)
	if err != nil {
		return err
	}

	err = validateModuleNames("initrd-configured-modules", p.ConfiguredModules)
	if err != nil {
		return err
	}

	for i, firmware := range p.Firmware {
		err := validateStageRelativePath(firmware)
		if err != nil {
			return fmt.Errorf("invalid 'initrd-firmware' item at index %d:\n%w", i, err)
		}
	}

	if p.Overlay != "" {
		err := validateStageRelativePath(p.Overlay)
		if err != nil {
			return fmt.Errorf("invalid 'initrd-overlay' field:\n%w", err)
		}
	}

	for i, addon := range p.Addons {
		err := validateStageRelativePath(addon)
		if err != nil {
			return fmt.Errorf("invalid 'initrd-addons' item at index %d:\n%w", i, err)
		}
	}

	return nil
}

// AllModules returns the modules to install into the initrd.
// Configured modules are always installed, so they are appended after the explicit modules without duplicates.
func (p *InitrdPluginProperties) AllModules() []string {
	modules := []string(nil)
	seen := make(map[string]struct{})

	for _, list := range [][]string{p.Modules, p.ConfiguredModules} {
		for _, module := range list {
			if _, found := seen[module]; found {
				continue
			}

			seen[module] = struct{}{}
			modules = append(modules, module)
		}
	}

	return modules
}

func validateModuleNames(fieldName string, modules []string) error {
	for i, module := range modules {
		if module == "" {
			return fmt.Errorf("invalid '%s' item at index %d: module name is empty", fieldName, i)
		}

		if strings.ContainsAny(module, " \t\n/") {
			return fmt.Errorf("invalid '%s' item at index %d: module name (%s) must not contain whitespace or '/'",
				fieldName, i, module)
		}
	}

	return nil
}
