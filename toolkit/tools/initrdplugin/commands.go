// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/invopop/jsonschema"
	"github.com/microsoft/kernel-initrd-tools/toolkit/tools/initrdpluginapi"
	"github.com/microsoft/kernel-initrd-tools/toolkit/tools/internal/initrdutils"
	"github.com/microsoft/kernel-initrd-tools/toolkit/tools/internal/logger"
	"github.com/microsoft/kernel-initrd-tools/toolkit/tools/pkg/initrdpluginlib"
)

type runContext struct {
	ctx    context.Context
	stdout io.Writer
	json   bool
}

func (r *runContext) print(value any) error {
	if r.json {
		data, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal output:\n%w", err)
		}

		_, err = fmt.Fprintln(r.stdout, string(data))
		return err
	}

	data, err := initrdpluginapi.MarshalYaml(value)
	if err != nil {
		return fmt.Errorf("failed to marshal output:\n%w", err)
	}

	_, err = io.WriteString(r.stdout, data)
	return err
}

type PartFlags struct {
	PartFile   string `name:"part-file" help:"Path of the part or project YAML file." required:"" type:"existingfile"`
	Part       string `name:"part" help:"Name of the part to use when the file defines several parts."`
	TargetArch string `name:"target-arch" help:"Architecture the kernel snap is built for. One of: ${archs}." default:"${hostarch}"`
	HostArch   string `name:"host-arch" help:"Architecture of the build host. One of: ${archs}." default:"${hostarch}"`
	Base       string `name:"base" help:"Base snap of the project." default:"${base}"`
}

func (f *PartFlags) newPlugin() (*initrdpluginlib.InitrdPlugin, error) {
	properties, err := initrdpluginapi.UnmarshalPropertiesFile(f.PartFile, f.Part)
	if err != nil {
		return nil, fmt.Errorf("%w:\n%w", initrdpluginlib.ErrInvalidProperties, err)
	}

	partInfo := initrdpluginapi.PartInfo{
		TargetArch: f.TargetArch,
		HostArch:   f.HostArch,
		Base:       f.Base,
	}

	return initrdpluginlib.NewInitrdPlugin(properties, partInfo, nil)
}

type ValidateCmd struct {
	PartFlags
}

func (c *ValidateCmd) Run(r *runContext) error {
	_, err := c.newPlugin()
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(r.stdout, "%s: %s\n", c.PartFile, color.GreenString("valid"))
	return err
}

type PackagesCmd struct {
	PartFlags
}

func (c *PackagesCmd) Run(r *runContext) error {
	plugin, err := c.newPlugin()
	if err != nil {
		return err
	}

	return r.print(plugin.BuildPackages())
}

type SnapsCmd struct {
	PartFlags
}

func (c *SnapsCmd) Run(r *runContext) error {
	plugin, err := c.newPlugin()
	if err != nil {
		return err
	}

	return r.print(plugin.BuildSnaps())
}

type EnvironmentCmd struct {
	PartFlags
}

func (c *EnvironmentCmd) Run(r *runContext) error {
	plugin, err := c.newPlugin()
	if err != nil {
		return err
	}

	return r.print(plugin.BuildEnvironment())
}

type CommandsCmd struct {
	PartFlags
}

func (c *CommandsCmd) Run(r *runContext) error {
	plugin, err := c.newPlugin()
	if err != nil {
		return err
	}

	commands, err := plugin.BuildCommands(r.ctx)
	if err != nil {
		return err
	}

	return r.print(commands)
}

type RegisterSourcesCmd struct {
	PartFlags
	DryRun bool `name:"dry-run" help:"Print the package sources without registering them."`
}

func (c *RegisterSourcesCmd) Run(r *runContext) error {
	plugin, err := c.newPlugin()
	if err != nil {
		return err
	}

	if c.DryRun {
		return r.print(plugin.PackageSources())
	}

	err = plugin.RegisterPackageSources(r.ctx, initrdpluginlib.NewAptRepositoryRegistrar())
	if err != nil {
		return err
	}

	logger.Log.Infof("Registered %d package sources", len(plugin.PackageSources()))
	return nil
}

type SchemaCmd struct{}

func (c *SchemaCmd) Run(r *runContext) error {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
	}

	schema := reflector.Reflect(&initrdpluginapi.InitrdPluginProperties{})
	schemaJSON, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal schema:\n%w", err)
	}

	_, err = fmt.Fprintln(r.stdout, string(schemaJSON))
	return err
}

type VerifyCmd struct {
	Image  string   `name:"image" help:"Path of the built initrd image." required:"" type:"existingfile"`
	Expect []string `name:"expect" help:"Pattern that must match at least one path in the initrd (e.g. 'usr/lib/modules/*/kernel/**/nvme.ko*')."`
	List   bool     `name:"list" help:"Print the members of the initrd image."`
}

func (c *VerifyCmd) Run(r *runContext) error {
	if c.List {
		entries, err := initrdutils.ListInitrdEntries(c.Image)
		if err != nil {
			return err
		}

		err = r.print(entries)
		if err != nil {
			return err
		}
	}

	if len(c.Expect) == 0 {
		return nil
	}

	err := initrdutils.VerifyInitrdContents(c.Image, c.Expect)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(r.stdout, "%s: %s\n", c.Image, color.GreenString("contents verified"))
	return err
}
