// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package initrdpluginlib

import (
	"fmt"
	"slices"
)

var baseBuildPackages = []string{
	"binutils",
	"cpio",
	"curl",
	"dracut-core",
	"fakechroot",
	"fakeroot",
	"kmod",
}

var efiImageBuildPackages = []string{
	"llvm",
	"sbsigntool",
}

// BuildPackages returns the host packages needed to run the build commands, sorted by name.
func (p *InitrdPlugin) BuildPackages() []string {
	packages := make(map[string]struct{})
	addPackages := func(names ...string) {
		for _, name := range names {
			packages[name] = struct{}{}
		}
	}

	addPackages(baseBuildPackages...)

	// Running as non-root while cross-building needs libfake{ch}root for the target arch.
	if p.partInfo.IsCrossBuilding() && getUid() != 0 {
		targetArch := p.partInfo.TargetDebArch()
		addPackages(
			fmt.Sprintf("libfakechroot:%s", targetArch),
			fmt.Sprintf("libfakeroot:%s", targetArch),
		)
	}

	addPackages(p.properties.Compression.BuildPackage())

	if p.properties.BuildEfiImage {
		addPackages(efiImageBuildPackages...)
	}

	result := make([]string, 0, len(packages))
	for name := range packages {
		result = append(result, name)
	}
	slices.Sort(result)

	return result
}
