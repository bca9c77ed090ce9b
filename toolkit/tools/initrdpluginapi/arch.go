// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package initrdpluginapi

import (
	"fmt"
	"maps"
	"slices"
)

var debArchitectures = map[string]string{
	"amd64":   "amd64",
	"x86_64":  "amd64",
	"arm64":   "arm64",
	"aarch64": "arm64",
	"armhf":   "armhf",
	"armv7l":  "armhf",
	"armv8l":  "armhf",
	"i386":    "i386",
	"i686":    "i386",
	"ppc64el": "ppc64el",
	"ppc64le": "ppc64el",
	"riscv64": "riscv64",
	"s390x":   "s390x",
}

// DebArchitecture converts a kernel or Debian architecture name into the Debian architecture name.
func DebArchitecture(arch string) (string, error) {
	debArch, found := debArchitectures[arch]
	if !found {
		return "", fmt.Errorf("unsupported architecture (%s)", arch)
	}

	return debArch, nil
}

// SupportedArchitectures returns every accepted architecture name, sorted.
func SupportedArchitectures() []string {
	return slices.Sorted(maps.Keys(debArchitectures))
}
