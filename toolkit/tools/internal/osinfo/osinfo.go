// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package osinfo

import (
	"gopkg.in/ini.v1"
)

const (
	osReleaseFile = "/etc/os-release"

	unknownDistro  = "Unknown Distro"
	unknownVersion = "Unknown Version"
)

// GetDistroAndVersion returns the distribution name and version of the host machine.
func GetDistroAndVersion() (string, string) {
	return getDistroAndVersionFromFile(osReleaseFile)
}

func getDistroAndVersionFromFile(path string) (string, string) {
	osRelease, err := ini.Load(path)
	if err != nil {
		return unknownDistro, unknownVersion
	}

	section := osRelease.Section(ini.DefaultSection)

	distro := section.Key("NAME").MustString(unknownDistro)
	version := section.Key("VERSION").MustString(unknownVersion)
	return distro, version
}
