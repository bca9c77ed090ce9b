// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package initrdpluginapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDebArchitecture(t *testing.T) {
	testCases := map[string]string{
		"x86_64":  "amd64",
		"amd64":   "amd64",
		"aarch64": "arm64",
		"armv7l":  "armhf",
		"ppc64le": "ppc64el",
		"riscv64": "riscv64",
		"s390x":   "s390x",
	}

	for arch, expected := range testCases {
		debArch, err := DebArchitecture(arch)
		assert.NoError(t, err)
		assert.Equal(t, expected, debArch, arch)
	}
}

func TestDebArchitectureUnsupported(t *testing.T) {
	_, err := DebArchitecture("mips")
	assert.ErrorContains(t, err, "unsupported architecture (mips)")
}

func TestSupportedArchitectures(t *testing.T) {
	archs := SupportedArchitectures()
	assert.IsIncreasing(t, archs)
	assert.Contains(t, archs, "x86_64")
	assert.Contains(t, archs, "arm64")

	for _, arch := range archs {
		_, err := DebArchitecture(arch)
		assert.NoError(t, err, arch)
	}
}

func TestPartInfoIsValid(t *testing.T) {
	partInfo := PartInfo{
		TargetArch: "arm64",
		HostArch:   "x86_64",
		Base:       "core24",
	}

	assert.NoError(t, partInfo.IsValid())
	assert.True(t, partInfo.IsCrossBuilding())
	assert.Equal(t, "arm64", partInfo.TargetDebArch())
	assert.Equal(t, "amd64", partInfo.HostDebArch())
}

func TestPartInfoIsValidBadTarget(t *testing.T) {
	partInfo := PartInfo{
		TargetArch: "sparc",
		HostArch:   "amd64",
		Base:       "core24",
	}

	err := partInfo.IsValid()
	assert.ErrorContains(t, err, "invalid 'targetArch' value")
}

func TestPartInfoIsValidNoBase(t *testing.T) {
	partInfo := PartInfo{
		TargetArch: "amd64",
		HostArch:   "amd64",
	}

	err := partInfo.IsValid()
	assert.ErrorContains(t, err, "'base' must be specified")
}

func TestPartInfoIsCrossBuildingSameArchDifferentNames(t *testing.T) {
	partInfo := PartInfo{
		TargetArch: "amd64",
		HostArch:   "x86_64",
		Base:       "core22",
	}

	assert.False(t, partInfo.IsCrossBuilding())
}

func TestPartInfoUbuntuSeries(t *testing.T) {
	testCases := map[string]string{
		"core20": "focal",
		"core22": "jammy",
		"core24": "noble",
		"core26": "noble",
	}

	for base, expected := range testCases {
		partInfo := PartInfo{Base: base}
		assert.Equal(t, expected, partInfo.UbuntuSeries(), base)
	}
}
