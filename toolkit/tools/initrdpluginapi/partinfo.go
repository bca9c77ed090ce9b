// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package initrdpluginapi

import (
	"fmt"
)

const (
	defaultUbuntuSeries = "noble"
)

var ubuntuSeriesByBase = map[string]string{
	"core20": "focal",
	"core22": "jammy",
	"core24": "noble",
}

// PartInfo is the project and part metadata supplied by the build orchestrator.
type PartInfo struct {
	TargetArch string `yaml:"targetArch" json:"targetArch"`
	HostArch   string `yaml:"hostArch" json:"hostArch"`
	Base       string `yaml:"base" json:"base"`
}

func (p *PartInfo) IsValid() error {
	_, err := DebArchitecture(p.TargetArch)
	if err != nil {
		return fmt.Errorf("invalid 'targetArch' value:\n%w", err)
	}

	_, err = DebArchitecture(p.HostArch)
	if err != nil {
		return fmt.Errorf("invalid 'hostArch' value:\n%w", err)
	}

	if p.Base == "" {
		return fmt.Errorf("'base' must be specified")
	}

	return nil
}

// TargetDebArch returns the Debian name of the target architecture.
// Only call on a PartInfo that passed IsValid.
func (p *PartInfo) TargetDebArch() string {
	debArch, _ := DebArchitecture(p.TargetArch)
	return debArch
}

func (p *PartInfo) HostDebArch() string {
	debArch, _ := DebArchitecture(p.HostArch)
	return debArch
}

func (p *PartInfo) IsCrossBuilding() bool {
	return p.HostDebArch() != p.TargetDebArch()
}

// UbuntuSeries returns the Ubuntu release codename that matches the base.
func (p *PartInfo) UbuntuSeries() string {
	series, found := ubuntuSeriesByBase[p.Base]
	if !found {
		return defaultUbuntuSeries
	}

	return series
}
