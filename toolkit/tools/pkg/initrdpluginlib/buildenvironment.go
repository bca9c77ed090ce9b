// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package initrdpluginlib

const (
	initrdRootName = "uc-initramfs-build-root"
)

func (p *InitrdPlugin) BuildEnvironment() map[string]string {
	return map[string]string{
		"UC_INITRD_ROOT_NAME": initrdRootName,
		"UC_INITRD_ROOT":      craftPartSrcDir + "/${UC_INITRD_ROOT_NAME}",
		"KERNEL_MODULES":      craftStageDir + "/modules",
		"KERNEL_FIRMWARE":     craftStageDir + "/firmware",
		"UBUNTU_SERIES":       p.partInfo.UbuntuSeries(),
		"UBUNTU_CORE_BASE":    p.partInfo.Base,
	}
}
