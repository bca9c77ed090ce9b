// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package initrdbuild

import (
	"os"
	"strings"
	"testing"

	"github.com/microsoft/kernel-initrd-tools/toolkit/tools/initrdpluginapi"
	"github.com/microsoft/kernel-initrd-tools/toolkit/tools/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.InitStderrLog()

	os.Exit(m.Run())
}

func baseOptions() BuildOptions {
	return BuildOptions{
		DefaultCompression: initrdpluginapi.DefaultCompressionCommand,
		TargetArch:         "amd64",
		InstallDir:         "${CRAFT_PART_INSTALL}",
		StageDir:           "${CRAFT_STAGE}",
		BuildDir:           "${CRAFT_PART_BUILD}",
	}
}

func findCommand(commands []string, substring string) (string, bool) {
	for _, command := range commands {
		if strings.Contains(command, substring) {
			return command, true
		}
	}
	return "", false
}

func TestGetBuildCommandsMinimal(t *testing.T) {
	commands, err := NewDefaultGenerator().GetBuildCommands(baseOptions())
	require.NoError(t, err)

	assert.Equal(t, "set -euo pipefail", commands[0])

	archive, found := findCommand(commands, "cpio --null")
	require.True(t, found)
	assert.Contains(t, archive, "| zstd -1 -T0 -c > \"${CRAFT_PART_INSTALL}/initrd.img\"")

	root, found := findCommand(commands, "apt-get download")
	require.True(t, found)
	assert.Contains(t, root, "apt-get download ubuntu-core-initramfs:amd64)")
	assert.NotContains(t, root, "linux-firmware")

	_, found = findCommand(commands, "modprobe")
	assert.False(t, found)
	_, found = findCommand(commands, "sbsign")
	assert.False(t, found)
}

func TestGetBuildCommandsModules(t *testing.T) {
	options := baseOptions()
	options.Modules = []string{"virtio_net", "nvme"}
	options.ConfiguredModules = []string{"dm-crypt", "nvme"}

	commands, err := NewDefaultGenerator().GetBuildCommands(options)
	require.NoError(t, err)

	modprobe, found := findCommand(commands, "modprobe")
	require.True(t, found)
	assert.Contains(t, modprobe, "for module in virtio_net nvme dm-crypt; do")

	_, found = findCommand(commands, "depmod --basedir")
	assert.True(t, found)

	conf, found := findCommand(commands, "printf")
	require.True(t, found)
	assert.Equal(t,
		`printf '%s\n' dm-crypt nvme > "${CRAFT_PART_BUILD}/initrd-staging"/usr/lib/modules-load.d/ubuntu-core-initramfs.conf`,
		conf)
}

func TestGetBuildCommandsCompression(t *testing.T) {
	testCases := []struct {
		compression initrdpluginapi.InitrdCompression
		options     []string
		expected    string
	}{
		{initrdpluginapi.InitrdCompressionLz4, nil, "| lz4 -9 -l -c >"},
		{initrdpluginapi.InitrdCompressionXz, nil, "| xz -7 -c >"},
		{initrdpluginapi.InitrdCompressionGz, nil, "| gzip -7 -c >"},
		{initrdpluginapi.InitrdCompressionZstd, nil, "| zstd -1 -T0 -c >"},
		{initrdpluginapi.InitrdCompressionZstd, []string{"-19", "--long=27"}, "| zstd -19 --long=27 -c >"},
	}

	for _, testCase := range testCases {
		options := baseOptions()
		options.Compression = testCase.compression
		options.CompressionOptions = testCase.options

		commands, err := NewDefaultGenerator().GetBuildCommands(options)
		require.NoError(t, err)

		archive, found := findCommand(commands, "cpio --null")
		require.True(t, found)
		assert.Contains(t, archive, testCase.expected, testCase.compression)
	}
}

func TestGetBuildCommandsFirmwareFromBuildRoot(t *testing.T) {
	options := baseOptions()
	options.Firmware = []string{"firmware/i915/tgl_dmc_ver2_12.bin"}

	commands, err := NewDefaultGenerator().GetBuildCommands(options)
	require.NoError(t, err)

	root, found := findCommand(commands, "apt-get download")
	require.True(t, found)
	assert.Contains(t, root, "ubuntu-core-initramfs:amd64 linux-firmware")

	assert.Contains(t, commands,
		`initrd_install_file "${UC_INITRD_ROOT}/usr/lib"/firmware/i915/tgl_dmc_ver2_12.bin "${CRAFT_PART_BUILD}/initrd-staging"/usr/lib/firmware/i915/tgl_dmc_ver2_12.bin`)
}

func TestGetBuildCommandsFirmwareFromStage(t *testing.T) {
	options := baseOptions()
	options.Firmware = []string{"firmware/i915/tgl_dmc_ver2_12.bin"}
	options.StageFirmware = true

	commands, err := NewDefaultGenerator().GetBuildCommands(options)
	require.NoError(t, err)

	root, found := findCommand(commands, "apt-get download")
	require.True(t, found)
	assert.NotContains(t, root, "linux-firmware")

	assert.Contains(t, commands,
		`initrd_install_file "${CRAFT_STAGE}"/firmware/i915/tgl_dmc_ver2_12.bin "${CRAFT_PART_BUILD}/initrd-staging"/usr/lib/firmware/i915/tgl_dmc_ver2_12.bin`)
}

func TestGetBuildCommandsFirmwareWithoutPrefix(t *testing.T) {
	options := baseOptions()
	options.Firmware = []string{"i915/tgl_dmc_ver2_12.bin", "./firmware/rtl_nic/rtl8168h-2.fw"}

	commands, err := NewDefaultGenerator().GetBuildCommands(options)
	require.NoError(t, err)

	assert.Contains(t, commands,
		`initrd_install_file "${UC_INITRD_ROOT}/usr/lib"/firmware/i915/tgl_dmc_ver2_12.bin "${CRAFT_PART_BUILD}/initrd-staging"/usr/lib/firmware/i915/tgl_dmc_ver2_12.bin`)
	assert.Contains(t, commands,
		`initrd_install_file "${UC_INITRD_ROOT}/usr/lib"/firmware/rtl_nic/rtl8168h-2.fw "${CRAFT_PART_BUILD}/initrd-staging"/usr/lib/firmware/rtl_nic/rtl8168h-2.fw`)

	options.StageFirmware = true

	commands, err = NewDefaultGenerator().GetBuildCommands(options)
	require.NoError(t, err)

	assert.Contains(t, commands,
		`initrd_install_file "${CRAFT_STAGE}"/firmware/i915/tgl_dmc_ver2_12.bin "${CRAFT_PART_BUILD}/initrd-staging"/usr/lib/firmware/i915/tgl_dmc_ver2_12.bin`)
}

func TestGetBuildCommandsOverlayAndAddons(t *testing.T) {
	options := baseOptions()
	options.Overlay = "initrd overlay/"
	options.Addons = []string{"usr/lib/fde/hook", "usr/bin/./unlock"}

	commands, err := NewDefaultGenerator().GetBuildCommands(options)
	require.NoError(t, err)

	assert.Contains(t, commands,
		`cp -a "${CRAFT_STAGE}"/'initrd overlay'/. "${CRAFT_PART_BUILD}/initrd-staging"/`)
	assert.Contains(t, commands,
		`initrd_install_file "${CRAFT_STAGE}"/usr/lib/fde/hook "${CRAFT_PART_BUILD}/initrd-staging"/usr/lib/fde/hook`)
	assert.Contains(t, commands,
		`initrd_install_file "${CRAFT_STAGE}"/usr/bin/unlock "${CRAFT_PART_BUILD}/initrd-staging"/usr/bin/unlock`)
}

func TestGetBuildCommandsEfiImageSnakeOil(t *testing.T) {
	options := baseOptions()
	options.BuildEfiImage = true

	commands, err := NewDefaultGenerator().GetBuildCommands(options)
	require.NoError(t, err)

	objcopy, found := findCommand(commands, "llvm-objcopy")
	require.True(t, found)
	assert.Contains(t, objcopy, "/efi/linuxx64.efi.stub")

	sign, found := findCommand(commands, "sbsign")
	require.True(t, found)
	assert.Contains(t, sign, "--key \"${UC_INITRD_ROOT}/usr/lib/ubuntu-core-initramfs/snakeoil/PkKek-1-snakeoil.key\"")
	assert.Contains(t, sign, "--output \"${CRAFT_PART_INSTALL}/kernel.efi\"")
}

func TestGetBuildCommandsEfiImageCustomKeys(t *testing.T) {
	options := baseOptions()
	options.TargetArch = "arm64"
	options.BuildEfiImage = true
	options.EfiImageKey = "keys/db.key"
	options.EfiImageCert = "/etc/secure/db.crt"

	commands, err := NewDefaultGenerator().GetBuildCommands(options)
	require.NoError(t, err)

	objcopy, found := findCommand(commands, "llvm-objcopy")
	require.True(t, found)
	assert.Contains(t, objcopy, "/efi/linuxaa64.efi.stub")

	sign, found := findCommand(commands, "sbsign")
	require.True(t, found)
	assert.Contains(t, sign, `--key "${CRAFT_STAGE}"/keys/db.key --cert /etc/secure/db.crt`)
}

func TestGetBuildCommandsEfiImageUnsupportedArch(t *testing.T) {
	options := baseOptions()
	options.TargetArch = "s390x"
	options.BuildEfiImage = true

	_, err := NewDefaultGenerator().GetBuildCommands(options)
	assert.ErrorContains(t, err, "EFI images are not supported on architecture (s390x)")
}

func TestGetBuildCommandsQuotesModules(t *testing.T) {
	options := baseOptions()
	options.Modules = []string{"evil;rm"}

	commands, err := NewDefaultGenerator().GetBuildCommands(options)
	require.NoError(t, err)

	modprobe, found := findCommand(commands, "modprobe")
	require.True(t, found)
	assert.Contains(t, modprobe, "for module in 'evil;rm'; do")
}

func TestBuildOptionsIsValidMissingArch(t *testing.T) {
	options := baseOptions()
	options.TargetArch = ""

	_, err := NewDefaultGenerator().GetBuildCommands(options)
	assert.ErrorContains(t, err, "invalid initrd build options")
	assert.ErrorContains(t, err, "target architecture must be specified")
}

func TestBuildOptionsIsValidMissingDefaultCompression(t *testing.T) {
	options := baseOptions()
	options.DefaultCompression = ""

	err := options.IsValid()
	assert.ErrorContains(t, err, "default compression must be specified")
}
