// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package initrdbuild

import (
	"fmt"
	"path"
	"strings"

	"al.essio.dev/pkg/shellescape"
	"github.com/microsoft/kernel-initrd-tools/toolkit/tools/internal/logger"
)

const (
	InitrdImageName = "initrd.img"
	EfiImageName    = "kernel.efi"

	stagingDirName     = "initrd-staging"
	modulesRootDirName = "initrd-modules-root"
	debsDirName        = "initrd-debs"

	coreInitramfsPackage = "ubuntu-core-initramfs"
	firmwarePackage      = "linux-firmware"

	coreInitramfsDir    = "${UC_INITRD_ROOT}/usr/lib/ubuntu-core-initramfs"
	snakeOilKey         = coreInitramfsDir + "/snakeoil/PkKek-1-snakeoil.key"
	snakeOilCert        = coreInitramfsDir + "/snakeoil/PkKek-1-snakeoil.pem"
	modulesLoadConfFile = "usr/lib/modules-load.d/ubuntu-core-initramfs.conf"
	kernelImageName     = "kernel.img"
)

// Generator produces the shell commands that build an initrd.
type Generator interface {
	GetBuildCommands(options BuildOptions) ([]string, error)
}

// DefaultGenerator builds the initrd from the ubuntu-core-initramfs skeleton, the staged kernel modules and the
// part's firmware, overlay and addons.
type DefaultGenerator struct{}

func NewDefaultGenerator() *DefaultGenerator {
	return &DefaultGenerator{}
}

func (g *DefaultGenerator) GetBuildCommands(options BuildOptions) ([]string, error) {
	err := options.IsValid()
	if err != nil {
		return nil, fmt.Errorf("invalid initrd build options:\n%w", err)
	}

	b := &commandBuilder{options: options}

	b.addPreamble()
	b.addKernelRelease()
	b.addBuildRoot()
	b.addStaging()
	b.addKernelModules()
	b.addFirmware()
	b.addOverlay()
	b.addAddons()
	b.addArchive()

	if options.BuildEfiImage {
		err := b.addEfiImage()
		if err != nil {
			return nil, err
		}
	}

	logger.Log.Debugf("Generated %d initrd build commands", len(b.commands))
	return b.commands, nil
}

type commandBuilder struct {
	options  BuildOptions
	commands []string
}

func (b *commandBuilder) add(commands ...string) {
	b.commands = append(b.commands, commands...)
}

func (b *commandBuilder) buildPath(name string) string {
	return fmt.Sprintf("\"%s/%s\"", b.options.BuildDir, name)
}

func (b *commandBuilder) stagingPath(rel string) string {
	if rel == "" {
		return fmt.Sprintf("\"%s/%s\"", b.options.BuildDir, stagingDirName)
	}
	return fmt.Sprintf("\"%s/%s\"/%s", b.options.BuildDir, stagingDirName, shellescape.Quote(rel))
}

func (b *commandBuilder) stagePath(rel string) string {
	return fmt.Sprintf("\"%s\"/%s", b.options.StageDir, shellescape.Quote(rel))
}

func (b *commandBuilder) installPath(name string) string {
	return fmt.Sprintf("\"%s/%s\"", b.options.InstallDir, name)
}

func (b *commandBuilder) addPreamble() {
	b.add(
		"set -euo pipefail",
		`initrd_install_file() {
    local src="$1"
    local dst="$2"
    if [ ! -e "${src}" ]; then
        echo "Missing initrd input: ${src}" >&2
        return 1
    fi
    mkdir -p "$(dirname "${dst}")"
    cp -a "${src}" "${dst}"
}`,
	)
}

func (b *commandBuilder) addKernelRelease() {
	b.add(
		`KERNEL_RELEASE="$(ls -1 "${KERNEL_MODULES}" 2>/dev/null | head -n 1)"`,
		`if [ -z "${KERNEL_RELEASE}" ]; then
    echo "No kernel modules found in ${KERNEL_MODULES}" >&2
    exit 1
fi`,
		`echo "Building initrd for kernel ${KERNEL_RELEASE}"`,
	)
}

func (b *commandBuilder) addBuildRoot() {
	packages := []string{fmt.Sprintf("%s:%s", coreInitramfsPackage, b.options.TargetArch)}
	if len(b.options.Firmware) > 0 && !b.options.StageFirmware {
		packages = append(packages, firmwarePackage)
	}

	debsDir := b.buildPath(debsDirName)

	b.add(fmt.Sprintf(`if [ ! -d "%s" ]; then
    echo "Preparing initrd build root ${UC_INITRD_ROOT}"
    rm -rf "${UC_INITRD_ROOT}" %s
    mkdir -p "${UC_INITRD_ROOT}" %s
    (cd %s && apt-get download %s)
    for deb in %s/*.deb; do
        if [ "$(id -u)" = "0" ]; then
            dpkg-deb -x "${deb}" "${UC_INITRD_ROOT}"
        else
            fakeroot dpkg-deb -x "${deb}" "${UC_INITRD_ROOT}"
        fi
    done
fi`, coreInitramfsDir, debsDir, debsDir, debsDir, shellescape.QuoteCommand(packages), debsDir))
}

func (b *commandBuilder) addStaging() {
	staging := b.stagingPath("")
	b.add(
		fmt.Sprintf("rm -rf %s", staging),
		fmt.Sprintf("mkdir -p %s", staging),
		fmt.Sprintf(`cp -a "%s/main/." %s/`, coreInitramfsDir, staging),
		fmt.Sprintf(`[ -e %s/lib ] || ln -s usr/lib %s/lib`, staging, staging),
	)
}

func (b *commandBuilder) addKernelModules() {
	modules := b.options.allModules()
	if len(modules) == 0 {
		return
	}

	modulesRoot := b.buildPath(modulesRootDirName)
	stagingModules := fmt.Sprintf(`"%s/%s/usr/lib/modules/${KERNEL_RELEASE}"`, b.options.BuildDir, stagingDirName)

	b.add(
		fmt.Sprintf("rm -rf %s", modulesRoot),
		fmt.Sprintf("mkdir -p %s/lib/modules", modulesRoot),
		fmt.Sprintf(`ln -s "${KERNEL_MODULES}/${KERNEL_RELEASE}" %s/lib/modules/"${KERNEL_RELEASE}"`, modulesRoot),
		fmt.Sprintf(`for module in %s; do
    if ! modprobe --dirname %s --set-version "${KERNEL_RELEASE}" --show-depends "${module}" > %s/module-deps; then
        echo "Kernel module ${module} not found, skipping" >&2
        continue
    fi
    awk '$1 == "insmod" { print $2 }' %s/module-deps | while read -r ko; do
        initrd_install_file "${ko}" %s/"${ko#*/lib/modules/${KERNEL_RELEASE}/}"
    done
done`, shellescape.QuoteCommand(modules), modulesRoot, modulesRoot, modulesRoot, stagingModules),
		fmt.Sprintf(`for file in modules.order modules.builtin modules.builtin.modinfo; do
    if [ -e "${KERNEL_MODULES}/${KERNEL_RELEASE}/${file}" ]; then
        initrd_install_file "${KERNEL_MODULES}/${KERNEL_RELEASE}/${file}" %s/"${file}"
    fi
done`, stagingModules),
		fmt.Sprintf(`depmod --basedir %s "${KERNEL_RELEASE}"`, b.stagingPath("")),
	)

	if len(b.options.ConfiguredModules) > 0 {
		confFile := b.stagingPath(modulesLoadConfFile)
		b.add(
			fmt.Sprintf(`mkdir -p "$(dirname %s)"`, confFile),
			fmt.Sprintf(`printf '%%s\n' %s > %s`, shellescape.QuoteCommand(b.options.ConfiguredModules), confFile),
		)
	}
}

func (b *commandBuilder) addFirmware() {
	for _, firmware := range b.options.Firmware {
		// Entries are relative to the firmware root, with or without a leading 'firmware/'.
		rel := path.Join("firmware", strings.TrimPrefix(path.Clean(firmware), "firmware/"))

		var source string
		if b.options.StageFirmware {
			source = b.stagePath(rel)
		} else {
			source = fmt.Sprintf(`"${UC_INITRD_ROOT}/usr/lib"/%s`, shellescape.Quote(rel))
		}

		b.add(fmt.Sprintf("initrd_install_file %s %s", source, b.stagingPath(path.Join("usr/lib", rel))))
	}
}

func (b *commandBuilder) addOverlay() {
	if b.options.Overlay == "" {
		return
	}

	overlay := b.stagePath(path.Clean(b.options.Overlay))
	b.add(
		fmt.Sprintf(`if [ ! -d %s ]; then
    echo "Missing initrd overlay: %s" >&2
    exit 1
fi`, overlay, shellescape.Quote(b.options.Overlay)),
		fmt.Sprintf("cp -a %s/. %s/", overlay, b.stagingPath("")),
	)
}

func (b *commandBuilder) addAddons() {
	for _, addon := range b.options.Addons {
		cleaned := path.Clean(addon)
		b.add(fmt.Sprintf("initrd_install_file %s %s", b.stagePath(cleaned), b.stagingPath(cleaned)))
	}
}

func (b *commandBuilder) addArchive() {
	b.add(
		fmt.Sprintf(`mkdir -p "%s"`, b.options.InstallDir),
		fmt.Sprintf(`(cd %s && find . -mindepth 1 -print0 | LC_ALL=C sort -z | cpio --null --quiet --create --format=newc --owner=0:0) | %s > %s`,
			b.stagingPath(""), shellescape.QuoteCommand(b.options.compressionCommand()), b.installPath(InitrdImageName)),
	)
}

func (b *commandBuilder) addEfiImage() error {
	arch, err := efiArch(b.options.TargetArch)
	if err != nil {
		return err
	}

	key := b.signingInput(b.options.EfiImageKey, snakeOilKey)
	cert := b.signingInput(b.options.EfiImageCert, snakeOilCert)
	unsigned := b.buildPath(EfiImageName + ".unsigned")

	b.add(
		fmt.Sprintf(`llvm-objcopy \
    --add-section .osrel="${UC_INITRD_ROOT}/usr/lib/os-release" --change-section-vma .osrel=0x20000 \
    --add-section .linux="%s/%s" --change-section-vma .linux=0x2000000 \
    --add-section .initrd="%s/%s" --change-section-vma .initrd=0x3000000 \
    "%s/efi/linux%s.efi.stub" %s`,
			b.options.StageDir, kernelImageName, b.options.InstallDir, InitrdImageName, coreInitramfsDir, arch,
			unsigned),
		fmt.Sprintf("sbsign --key %s --cert %s --output %s %s", key, cert, b.installPath(EfiImageName), unsigned),
	)

	return nil
}

// signingInput resolves a key or certificate: relative values live in the stage directory.
func (b *commandBuilder) signingInput(value string, fallback string) string {
	switch {
	case value == "":
		return fmt.Sprintf("\"%s\"", fallback)
	case path.IsAbs(value):
		return shellescape.Quote(value)
	default:
		return b.stagePath(value)
	}
}
