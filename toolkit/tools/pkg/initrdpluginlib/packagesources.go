// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package initrdpluginlib

import (
	"context"
	"fmt"

	"github.com/microsoft/kernel-initrd-tools/toolkit/tools/internal/logger"
	"github.com/microsoft/kernel-initrd-tools/toolkit/tools/internal/shell"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	// Provides ubuntu-core-initramfs for the bases it is not published in the archive for.
	snappyDevImagePpa = "snappy-dev/image"
)

type PackageSource struct {
	Ppa string `yaml:"ppa" json:"ppa"`
}

func (s PackageSource) String() string {
	return "ppa:" + s.Ppa
}

// PackageSourceRegistrar adds a package source to the host that installs the build packages.
type PackageSourceRegistrar interface {
	RegisterPackageSource(ctx context.Context, source PackageSource) error
}

// PackageSources returns the package sources that must be registered before the build packages are installed.
func (p *InitrdPlugin) PackageSources() []PackageSource {
	if !p.properties.AddPpa {
		return nil
	}

	return []PackageSource{{Ppa: snappyDevImagePpa}}
}

// RegisterPackageSources registers the part's package sources on the host.
// The build orchestrator calls it before resolving the build packages.
func (p *InitrdPlugin) RegisterPackageSources(ctx context.Context, registrar PackageSourceRegistrar) (err error) {
	sources := p.PackageSources()
	if len(sources) == 0 {
		return nil
	}

	if registrar == nil {
		return ErrNoPackageSourceRegistrar
	}

	ctx, span := otel.GetTracerProvider().Tracer(OtelTracerName).Start(ctx, "register_package_sources")
	span.SetAttributes(
		attribute.Int("sources_count", len(sources)),
	)
	defer finishSpanWithError(span, &err)

	for _, source := range sources {
		logger.Log.Infof("Registering package source (%s)", source)

		err = registrar.RegisterPackageSource(ctx, source)
		if err != nil {
			return fmt.Errorf("%w (%s):\n%w", ErrRegisterPackageSource, source, err)
		}
	}

	return nil
}

type executeFunc func(ctx context.Context, program string, args ...string) (string, string, error)

// AptRepositoryRegistrar registers PPAs with add-apt-repository.
type AptRepositoryRegistrar struct {
	execute executeFunc
}

func NewAptRepositoryRegistrar() *AptRepositoryRegistrar {
	return &AptRepositoryRegistrar{
		execute: shell.ExecuteContext,
	}
}

func (r *AptRepositoryRegistrar) RegisterPackageSource(ctx context.Context, source PackageSource) error {
	_, _, err := r.execute(ctx, "add-apt-repository", "--yes", source.String())
	if err != nil {
		return err
	}

	return nil
}
