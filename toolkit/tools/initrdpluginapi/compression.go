// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package initrdpluginapi

import (
	"fmt"
)

type InitrdCompression string

const (
	InitrdCompressionUnspecified InitrdCompression = ""
	InitrdCompressionLz4         InitrdCompression = "lz4"
	InitrdCompressionXz          InitrdCompression = "xz"
	InitrdCompressionGz          InitrdCompression = "gz"
	InitrdCompressionZstd        InitrdCompression = "zstd"

	// DefaultCompressionCommand is used when 'initrd-compression' is not set.
	DefaultCompressionCommand = "zstd -1 -T0"
)

func SupportedInitrdCompressions() []InitrdCompression {
	return []InitrdCompression{
		InitrdCompressionLz4,
		InitrdCompressionXz,
		InitrdCompressionGz,
		InitrdCompressionZstd,
	}
}

func (c InitrdCompression) IsValid() error {
	switch c {
	case InitrdCompressionUnspecified, InitrdCompressionLz4, InitrdCompressionXz, InitrdCompressionGz,
		InitrdCompressionZstd:
		return nil
	default:
		return fmt.Errorf("invalid initrd compression value (%s): must be one of ['lz4', 'xz', 'gz', 'zstd']", c)
	}
}

// Compressor returns the program that performs the compression.
func (c InitrdCompression) Compressor() string {
	switch c {
	case InitrdCompressionLz4:
		return "lz4"
	case InitrdCompressionXz:
		return "xz"
	case InitrdCompressionGz:
		return "gzip"
	default:
		return "zstd"
	}
}

// DefaultOptions returns the compressor arguments used when 'initrd-compression-options' is not set.
func (c InitrdCompression) DefaultOptions() []string {
	switch c {
	case InitrdCompressionLz4:
		return []string{"-9", "-l"}
	case InitrdCompressionXz:
		return []string{"-7"}
	case InitrdCompressionGz:
		return []string{"-7"}
	default:
		return []string{"-1", "-T0"}
	}
}

// BuildPackage returns the host package that provides the compressor.
// gzip is part of every Ubuntu base system, so 'gz' shares the zstd default.
func (c InitrdCompression) BuildPackage() string {
	switch c {
	case InitrdCompressionLz4:
		return "lz4"
	case InitrdCompressionXz:
		return "xz-utils"
	default:
		return "zstd"
	}
}
