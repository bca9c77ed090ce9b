// Copyright Microsoft Corporation.
// Licensed under the MIT License.

package initrdutils

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cavaliercoder/go-cpio"
	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/microsoft/kernel-initrd-tools/toolkit/tools/internal/logger"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
	CompressionXz   Compression = "xz"
	CompressionLz4  Compression = "lz4"
)

type EntryType string

const (
	EntryTypeDir     EntryType = "dir"
	EntryTypeFile    EntryType = "file"
	EntryTypeSymlink EntryType = "symlink"
	EntryTypeOther   EntryType = "other"
)

var (
	gzipMagic      = []byte{0x1f, 0x8b}
	zstdMagic      = []byte{0x28, 0xb5, 0x2f, 0xfd}
	xzMagic        = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
	lz4FrameMagic  = []byte{0x04, 0x22, 0x4d, 0x18}
	lz4LegacyMagic = []byte{0x02, 0x21, 0x4c, 0x18}
	newcMagic      = []byte("07070")
)

// InitrdEntry describes one member of an initrd archive.
type InitrdEntry struct {
	Path     string      `yaml:"path" json:"path"`
	Type     EntryType   `yaml:"type" json:"type"`
	Mode     os.FileMode `yaml:"mode" json:"mode"`
	Size     int64       `yaml:"size" json:"size"`
	Linkname string      `yaml:"linkname,omitempty" json:"linkname,omitempty"`
}

// CreateInitrdImageFromFolder writes the contents of inputDir as a newc cpio archive, owned by root, compressed with
// the given compression.
func CreateInitrdImageFromFolder(inputDir, outputInitrdImagePath string, compression Compression) (err error) {
	outputFile, err := os.Create(outputInitrdImagePath)
	if err != nil {
		return fmt.Errorf("failed to create image file (%s):\n%w", outputInitrdImagePath, err)
	}
	defer func() {
		closeErr := outputFile.Close()
		if err == nil && closeErr != nil {
			err = fmt.Errorf("failed to close image file (%s):\n%w", outputInitrdImagePath, closeErr)
		}
	}()

	compressedWriter, err := newCompressedWriter(outputFile, compression)
	if err != nil {
		return err
	}
	defer func() {
		closeErr := compressedWriter.Close()
		if err == nil && closeErr != nil {
			err = fmt.Errorf("failed to finish %s stream (%s):\n%w", compression, outputInitrdImagePath, closeErr)
		}
	}()

	cpioWriter := cpio.NewWriter(compressedWriter)
	defer func() {
		closeErr := cpioWriter.Close()
		if err == nil && closeErr != nil {
			err = fmt.Errorf("failed to finish cpio archive (%s):\n%w", outputInitrdImagePath, closeErr)
		}
	}()

	// Traverse the directory structure and add all the files/directories/links to the archive.
	err = filepath.Walk(inputDir, func(path string, info os.FileInfo, fileErr error) error {
		if fileErr != nil {
			return fmt.Errorf("encountered a file walk error on path (%s):\n%w", path, fileErr)
		}
		if path == inputDir {
			return nil
		}

		err := addFileToCpioArchive(inputDir, path, info, cpioWriter)
		if err != nil {
			return fmt.Errorf("failed to add (%s) to archive (%s):\n%w", path, outputInitrdImagePath, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	return nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error {
	return nil
}

func newCompressedWriter(w io.Writer, compression Compression) (io.WriteCloser, error) {
	switch compression {
	case CompressionNone:
		return nopWriteCloser{w}, nil
	case CompressionGzip:
		return pgzip.NewWriter(w), nil
	case CompressionZstd:
		encoder, err := zstd.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder:\n%w", err)
		}
		return encoder, nil
	case CompressionXz:
		xzWriter, err := xz.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("failed to create xz writer:\n%w", err)
		}
		return xzWriter, nil
	case CompressionLz4:
		// The kernel only unpacks the legacy lz4 format ('lz4 -l').
		lz4Writer := lz4.NewWriter(w)
		err := lz4Writer.Apply(lz4.LegacyOption(true))
		if err != nil {
			return nil, fmt.Errorf("failed to create lz4 writer:\n%w", err)
		}
		return lz4Writer, nil
	default:
		return nil, fmt.Errorf("unsupported initrd image compression (%s)", compression)
	}
}

func addFileToCpioArchive(inputDir, path string, info os.FileInfo, cpioWriter *cpio.Writer) (err error) {
	var link string
	if info.Mode()&os.ModeSymlink != 0 {
		link, err = os.Readlink(path)
		if err != nil {
			return fmt.Errorf("failed to read link information of (%s):\n%w", path, err)
		}
	}

	cpioHeader, err := cpio.FileInfoHeader(info, link)
	if err != nil {
		return fmt.Errorf("failed to convert OS file info into a cpio header for (%s)\n%w", path, err)
	}

	relPath, err := filepath.Rel(inputDir, path)
	if err != nil {
		return fmt.Errorf("failed to get relative path of (%s) using root (%s):\n%w", path, inputDir, err)
	}
	cpioHeader.Name = relPath
	cpioHeader.UID = 0
	cpioHeader.GID = 0

	err = cpioWriter.WriteHeader(cpioHeader)
	if err != nil {
		return fmt.Errorf("failed to write cpio header for (%s)\n%w", path, err)
	}

	switch {
	case info.Mode().IsRegular():
		fileToAdd, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open (%s)\n%w", path, err)
		}
		defer fileToAdd.Close()

		_, err = io.Copy(cpioWriter, fileToAdd)
		if err != nil {
			return fmt.Errorf("failed to write (%s) to cpio archive\n%w", path, err)
		}

	case info.Mode()&os.ModeSymlink != 0:
		_, err = cpioWriter.Write([]byte(link))
		if err != nil {
			return fmt.Errorf("failed to write link (%s)\n%w", path, err)
		}
	}

	return nil
}

// DetectCompression identifies the compression of an initrd image from its leading bytes.
func DetectCompression(header []byte) (Compression, error) {
	switch {
	case bytes.HasPrefix(header, gzipMagic):
		return CompressionGzip, nil
	case bytes.HasPrefix(header, zstdMagic):
		return CompressionZstd, nil
	case bytes.HasPrefix(header, xzMagic):
		return CompressionXz, nil
	case bytes.HasPrefix(header, lz4FrameMagic), bytes.HasPrefix(header, lz4LegacyMagic):
		return CompressionLz4, nil
	case bytes.HasPrefix(header, newcMagic):
		return CompressionNone, nil
	default:
		return "", fmt.Errorf("unrecognized initrd image format")
	}
}

// ListInitrdEntries returns the members of an initrd image, in archive order.
func ListInitrdEntries(inputInitrdImagePath string) ([]InitrdEntry, error) {
	inputInitrdImageFile, err := os.Open(inputInitrdImagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file (%s):\n%w", inputInitrdImagePath, err)
	}
	defer inputInitrdImageFile.Close()

	bufferedReader := bufio.NewReader(inputInitrdImageFile)
	header, err := bufferedReader.Peek(len(xzMagic))
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read header of (%s):\n%w", inputInitrdImagePath, err)
	}

	compression, err := DetectCompression(header)
	if err != nil {
		return nil, fmt.Errorf("failed to read initrd image (%s):\n%w", inputInitrdImagePath, err)
	}

	logger.Log.Debugf("Reading %s compressed initrd image (%s)", compression, inputInitrdImagePath)

	decompressedReader, err := newDecompressedReader(bufferedReader, compression)
	if err != nil {
		return nil, fmt.Errorf("failed to read initrd image (%s):\n%w", inputInitrdImagePath, err)
	}
	defer decompressedReader.Close()

	var entries []InitrdEntry
	cpioReader := cpio.NewReader(decompressedReader)
	for {
		cpioHeader, err := cpioReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read cpio header from (%s):\n%w", inputInitrdImagePath, err)
		}

		entries = append(entries, InitrdEntry{
			Path:     normalizeEntryPath(cpioHeader.Name),
			Type:     entryType(cpioHeader.Mode),
			Mode:     os.FileMode(cpioHeader.Mode & cpio.ModePerm),
			Size:     cpioHeader.Size,
			Linkname: cpioHeader.Linkname,
		})
	}

	return entries, nil
}

type readCloser struct {
	io.Reader
	close func() error
}

func (r readCloser) Close() error {
	return r.close()
}

func newDecompressedReader(r io.Reader, compression Compression) (io.ReadCloser, error) {
	switch compression {
	case CompressionNone:
		return io.NopCloser(r), nil
	case CompressionGzip:
		pgzipReader, err := pgzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to create a pgzip reader:\n%w", err)
		}
		return pgzipReader, nil
	case CompressionZstd:
		decoder, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to create a zstd decoder:\n%w", err)
		}
		return readCloser{Reader: decoder, close: func() error { decoder.Close(); return nil }}, nil
	case CompressionXz:
		xzReader, err := xz.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to create an xz reader:\n%w", err)
		}
		return io.NopCloser(xzReader), nil
	case CompressionLz4:
		return io.NopCloser(lz4.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("%s compressed initrd images are not supported", compression)
	}
}

func normalizeEntryPath(name string) string {
	return strings.TrimPrefix(path.Clean("/"+name), "/")
}

func entryType(mode cpio.FileMode) EntryType {
	switch mode & cpio.ModeType {
	case cpio.ModeDir:
		return EntryTypeDir
	case cpio.ModeRegular:
		return EntryTypeFile
	case cpio.ModeSymlink:
		return EntryTypeSymlink
	default:
		return EntryTypeOther
	}
}

// VerifyInitrdContents checks that every pattern matches at least one member of the initrd image.
// Patterns use doublestar syntax, relative to the initrd root (e.g. 'usr/lib/modules/*/kernel/**/nvme.ko*').
func VerifyInitrdContents(inputInitrdImagePath string, patterns []string) error {
	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid initrd content pattern (%s)", pattern)
		}
	}

	entries, err := ListInitrdEntries(inputInitrdImagePath)
	if err != nil {
		return err
	}

	var missing []string
	for _, pattern := range patterns {
		found := false
		for _, entry := range entries {
			matched, err := doublestar.Match(pattern, entry.Path)
			if err != nil {
				return fmt.Errorf("failed to match initrd content pattern (%s):\n%w", pattern, err)
			}
			if matched {
				found = true
				break
			}
		}

		if !found {
			missing = append(missing, pattern)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("initrd image (%s) is missing expected content: %s", inputInitrdImagePath,
			strings.Join(missing, ", "))
	}

	return nil
}
