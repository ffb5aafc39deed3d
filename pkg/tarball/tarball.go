// Package tarball extracts npm package archives into an in-memory file
// mapping.
//
// npm tarballs are gzip-compressed tar streams whose entries all live
// under a leading "package/" directory. [Extract] decompresses the stream
// and walks the 512-byte tar header blocks directly, keeping only regular
// files that a bundler can use. Declaration files, source maps and
// documentation are dropped (see [IsNoise]).
package tarball

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"

	nerrors "github.com/matzehuels/nodevfs/pkg/errors"
)

const (
	blockSize = 512

	// maxEntrySize bounds a single file so a hostile archive cannot make
	// the extractor allocate without limit.
	maxEntrySize = 64 << 20
)

// Header field offsets and lengths (POSIX ustar).
const (
	nameOff, nameLen     = 0, 100
	sizeOff, sizeLen     = 124, 12
	typeOff              = 156
	prefixOff, prefixLen = 345, 155
)

// Package-root directory that the npm registry places every entry under.
const packageDir = "package/"

var noiseSuffixes = []string{".d.ts", ".d.mts", ".d.cts", ".map", ".md", ".txt", ".flow"}

// IsNoise reports whether name is a file the bundler never needs:
// type declarations, source maps, docs and Flow sources.
func IsNoise(name string) bool {
	for _, s := range noiseSuffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}

// Extract decompresses a gzip-compressed tar stream and returns its
// regular files keyed by path relative to the package root.
//
// Any malformed input yields an error with code PARSE_FAILED.
func Extract(r io.Reader) (map[string]string, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, nerrors.Parse(err, "open gzip stream")
	}
	defer zr.Close()

	files, err := Parse(zr)
	if err != nil {
		return nil, err
	}
	return files, nil
}

// Parse reads an uncompressed tar stream. Reading stops at the first
// all-zero header block or at a clean end of input on a block boundary.
func Parse(r io.Reader) (map[string]string, error) {
	br := bufio.NewReaderSize(r, 32*1024)
	files := make(map[string]string)
	header := make([]byte, blockSize)

	for offset := int64(0); ; {
		if _, err := io.ReadFull(br, header); err != nil {
			if errors.Is(err, io.EOF) {
				return files, nil
			}
			return nil, nerrors.Parse(err, "read header at offset %d", offset)
		}
		if isZeroBlock(header) {
			return files, nil
		}

		name := cString(header[nameOff : nameOff+nameLen])
		if prefix := cString(header[prefixOff : prefixOff+prefixLen]); prefix != "" {
			name = prefix + "/" + name
		}
		name = strings.TrimPrefix(name, packageDir)

		size, err := parseNumeric(header[sizeOff : sizeOff+sizeLen])
		if err != nil {
			return nil, nerrors.Parse(err, "entry %q at offset %d has invalid size", name, offset)
		}
		if size > maxEntrySize {
			return nil, nerrors.Parse(nil, "entry %q is too large (%d bytes)", name, size)
		}
		padded := roundUp(size)

		if keep(name, header[typeOff], size) {
			content := make([]byte, size)
			if _, err := io.ReadFull(br, content); err != nil {
				return nil, nerrors.Parse(err, "entry %q is truncated", name)
			}
			if _, err := br.Discard(int(padded - size)); err != nil {
				return nil, nerrors.Parse(err, "entry %q is truncated", name)
			}
			files[name] = string(content)
		} else if _, err := br.Discard(int(padded)); err != nil {
			return nil, nerrors.Parse(err, "entry %q is truncated", name)
		}

		offset += blockSize + padded
	}
}

func keep(name string, typeflag byte, size int64) bool {
	if typeflag != '0' && typeflag != 0 {
		return false
	}
	if size <= 0 || name == "" || IsNoise(name) {
		return false
	}
	return nerrors.ValidatePath(name) == nil
}

func isZeroBlock(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

// cString returns the bytes before the first NUL.
func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// parseNumeric decodes a tar numeric field: NUL/space padded octal, or
// GNU base-256 when the high bit of the first byte is set.
func parseNumeric(b []byte) (int64, error) {
	if len(b) > 0 && b[0]&0x80 != 0 {
		var n int64
		for i, c := range b {
			if i == 0 {
				c &= 0x7f
			}
			if n > (1<<55)-1 {
				return 0, fmt.Errorf("base-256 size overflows")
			}
			n = n<<8 | int64(c)
		}
		return n, nil
	}
	s := strings.Trim(string(b), " \x00")
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 8, 64)
}

func roundUp(n int64) int64 {
	return (n + blockSize - 1) / blockSize * blockSize
}
