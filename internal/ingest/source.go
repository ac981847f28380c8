package ingest

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

var gzipMagic = []byte{0x1f, 0x8b}

// decompress returns a reader over the plain CSV bytes of r, unwrapping gzip
// when the stream starts with the gzip magic number. The returned closer
// releases the gzip reader and is safe to call when no gzip layer was added.
func decompress(r io.Reader) (io.Reader, func() error, error) {
	br := bufio.NewReader(r)

	magic, err := br.Peek(len(gzipMagic))
	if err != nil && err != io.EOF {
		return nil, nil, fmt.Errorf("failed to read source: %w", err)
	}

	if len(magic) == len(gzipMagic) && magic[0] == gzipMagic[0] && magic[1] == gzipMagic[1] {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		return zr, zr.Close, nil
	}

	return br, func() error { return nil }, nil
}

// SourceTag derives the tag stored on every imported medicine from a file
// name: the base name without any extensions, so "tablets.csv.gz" becomes
// "tablets".
func SourceTag(path string) string {
	base := filepath.Base(path)
	if i := strings.Index(base, "."); i > 0 {
		base = base[:i]
	}
	return base
}
