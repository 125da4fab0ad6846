package backup

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/bnema/stevedore/internal/policy"
)

// gzipLevel matches the moderate default of command line gzip.
const gzipLevel = 6

// compressArtifact compresses path with the given method, removes the
// original and returns the compressed path. On failure the partial output
// is removed so only the uncompressed artifact remains.
func compressArtifact(path string, method policy.Compression) (string, error) {
	switch method {
	case policy.CompressionGzip:
		return compressTo(path, path+".gz", func(w io.Writer) (io.WriteCloser, error) {
			return gzip.NewWriterLevel(w, gzipLevel)
		})
	case policy.CompressionZstd:
		return compressTo(path, path+".zst", func(w io.Writer) (io.WriteCloser, error) {
			return zstd.NewWriter(w)
		})
	default:
		return path, nil
	}
}

func compressTo(src, dst string, newWriter func(io.Writer) (io.WriteCloser, error)) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("failed to compress %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("failed to compress %s: %w", src, err)
	}

	zw, err := newWriter(out)
	if err == nil {
		_, err = io.Copy(zw, in)
	}
	if err == nil {
		err = zw.Close()
	}
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("failed to compress %s: %w", src, err)
	}

	if err := os.Remove(src); err != nil {
		return "", fmt.Errorf("failed to remove uncompressed %s: %w", src, err)
	}
	return dst, nil
}
