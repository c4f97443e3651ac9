package collection

import (
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

// hashFile computes the xxhash64 of a file's contents.
func hashFile(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return 0, fmt.Errorf("failed to hash file: %w", err)
	}

	return h.Sum64(), nil
}

// scanFile stats and hashes one file.
func scanFile(name, path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, err
	}

	digest, err := hashFile(path)
	if err != nil {
		return File{}, err
	}

	return File{
		Name:    name,
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Digest:  digest,
	}, nil
}
