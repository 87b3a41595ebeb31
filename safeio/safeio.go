// Package safeio provides the bounded I/O and path containment helpers used
// wherever portal-supplied data reaches the filesystem or memory.
package safeio

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// ErrPathTraversal is returned when a relative path escapes its base.
var ErrPathTraversal = errors.New("safeio: path traversal detected")

// ErrTooLarge is returned by LimitedReadAll when the limit is exceeded.
var ErrTooLarge = errors.New("safeio: content exceeds limit")

// SafePath joins base and rel and verifies the result stays under base.
// rel uses either separator; ".." segments are rejected outright.
func SafePath(base, rel string) (string, error) {
	rel = filepath.FromSlash(rel)
	for _, seg := range strings.Split(rel, string(filepath.Separator)) {
		if seg == ".." {
			return "", fmt.Errorf("%w: %s", ErrPathTraversal, rel)
		}
	}
	cleanBase := filepath.Clean(base)
	cleaned := filepath.Join(cleanBase, filepath.Clean(string(filepath.Separator)+rel))
	if cleaned != cleanBase && !strings.HasPrefix(cleaned, cleanBase+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathTraversal, rel)
	}
	return cleaned, nil
}

// LimitedReadAll reads at most maxBytes from r. Exceeding the limit yields
// an error wrapping ErrTooLarge.
func LimitedReadAll(r io.Reader, maxBytes int64) ([]byte, error) {
	lr := io.LimitReader(r, maxBytes+1)
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, maxBytes)
	}
	return data, nil
}
