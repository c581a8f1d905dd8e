package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/patientportal/internal/common"
	"github.com/dmitrijs2005/patientportal/internal/filex"
)

// LocalStore serves files from one uploads directory.
type LocalStore struct {
	root string
}

// NewLocalStore creates dir if needed and pins its fully resolved path.
func NewLocalStore(dir string) (*LocalStore, error) {
	abs, err := filex.EnsureDir(dir)
	if err != nil {
		return nil, err
	}
	root, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve uploads dir: %w", err)
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) Open(ctx context.Context, name string) (io.ReadCloser, int64, error) {
	base := filepath.Base(filepath.FromSlash(name))
	if base == "." || base == ".." || base == string(filepath.Separator) {
		return nil, 0, common.ErrorNotFound
	}

	resolved, err := filepath.EvalSymlinks(filepath.Join(s.root, base))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, common.ErrorNotFound
		}
		return nil, 0, fmt.Errorf("resolve %s: %w", base, err)
	}
	if !s.contains(resolved) {
		return nil, 0, common.ErrorNotFound
	}

	f, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, common.ErrorNotFound
		}
		return nil, 0, fmt.Errorf("open %s: %w", base, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, fmt.Errorf("stat %s: %w", base, err)
	}
	if !info.Mode().IsRegular() {
		_ = f.Close()
		return nil, 0, common.ErrorNotFound
	}
	return f, info.Size(), nil
}

func (s *LocalStore) contains(path string) bool {
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
