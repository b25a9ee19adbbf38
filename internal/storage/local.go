package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const tempPrefix = ".upload-"

// localStorage implements Storage on a directory tree.
// Objects are written to a temp file in the destination directory and renamed into place,
// so readers never observe a partially written object.
type localStorage struct {
	root string
}

// NewLocal creates a filesystem-backed store rooted at dir, creating it if missing.
func NewLocal(dir string) (Storage, error) {
	if dir == "" {
		return nil, fmt.Errorf("upload directory is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve upload directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &localStorage{root: abs}, nil
}

// resolve maps a key onto a path below root, rejecting anything that could escape it.
func (s *localStorage) resolve(key string) (string, error) {
	if key == "" || strings.Contains(key, "\\") || path.IsAbs(key) {
		return "", ErrInvalidKey
	}
	clean := path.Clean(key)
	if clean != key || clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", ErrInvalidKey
	}
	if strings.HasPrefix(path.Base(clean), tempPrefix) {
		return "", ErrInvalidKey
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

// Put streams r to a temp file and renames it to the key's location.
func (s *localStorage) Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	dst, err := s.resolve(key)
	if err != nil {
		return ObjectInfo{}, err
	}
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}
	if _, err := os.Stat(dst); err == nil {
		return ObjectInfo{}, fmt.Errorf("%w: key %q already exists", ErrWrite, key)
	}

	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return ObjectInfo{}, fmt.Errorf("%w: %v", ErrWrite, err)
	}
	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("%w: %v", ErrWrite, err)
	}
	tmpName := tmp.Name()
	// Removing after a successful rename is a harmless no-op.
	defer os.Remove(tmpName)

	n, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return ObjectInfo{}, fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return ObjectInfo{}, fmt.Errorf("%w: %v", ErrWrite, err)
	}
	if err := tmp.Close(); err != nil {
		return ObjectInfo{}, fmt.Errorf("%w: %v", ErrWrite, err)
	}
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return ObjectInfo{}, fmt.Errorf("%w: %v", ErrWrite, err)
	}

	fi, err := os.Stat(dst)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return ObjectInfo{
		Key:          key,
		Path:         dst,
		Size:         n,
		ContentType:  opt.ContentType,
		LastModified: fi.ModTime(),
	}, nil
}

// Get opens the object for streaming.
func (s *localStorage) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	p, err := s.resolve(key)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ObjectInfo{}, ErrNotFound
		}
		return nil, ObjectInfo{}, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ObjectInfo{}, err
	}
	if fi.IsDir() {
		f.Close()
		return nil, ObjectInfo{}, ErrNotFound
	}
	return f, ObjectInfo{
		Key:          key,
		Path:         p,
		Size:         fi.Size(),
		LastModified: fi.ModTime(),
	}, nil
}

// Delete removes the object. A missing object counts as already deleted.
func (s *localStorage) Delete(ctx context.Context, key string) error {
	p, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrDelete, err)
	}
	return nil
}

// List walks the tree, skipping in-flight temp files.
func (s *localStorage) List(ctx context.Context, fn func(ObjectInfo) error) error {
	return filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), tempPrefix) {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		fi, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		return fn(ObjectInfo{
			Key:          filepath.ToSlash(rel),
			Path:         p,
			Size:         fi.Size(),
			LastModified: fi.ModTime(),
		})
	})
}
