// Package fileio provides rooted file access for one shared
// directory. All operations take a bare filename, validate it against
// the single-segment rules, and resolve it under the root. The
// filesystem is abstracted behind afero so tests run against an
// in-memory fs.
package fileio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/Ning0612/dirshare/internal/core/checksum"
	"github.com/Ning0612/dirshare/internal/domain"
)

// Dir is a handle on one shared directory
type Dir struct {
	fs   afero.Fs
	root string
}

// New creates a Dir on the operating-system filesystem.
// root must be an existing directory.
func New(root string) (*Dir, error) {
	return NewWithFs(afero.NewOsFs(), root)
}

// NewWithFs creates a Dir on an arbitrary afero filesystem
func NewWithFs(fs afero.Fs, root string) (*Dir, error) {
	info, err := fs.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, root)
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotDirectory, root)
	}

	return &Dir{fs: fs, root: root}, nil
}

// Root returns the directory path the Dir was created with
func (d *Dir) Root() string {
	return d.root
}

// resolve validates the filename and joins it under the root
func (d *Dir) resolve(name string) (string, error) {
	if !domain.ValidFilename(name) {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidFilename, name)
	}
	return filepath.Join(d.root, name), nil
}

// mapError converts os-level errors to domain-level errors
func mapError(err error) error {
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", domain.ErrNotFound, err)
	}
	return err
}

// ReadAll reads the entire contents of a file
func (d *Dir) ReadAll(name string) ([]byte, error) {
	path, err := d.resolve(name)
	if err != nil {
		return nil, err
	}

	data, err := afero.ReadFile(d.fs, path)
	if err != nil {
		return nil, mapError(err)
	}
	return data, nil
}

// WriteAll creates or truncates a file with the given contents
func (d *Dir) WriteAll(name string, data []byte) error {
	path, err := d.resolve(name)
	if err != nil {
		return err
	}

	if err := afero.WriteFile(d.fs, path, data, 0644); err != nil {
		return mapError(err)
	}
	return nil
}

// Size returns the file size in bytes
func (d *Dir) Size(name string) (uint64, error) {
	path, err := d.resolve(name)
	if err != nil {
		return 0, err
	}

	info, err := d.fs.Stat(path)
	if err != nil {
		return 0, mapError(err)
	}
	return uint64(info.Size()), nil
}

// MTime returns the file modification time. Filesystems without
// sub-second precision report Nsec 0.
func (d *Dir) MTime(name string) (domain.MTime, error) {
	path, err := d.resolve(name)
	if err != nil {
		return domain.MTime{}, err
	}

	info, err := d.fs.Stat(path)
	if err != nil {
		return domain.MTime{}, mapError(err)
	}
	return domain.MTimeFromTime(info.ModTime()), nil
}

// SetMTime restores a file's modification time, keeping the access
// time when the platform exposes it
func (d *Dir) SetMTime(name string, mtime domain.MTime) error {
	path, err := d.resolve(name)
	if err != nil {
		return err
	}

	atime := time.Now()
	if info, statErr := d.fs.Stat(path); statErr == nil {
		if at, ok := accessTime(info); ok {
			atime = at
		}
	}

	if err := d.fs.Chtimes(path, atime, mtime.Time()); err != nil {
		return mapError(err)
	}
	return nil
}

// ExistsRegular reports whether name resolves to a regular file:
// not a directory, not a symlink, not a device
func (d *Dir) ExistsRegular(name string) bool {
	path, err := d.resolve(name)
	if err != nil {
		return false
	}

	info, err := d.lstat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// Unlink removes a file
func (d *Dir) Unlink(name string) error {
	path, err := d.resolve(name)
	if err != nil {
		return err
	}

	if err := d.fs.Remove(path); err != nil {
		return mapError(err)
	}
	return nil
}

// Checksum streams the file through a CRC32 digest
func (d *Dir) Checksum(name string) (uint32, error) {
	path, err := d.resolve(name)
	if err != nil {
		return 0, err
	}

	f, err := d.fs.Open(path)
	if err != nil {
		return 0, mapError(err)
	}
	defer f.Close()

	return checksum.SumReader(f, checksum.DefaultOptions())
}

// ListRegular lists the names of regular files directly under the
// root: no recursion, no '.' or '..', no directories, no symlinks,
// and nothing that fails the filename validity rules.
func (d *Dir) ListRegular() ([]string, error) {
	infos, err := afero.ReadDir(d.fs, d.root)
	if err != nil {
		return nil, mapError(err)
	}

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		name := info.Name()
		if name == "." || name == ".." {
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}
		if !domain.ValidFilename(name) {
			continue
		}
		names = append(names, name)
	}

	return names, nil
}

// lstat avoids following symlinks when the filesystem supports it
func (d *Dir) lstat(path string) (os.FileInfo, error) {
	if lst, ok := d.fs.(afero.Lstater); ok {
		info, _, err := lst.LstatIfPossible(path)
		return info, err
	}
	return d.fs.Stat(path)
}

// IsDirectory reports whether path is a directory on the OS
// filesystem. Used to validate the CLI argument at startup.
func IsDirectory(path string) bool {
	ok, err := afero.DirExists(afero.NewOsFs(), path)
	return err == nil && ok
}

// NotFound reports whether err is the domain not-found sentinel
func NotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
