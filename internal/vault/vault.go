// Package vault stores data object payloads on an afero filesystem.
//
// Physical paths handed out by the vault are absolute paths on that
// filesystem. Several catalog records may point at the same physical path.
package vault

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/Mschirtzinger/hardlinks/internal/catalog"
	"github.com/spf13/afero"
)

// Vault is a payload store rooted at a directory of an afero filesystem.
type Vault struct {
	fs   afero.Fs
	root string
}

// New returns a vault rooted at root on fsys.
func New(fsys afero.Fs, root string) *Vault {
	if root == "" {
		root = "/"
	}
	return &Vault{fs: fsys, root: path.Clean(root)}
}

// NewOS returns a vault on the local filesystem.
func NewOS(root string) *Vault {
	return New(afero.NewOsFs(), root)
}

// NewMem returns an in-memory vault, used by tests and dry runs.
func NewMem(root string) *Vault {
	return New(afero.NewMemMapFs(), root)
}

// Root returns the vault root directory.
func (v *Vault) Root() string {
	return v.root
}

// Fs exposes the underlying filesystem.
func (v *Vault) Fs() afero.Fs {
	return v.fs
}

// PathFor returns the default physical path for a logical path: the vault
// root followed by the logical path without its zone component.
//
//	/tempZone/home/alice/a.txt -> <root>/home/alice/a.txt
func (v *Vault) PathFor(p catalog.LogicalPath) string {
	rel := strings.TrimPrefix(string(p), "/")
	if i := strings.IndexByte(rel, '/'); i >= 0 {
		rel = rel[i+1:]
	}
	return path.Join(v.root, rel)
}

// Contains reports whether physicalPath lies inside the vault root.
func (v *Vault) Contains(physicalPath string) bool {
	clean := path.Clean(physicalPath)
	return clean == v.root || strings.HasPrefix(clean, strings.TrimSuffix(v.root, "/")+"/")
}

// Write stores data at physicalPath, creating parent directories.
func (v *Vault) Write(physicalPath string, data []byte) error {
	if err := v.check(physicalPath); err != nil {
		return err
	}
	if err := v.fs.MkdirAll(path.Dir(physicalPath), 0755); err != nil {
		return fmt.Errorf("failed to create vault directory: %w", err)
	}
	if err := afero.WriteFile(v.fs, physicalPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write payload %s: %w", physicalPath, err)
	}
	return nil
}

// Read returns the payload at physicalPath.
func (v *Vault) Read(physicalPath string) ([]byte, error) {
	data, err := afero.ReadFile(v.fs, physicalPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload %s: %w", physicalPath, err)
	}
	return data, nil
}

// Exists reports whether a payload is present at physicalPath.
func (v *Vault) Exists(physicalPath string) bool {
	info, err := v.fs.Stat(physicalPath)
	return err == nil && !info.IsDir()
}

// Size returns the payload size in bytes.
func (v *Vault) Size(physicalPath string) (int64, error) {
	info, err := v.fs.Stat(physicalPath)
	if err != nil {
		return 0, fmt.Errorf("failed to stat payload %s: %w", physicalPath, err)
	}
	return info.Size(), nil
}

// Move relocates the payload from oldPath to newPath.
func (v *Vault) Move(oldPath, newPath string) error {
	if oldPath == newPath {
		return nil
	}
	if err := v.check(newPath); err != nil {
		return err
	}
	if err := v.fs.MkdirAll(path.Dir(newPath), 0755); err != nil {
		return fmt.Errorf("failed to create vault directory: %w", err)
	}
	if err := v.fs.Rename(oldPath, newPath); err != nil {
		return fmt.Errorf("failed to move payload %s to %s: %w", oldPath, newPath, err)
	}
	return nil
}

// Remove deletes the payload at physicalPath. A missing payload is not an error.
func (v *Vault) Remove(physicalPath string) error {
	err := v.fs.Remove(physicalPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove payload %s: %w", physicalPath, err)
	}
	return nil
}

func (v *Vault) check(physicalPath string) error {
	if !path.IsAbs(physicalPath) {
		return fmt.Errorf("physical path must be absolute: %s", physicalPath)
	}
	if !v.Contains(physicalPath) {
		return fmt.Errorf("physical path %s is outside vault %s", physicalPath, v.root)
	}
	return nil
}
