// Package store persists encoded volumes as .nii files in a directory.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"niftiverify/pkg/nifti"
)

// Ext is the file extension of single-file NIfTI-1 volumes.
const Ext = ".nii"

// Dir is a directory of .nii files. Methods are safe for concurrent use as
// long as callers do not write the same name from two goroutines.
type Dir struct {
	root string
}

// Open returns a store rooted at root, creating the directory if needed.
func Open(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("error creating store directory: %w", err)
	}
	return &Dir{root: root}, nil
}

// Root returns the store's directory.
func (d *Dir) Root() string { return d.root }

// Path returns the file path for name, appending Ext when missing.
func (d *Dir) Path(name string) string {
	if !strings.HasSuffix(strings.ToLower(name), Ext) {
		name += Ext
	}
	return filepath.Join(d.root, name)
}

// List returns the base names of all .nii files in the store, sorted.
// Subdirectories and other files are skipped.
func (d *Dir) List() ([]string, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("error listing %s: %w", d.root, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), Ext) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Read returns the bytes stored under name.
func (d *Dir) Read(name string) ([]byte, error) {
	return ReadFile(d.Path(name))
}

// Write stores data under name and returns the written path. The data goes
// to a temporary file first and is renamed into place, so readers never see
// a partial volume.
func (d *Dir) Write(name string, data []byte) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	path := d.Path(name)

	tmp, err := os.CreateTemp(d.root, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("error creating temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("error writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("error writing %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("error writing %s: %w", path, err)
	}
	return path, nil
}

// ReadVolume reads and decodes the volume stored under name.
func (d *Dir) ReadVolume(name string) (*nifti.VoxelArray, error) {
	b, err := d.Read(name)
	if err != nil {
		return nil, err
	}
	v, err := nifti.Decode(b)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return v, nil
}

// WriteVolume encodes v and stores it under name.
func (d *Dir) WriteVolume(name string, v *nifti.VoxelArray) (string, error) {
	b, err := nifti.Encode(v)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", name, err)
	}
	return d.Write(name, b)
}

// ReadFile reads a volume file from an arbitrary path.
func ReadFile(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}
	return b, nil
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid volume name %q", name)
	}
	return nil
}
