// Package export writes generated game files to disk.
package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gameforge/pkg/session"
)

// ErrUnsafeFilename is returned for names that would escape the output directory.
var ErrUnsafeFilename = errors.New("unsafe filename")

// Result lists what WriteArtifact wrote.
type Result struct {
	Dir        string
	Files      []string
	EntryPoint string
}

// WriteArtifact writes every file of a into dir, creating it as needed.
// Existing files with the same names are overwritten.
func WriteArtifact(dir string, a *session.Artifact) (*Result, error) {
	if a == nil {
		return nil, errors.New("no artifact to export")
	}

	// Check every name before touching the disk.
	for _, f := range a.Files {
		if err := checkFilename(f.Filename); err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	res := &Result{Dir: dir, EntryPoint: filepath.Join(dir, a.EntryPoint)}
	for _, f := range a.Files {
		path := filepath.Join(dir, filepath.FromSlash(f.Filename))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", f.Filename, err)
		}
		if err := os.WriteFile(path, []byte(f.Content), 0644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", f.Filename, err)
		}
		res.Files = append(res.Files, path)
	}
	return res, nil
}

func checkFilename(name string) error {
	clean := filepath.Clean(filepath.FromSlash(name))
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: empty", ErrUnsafeFilename)
	case filepath.IsAbs(clean), strings.HasPrefix(name, "/"):
		return fmt.Errorf("%w: %q is absolute", ErrUnsafeFilename, name)
	case clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)):
		return fmt.Errorf("%w: %q leaves the output directory", ErrUnsafeFilename, name)
	}
	return nil
}

// OwnerDir returns the per-owner directory under base. Separators and other
// characters unsafe in a path component are replaced with dashes.
func OwnerDir(base, owner string) string {
	name := strings.NewReplacer(":", "-", " ", "-", "/", "-", "\\", "-").Replace(strings.TrimSpace(owner))
	if name == "" || name == "." || name == ".." {
		name = "anonymous"
	}
	return filepath.Join(base, name)
}

// CleanDir removes the contents of dir but keeps the directory itself, so
// a browser tab or file server pointed at it stays valid.
func CleanDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read directory: %w", err)
	}

	for _, entry := range entries {
		entryPath := filepath.Join(dir, entry.Name())
		if err := os.RemoveAll(entryPath); err != nil {
			return fmt.Errorf("failed to remove %s: %w", entryPath, err)
		}
	}
	return nil
}
