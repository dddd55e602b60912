package env

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// OSFileSystem is the default local-disk FileSystem collaborator: the
// "minimal local implementation" env.go's FileSystem doc comment calls
// for, everything else (network/remote filesystems) stays external.
type OSFileSystem struct{}

func (OSFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (OSFileSystem) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (OSFileSystem) WriteFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}

func (OSFileSystem) Stat(path string) (size int64, isDir bool, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, false, err
	}
	return info.Size(), info.IsDir(), nil
}

// LocalModuleResolver resolves import references that are plain
// filesystem paths (relative to a base directory), the only resolver
// transport this core ships in-tree; registry/URL resolvers are the
// external collaborator spec.md §6 describes.
type LocalModuleResolver struct {
	BaseDir string
}

func (r LocalModuleResolver) Resolve(ctx context.Context, reference string) ([]byte, string, string, error) {
	if filepath.IsAbs(reference) {
		content, err := os.ReadFile(reference)
		if err != nil {
			return nil, "", "", err
		}
		return content, reference, "", nil
	}
	full := filepath.Join(r.BaseDir, reference)
	content, err := os.ReadFile(full)
	if err != nil {
		return nil, "", "", fmt.Errorf("local module %q not found under %q: %w", reference, r.BaseDir, err)
	}
	return content, full, "", nil
}
