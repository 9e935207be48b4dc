package project

import (
	"cmp"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// ManifestName is the file FindManifest looks for.
const ManifestName = "encdelta.toml"

// EnvConfig names a manifest to use instead of searching for one.
const EnvConfig = "ENCDELTA_CONFIG"

// FindManifest returns the manifest named by $ENCDELTA_CONFIG, or else the
// nearest encdelta.toml in startDir or one of its parents.
func FindManifest(startDir string) (path string, ok bool, err error) {
	if p := os.Getenv(EnvConfig); p != "" {
		if _, err := os.Stat(p); err != nil {
			return "", false, wrapIO(p, err)
		}
		return p, true, nil
	}
	dir, err := filepath.Abs(cmp.Or(startDir, "."))
	if err != nil {
		return "", false, wrapIO(startDir, err)
	}
	for prev := ""; dir != prev; prev, dir = dir, filepath.Dir(dir) {
		candidate := filepath.Join(dir, ManifestName)
		_, err := os.Stat(candidate)
		switch {
		case err == nil:
			return candidate, true, nil
		case !errors.Is(err, fs.ErrNotExist):
			return "", false, wrapIO(candidate, err)
		}
	}
	return "", false, nil
}

