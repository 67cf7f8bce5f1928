package storage

import (
	"fmt"
	"path/filepath"
	"strings"
)

// resolve maps a snapshot key to a file under basePath, rejecting keys that
// would escape it.
func resolve(basePath, key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) {
		return "", fmt.Errorf("invalid snapshot key: %q", key)
	}

	fullPath := filepath.Join(basePath, filepath.Clean(key)+".json")
	if !strings.HasPrefix(fullPath, filepath.Clean(basePath)+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid snapshot key: %q", key)
	}
	return fullPath, nil
}
