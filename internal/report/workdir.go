// Package report renders charts and writes the analysis artifacts.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// CreateWorkingDirectory returns the directory all artifacts are written to.
// With an override it is created as-is; otherwise a timestamped directory is
// created under prefix.
func CreateWorkingDirectory(override, prefix string) (string, error) {
	dir := override
	if dir == "" {
		dir = filepath.Join(prefix, time.Now().Format("20060102_150405"))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create working directory: %w", err)
	}
	return dir, nil
}
