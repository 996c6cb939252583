// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package claude

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/wingedpig/clauderelay/internal/config"
)

// ConfigurationError reports that the CLI executable could not be found.
// It is fatal for the invocation and is not retried.
type ConfigurationError struct {
	Executable string
	Searched   []string
}

func (e *ConfigurationError) Error() string {
	if len(e.Searched) == 0 {
		return fmt.Sprintf("claude executable %q not found", e.Executable)
	}
	return fmt.Sprintf("claude executable %q not found (searched PATH and %s)", e.Executable, strings.Join(e.Searched, ", "))
}

// Locate resolves the CLI executable. An explicit path must exist; a bare
// name is looked up on PATH and then in each search path.
func Locate(executable string, searchPaths []string) (string, error) {
	if executable == "" {
		executable = "claude"
	}
	executable = config.ExpandPath(executable)

	if strings.ContainsRune(executable, filepath.Separator) {
		if isExecutable(executable) {
			return executable, nil
		}
		return "", &ConfigurationError{Executable: executable}
	}

	if p, err := exec.LookPath(executable); err == nil {
		return p, nil
	}

	searched := make([]string, 0, len(searchPaths))
	for _, dir := range searchPaths {
		dir = config.ExpandPath(dir)
		searched = append(searched, dir)
		if p := filepath.Join(dir, executable); isExecutable(p) {
			return p, nil
		}
	}
	return "", &ConfigurationError{Executable: executable, Searched: searched}
}

func isExecutable(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir() && fi.Mode()&0111 != 0
}
