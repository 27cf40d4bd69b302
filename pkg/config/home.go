package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnvHome overrides the apidemos-e2e home directory.
const EnvHome = "APIDEMOS_E2E_HOME"

// Home returns the apidemos-e2e home directory: $APIDEMOS_E2E_HOME, else
// <home> when the binary is installed as <home>/bin/apidemos-e2e, else the
// working directory.
func Home() string {
	if env := os.Getenv(EnvHome); env != "" {
		return filepath.Clean(env)
	}

	if execPath, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(execPath); err == nil {
			execPath = resolved
		}
		if binDir := filepath.Dir(execPath); filepath.Base(binDir) == "bin" {
			return filepath.Dir(binDir)
		}
	}

	if cwd, err := os.Getwd(); err == nil {
		return cwd
	}
	return "."
}

// ReportsDir returns <home>/reports, creating it if needed. It is the base
// for run directories when --output is not given.
func ReportsDir() (string, error) {
	dir := filepath.Join(Home(), "reports")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create reports dir: %w", err)
	}
	return dir, nil
}
